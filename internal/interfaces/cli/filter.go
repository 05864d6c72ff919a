package cli

import (
	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/domain/scoring"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
)

// NewFilterCmd creates the filter command.  Input and output compression
// follow the file extensions (.gz, .zst).
func NewFilterCmd() *cobra.Command {
	var in, out string
	c := scoring.DefaultFilterCriteria()
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Keep high-confidence rows of a MAGI result table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			r, err := reference.Open(in)
			if err != nil {
				return err
			}
			defer r.Close()
			w, err := openOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			stats, err := scoring.Filter(r, w, c)
			if err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			cliCtx.Logger.Info("results filtered", logging.Int("read", stats.Read), logging.Int("kept", stats.Kept))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in, "input", "i", "-", "MAGI result table (csv or csv.gz)")
	f.StringVar(&out, "out", "-", "filtered tab-separated table (.gz compresses)")
	f.Float64Var(&c.CompoundScore, "compound-score", c.CompoundScore, "keep compound_score == x")
	f.Float64Var(&c.EScoreR2G, "e-score-r2g", c.EScoreR2G, "keep e_score_r2g > x")
	f.Float64Var(&c.EScoreG2R, "e-score-g2r", c.EScoreG2R, "keep e_score_g2r > x")
	f.Float64Var(&c.ReciprocalScore, "reciprocal-score", c.ReciprocalScore, "keep reciprocal_score == x")
	return cmd
}
