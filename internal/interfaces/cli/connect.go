package cli

import (
	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/application/connect"
	"github.com/TimothyStephens/magi/internal/application/pipeline"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
)

// NewConnectCmd creates the connect command, which links compounds to
// reactions without running any homology search.
func NewConnectCmd() *cobra.Command {
	var compounds, out string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Link compounds to reactions through identity, tautomers and the chemical network",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, logger := cmd.Context(), cliCtx.Logger
			res := &resources{logger: logger}
			defer res.Close()

			inputs, err := reference.LoadCompoundInput(compounds)
			if err != nil {
				return err
			}
			ref, err := loadReference(ctx, cliCtx.Config, res, logger)
			if err != nil {
				return err
			}
			connector := connect.NewConnector(ref, tautomerFinder(ctx, cliCtx, res), connect.Options{
				Tautomer:      cliCtx.Config.Scoring.Tautomer,
				NeighborLevel: cliCtx.Config.Scoring.NeighborLevel,
			}, logger)

			keys := make([]string, len(inputs))
			for i, c := range inputs {
				keys[i] = c.OriginalCompound
			}
			links, err := connector.ConnectAll(ctx, keys)
			if err != nil {
				return err
			}

			w, err := openOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := pipeline.WriteLinks(w, links); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			logger.Info("compounds connected",
				logging.Int("compounds", len(keys)),
				logging.Int("reactions", len(connect.ReactionIDs(links))))
			return nil
		},
	}
	cmd.Flags().StringVar(&compounds, "compounds", "", "compound table")
	cmd.Flags().StringVar(&out, "out", "-", "link table to write (.gz/.zst compress)")
	_ = cmd.MarkFlagRequired("compounds")
	return cmd
}
