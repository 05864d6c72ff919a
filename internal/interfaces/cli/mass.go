package cli

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/domain/mass"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

var (
	massColumns = []string{"query_mass", "target_mass", "ppm", "original_compound", "compound_score"}
	mzColumns   = []string{"mz", "adduct", "neutral_mass", "target_mass", "ppm", "original_compound", "compound_score"}
)

// NewMassCmd creates the mass command group.
func NewMassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mass",
		Short: "Accurate-mass search and monoisotopic mass lookup against the compound table",
	}
	cmd.AddCommand(newMassSearchCmd(), newMassLookupCmd())
	return cmd
}

func newMassSearchCmd() *cobra.Command {
	var in, out string
	var ppm float64
	cmd := &cobra.Command{
		Use:   "search [mass...]",
		Short: "Find reference compounds within a ppm window of each neutral mass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if ppm == 0 {
				ppm = cliCtx.Config.Mass.PPM
			}
			masses, err := valuesFrom(args, in)
			if err != nil {
				return err
			}
			table, err := compoundTable(cliCtx)
			if err != nil {
				return err
			}
			matches := mass.NewSearcher(table).Search(masses, ppm)

			rows := make([][]string, len(matches))
			for i, m := range matches {
				rows[i] = append([]string{formatMass(m.QueryMass)}, matchCells(m)...)
			}
			cliCtx.Logger.Info("mass search finished", logging.Int("masses", len(masses)), logging.Int("rows", len(rows)))
			return writeTSV(out, cmd.OutOrStdout(), massColumns, rows)
		},
	}
	cmd.Flags().StringVarP(&in, "input", "i", "", "file of neutral masses, one per line (\"-\" reads stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "result table to write")
	cmd.Flags().Float64Var(&ppm, "ppm", 0, "mass tolerance in ppm (default: mass.ppm)")
	return cmd
}

func newMassLookupCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "lookup [inchikey...]",
		Short: "Report the monoisotopic mass of each identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			keys := args
			if in != "" {
				if keys, err = readLines(in); err != nil {
					return err
				}
			}
			if len(keys) == 0 {
				return errors.InvalidParam("no identifiers given")
			}
			table, err := compoundTable(cliCtx)
			if err != nil {
				return err
			}
			found, missing := table.MassOf(keys)
			for _, k := range missing {
				cliCtx.Logger.Warn("compound not in compound table", logging.String("compound", k))
			}
			rows := make([][]string, len(found))
			for i, c := range found {
				rows[i] = []string{c.InChIKey, formatMass(c.MonoisotopicMass)}
			}
			return writeTSV(out, cmd.OutOrStdout(), []string{"inchi_key", "mono_isotopic_molecular_weight"}, rows)
		},
	}
	cmd.Flags().StringVarP(&in, "input", "i", "", "file of identifiers, one per line")
	cmd.Flags().StringVar(&out, "out", "-", "result table to write")
	return cmd
}

// NewMZCmd creates the mz command, which searches observed m/z values as
// every selected adduct.
func NewMZCmd() *cobra.Command {
	var in, out, polarity string
	var adducts []string
	var ppm float64
	cmd := &cobra.Command{
		Use:   "mz [mz...]",
		Short: "Annotate observed m/z values with reference compounds through adducts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config.Mass
			if ppm == 0 {
				ppm = cfg.MZPPM
			}
			if polarity == "" {
				polarity = cfg.Polarity
			}
			if len(adducts) == 0 {
				adducts = cfg.Adducts
			}
			selected, err := mass.SelectAdducts(polarity, adducts)
			if err != nil {
				return err
			}
			mzs, err := valuesFrom(args, in)
			if err != nil {
				return err
			}
			table, err := compoundTable(cliCtx)
			if err != nil {
				return err
			}
			matches := mass.NewSearcher(table).SearchMZ(mzs, selected, ppm)

			rows := make([][]string, len(matches))
			for i, m := range matches {
				rows[i] = append([]string{formatMass(m.MZ), m.Adduct, formatMass(m.QueryMass)}, matchCells(m.Match)...)
			}
			cliCtx.Logger.Info("m/z search finished",
				logging.Int("mz_values", len(mzs)),
				logging.Int("adducts", len(selected)),
				logging.Int("rows", len(rows)))
			return writeTSV(out, cmd.OutOrStdout(), mzColumns, rows)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&in, "input", "i", "", "file of m/z values, one per line (\"-\" reads stdin)")
	f.StringVar(&out, "out", "-", "result table to write")
	f.StringVar(&polarity, "polarity", "", "pos or neg (default: mass.polarity)")
	f.StringSliceVar(&adducts, "adduct", nil, "adduct names to use instead of the polarity's common set")
	f.Float64Var(&ppm, "ppm", 0, "mass tolerance in ppm (default: mass.mz_ppm)")
	return cmd
}

func compoundTable(cliCtx *CLIContext) (*compound.Table, error) {
	path := cliCtx.Config.Reference.Compounds
	if path == "" {
		return nil, errors.New(errors.ErrCodeConfig, "compound table is not configured")
	}
	return reference.LoadCompounds(path)
}

func matchCells(m mass.Match) []string {
	return []string{optMass(m.TargetMass), optMass(m.PPM), m.OriginalCompound, optMass(m.CompoundScore)}
}

func formatMass(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optMass(p *float64) string {
	if p == nil {
		return ""
	}
	return formatMass(*p)
}

// valuesFrom parses numeric arguments, or the lines of path when no
// arguments were given.  A non-numeric first line is taken as a header.
func valuesFrom(args []string, path string) ([]float64, error) {
	lines := args
	header := false
	if len(lines) == 0 {
		if path == "" {
			path = "-"
		}
		var err error
		if lines, err = readLines(path); err != nil {
			return nil, err
		}
		header = true
	}
	out := make([]float64, 0, len(lines))
	for i, l := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(l), 64)
		if err != nil {
			if header && i == 0 {
				continue
			}
			return nil, errors.InvalidParam("value is not a number").WithDetail(fmt.Sprintf("value=%q", l))
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.InvalidParam("no values given")
	}
	return out, nil
}

// readLines returns the non-blank lines of path.
func readLines(path string) ([]string, error) {
	rc, err := reference.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var lines []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to read "+path)
	}
	return lines, nil
}

func writeTSV(path string, stdout io.Writer, header []string, rows [][]string) error {
	w, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(header); err != nil {
		w.Close()
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrCodeIO, "failed to write table")
	}
	return w.Close()
}
