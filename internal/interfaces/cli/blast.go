package cli

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

var blastColumns = []string{"qacc", "sacc", "qcovs", "length", "ppos", "evalue", "bitscore", "e_score"}

type blastOptions struct {
	query     string
	database  string
	resultDir string
	out       string
	topHits   float64
}

// NewBlastCmd creates the blast command: a parallel blastp search of every
// sequence of a FASTA file.
func NewBlastCmd() *cobra.Command {
	opts := &blastOptions{}
	cmd := &cobra.Command{
		Use:   "blast",
		Short: "Search every sequence of a FASTA file against a protein database in parallel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlast(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.query, "query", "", "query protein FASTA")
	f.StringVar(&opts.database, "db", "", "blast database path")
	f.StringVar(&opts.resultDir, "result-dir", ".", "directory for temporary chunks and the error log")
	f.StringVar(&opts.out, "out", "-", "hit table to write")
	f.Float64Var(&opts.topHits, "top-hit-filter", 0, "keep hits scoring at least this fraction of the best hit per query (0 keeps all)")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runBlast(cmd *cobra.Command, opts *blastOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if opts.topHits < 0 || opts.topHits > 1 {
		return errors.InvalidParam("top-hit-filter must be within [0, 1]")
	}
	cfg, logger := cliCtx.Config, cliCtx.Logger

	seqs, err := reference.LoadSequences(opts.query)
	if err != nil {
		return err
	}
	metrics, err := newRunMetrics(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	var blastOpts []homology.Option
	if metrics != nil {
		blastOpts = append(blastOpts, homology.WithMetrics(metrics.MAGIMetrics))
	}
	orch := homology.NewOrchestrator(homology.Config{
		BinDir:       cfg.Blast.BinDir,
		Workers:      cfg.Blast.Workers,
		RaiseOnError: cfg.Blast.RaiseOnError,
		MaxEvalue:    cfg.Blast.MaxEvalue,
		WorkDirName:  cfg.Blast.WorkDirName,
		ChunkTimeout: cfg.Blast.ChunkTimeout,
	}, cliCtx.Runner, logger, blastOpts...)

	hits, err := orch.Search(cmd.Context(), homology.Request{
		Queries:   seqs.IDs(),
		Sequences: seqs,
		Database:  opts.database,
		ResultDir: opts.resultDir,
	})
	if metrics != nil {
		metrics.SetRunStatus("blast", err == nil)
		metrics.push(cmd.Context(), "", logger)
	}
	if err != nil {
		return err
	}
	if opts.topHits > 0 {
		hits = homology.KeepTopHits(hits, opts.topHits)
	}

	w, err := openOutput(opts.out, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := writeBlastHits(w, hits); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrCodeIO, "failed to write hits")
	}
	if err := w.Close(); err != nil {
		return err
	}
	logger.Info("blast finished", logging.Int("queries", seqs.Len()), logging.Int("hits", len(hits)))
	return nil
}

func writeBlastHits(w io.Writer, hits []homology.Hit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(blastColumns); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, h := range hits {
		rec := []string{h.Query, h.Subject, f(h.Coverage), strconv.Itoa(h.Length), f(h.Positives), f(h.EValue), f(h.BitScore), f(h.Score)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NewMakeDBCmd creates the makedb command.
func NewMakeDBCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "makedb",
		Short: "Build a protein blast database from a FASTA file unless it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			built, err := homology.BuildDatabase(cmd.Context(), cliCtx.Runner, cliCtx.Config.Blast.BinDir, in, out)
			if err != nil {
				return err
			}
			if built {
				PrintSuccess(cmd, "built blast database "+out)
			} else {
				PrintSuccess(cmd, "blast database "+out+" already exists")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "protein FASTA (uncompressed)")
	cmd.Flags().StringVar(&out, "out", "", "database path")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
