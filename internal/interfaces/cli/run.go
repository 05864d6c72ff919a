package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/application/pipeline"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

type runOptions struct {
	compounds string
	genome    string
	genomeDB  string
	outputDir string
}

// RunSummary is the printed outcome of a run.
type RunSummary struct {
	RunID      string   `json:"run_id"`
	Compounds  int      `json:"compounds"`
	Links      int      `json:"links"`
	RefseqHits int      `json:"refseq_hits"`
	GeneHits   int      `json:"gene_hits"`
	Records    int      `json:"records"`
	Scored     int      `json:"scored"`
	Elapsed    string   `json:"elapsed"`
	Files      []string `json:"files"`
	Artifacts  []string `json:"artifacts,omitempty"`
}

func (s RunSummary) String() string {
	return fmt.Sprintf("run %s: %d compounds, %d links, %d/%d records scored in %s",
		s.RunID, s.Compounds, s.Links, s.Scored, s.Records, s.Elapsed)
}

func (s RunSummary) TableHeaders() []string {
	return []string{"run_id", "compounds", "links", "refseq_hits", "gene_hits", "records", "scored", "elapsed"}
}

func (s RunSummary) TableRows() [][]string {
	return [][]string{{
		s.RunID, strconv.Itoa(s.Compounds), strconv.Itoa(s.Links), strconv.Itoa(s.RefseqHits),
		strconv.Itoa(s.GeneHits), strconv.Itoa(s.Records), strconv.Itoa(s.Scored), s.Elapsed,
	}}
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full MAGI integration for a compound list and a genome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.compounds, "compounds", "", "compound table (original_compound / inchi_key column, optional score)")
	f.StringVar(&opts.genome, "genome", "", "protein FASTA of the genome (.gz/.zst accepted)")
	f.StringVar(&opts.genomeDB, "genome-db", "", "genome blast database; built when missing")
	f.StringVar(&opts.outputDir, "out", "", "output directory (default: output.dir)")
	_ = cmd.MarkFlagRequired("compounds")
	_ = cmd.MarkFlagRequired("genome")
	return cmd
}

func runPipeline(cmd *cobra.Command, opts *runOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, logger := cmd.Context(), cliCtx.Logger
	res := &resources{logger: logger}
	defer res.Close()

	compounds, err := reference.LoadCompoundInput(opts.compounds)
	if err != nil {
		return err
	}
	ref, err := loadReference(ctx, cliCtx.Config, res, logger)
	if err != nil {
		return err
	}
	metrics, err := newRunMetrics(cliCtx.Config.Metrics, logger)
	if err != nil {
		return err
	}
	deps, err := pipelineDeps(ctx, cliCtx, res, metrics)
	if err != nil {
		return err
	}
	svc, err := pipeline.NewService(cliCtx.Config, ref, deps, logger)
	if err != nil {
		return err
	}

	result, runErr := svc.Run(ctx, &pipeline.RunInput{
		Compounds:  compounds,
		GenomePath: opts.genome,
		GenomeDB:   opts.genomeDB,
		OutputDir:  opts.outputDir,
	})
	runID := ""
	if result != nil {
		runID = result.RunID
	}
	metrics.push(ctx, runID, logger)
	if runErr != nil {
		return errors.Wrap(runErr, errors.GetCode(runErr), "magi run failed")
	}

	summary := RunSummary{
		RunID:      result.RunID,
		Compounds:  result.Compounds,
		Links:      result.Links,
		RefseqHits: result.RefseqHits,
		GeneHits:   result.GeneHits,
		Records:    result.Records,
		Scored:     result.Scored,
		Elapsed:    result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String(),
		Files:      result.Files,
	}
	for _, a := range result.Artifacts {
		summary.Artifacts = append(summary.Artifacts, a.Bucket+"/"+a.ObjectKey)
	}
	logger.Debug("run summary", logging.Any("summary", summary))
	return PrintResult(cmd, summary)
}
