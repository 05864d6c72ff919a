package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/application/pipeline"
	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/storage/minio"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// artifactStore is the part of the MinIO client publish needs.
type artifactStore interface {
	PublishRun(ctx context.Context, runID string, files []string) ([]minio.Artifact, error)
	Exists(ctx context.Context, runID, name string) (bool, error)
}

var newArtifactStore = func(ctx context.Context, cfg config.MinIOConfig, logger logging.Logger) (artifactStore, error) {
	return minio.NewClient(ctx, cfg, logger)
}

// PublishSummary lists what a publish uploaded and what it left alone.
type PublishSummary struct {
	RunID     string   `json:"run_id"`
	Published []string `json:"published"`
	Skipped   []string `json:"skipped,omitempty"`
}

func (s PublishSummary) String() string {
	return fmt.Sprintf("run %s: %d published, %d already stored", s.RunID, len(s.Published), len(s.Skipped))
}

func (s PublishSummary) TableHeaders() []string { return []string{"run_id", "published", "skipped"} }

func (s PublishSummary) TableRows() [][]string {
	return [][]string{{s.RunID, strconv.Itoa(len(s.Published)), strings.Join(s.Skipped, " ")}}
}

// NewPublishCmd creates the publish command, which uploads the result
// tables of a finished run directory.
func NewPublishCmd() *cobra.Command {
	var runID, dir string
	var force bool
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the result tables of an output directory to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, logger := cliCtx.Config, cliCtx.Logger
			if !cfg.MinIO.Enabled {
				return errors.New(errors.ErrCodeConfig, "minio is not enabled")
			}
			if dir == "" {
				dir = cfg.Output.Dir
			}
			ctx := cmd.Context()
			store, err := newArtifactStore(ctx, cfg.MinIO, logger)
			if err != nil {
				return err
			}

			summary := PublishSummary{RunID: runID}
			var files []string
			for _, name := range []string{pipeline.ResultsFile, pipeline.CompoundResultsFile, pipeline.GeneResultsFile} {
				p := filepath.Join(dir, name)
				if _, err := os.Stat(p); err != nil {
					return errors.New(errors.ErrCodeNotFound, "result table missing").WithDetail(p)
				}
				if !force {
					stored, err := store.Exists(ctx, runID, name)
					if err != nil {
						return err
					}
					if stored {
						logger.Debug("artifact already stored", logging.String("name", name))
						summary.Skipped = append(summary.Skipped, name)
						continue
					}
				}
				files = append(files, p)
			}
			if len(files) > 0 {
				artifacts, err := store.PublishRun(ctx, runID, files)
				if err != nil {
					return err
				}
				for _, a := range artifacts {
					summary.Published = append(summary.Published, a.Bucket+"/"+a.ObjectKey)
				}
			}
			return PrintResult(cmd, summary)
		},
	}
	f := cmd.Flags()
	f.StringVar(&runID, "run-id", "", "run id the artifacts are stored under")
	f.StringVar(&dir, "dir", "", "output directory of the run (default: output.dir)")
	f.BoolVar(&force, "force", false, "upload tables that are already stored")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}
