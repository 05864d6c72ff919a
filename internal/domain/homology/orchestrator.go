package homology

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/internal/worker"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Metrics receives search observations.  The Prometheus-backed
// implementation lives in the monitoring package.
type Metrics interface {
	ObserveChunk(database, status string, d time.Duration)
	AddHits(database string, n int)
	IncWarning(kind string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveChunk(string, string, time.Duration) {}
func (nopMetrics) AddHits(string, int)                        {}
func (nopMetrics) IncWarning(string)                          {}

// Config holds the orchestrator tunables.
type Config struct {
	// BinDir holds the blastp binary; empty uses PATH.
	BinDir string
	// Workers is the number of concurrent blastp invocations.
	Workers int
	// RaiseOnError makes a non-empty aggregated error log fatal.
	RaiseOnError bool
	// MaxEvalue is passed to blastp as -evalue.
	MaxEvalue float64
	// WorkDirName prefixes the temporary per-search directory.
	WorkDirName string
	// ChunkTimeout bounds one blastp chunk; a chunk that overruns is
	// logged like any other failed chunk.
	ChunkTimeout time.Duration
}

// Request is one search: every query id is looked up in Sequences and
// searched against Database.  Temporary files live under ResultDir, which
// also receives the aggregated error log.
type Request struct {
	Queries   []string
	Sequences *SequenceSet
	Database  string
	ResultDir string
}

// Orchestrator fans a query list out to parallel blastp processes.
type Orchestrator struct {
	cfg     Config
	runner  process.Runner
	logger  logging.Logger
	metrics Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records chunk durations and hit counts.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewOrchestrator returns an Orchestrator running blastp through runner.
func NewOrchestrator(cfg Config, runner process.Runner, logger logging.Logger, opts ...Option) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.WorkDirName == "" {
		cfg.WorkDirName = "multi_blast_files"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	o := &Orchestrator{cfg: cfg, runner: runner, logger: logger.Named("blast"), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// chunkTask is the file-system contract of one worker.
type chunkTask struct {
	index   int
	queries int
	input   string
	output  string
	stderr  string
}

// chunkOutput is what a worker hands back for aggregation.
type chunkOutput struct {
	hits    []Hit
	stderr  string
	skipped bool
}

// Search runs the request and returns all hits in chunk order, as if blastp
// had run once over the whole query list.  The temporary directory is
// removed whether or not the search succeeds.
func (o *Orchestrator) Search(ctx context.Context, req Request) ([]Hit, error) {
	if req.Sequences == nil {
		return nil, errors.InvalidParam("search requires a sequence table")
	}
	dbName := filepath.Base(req.Database)
	logger := o.logger.With(logging.String("database", dbName))

	chunks, err := Partition(len(req.Queries), o.cfg.Workers)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.ResultDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create result directory")
	}
	workDir, err := os.MkdirTemp(req.ResultDir, o.cfg.WorkDirName+"-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create blast work directory")
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("failed to remove blast work directory", logging.String("dir", workDir), logging.Err(rmErr))
		}
	}()

	tasks, err := o.writeChunks(workDir, req, chunks, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("starting blast search",
		logging.Int("queries", len(req.Queries)),
		logging.Int("workers", o.cfg.Workers),
		logging.String("work_dir", workDir))

	pool := worker.NewPool[chunkTask, chunkOutput](
		worker.WithSize(o.cfg.Workers),
		worker.WithTaskTimeout(o.cfg.ChunkTimeout),
		worker.WithObserver(func(status worker.TaskStatus, d time.Duration) {
			o.metrics.ObserveChunk(dbName, status.String(), d)
		}),
	)
	res, err := pool.Process(ctx, tasks, func(ctx context.Context, _ int, t chunkTask) (chunkOutput, error) {
		return o.runChunk(ctx, req.Database, t)
	})
	if err != nil {
		return nil, err
	}

	hits, errLog := aggregate(res)

	logPath := filepath.Join(req.ResultDir, fmt.Sprintf("blasterr__%s.txt", dbName))
	if err := os.WriteFile(logPath, []byte(errLog), 0o644); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to write blast error log")
	}

	if errLog != "" {
		o.metrics.IncWarning("blast_error_log")
		logger.Warn("blast reported errors",
			logging.String("error_log", logPath),
			logging.Int("failed_chunks", res.FailureCount),
			logging.String("message", errLog))
		if o.cfg.RaiseOnError {
			return nil, errors.New(errors.ErrCodeExternalTool, "blast had an error message").
				WithDetail(fmt.Sprintf("database=%s error_log=%s", dbName, logPath))
		}
	}

	o.metrics.AddHits(dbName, len(hits))
	logger.Info("blast search finished", logging.Int("hits", len(hits)), logging.Duration("elapsed", res.TotalDuration))
	return hits, nil
}

// writeChunks materialises one query file per chunk.  Ids missing from the
// sequence table are skipped with a warning.
func (o *Orchestrator) writeChunks(workDir string, req Request, chunks []Chunk, logger logging.Logger) ([]chunkTask, error) {
	tasks := make([]chunkTask, len(chunks))
	for i, c := range chunks {
		t := chunkTask{
			index:  i,
			input:  filepath.Join(workDir, fmt.Sprintf("tmp_seq_%d.faa", i)),
			output: filepath.Join(workDir, fmt.Sprintf("tmp_out_blasted_%d.txt", i)),
			stderr: filepath.Join(workDir, fmt.Sprintf("tmp_err_%d.txt", i)),
		}
		f, err := os.Create(t.input)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create query chunk")
		}
		ids := req.Queries[c.Start:c.End]
		missing, err := WriteFASTA(f, ids, req.Sequences)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to write query chunk")
		}
		for _, id := range missing {
			o.metrics.IncWarning("sequence_not_found")
			logger.Warn("query not in sequence table", logging.String("id", id))
		}
		t.queries = len(ids) - len(missing)
		tasks[i] = t
	}
	return tasks, nil
}

// runChunk runs blastp over one chunk file and reads back its artifacts.
func (o *Orchestrator) runChunk(ctx context.Context, database string, t chunkTask) (chunkOutput, error) {
	if t.queries == 0 {
		return chunkOutput{skipped: true}, nil
	}

	errFile, err := os.Create(t.stderr)
	if err != nil {
		return chunkOutput{}, err
	}
	runErr := o.runner.Run(ctx, process.Command{
		Name: process.Binary(o.cfg.BinDir, "blastp"),
		Args: []string{
			"-query", t.input,
			"-db", database,
			"-outfmt", OutputFormat,
			"-evalue", strconv.FormatFloat(o.cfg.MaxEvalue, 'g', -1, 64),
			"-out", t.output,
		},
		Stderr: errFile,
	})
	if err := errFile.Close(); err != nil && runErr == nil {
		runErr = err
	}

	var out chunkOutput
	if stderr, err := os.ReadFile(t.stderr); err == nil {
		out.stderr = string(stderr)
	}
	if runErr != nil {
		return out, errors.Wrap(runErr, errors.ErrCodeExternalTool, fmt.Sprintf("blastp failed on chunk %d", t.index))
	}

	data, err := os.ReadFile(t.output)
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeExternalTool, fmt.Sprintf("blastp produced no output for chunk %d", t.index))
	}
	hits, err := ParseHits(bytes.NewReader(data))
	if err != nil {
		return out, err
	}
	out.hits = hits
	return out, nil
}

// aggregate concatenates hits and error text of every chunk in chunk order.
// A failed chunk contributes its stderr and its error; its hits, if any, are
// still returned so a caller that overrides the failure keeps partial
// results.
func aggregate(res *worker.Result[chunkOutput]) ([]Hit, string) {
	var hits []Hit
	var log strings.Builder
	for _, t := range res.Tasks {
		hits = append(hits, t.Result.hits...)
		if t.Result.stderr != "" {
			log.WriteString(t.Result.stderr)
			if !strings.HasSuffix(t.Result.stderr, "\n") {
				log.WriteByte('\n')
			}
		}
		if t.Err != nil {
			fmt.Fprintf(&log, "chunk %d %s: %v\n", t.Index, t.Status, t.Err)
		}
	}
	return hits, log.String()
}
