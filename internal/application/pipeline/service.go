// Package pipeline runs a complete MAGI integration: compounds are linked to
// reactions, reaction sequences and genome genes are searched reciprocally,
// and every compound/gene pair is scored and written as result tables.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/TimothyStephens/magi/internal/application/connect"
	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/internal/domain/scoring"
	"github.com/TimothyStephens/magi/internal/infrastructure/messaging/kafka"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/internal/infrastructure/storage/minio"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Result table names.
const (
	ResultsFile         = "magi_results.csv"
	CompoundResultsFile = "magi_compound_results.csv"
	GeneResultsFile     = "magi_gene_results.csv"
	IntermediateDir     = "intermediate_files"
)

// Service defines the pipeline operations.
type Service interface {
	Run(ctx context.Context, in *RunInput) (*RunResult, error)
}

// RunInput describes one run.
type RunInput struct {
	// Compounds are the scrubbed input compounds.
	Compounds []scoring.CompoundInput
	// GenomePath is the protein FASTA of the genome.
	GenomePath string
	// GenomeDB is the genome blast database; built from GenomePath when
	// missing.  Empty places it under the intermediate directory.
	GenomeDB string
	// OutputDir receives result tables; empty uses the configured directory.
	OutputDir string
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Compounds  int
	Links      int
	RefseqHits int
	GeneHits   int
	Records    int
	Scored     int
	Files      []string
	Artifacts  []minio.Artifact
}

// ArtifactPublisher uploads result files of a run.
type ArtifactPublisher interface {
	PublishRun(ctx context.Context, runID string, files []string) ([]minio.Artifact, error)
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, payload kafka.RunCompletedPayload) error
}

// Metrics receives run measurements.
type Metrics interface {
	homology.Metrics
	AddLinks(note string, n int)
	AddScored(scored, unscored int)
	ObserveStage(stage string, d time.Duration)
	SetRunStatus(command string, ok bool)
}

// Deps are the collaborators of a run.  Runner is required; the others are
// optional.
type Deps struct {
	Runner    process.Runner
	Tautomers connect.TautomerFinder
	Publisher ArtifactPublisher
	Events    EventPublisher
	Metrics   Metrics
}

type serviceImpl struct {
	cfg       *config.Config
	ref       *reference.Context
	deps      Deps
	connector *connect.Connector
	blast     *homology.Orchestrator
	scorer    *scoring.Scorer
	logger    logging.Logger
}

// NewService wires a pipeline over an already loaded reference context.
func NewService(cfg *config.Config, ref *reference.Context, deps Deps, logger logging.Logger) (Service, error) {
	if cfg == nil || ref == nil || ref.Reactions == nil {
		return nil, errors.InvalidParam("pipeline requires configuration and reaction reference data")
	}
	if deps.Runner == nil {
		deps.Runner = process.NewExecRunner()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var connOpts []connect.Option
	var blastOpts []homology.Option
	if deps.Metrics != nil {
		connOpts = append(connOpts, connect.WithWarningCounter(deps.Metrics))
		blastOpts = append(blastOpts, homology.WithMetrics(deps.Metrics))
	}

	return &serviceImpl{
		cfg:  cfg,
		ref:  ref,
		deps: deps,
		connector: connect.NewConnector(ref, deps.Tautomers, connect.Options{
			Tautomer:      cfg.Scoring.Tautomer,
			NeighborLevel: cfg.Scoring.NeighborLevel,
		}, logger, connOpts...),
		blast: homology.NewOrchestrator(homology.Config{
			BinDir:       cfg.Blast.BinDir,
			Workers:      cfg.Blast.Workers,
			RaiseOnError: cfg.Blast.RaiseOnError,
			MaxEvalue:    cfg.Blast.MaxEvalue,
			WorkDirName:  cfg.Blast.WorkDirName,
			ChunkTimeout: cfg.Blast.ChunkTimeout,
		}, deps.Runner, logger, blastOpts...),
		scorer: scoring.NewScorer(scoring.Params{
			Closeness: cfg.Scoring.ReciprocalCloseness,
			Penalty:   cfg.Scoring.ChemnetPenalty,
			Weights:   cfg.Scoring.FinalWeights,
		}, logger),
		logger: logger.Named("pipeline"),
	}, nil
}

// Run executes every stage.  A failed run still emits a failed run event
// when an event publisher is configured.
func (s *serviceImpl) Run(ctx context.Context, in *RunInput) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := s.logger.With(logging.String("run_id", res.RunID))

	err := s.run(ctx, in, res, logger)
	res.FinishedAt = time.Now()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveStage("total", res.FinishedAt.Sub(res.StartedAt))
		s.deps.Metrics.SetRunStatus("run", err == nil)
	}
	s.announce(ctx, res, err, logger)
	if err != nil {
		logger.Error("run failed", logging.Err(err))
		return res, err
	}
	logger.Info("run finished",
		logging.Int("records", res.Records),
		logging.Int("scored", res.Scored),
		logging.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

func (s *serviceImpl) run(ctx context.Context, in *RunInput, res *RunResult, logger logging.Logger) error {
	if in == nil || len(in.Compounds) == 0 {
		return errors.InvalidParam("run requires at least one input compound")
	}
	if in.GenomePath == "" {
		return errors.InvalidParam("run requires a genome FASTA")
	}
	if s.ref.RefseqDB == "" {
		return errors.New(errors.ErrCodeConfig, "reference sequence blast database is not configured")
	}
	outDir := in.OutputDir
	if outDir == "" {
		outDir = s.cfg.Output.Dir
	}
	interDir := filepath.Join(outDir, IntermediateDir)
	if err := os.MkdirAll(interDir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "failed to create output directory")
	}

	// ── Genome ───────────────────────────────────────────────────────────────
	stage := time.Now()
	genome, genomeDB, err := s.prepareGenome(ctx, in, interDir, logger)
	if err != nil {
		return err
	}
	s.observe("genome", stage)

	// ── Compounds → reactions ────────────────────────────────────────────────
	stage = time.Now()
	keys := make([]string, len(in.Compounds))
	for i, c := range in.Compounds {
		keys[i] = c.OriginalCompound
	}
	links, err := s.connector.ConnectAll(ctx, keys)
	if err != nil {
		return err
	}
	res.Compounds = countDistinct(keys)
	res.Links = len(links)
	s.countLinks(links)
	if err := writeLinks(filepath.Join(interDir, "compound_to_reaction.csv"), links); err != nil {
		return err
	}
	s.observe("connect", stage)

	// ── Reaction sequences → genome ──────────────────────────────────────────
	stage = time.Now()
	refseqs := s.ref.Reactions.RefseqsOf(connect.ReactionIDs(links))
	var r2gHits []homology.Hit
	if len(refseqs) > 0 {
		if s.ref.Refseqs == nil {
			return errors.New(errors.ErrCodeConfig, "reference sequence table is not configured")
		}
		r2gHits, err = s.blast.Search(ctx, homology.Request{
			Queries:   refseqs,
			Sequences: s.ref.Refseqs,
			Database:  genomeDB,
			ResultDir: interDir,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no candidate reactions carry reference sequences; skipping reaction to gene search")
	}
	res.RefseqHits = len(r2gHits)
	s.observe("reaction_to_gene", stage)

	// ── Genome → reaction sequences ──────────────────────────────────────────
	stage = time.Now()
	g2rHits, err := s.blast.Search(ctx, homology.Request{
		Queries:   genome.IDs(),
		Sequences: genome,
		Database:  s.ref.RefseqDB,
		ResultDir: interDir,
	})
	if err != nil {
		return err
	}
	if f := s.cfg.Scoring.TopHitFilter; f > 0 {
		g2rHits = homology.KeepTopHits(g2rHits, f)
	}
	res.GeneHits = len(g2rHits)
	s.observe("gene_to_reaction", stage)

	// ── Integration ──────────────────────────────────────────────────────────
	stage = time.Now()
	linker := scoring.NewLinker(s.ref.Reactions)
	r2g := linker.Link(r2gHits, scoring.ReactionToGene)
	g2r := linker.Link(g2rHits, scoring.GeneToReaction)
	if err := writeHits(filepath.Join(interDir, "reaction_to_gene.csv"), r2g); err != nil {
		return err
	}
	if err := writeHits(filepath.Join(interDir, "gene_to_reaction.csv"), g2r); err != nil {
		return err
	}

	records := scoring.Merge(scoring.LinksWithScores(links, in.Compounds), r2g, g2r)
	if err := s.scorer.Score(records); err != nil {
		return err
	}
	res.Records = len(records)
	for _, r := range records {
		if r.MAGIScore != nil {
			res.Scored++
		}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.AddScored(res.Scored, res.Records-res.Scored)
	}
	s.observe("scoring", stage)

	// ── Outputs ──────────────────────────────────────────────────────────────
	results := scoring.Format(records, s.ref.Reactions)
	tables := []struct {
		name string
		rows []scoring.Result
	}{
		{ResultsFile, results},
		{CompoundResultsFile, scoring.CompoundView(results, in.Compounds)},
		{GeneResultsFile, scoring.GeneView(results)},
	}
	for _, t := range tables {
		p := filepath.Join(outDir, t.name)
		if err := writeResults(p, t.rows); err != nil {
			return err
		}
		res.Files = append(res.Files, p)
	}

	if s.deps.Publisher != nil {
		res.Artifacts, err = s.deps.Publisher.PublishRun(ctx, res.RunID, res.Files)
		if err != nil {
			return err
		}
	}
	return nil
}

// prepareGenome loads the genome sequences and makes sure its blast
// database exists.  makeblastdb cannot read compressed input, so compressed
// genomes are first written out as plain FASTA.
func (s *serviceImpl) prepareGenome(ctx context.Context, in *RunInput, interDir string, logger logging.Logger) (*homology.SequenceSet, string, error) {
	genome, err := reference.LoadSequences(in.GenomePath)
	if err != nil {
		return nil, "", err
	}

	fasta := in.GenomePath
	if reference.CompressionOf(fasta) != reference.None {
		fasta = filepath.Join(interDir, "genome.faa")
		if err := writeFASTA(fasta, genome); err != nil {
			return nil, "", err
		}
	}
	db := in.GenomeDB
	if db == "" {
		db = filepath.Join(interDir, "genome_db", "genome")
	}
	built, err := homology.BuildDatabase(ctx, s.deps.Runner, s.cfg.Blast.BinDir, fasta, db)
	if err != nil {
		return nil, "", err
	}
	logger.Info("genome ready",
		logging.Int("genes", genome.Len()),
		logging.String("database", db),
		logging.Bool("built", built))
	return genome, db, nil
}

func (s *serviceImpl) observe(stage string, start time.Time) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveStage(stage, time.Since(start))
	}
}

func (s *serviceImpl) countLinks(links []reaction.Link) {
	if s.deps.Metrics == nil {
		return
	}
	byNote := make(map[reaction.Note]int)
	for _, l := range links {
		if l.HasReaction() {
			byNote[l.Note]++
		}
	}
	for note, n := range byNote {
		s.deps.Metrics.AddLinks(string(note), n)
	}
}

func (s *serviceImpl) announce(ctx context.Context, res *RunResult, runErr error, logger logging.Logger) {
	if s.deps.Events == nil {
		return
	}
	payload := kafka.RunCompletedPayload{
		RunID:      res.RunID,
		Status:     kafka.RunSucceeded,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Compounds:  res.Compounds,
		Links:      res.Links,
		GeneHits:   res.GeneHits,
		RefseqHits: res.RefseqHits,
		Records:    res.Records,
	}
	for _, a := range res.Artifacts {
		payload.Artifacts = append(payload.Artifacts, a.ObjectKey)
	}
	if runErr != nil {
		payload.Status = kafka.RunFailed
		payload.Error = runErr.Error()
	}
	if err := s.deps.Events.PublishRunCompleted(ctx, payload); err != nil {
		logger.Warn("failed to publish run event", logging.Err(err))
	}
}

func countDistinct(keys []string) int {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	return len(seen)
}
