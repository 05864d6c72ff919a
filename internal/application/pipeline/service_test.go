package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/internal/domain/scoring"
	"github.com/TimothyStephens/magi/internal/infrastructure/messaging/kafka"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/internal/infrastructure/storage/minio"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/internal/testutil"
	"github.com/TimothyStephens/magi/pkg/errors"
)

const (
	keyA = "AAAAAAAAAAAAAA-AAAAAAAASA-N"
	keyZ = "ZZZZZZZZZZZZZZ-ZZZZZZZZSA-N"
)

// fakeBlast stands in for makeblastdb and blastp.  hits maps a database
// path to the result lines produced per query id.
type fakeBlast struct {
	mu     sync.Mutex
	hits   map[string]map[string][]string
	built  []string
	blasts int
	fail   error
}

func (f *fakeBlast) Run(_ context.Context, cmd process.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	switch filepath.Base(cmd.Name) {
	case "makeblastdb":
		out := arg(cmd.Args, "-out")
		f.built = append(f.built, arg(cmd.Args, "-in"))
		return os.WriteFile(out+".pin", nil, 0o644)
	case "blastp":
		f.blasts++
		in, err := os.Open(arg(cmd.Args, "-query"))
		if err != nil {
			return err
		}
		defer in.Close()
		queries, err := homology.ParseFASTA(in)
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, q := range queries.IDs() {
			for _, line := range f.hits[arg(cmd.Args, "-db")][q] {
				b.WriteString(line + "\n")
			}
		}
		return os.WriteFile(arg(cmd.Args, "-out"), []byte(b.String()), 0o644)
	}
	return fmt.Errorf("unexpected command %s", cmd.Name)
}

func arg(args []string, name string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

func hitLine(query, subject, evalue string) string {
	return fmt.Sprintf("%s,%s,100,50,90,%s,99", query, subject, evalue)
}

type recordingPublisher struct {
	runID string
	files []string
	err   error
}

func (p *recordingPublisher) PublishRun(_ context.Context, runID string, files []string) ([]minio.Artifact, error) {
	p.runID, p.files = runID, files
	if p.err != nil {
		return nil, p.err
	}
	out := make([]minio.Artifact, len(files))
	for i, f := range files {
		out[i] = minio.Artifact{Bucket: "magi-results", ObjectKey: minio.RunPrefix(runID) + filepath.Base(f)}
	}
	return out, nil
}

type recordingEvents struct {
	payloads []kafka.RunCompletedPayload
	err      error
}

func (e *recordingEvents) PublishRunCompleted(_ context.Context, p kafka.RunCompletedPayload) error {
	e.payloads = append(e.payloads, p)
	return e.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	links    map[string]int
	scored   int
	unscored int
	stages   []string
	status   map[string]bool
	hits     map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{links: map[string]int{}, status: map[string]bool{}, hits: map[string]int{}}
}

func (m *recordingMetrics) ObserveChunk(string, string, time.Duration) {}
func (m *recordingMetrics) IncWarning(string)                          {}
func (m *recordingMetrics) AddHits(db string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[db] += n
}
func (m *recordingMetrics) AddLinks(note string, n int) { m.links[note] += n }
func (m *recordingMetrics) AddScored(scored, unscored int) {
	m.scored, m.unscored = scored, unscored
}
func (m *recordingMetrics) ObserveStage(stage string, _ time.Duration) {
	m.stages = append(m.stages, stage)
}
func (m *recordingMetrics) SetRunStatus(command string, ok bool) { m.status[command] = ok }

type fixture struct {
	cfg     *config.Config
	ref     *reference.Context
	blast   *fakeBlast
	pub     *recordingPublisher
	events  *recordingEvents
	metrics *recordingMetrics
	logger  *testutil.MockLogger
	genome  string
	out     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	refseqs := homology.NewSequenceSet()
	require.NoError(t, refseqs.Add("refA", "MKVLA"))
	require.NoError(t, refseqs.Add("refB", "MGGHL"))

	genome := filepath.Join(dir, "genome.faa")
	require.NoError(t, os.WriteFile(genome, []byte(">gene1\nMKVLA\n>gene2\nMGGHL\n"), 0o644))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Blast.Workers = 2
	cfg.Blast.MaxEvalue = 1
	cfg.Blast.WorkDirName = "blast"
	cfg.Scoring.ReciprocalCloseness = 0.75
	cfg.Scoring.ChemnetPenalty = 4
	cfg.Scoring.FinalWeights = []float64{1, 1, 1, 1}
	cfg.Scoring.TopHitFilter = 0.85

	refseqDB := filepath.Join(dir, "refseq_db", "refseqs")
	genomeDB := filepath.Join(dir, "out", IntermediateDir, "genome_db", "genome")

	return &fixture{
		cfg: cfg,
		ref: &reference.Context{
			Reactions: reaction.NewIndex([]reaction.Reaction{
				{ID: 10, Compounds: []string{keyA}, Refseqs: []string{"refA"}, DatabaseID: "RXN-10"},
				{ID: 11, Compounds: []string{keyZ}, Refseqs: []string{"refB"}, DatabaseID: "RXN-11"},
			}),
			Compounds: compound.NewTable([]compound.Compound{{InChIKey: keyA}, {InChIKey: keyZ}}),
			Refseqs:   refseqs,
			RefseqDB:  refseqDB,
		},
		blast: &fakeBlast{hits: map[string]map[string][]string{
			genomeDB: {"refA": {hitLine("refA", "gene1", "1e-50")}},
			refseqDB: {
				"gene1": {hitLine("gene1", "refA", "1e-50")},
				"gene2": {hitLine("gene2", "refB", "1e-5")},
			},
		}},
		pub:     &recordingPublisher{},
		events:  &recordingEvents{},
		metrics: newRecordingMetrics(),
		logger:  testutil.NewMockLogger(),
		genome:  genome,
		out:     filepath.Join(dir, "out"),
	}
}

func (f *fixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(f.cfg, f.ref, Deps{
		Runner:    f.blast,
		Publisher: f.pub,
		Events:    f.events,
		Metrics:   f.metrics,
	}, f.logger)
	require.NoError(t, err)
	return svc
}

func (f *fixture) input() *RunInput {
	return &RunInput{
		Compounds:  []scoring.CompoundInput{{OriginalCompound: keyA, CompoundScore: 1}},
		GenomePath: f.genome,
		OutputDir:  f.out,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestService_Run(t *testing.T) {
	f := newFixture(t)

	res, err := f.service(t).Run(context.Background(), f.input())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Compounds)
	assert.Equal(t, 1, res.Links)
	assert.Equal(t, 1, res.RefseqHits)
	assert.Equal(t, 2, res.GeneHits)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 1, res.Scored)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))

	require.Len(t, res.Files, 3)
	assert.Equal(t, filepath.Join(f.out, ResultsFile), res.Files[0])
	assert.Equal(t, filepath.Join(f.out, CompoundResultsFile), res.Files[1])
	assert.Equal(t, filepath.Join(f.out, GeneResultsFile), res.Files[2])

	rows := readCSV(t, res.Files[0])
	require.Len(t, rows, 3)
	assert.Equal(t, scoring.Columns, rows[0])
	gene, cpd, magi := column(rows[0], "gene_id"), column(rows[0], "original_compound"), column(rows[0], "MAGI_score")
	assert.Equal(t, "gene1", rows[1][gene])
	assert.Equal(t, keyA, rows[1][cpd])
	assert.NotEmpty(t, rows[1][magi])
	assert.Equal(t, "RXN-10", rows[1][column(rows[0], "database_id_r2g")])
	assert.Equal(t, "gene2", rows[2][gene])
	assert.Empty(t, rows[2][cpd])
	assert.Empty(t, rows[2][magi])

	inter := filepath.Join(f.out, IntermediateDir)
	for _, name := range []string{"compound_to_reaction.csv", "reaction_to_gene.csv", "gene_to_reaction.csv"} {
		assert.FileExists(t, filepath.Join(inter, name))
	}
	links := readCSV(t, filepath.Join(inter, "compound_to_reaction.csv"))
	assert.Equal(t, []string{keyA, "0", "", "10", "direct"}, links[1])

	// genome db was built from the plain FASTA; the refseq db was not touched
	assert.Equal(t, []string{f.genome}, f.blast.built)
	assert.Equal(t, 3, f.blast.blasts)

	assert.Equal(t, res.RunID, f.pub.runID)
	assert.Equal(t, res.Files, f.pub.files)
	require.Len(t, res.Artifacts, 3)

	require.Len(t, f.events.payloads, 1)
	p := f.events.payloads[0]
	assert.Equal(t, kafka.RunSucceeded, p.Status)
	assert.Equal(t, res.RunID, p.RunID)
	assert.Equal(t, 2, p.Records)
	assert.Empty(t, p.Error)
	assert.Equal(t, "runs/"+res.RunID+"/"+ResultsFile, p.Artifacts[0])

	assert.Equal(t, 1, f.metrics.links["direct"])
	assert.Equal(t, 1, f.metrics.scored)
	assert.Equal(t, 1, f.metrics.unscored)
	assert.True(t, f.metrics.status["run"])
	assert.Equal(t, []string{"genome", "connect", "reaction_to_gene", "gene_to_reaction", "scoring"}, f.metrics.stages)
}

func TestService_Run_CompressedGenome(t *testing.T) {
	f := newFixture(t)
	gz := f.genome + ".gz"
	wc, err := reference.Create(gz)
	require.NoError(t, err)
	_, err = io.WriteString(wc, ">gene1\nMKVLA\n>gene2\nMGGHL\n")
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	in := f.input()
	in.GenomePath = gz
	_, err = f.service(t).Run(context.Background(), in)
	require.NoError(t, err)

	plain := filepath.Join(f.out, IntermediateDir, "genome.faa")
	assert.Equal(t, []string{plain}, f.blast.built)
	set, err := reference.LoadSequences(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{"gene1", "gene2"}, set.IDs())
}

func TestService_Run_ExistingGenomeDB(t *testing.T) {
	f := newFixture(t)
	db := filepath.Join(t.TempDir(), "prebuilt")
	require.NoError(t, os.WriteFile(db+".pin", nil, 0o644))
	f.blast.hits[db] = f.blast.hits[filepath.Join(f.out, IntermediateDir, "genome_db", "genome")]

	in := f.input()
	in.GenomeDB = db
	res, err := f.service(t).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, f.blast.built)
	assert.Equal(t, 1, res.RefseqHits)
}

func TestService_Run_NoRefseqCandidates(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	in.Compounds = []scoring.CompoundInput{{OriginalCompound: "QQQQQQQQQQQQQQ-QQQQQQQQSA-N", CompoundScore: 1}}

	res, err := f.service(t).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, res.RefseqHits)
	assert.True(t, f.logger.HasMessage("warn", "no candidate reactions carry reference sequences; skipping reaction to gene search"))
}

func TestService_Run_Errors(t *testing.T) {
	t.Run("no compounds", func(t *testing.T) {
		f := newFixture(t)
		in := f.input()
		in.Compounds = nil
		_, err := f.service(t).Run(context.Background(), in)
		assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	})

	t.Run("missing refseq database", func(t *testing.T) {
		f := newFixture(t)
		f.ref.RefseqDB = ""
		_, err := f.service(t).Run(context.Background(), f.input())
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
	})

	t.Run("missing refseq table", func(t *testing.T) {
		f := newFixture(t)
		f.ref.Refseqs = nil
		_, err := f.service(t).Run(context.Background(), f.input())
		assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
	})

	t.Run("malformed compound", func(t *testing.T) {
		f := newFixture(t)
		in := f.input()
		in.Compounds = []scoring.CompoundInput{{OriginalCompound: "not-a-key", CompoundScore: 1}}
		_, err := f.service(t).Run(context.Background(), in)
		assert.Error(t, err)
	})

	t.Run("makeblastdb failure emits failed event", func(t *testing.T) {
		f := newFixture(t)
		f.blast.fail = fmt.Errorf("boom")
		res, err := f.service(t).Run(context.Background(), f.input())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeExternalTool))
		require.NotNil(t, res)

		require.Len(t, f.events.payloads, 1)
		assert.Equal(t, kafka.RunFailed, f.events.payloads[0].Status)
		assert.NotEmpty(t, f.events.payloads[0].Error)
		assert.False(t, f.metrics.status["run"])
		assert.True(t, f.logger.HasMessage("error", "run failed"))
	})

	t.Run("publish failure", func(t *testing.T) {
		f := newFixture(t)
		f.pub.err = errors.New(errors.ErrCodeStorage, "bucket gone")
		_, err := f.service(t).Run(context.Background(), f.input())
		assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
		require.Len(t, f.events.payloads, 1)
		assert.Equal(t, kafka.RunFailed, f.events.payloads[0].Status)
	})
}

func TestService_Run_EventFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.events.err = fmt.Errorf("broker down")
	_, err := f.service(t).Run(context.Background(), f.input())
	require.NoError(t, err)
	assert.True(t, f.logger.HasMessage("warn", "failed to publish run event"))
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, &reference.Context{}, Deps{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = NewService(&config.Config{}, &reference.Context{}, Deps{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}
