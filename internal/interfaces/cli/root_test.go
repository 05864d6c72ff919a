package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

const (
	keyA = "AAAAAAAAAAAAAA-AAAAAAAASA-N"
	keyB = "BBBBBBBBBBBBBB-BBBBBBBBSA-N"
)

// fakeTools answers makeblastdb by touching the index file and blastp with
// canned hit lines per query id.
type fakeTools struct {
	mu    sync.Mutex
	hits  map[string][]string
	calls []string
}

func (f *fakeTools) Run(_ context.Context, cmd process.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(cmd.Name)
	f.calls = append(f.calls, name)
	switch name {
	case "makeblastdb":
		return os.WriteFile(flagValue(cmd.Args, "-out")+".pin", nil, 0o644)
	case "blastp":
		in, err := os.Open(flagValue(cmd.Args, "-query"))
		if err != nil {
			return err
		}
		defer in.Close()
		set, err := homology.ParseFASTA(in)
		if err != nil {
			return err
		}
		var b strings.Builder
		for _, id := range set.IDs() {
			for _, l := range f.hits[id] {
				b.WriteString(l + "\n")
			}
		}
		return os.WriteFile(flagValue(cmd.Args, "-out"), []byte(b.String()), 0o644)
	}
	return fmt.Errorf("unexpected command %s", name)
}

func flagValue(args []string, name string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

func useRunner(t *testing.T, r process.Runner) {
	t.Helper()
	prev := defaultRunner
	defaultRunner = r
	t.Cleanup(func() { defaultRunner = prev })
}

type workspace struct {
	dir    string
	config string
}

func (w workspace) path(name string) string { return filepath.Join(w.dir, name) }

func (w workspace) write(t *testing.T, name, content string) string {
	t.Helper()
	p := w.path(name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	w := workspace{dir: t.TempDir()}
	w.write(t, "reactions.csv", "reaction_id,allcpd_ikeys,refseq_id,database_id\n"+
		"10,"+keyA+","+"refA,RXN-10\n"+
		"11,"+keyB+",refB,RXN-11\n")
	w.write(t, "compounds.csv", "inchi_key,inchi,mono_isotopic_molecular_weight\n"+
		keyA+",,180.0634\n"+
		keyB+",,342.1162\n")
	w.write(t, "refseqs.faa", ">refA\nMKVLA\n>refB\nMGGHL\n")
	w.write(t, "groups.csv", "group_id,members\n1,"+keyA+"\n2,"+keyB+"\n")
	w.write(t, "edges.csv", "source,target,weight\n1,2,1\n")
	w.config = w.write(t, "magi.yaml", fmt.Sprintf(`log:
  level: error
reference:
  reactions: %[1]s/reactions.csv
  compounds: %[1]s/compounds.csv
  refseqs: %[1]s/refseqs.faa
  refseq_db: %[1]s/refdb/refseqs
  groups: %[1]s/groups.csv
  network: %[1]s/edges.csv
scoring:
  neighbor_level: 1
  tautomer: false
blast:
  workers: 2
output:
  dir: %[1]s/out
`, w.dir))
	return w
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "magi", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.Contains(t, cmd.Version, Version)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"run", "connect", "blast", "makedb", "mass", "mz", "filter", "network", "publish", "cache", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	pf := NewRootCommand().PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"config", "c", ""},
		{"log-level", "", "info"},
		{"output", "o", "text"},
		{"verbose", "v", "false"},
		{"watch-config", "", "false"},
		{"timeout", "", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := pf.Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestExecute_UnknownSubcommand(t *testing.T) {
	_, err := execute(t, "unknownsubcommand")
	assert.Error(t, err)
}

func TestExecute_BadConfig(t *testing.T) {
	w := workspace{dir: t.TempDir()}
	cfg := w.write(t, "bad.yaml", "scoring:\n  chemnet_penalty: -1\n")
	_, err := execute(t, "--config", cfg, "mass", "search", "1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func TestVersionCmd(t *testing.T) {
	orig := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = orig })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "magi 1.2.3")

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"id", "name"}, [][]string{{"1", "alpha"}, {"22"}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id  name ", lines[0])
	assert.Equal(t, "--  -----", lines[1])
	assert.Equal(t, "1   alpha", lines[2])
	assert.Equal(t, "22       ", lines[3])

	assert.Empty(t, FormatTable(nil, nil))
}

func TestPrintResult_Formats(t *testing.T) {
	summary := NetworkStats{Source: "file", Groups: 2, Edges: 1}

	tests := []struct {
		format string
		want   string
	}{
		{"text", "file network: 2 groups, 1 edges\n"},
		{"json", "{\n  \"source\": \"file\",\n  \"groups\": 2,\n  \"edges\": 1\n}\n"},
		{"table", FormatTable(summary.TableHeaders(), summary.TableRows())},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cmd := &cobra.Command{}
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, &CLIContext{OutputFormat: tt.format}))
			require.NoError(t, PrintResult(cmd, summary))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := GetCLIContext(cmd)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)
}

func TestMassSearchCmd(t *testing.T) {
	w := newWorkspace(t)

	out, err := execute(t, "--config", w.config, "mass", "search", "180.0634", "500")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(massColumns, "\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "180.0634\t180.0634\t0\t"+keyA+"\t"), lines[1])
	assert.Equal(t, "500\t\t\t\t", lines[2])
}

func TestMassSearchCmd_InputFile(t *testing.T) {
	w := newWorkspace(t)
	in := w.write(t, "masses.txt", "mass\n342.1162\n\n")
	outPath := w.path("masses.tsv")

	_, err := execute(t, "--config", w.config, "mass", "search", "-i", in, "--out", outPath)
	require.NoError(t, err)
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), keyB)
}

func TestMassSearchCmd_BadValue(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "--config", w.config, "mass", "search", "heavy")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestMassLookupCmd(t *testing.T) {
	w := newWorkspace(t)
	out, err := execute(t, "--config", w.config, "mass", "lookup", keyB, "ZZZZZZZZZZZZZZ-ZZZZZZZZSA-N")
	require.NoError(t, err)
	assert.Equal(t, "inchi_key\tmono_isotopic_molecular_weight\n"+keyB+"\t342.1162\n", out)
}

func TestMZCmd(t *testing.T) {
	w := newWorkspace(t)

	out, err := execute(t, "--config", w.config, "mz", "--adduct", "[M+H]", "181.0707")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(mzColumns, "\t"), lines[0])
	cells := strings.Split(lines[1], "\t")
	assert.Equal(t, "181.0707", cells[0])
	assert.Equal(t, "[M+H]", cells[1])
	assert.Equal(t, keyA, cells[5])

	_, err = execute(t, "--config", w.config, "mz", "--adduct", "[M+Xe]", "181.0707")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestFilterCmd(t *testing.T) {
	w := newWorkspace(t)
	in := w.write(t, "results.csv", "MAGI_score,gene_id,compound_score,e_score_r2g,e_score_g2r,reciprocal_score\n"+
		"3.1,gene1,1,50,50,2\n"+
		"1.0,gene2,1,3,50,2\n"+
		"0.5,gene3,0.5,50,50,2\n")
	outPath := w.path("filtered.tsv.gz")

	_, err := execute(t, "--config", w.config, "filter", "-i", in, "--out", outPath)
	require.NoError(t, err)

	rc, err := reference.Open(outPath)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "MAGI_score\tgene_id\tcompound_score\te_score_r2g\te_score_g2r\treciprocal_score\n"+
		"3.1\tgene1\t1\t50\t50\t2\n", string(data))

	out, err := execute(t, "--config", w.config, "filter", "-i", in, "--e-score-r2g", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestMakeDBCmd(t *testing.T) {
	w := newWorkspace(t)
	tools := &fakeTools{}
	useRunner(t, tools)
	db := w.path("db/refseqs")

	_, err := execute(t, "--config", w.config, "makedb", "--in", w.path("refseqs.faa"), "--out", db)
	require.NoError(t, err)
	assert.FileExists(t, db+".pin")

	_, err = execute(t, "--config", w.config, "makedb", "--in", w.path("refseqs.faa"), "--out", db)
	require.NoError(t, err)
	assert.Equal(t, []string{"makeblastdb"}, tools.calls)
}

func TestBlastCmd(t *testing.T) {
	w := newWorkspace(t)
	useRunner(t, &fakeTools{hits: map[string][]string{
		"refA": {"refA,gene1,100,50,90,1e-50,99", "refA,gene2,100,50,90,1e-10,40"},
		"refB": {"refB,gene2,100,50,90,1e-30,80"},
	}})

	out, err := execute(t, "--config", w.config, "blast",
		"--query", w.path("refseqs.faa"), "--db", w.path("genome"),
		"--result-dir", w.path("blast"), "--top-hit-filter", "0.5")
	require.NoError(t, err)

	recs, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, blastColumns, recs[0])
	assert.Equal(t, []string{"refA", "gene1", "100", "50", "90", "1e-50", "99"}, recs[1][:7])
	assert.Equal(t, []string{"refB", "gene2", "100", "50", "90", "1e-30", "80"}, recs[2][:7])
	score, err := strconv.ParseFloat(recs[1][7], 64)
	require.NoError(t, err)
	assert.InDelta(t, 50, score, 1e-9)
}

func TestConnectCmd(t *testing.T) {
	w := newWorkspace(t)
	in := w.write(t, "input.csv", "original_compound,compound_score\n"+keyA+",1\n")

	out, err := execute(t, "--config", w.config, "connect", "--compounds", in)
	require.NoError(t, err)
	assert.Equal(t, "original_compound,level,neighbor,reaction_id,note\n"+
		keyA+",0,,10,direct\n"+
		keyA+",1,"+keyB+",11,direct\n", out)
}

func TestNetworkStatsCmd(t *testing.T) {
	w := newWorkspace(t)
	out, err := execute(t, "--config", w.config, "-o", "json", "network", "stats")
	require.NoError(t, err)
	var stats NetworkStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, NetworkStats{Source: "file", Groups: 2, Edges: 1}, stats)
}

func TestNetworkImportCmd_RequiresNeo4j(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "--config", w.config, "network", "import")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfig))
}

func TestRunCmd(t *testing.T) {
	w := newWorkspace(t)
	genome := w.write(t, "genome.faa", ">gene1\nMKVLA\n>gene2\nMGGHL\n")
	in := w.write(t, "input.csv", "inchi_key,score\n"+keyA+",1\n")
	useRunner(t, &fakeTools{hits: map[string][]string{
		"refA":  {"refA,gene1,100,50,90,1e-50,99"},
		"gene1": {"gene1,refA,100,50,90,1e-50,99"},
		"gene2": {"gene2,refB,100,50,90,1e-20,70"},
	}})

	out, err := execute(t, "--config", w.config, "-o", "json", "run", "--compounds", in, "--genome", genome)
	require.NoError(t, err)

	var summary RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Compounds)
	assert.Equal(t, 2, summary.Links)
	assert.Equal(t, 1, summary.RefseqHits)
	assert.Equal(t, 2, summary.GeneHits)
	assert.Positive(t, summary.Scored)
	require.Len(t, summary.Files, 3)
	for _, f := range summary.Files {
		assert.FileExists(t, f)
		assert.Equal(t, w.path("out"), filepath.Dir(f))
	}
	assert.Empty(t, summary.Artifacts)
}

func TestRunCmd_RequiredFlags(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "--config", w.config, "run", "--genome", "x.faa")
	assert.Error(t, err)
}
