package homology

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// DatabaseExists reports whether a protein blast database has been built at
// dbPath, single-volume or multi-volume.
func DatabaseExists(dbPath string) bool {
	for _, suffix := range []string{".pin", ".pal", ".00.pin"} {
		if _, err := os.Stat(dbPath + suffix); err == nil {
			return true
		}
	}
	return false
}

// BuildDatabase runs makeblastdb to build a protein database at dbPath from
// fastaPath unless one exists already.  It reports whether a build ran.
func BuildDatabase(ctx context.Context, runner process.Runner, binDir, fastaPath, dbPath string) (bool, error) {
	if DatabaseExists(dbPath) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeIO, "failed to create blast database directory")
	}

	var stderr bytes.Buffer
	err := runner.Run(ctx, process.Command{
		Name:   process.Binary(binDir, "makeblastdb"),
		Args:   []string{"-in", fastaPath, "-out", dbPath, "-dbtype", "prot"},
		Stderr: &stderr,
	})
	if err != nil {
		return false, errors.New(errors.ErrCodeExternalTool, "makeblastdb failed").
			WithDetail(strings.TrimSpace(stderr.String())).
			WithCause(err)
	}
	return true, nil
}
