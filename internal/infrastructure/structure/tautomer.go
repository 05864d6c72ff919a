// Package structure talks to the external structure helper that enumerates
// tautomers, and caches its answers in Redis.
package structure

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Enumerator lists tautomer first blocks for a compound, reporting helper
// failures as errors.
type Enumerator interface {
	Enumerate(ctx context.Context, c compound.Compound) ([]string, error)
}

// Helper runs the configured tautomer command.  The compound's structure is
// written to stdin; the helper prints one InChIKey first block per line.
type Helper struct {
	command string
	args    []string
	timeout time.Duration
	runner  process.Runner
	logger  logging.Logger
}

// NewHelper builds a Helper from cfg.  A nil runner uses os/exec.
func NewHelper(cfg config.StructureConfig, runner process.Runner, logger logging.Logger) *Helper {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Command == "" {
		logger.Warn("no structure helper configured; tautomers fall back to each compound's own skeleton")
	}
	return &Helper{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: cfg.Timeout,
		runner:  runner,
		logger:  logger,
	}
}

// Enumerate runs the helper once.  A compound without a structure, or a
// Helper without a command, yields only the compound's own first block.
func (h *Helper) Enumerate(ctx context.Context, c compound.Compound) ([]string, error) {
	if h.command == "" || strings.TrimSpace(c.InChI) == "" {
		return fallback(c), nil
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	err := h.runner.Run(ctx, process.Command{
		Name:   h.command,
		Args:   h.args,
		Stdin:  strings.NewReader(c.InChI + "\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeStructureFailure, "structure helper failed").
			WithDetail(strings.TrimSpace(stderr.String())).WithCause(err)
	}
	return parseKeys(&stdout), nil
}

// Tautomers implements connect.TautomerFinder.  Helper failures are logged
// and the compound's own first block is returned in place of the tautomers.
func (h *Helper) Tautomers(ctx context.Context, c compound.Compound) ([]string, error) {
	keys, err := h.Enumerate(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Warn("tautomer enumeration failed; using compound skeleton",
			logging.String("inchi_key", c.InChIKey), logging.Err(err))
		return fallback(c), nil
	}
	return keys, nil
}

func parseKeys(b *bytes.Buffer) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	sc := bufio.NewScanner(b)
	for sc.Scan() {
		k := compound.FirstBlock(strings.TrimSpace(sc.Text()))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func fallback(c compound.Compound) []string {
	return []string{compound.FirstBlock(c.InChIKey)}
}
