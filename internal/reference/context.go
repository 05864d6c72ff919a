package reference

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Context is the reference data of one run.  It is built once and only read
// afterwards; every component receives it explicitly.
type Context struct {
	Reactions *reaction.Index
	Compounds *compound.Table
	Network   *chemnet.Network
	// Refseqs holds the reference sequences queried by the reaction-to-gene
	// search.  Nil when no table was configured.
	Refseqs  *homology.SequenceSet
	RefseqDB string
}

// FileSource returns the file-backed network source of cfg, or nil when no
// group table is configured.  A Neo4j source is supplied by the caller
// since it owns a driver.
func FileSource(cfg config.ReferenceConfig) chemnet.Source {
	if cfg.Groups == "" {
		return nil
	}
	return FileNetworkSource{Groups: cfg.Groups, Edges: cfg.Network}
}

// Load reads every configured table concurrently.  The reaction table is
// required; the compound table, the reference sequences and the network are
// optional and left nil when neither path nor source is given.
func Load(ctx context.Context, cfg config.ReferenceConfig, source chemnet.Source, logger logging.Logger) (*Context, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Reactions == "" {
		return nil, errors.New(errors.ErrCodeConfig, "reaction table is not configured")
	}
	start := time.Now()
	rc := &Context{RefseqDB: cfg.RefseqDB}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rc.Reactions, err = LoadReactions(cfg.Reactions)
		return err
	})
	if cfg.Compounds != "" {
		g.Go(func() (err error) {
			rc.Compounds, err = LoadCompounds(cfg.Compounds)
			return err
		})
	}
	if cfg.Refseqs != "" {
		g.Go(func() (err error) {
			rc.Refseqs, err = LoadSequences(cfg.Refseqs)
			return err
		})
	}
	if source != nil {
		g.Go(func() (err error) {
			rc.Network, err = source.Load(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if rc.Compounds == nil {
		rc.Compounds = compound.NewTable(nil)
	}

	fields := []logging.Field{
		logging.Int("reactions", rc.Reactions.Len()),
		logging.Int("compounds", rc.Compounds.Len()),
		logging.Duration("elapsed", time.Since(start)),
	}
	if rc.Refseqs != nil {
		fields = append(fields, logging.Int("refseqs", rc.Refseqs.Len()))
	}
	if rc.Network != nil {
		fields = append(fields, logging.Int("groups", rc.Network.Len()), logging.Int("edges", rc.Network.EdgeCount()))
	}
	logger.Info("reference data loaded", fields...)
	return rc, nil
}
