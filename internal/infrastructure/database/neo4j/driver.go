// Package neo4j stores and loads the chemical network in a Neo4j graph.
package neo4j

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

const (
	fallbackDatabase = "neo4j"
	poolSize         = 10
	acquireTimeout   = time.Minute
	verifyTimeout    = 10 * time.Second
	healthQuery      = "RETURN 1 AS health"
)

// Result is the cursor returned by Transaction.Run.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// Transaction runs cypher inside a managed transaction.
type Transaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

type graphSession interface {
	ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error)
	ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error)
	Close(ctx context.Context) error
}

type graphConn interface {
	VerifyConnectivity(ctx context.Context) error
	NewSession(ctx context.Context, cfg neo4j.SessionConfig) graphSession
	Close(ctx context.Context) error
}

// boltConn adapts the official driver to graphConn so tests can swap it out.
type boltConn struct{ neo4j.DriverWithContext }

func (c boltConn) NewSession(ctx context.Context, cfg neo4j.SessionConfig) graphSession {
	return boltSession{c.DriverWithContext.NewSession(ctx, cfg)}
}

type boltSession struct{ neo4j.SessionWithContext }

func (s boltSession) ExecuteRead(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return s.SessionWithContext.ExecuteRead(ctx, managed(work))
}

func (s boltSession) ExecuteWrite(ctx context.Context, work func(Transaction) (any, error)) (any, error) {
	return s.SessionWithContext.ExecuteWrite(ctx, managed(work))
}

type boltTx struct{ tx neo4j.ManagedTransaction }

func (t boltTx) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func managed(work func(Transaction) (any, error)) neo4j.ManagedTransactionWork {
	return func(tx neo4j.ManagedTransaction) (any, error) {
		return work(boltTx{tx: tx})
	}
}

// Driver holds a connection pool bound to one database of the network
// graph.
type Driver struct {
	conn      graphConn
	database  string
	logger    logging.Logger
	closeOnce sync.Once
}

// NewDriver dials cfg.URI and fails fast when the server cannot be
// reached.
func NewDriver(ctx context.Context, cfg config.Neo4jConfig, log logging.Logger) (*Driver, error) {
	if cfg.URI == "" {
		return nil, errors.New(errors.ErrCodeConfig, "neo4j uri is required")
	}
	raw, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = poolSize
		c.ConnectionAcquisitionTimeout = acquireTimeout
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "invalid neo4j driver settings")
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if err := raw.VerifyConnectivity(vctx); err != nil {
		_ = raw.Close(ctx)
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "network graph unreachable at "+cfg.URI)
	}

	d := newDriver(boltConn{raw}, cfg.Database, log)
	d.logger.Info("network graph connected", logging.String("uri", cfg.URI), logging.String("database", d.database))
	return d, nil
}

func newDriver(conn graphConn, database string, log logging.Logger) *Driver {
	if database == "" {
		database = fallbackDatabase
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Driver{conn: conn, database: database, logger: log}
}

func (d *Driver) execute(ctx context.Context, mode neo4j.AccessMode, work func(Transaction) (any, error)) (any, error) {
	session := d.conn.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database, AccessMode: mode})
	defer session.Close(ctx)

	run, op := session.ExecuteRead, "read"
	if mode == neo4j.AccessModeWrite {
		run, op = session.ExecuteWrite, "write"
	}
	out, err := run(ctx, work)
	if err != nil {
		d.logger.Error("network graph transaction failed", logging.String("mode", op), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "neo4j "+op+" failed")
	}
	return out, nil
}

// ExecuteRead runs work in a read transaction.
func (d *Driver) ExecuteRead(ctx context.Context, work func(Transaction) (interface{}, error)) (interface{}, error) {
	return d.execute(ctx, neo4j.AccessModeRead, work)
}

// ExecuteWrite runs work in a write transaction.
func (d *Driver) ExecuteWrite(ctx context.Context, work func(Transaction) (interface{}, error)) (interface{}, error) {
	return d.execute(ctx, neo4j.AccessModeWrite, work)
}

// HealthCheck verifies the connection and round-trips a trivial query.
func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.conn.VerifyConnectivity(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "network graph unreachable")
	}
	_, err := d.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		res, err := tx.Run(ctx, healthQuery, nil)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

// Close releases the pool. Later calls are no-ops.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if err = d.conn.Close(context.Background()); err != nil {
			d.logger.Warn("network graph close failed", logging.Err(err))
			return
		}
		d.logger.Debug("network graph disconnected")
	})
	return err
}

// CollectRecords maps every remaining record of result.
func CollectRecords[T any](ctx context.Context, result Result, mapper func(*neo4j.Record) (T, error)) ([]T, error) {
	var items []T
	for result.Next(ctx) {
		item, err := mapper(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, result.Err()
}
