package cli

import (
	"context"
	"io"

	"github.com/TimothyStephens/magi/internal/application/connect"
	"github.com/TimothyStephens/magi/internal/application/pipeline"
	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/infrastructure/database/neo4j"
	"github.com/TimothyStephens/magi/internal/infrastructure/database/redis"
	"github.com/TimothyStephens/magi/internal/infrastructure/messaging/kafka"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/prometheus"
	"github.com/TimothyStephens/magi/internal/infrastructure/storage/minio"
	"github.com/TimothyStephens/magi/internal/infrastructure/structure"
	"github.com/TimothyStephens/magi/internal/reference"
)

// resources owns the connections a command opened.  Close releases them in
// reverse order.
type resources struct {
	closers []func() error
	logger  logging.Logger
}

func (r *resources) add(c func() error) { r.closers = append(r.closers, c) }

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("failed to release resource", logging.Err(err))
		}
	}
	r.closers = nil
}

// networkSource returns the configured chemical network source.  A Neo4j
// driver opened for it is registered with res.
func networkSource(ctx context.Context, cfg *config.Config, res *resources, logger logging.Logger) (chemnet.Source, error) {
	if cfg.Network.Source != config.NetworkSourceNeo4j {
		return reference.FileSource(cfg.Reference), nil
	}
	drv, err := openNeo4j(ctx, cfg, res, logger)
	if err != nil {
		return nil, err
	}
	return neo4j.NewNetworkStore(drv, logger), nil
}

func openNeo4j(ctx context.Context, cfg *config.Config, res *resources, logger logging.Logger) (*neo4j.Driver, error) {
	drv, err := neo4j.NewDriver(ctx, cfg.Network.Neo4j, logger)
	if err != nil {
		return nil, err
	}
	res.add(drv.Close)
	return drv, nil
}

// loadReference reads the reference context with the configured network
// source.
func loadReference(ctx context.Context, cfg *config.Config, res *resources, logger logging.Logger) (*reference.Context, error) {
	src, err := networkSource(ctx, cfg, res, logger)
	if err != nil {
		return nil, err
	}
	return reference.Load(ctx, cfg.Reference, src, logger)
}

// tautomerFinder builds the structure collaborator, fronted by the Redis
// cache when enabled and a helper command is configured.  A cache that cannot be reached is skipped with a
// warning.
func tautomerFinder(ctx context.Context, cliCtx *CLIContext, res *resources) connect.TautomerFinder {
	cfg, logger := cliCtx.Config, cliCtx.Logger
	if !cfg.Scoring.Tautomer {
		return nil
	}
	helper := structure.NewHelper(cfg.Structure, cliCtx.Runner, logger.Named("structure"))
	// Without a command every answer is a skeleton fallback, which is never cached.
	if !cfg.Redis.Enabled || cfg.Structure.Command == "" {
		return helper
	}
	client, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("tautomer cache disabled", logging.Err(err))
		return helper
	}
	res.add(client.Close)
	cache := redis.NewRedisCache(client, logger, redis.WithPrefix(cfg.Redis.Prefix), redis.WithDefaultTTL(cfg.Redis.TTL))
	return structure.NewCachedFinder(helper, cache, cfg.Redis.TTL, logger)
}

// runMetrics is the metrics of one command plus the means to push them.
type runMetrics struct {
	*prometheus.MAGIMetrics
	collector prometheus.MetricsCollector
	cfg       config.MetricsConfig
}

func newRunMetrics(cfg config.MetricsConfig, logger logging.Logger) (*runMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: cfg.Namespace}, logger)
	if err != nil {
		return nil, err
	}
	return &runMetrics{MAGIMetrics: prometheus.NewMAGIMetrics(collector), collector: collector, cfg: cfg}, nil
}

// push sends the collected metrics to the Pushgateway, if one is
// configured.  Failures are logged only.
func (m *runMetrics) push(ctx context.Context, runID string, logger logging.Logger) {
	if m == nil || m.cfg.PushgatewayURL == "" {
		return
	}
	grouping := map[string]string{}
	if runID != "" {
		grouping["run_id"] = runID
	}
	if err := m.collector.Push(ctx, m.cfg.PushgatewayURL, m.cfg.Job, grouping); err != nil {
		logger.Warn("failed to push metrics", logging.Err(err))
	}
}

// pipelineDeps assembles the optional collaborators of a run.
func pipelineDeps(ctx context.Context, cliCtx *CLIContext, res *resources, metrics *runMetrics) (pipeline.Deps, error) {
	cfg, logger := cliCtx.Config, cliCtx.Logger
	deps := pipeline.Deps{
		Runner:    cliCtx.Runner,
		Tautomers: tautomerFinder(ctx, cliCtx, res),
	}
	if metrics != nil {
		deps.Metrics = metrics.MAGIMetrics
	}
	if cfg.MinIO.Enabled {
		client, err := minio.NewClient(ctx, cfg.MinIO, logger)
		if err != nil {
			return deps, err
		}
		deps.Publisher = client
	}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return deps, err
		}
		res.add(producer.Close)
		deps.Events = producer
	}
	return deps, nil
}

// openOutput creates path for writing; "-" or "" writes to w.
func openOutput(path string, w io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{w}, nil
	}
	return reference.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
