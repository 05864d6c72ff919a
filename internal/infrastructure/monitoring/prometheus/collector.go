// Package prometheus records MAGI batch metrics in a private registry that
// can be scraped or pushed to a Pushgateway when a run ends.
package prometheus

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// MetricsCollector hands out labelled metric vectors backed by one
// registry.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
	// Push replaces whatever was pushed before under job and grouping.
	Push(ctx context.Context, url, job string, grouping map[string]string) error
}

type CounterVec interface{ WithLabelValues(lvs ...string) Counter }
type GaugeVec interface{ WithLabelValues(lvs ...string) Gauge }
type HistogramVec interface{ WithLabelValues(lvs ...string) Histogram }

type Counter interface {
	Inc()
	Add(delta float64)
}

type Gauge interface {
	Set(value float64)
	Add(delta float64)
}

type Histogram interface{ Observe(value float64) }

// CollectorConfig names the metrics and tunes the registry.
type CollectorConfig struct {
	Namespace string
	Subsystem string
	// EnableGoMetrics adds the Go runtime collector.
	EnableGoMetrics bool
	// DefaultHistogramBuckets applies when RegisterHistogram gets nil.
	DefaultHistogramBuckets []float64
	ConstLabels             map[string]string
}

type collector struct {
	reg    *prometheus.Registry
	cfg    CollectorConfig
	logger logging.Logger

	mu    sync.Mutex
	known map[string]prometheus.Collector
}

// NewMetricsCollector returns a collector over a fresh registry.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, errors.New(errors.ErrCodeConfig, "metrics namespace is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.DefaultHistogramBuckets == nil {
		cfg.DefaultHistogramBuckets = prometheus.DefBuckets
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableGoMetrics {
		reg.MustRegister(prometheus.NewGoCollector())
	}
	return &collector{reg: reg, cfg: cfg, logger: logger, known: map[string]prometheus.Collector{}}, nil
}

func (c *collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *collector) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if url == "" {
		return errors.New(errors.ErrCodeConfig, "pushgateway url is required")
	}
	p := push.New(url, job).Gatherer(c.reg).Client(ctxDoer{ctx})
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.Push(); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to push metrics")
	}
	c.logger.Info("metrics pushed", logging.String("url", url), logging.String("job", job))
	return nil
}

// ctxDoer binds pushes to the caller's context.
type ctxDoer struct{ ctx context.Context }

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req.WithContext(d.ctx))
}

// vector registers fresh under name, or returns the vector registered
// earlier under the same name. A failed registration or a type clash
// yields ok=false and is logged.
func vector[V prometheus.Collector](c *collector, name, kind string, fresh V) (v V, ok bool) {
	fq := prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)

	c.mu.Lock()
	defer c.mu.Unlock()
	existing, seen := c.known[fq]
	if !seen {
		if err := c.reg.Register(fresh); err != nil {
			c.logger.Error("metric registration failed", logging.String("name", fq), logging.String("kind", kind), logging.Err(err))
			return v, false
		}
		c.known[fq] = fresh
		return fresh, true
	}
	if v, ok = existing.(V); !ok {
		c.logger.Warn("metric already registered with another kind", logging.String("name", fq), logging.String("kind", kind))
	}
	return v, ok
}

func (c *collector) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   c.cfg.Namespace,
		Subsystem:   c.cfg.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.cfg.ConstLabels,
	}
}

func (c *collector) RegisterCounter(name, help string, labels ...string) CounterVec {
	vec, ok := vector(c, name, "counter", prometheus.NewCounterVec(prometheus.CounterOpts(c.opts(name, help)), labels))
	if !ok {
		return discardCounters{}
	}
	return counterVec{vec}
}

func (c *collector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	vec, ok := vector(c, name, "gauge", prometheus.NewGaugeVec(prometheus.GaugeOpts(c.opts(name, help)), labels))
	if !ok {
		return discardGauges{}
	}
	return gaugeVec{vec}
}

func (c *collector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = c.cfg.DefaultHistogramBuckets
	}
	o := c.opts(name, help)
	vec, ok := vector(c, name, "histogram", prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
		Buckets:     buckets,
	}, labels))
	if !ok {
		return discardHistograms{}
	}
	return histogramVec{vec}
}

type counterVec struct{ *prometheus.CounterVec }

func (v counterVec) WithLabelValues(lvs ...string) Counter {
	return v.CounterVec.WithLabelValues(lvs...)
}

type gaugeVec struct{ *prometheus.GaugeVec }

func (v gaugeVec) WithLabelValues(lvs ...string) Gauge { return v.GaugeVec.WithLabelValues(lvs...) }

type histogramVec struct{ *prometheus.HistogramVec }

func (v histogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.HistogramVec.WithLabelValues(lvs...)
}

// The discard types stand in for vectors that could not be registered.
type (
	discardCounters   struct{}
	discardGauges     struct{}
	discardHistograms struct{}
	discard           struct{}
)

func (discardCounters) WithLabelValues(...string) Counter     { return discard{} }
func (discardGauges) WithLabelValues(...string) Gauge         { return discard{} }
func (discardHistograms) WithLabelValues(...string) Histogram { return discard{} }

func (discard) Inc()            {}
func (discard) Add(float64)     {}
func (discard) Set(float64)     {}
func (discard) Observe(float64) {}
