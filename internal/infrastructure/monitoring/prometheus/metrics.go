package prometheus

import (
	"time"
)

// Chunk durations span seconds to hours for genome-scale searches.
var DefaultChunkDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200}

// MAGIMetrics holds the run metrics.  It satisfies the homology search
// metrics hook and the connector warning counter.
type MAGIMetrics struct {
	ChunkDuration      HistogramVec
	ChunksTotal        CounterVec
	HitsParsed         CounterVec
	Warnings           CounterVec
	CompoundsConnected CounterVec
	RecordsScored      CounterVec
	RunDuration        GaugeVec
	RunStatus          GaugeVec
}

func NewMAGIMetrics(collector MetricsCollector) *MAGIMetrics {
	return &MAGIMetrics{
		ChunkDuration:      collector.RegisterHistogram("blast_chunk_duration_seconds", "Wall time of one blast chunk", DefaultChunkDurationBuckets, "database"),
		ChunksTotal:        collector.RegisterCounter("blast_chunks_total", "Blast chunks run", "database", "status"),
		HitsParsed:         collector.RegisterCounter("blast_hits_total", "Hits parsed from blast output", "database"),
		Warnings:           collector.RegisterCounter("warnings_total", "Recoverable lookup misses", "kind"),
		CompoundsConnected: collector.RegisterCounter("compound_reaction_links_total", "Compound to reaction links", "note"),
		RecordsScored:      collector.RegisterCounter("records_scored_total", "Merged records that received a MAGI score", "scored"),
		RunDuration:        collector.RegisterGauge("run_duration_seconds", "Wall time of the last run", "stage"),
		RunStatus:          collector.RegisterGauge("run_success", "1 if the last run succeeded", "command"),
	}
}

func (m *MAGIMetrics) ObserveChunk(database, status string, d time.Duration) {
	m.ChunkDuration.WithLabelValues(database).Observe(d.Seconds())
	m.ChunksTotal.WithLabelValues(database, status).Inc()
}

func (m *MAGIMetrics) AddHits(database string, n int) {
	m.HitsParsed.WithLabelValues(database).Add(float64(n))
}

func (m *MAGIMetrics) IncWarning(kind string) {
	m.Warnings.WithLabelValues(kind).Inc()
}

// AddLinks counts compound links by note.
func (m *MAGIMetrics) AddLinks(note string, n int) {
	m.CompoundsConnected.WithLabelValues(note).Add(float64(n))
}

// AddScored counts scored and unscored records.
func (m *MAGIMetrics) AddScored(scored, unscored int) {
	m.RecordsScored.WithLabelValues("true").Add(float64(scored))
	m.RecordsScored.WithLabelValues("false").Add(float64(unscored))
}

func (m *MAGIMetrics) ObserveStage(stage string, d time.Duration) {
	m.RunDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (m *MAGIMetrics) SetRunStatus(command string, ok bool) {
	v := 0.0
	if ok {
		v = 1
	}
	m.RunStatus.WithLabelValues(command).Set(v)
}
