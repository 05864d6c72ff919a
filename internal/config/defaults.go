package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	MaxNeighborLevel = 3

	DefaultNeighborLevel       = 2
	DefaultTautomer            = true
	DefaultReciprocalCloseness = 0.75
	DefaultChemnetPenalty      = 4.0
	DefaultTopHitFilter        = 0.85

	DefaultBlastRaiseOnError = true
	DefaultBlastMaxEvalue    = 1.0
	DefaultBlastWorkDirName  = "multi_blast_files"

	DefaultMassPPM   = 10.0
	DefaultMZPPM     = 5.0
	DefaultPolarity  = "pos"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultStructureTimeout = 30 * time.Second

	DefaultRedisTTL    = 30 * 24 * time.Hour
	DefaultRedisPrefix = "magi:"

	DefaultMetricsNamespace = "magi"
	DefaultMetricsJob       = "magi"
	DefaultKafkaTopic       = "magi.run.completed"
	DefaultOutputDir        = "magi_output"

	NetworkSourceFile  = "file"
	NetworkSourceNeo4j = "neo4j"
)

// DefaultFinalWeights weights compound, reciprocal, homology and
// reaction-connection scores equally.
var DefaultFinalWeights = []float64{1, 1, 1, 1}

// registerDefaults declares defaults for settings whose zero value is a
// legitimate choice (neighbor_level 0, tautomer false, closeness 0, ...).
// These must go through viper so an explicit zero in the file or environment
// is not replaced.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("scoring.neighbor_level", DefaultNeighborLevel)
	v.SetDefault("scoring.tautomer", DefaultTautomer)
	v.SetDefault("scoring.reciprocal_closeness", DefaultReciprocalCloseness)
	v.SetDefault("scoring.chemnet_penalty", DefaultChemnetPenalty)
	v.SetDefault("scoring.final_weights", DefaultFinalWeights)
	v.SetDefault("scoring.top_hit_filter", DefaultTopHitFilter)
	v.SetDefault("blast.raise_on_error", DefaultBlastRaiseOnError)
}

// ApplyDefaults fills every zero-value field whose zero is never meaningful.
// Explicitly set values are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Blast ─────────────────────────────────────────────────────────────────
	if cfg.Blast.Workers == 0 {
		cfg.Blast.Workers = runtime.NumCPU()
	}
	if cfg.Blast.MaxEvalue == 0 {
		cfg.Blast.MaxEvalue = DefaultBlastMaxEvalue
	}
	if cfg.Blast.WorkDirName == "" {
		cfg.Blast.WorkDirName = DefaultBlastWorkDirName
	}

	// ── Mass ──────────────────────────────────────────────────────────────────
	if cfg.Mass.PPM == 0 {
		cfg.Mass.PPM = DefaultMassPPM
	}
	if cfg.Mass.MZPPM == 0 {
		cfg.Mass.MZPPM = DefaultMZPPM
	}
	if cfg.Mass.Polarity == "" {
		cfg.Mass.Polarity = DefaultPolarity
	}

	// ── Network ───────────────────────────────────────────────────────────────
	if cfg.Network.Source == "" {
		cfg.Network.Source = NetworkSourceFile
	}
	if cfg.Network.Neo4j.Database == "" {
		cfg.Network.Neo4j.Database = "neo4j"
	}

	// ── Structure / Redis ─────────────────────────────────────────────────────
	if cfg.Structure.Timeout == 0 {
		cfg.Structure.Timeout = DefaultStructureTimeout
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = DefaultRedisPrefix
	}

	// ── Events / Metrics / Output ─────────────────────────────────────────────
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
