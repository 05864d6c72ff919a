// Package config defines MAGI's configuration structures.  No I/O or parsing
// logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ReferenceConfig locates the read-only reference tables loaded once per run.
type ReferenceConfig struct {
	// Reactions is the reaction table (id, allcpd_ikeys, refseq_id, ec, database_id).
	Reactions string `mapstructure:"reactions"`
	// Compounds is the compound table (inchi_key, inchi, mono_isotopic_molecular_weight).
	Compounds string `mapstructure:"compounds"`
	// Refseqs is the reference sequence table (refseq_id, sequence).
	Refseqs string `mapstructure:"refseqs"`
	// RefseqDB is the blast database built from Refseqs.
	RefseqDB string `mapstructure:"refseq_db"`
	// Groups is the compound group table of the chemical network (group_id, members).
	Groups string `mapstructure:"groups"`
	// Network is the edge table of the chemical network (source, target, weight).
	Network string `mapstructure:"network"`
}

// Neo4jConfig holds the connection parameters of a Neo4j-hosted chemical network.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// NetworkConfig selects where the chemical network is read from.
type NetworkConfig struct {
	Source string      `mapstructure:"source"` // "file" | "neo4j"
	Neo4j  Neo4jConfig `mapstructure:"neo4j"`
}

// ScoringConfig holds the run parameters of compound connection and scoring.
type ScoringConfig struct {
	NeighborLevel       int       `mapstructure:"neighbor_level"`
	Tautomer            bool      `mapstructure:"tautomer"`
	ReciprocalCloseness float64   `mapstructure:"reciprocal_closeness"`
	ChemnetPenalty      float64   `mapstructure:"chemnet_penalty"`
	FinalWeights        []float64 `mapstructure:"final_weights"`
	TopHitFilter        float64   `mapstructure:"top_hit_filter"`
}

// BlastConfig holds the homology search tunables.
type BlastConfig struct {
	BinDir       string  `mapstructure:"bin_dir"`
	Workers      int     `mapstructure:"workers"`
	RaiseOnError bool    `mapstructure:"raise_on_error"`
	MaxEvalue    float64 `mapstructure:"max_evalue"`
	WorkDirName  string  `mapstructure:"work_dir_name"`
	// ChunkTimeout kills a blastp chunk that runs longer. Zero disables it.
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
}

// MassConfig holds the accurate-mass search tunables.
type MassConfig struct {
	PPM      float64  `mapstructure:"ppm"`
	MZPPM    float64  `mapstructure:"mz_ppm"`
	Polarity string   `mapstructure:"polarity"` // "pos" | "neg"
	Adducts  []string `mapstructure:"adducts"`
}

// StructureConfig configures the external tautomer-enumeration helper.
type StructureConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig configures the tautomer result cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// MinIOConfig configures result artifact publishing.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig configures run-completion events.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MetricsConfig configures Prometheus metrics for batch runs.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Namespace      string `mapstructure:"namespace"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// OutputConfig controls where result tables are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration of a MAGI run.
type Config struct {
	Log       logging.LogConfig `mapstructure:"log"`
	Reference ReferenceConfig   `mapstructure:"reference"`
	Network   NetworkConfig     `mapstructure:"network"`
	Scoring   ScoringConfig     `mapstructure:"scoring"`
	Blast     BlastConfig       `mapstructure:"blast"`
	Mass      MassConfig        `mapstructure:"mass"`
	Structure StructureConfig   `mapstructure:"structure"`
	Redis     RedisConfig       `mapstructure:"redis"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Output    OutputConfig      `mapstructure:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config and
// returns the first violation found.
func (c *Config) Validate() error {
	// Scoring
	if c.Scoring.NeighborLevel < 0 || c.Scoring.NeighborLevel > MaxNeighborLevel {
		return fmt.Errorf("config: scoring.neighbor_level %d is out of range [0, %d]", c.Scoring.NeighborLevel, MaxNeighborLevel)
	}
	if c.Scoring.ReciprocalCloseness < 0 || c.Scoring.ReciprocalCloseness > 1 {
		return fmt.Errorf("config: scoring.reciprocal_closeness %g is out of range [0, 1]", c.Scoring.ReciprocalCloseness)
	}
	if c.Scoring.ChemnetPenalty <= 0 {
		return fmt.Errorf("config: scoring.chemnet_penalty must be > 0, got %g", c.Scoring.ChemnetPenalty)
	}
	if len(c.Scoring.FinalWeights) != 4 {
		return fmt.Errorf("config: scoring.final_weights must have 4 values, got %d", len(c.Scoring.FinalWeights))
	}
	var sum float64
	for i, w := range c.Scoring.FinalWeights {
		if w < 0 {
			return fmt.Errorf("config: scoring.final_weights[%d] must be ≥ 0, got %g", i, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("config: scoring.final_weights must not all be zero")
	}
	if c.Scoring.TopHitFilter < 0 || c.Scoring.TopHitFilter > 1 {
		return fmt.Errorf("config: scoring.top_hit_filter %g is out of range [0, 1]", c.Scoring.TopHitFilter)
	}

	// Blast
	if c.Blast.Workers < 1 {
		return fmt.Errorf("config: blast.workers must be ≥ 1, got %d", c.Blast.Workers)
	}
	if c.Blast.MaxEvalue <= 0 {
		return fmt.Errorf("config: blast.max_evalue must be > 0, got %g", c.Blast.MaxEvalue)
	}
	if c.Blast.ChunkTimeout < 0 {
		return fmt.Errorf("config: blast.chunk_timeout must not be negative, got %s", c.Blast.ChunkTimeout)
	}

	// Mass
	if c.Mass.PPM <= 0 || c.Mass.MZPPM <= 0 {
		return fmt.Errorf("config: mass.ppm and mass.mz_ppm must be > 0")
	}
	switch c.Mass.Polarity {
	case "pos", "neg":
	default:
		return fmt.Errorf("config: mass.polarity %q is invalid; expected pos|neg", c.Mass.Polarity)
	}

	// Network
	switch c.Network.Source {
	case NetworkSourceFile:
	case NetworkSourceNeo4j:
		if c.Network.Neo4j.URI == "" {
			return fmt.Errorf("config: network.neo4j.uri is required when network.source is neo4j")
		}
	default:
		return fmt.Errorf("config: network.source %q is invalid; expected file|neo4j", c.Network.Source)
	}

	// Optional integrations
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("config: kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
