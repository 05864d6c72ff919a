package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every MAGI setting.
const envPrefix = "MAGI"

// LoadOption customises a Load call.
type LoadOption func(v *viper.Viper) error

// WithFlag binds a command-line flag to a configuration key.  A flag the user
// set explicitly wins over the file and the environment.
func WithFlag(key string, flag *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: failed to bind flag %q to %q: %w", flag.Name, key, err)
		}
		return nil
	}
}

// newViper builds a Viper instance with YAML file type, MAGI_ env prefix,
// automatic env binding, a "." → "_" key replacer so that
// "scoring.neighbor_level" resolves to MAGI_SCORING_NEIGHBOR_LEVEL, and the
// registered zero-capable defaults.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// Load reads the YAML file at configPath (skipped when empty), merges MAGI_*
// environment overrides and bound flags, applies defaults and validates.
func Load(configPath string, opts ...LoadOption) (*Config, error) {
	v := newViper()
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MAGI_* environment variables and defaults
// only.
//
//	MAGI_<SECTION>_<FIELD>   e.g.  MAGI_BLAST_WORKERS, MAGI_SCORING_TAUTOMER
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath and invokes onChange with the re-parsed Config
// whenever the file is written.  Only settings that are safe to change in the
// middle of a run (the log level) should be applied by the callback.  A
// modified file that fails validation is reported through onError and the
// callback is skipped.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
