package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/config"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/process"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Set with -ldflags "-X" at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// defaultRunner runs blastp, makeblastdb and the structure helper.
var defaultRunner process.Runner = process.NewExecRunner()

type cliContextKey struct{}

// RootOptions are the persistent flags shared by every subcommand.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Watch        bool
	Timeout      time.Duration
}

// CLIContext is what persistentPreRun builds once the config is loaded.
// Subcommands fetch it with GetCLIContext.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Runner       process.Runner
	OutputFormat string
	Verbose      bool

	cancel context.CancelFunc
}

// NewRootCommand assembles the magi command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "magi",
		Short: "MAGI: metabolite, annotation and gene integration",
		Long: "MAGI links observed compounds to biochemical reactions, searches the\n" +
			"reactions' reference sequences against a genome in both directions and\n" +
			"scores every compound/gene association.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c, err := GetCLIContext(cmd)
			if err != nil {
				return
			}
			if c.cancel != nil {
				c.cancel()
			}
			_ = c.Logger.Sync()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path")
	pf.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "summary format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.Watch, "watch-config", false, "reload the log level when the config file changes")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "abort the command after this long (0 disables)")

	cmd.AddCommand(
		NewRunCmd(),
		NewConnectCmd(),
		NewBlastCmd(),
		NewMakeDBCmd(),
		NewMassCmd(),
		NewMZCmd(),
		NewFilterCmd(),
		NewNetworkCmd(),
		NewPublishCmd(),
		NewCacheCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun loads the config, builds the logger and attaches a
// CLIContext to the command context.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	root := cmd.Root()
	cfg, err := config.Load(opts.ConfigPath,
		config.WithFlag("log.level", root.PersistentFlags().Lookup("log-level")))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfig, "config initialization failed")
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfig, "logger initialization failed")
	}

	if opts.Watch && opts.ConfigPath != "" {
		watchConfig(opts.ConfigPath, logger)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Runner:       defaultRunner,
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		ctx, cliCtx.cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initLogger applies --verbose on top of the log section. Logs default to
// stderr.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	logCfg := cfg.Log
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	if len(logCfg.OutputPaths) == 0 {
		logCfg.OutputPaths = []string{"stderr"}
	}
	return logging.NewLogger(logCfg)
}

// watchConfig applies log level changes of the config file to logger.
func watchConfig(path string, logger logging.Logger) {
	setter, ok := logger.(logging.LevelSetter)
	if !ok {
		return
	}
	err := config.Watch(path, func(c *config.Config) {
		setter.SetLevel(c.Log.Level)
		logger.Info("log level reloaded", logging.String("level", c.Log.Level))
	}, func(err error) {
		logger.Warn("ignoring invalid config change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}

// GetCLIContext returns the context persistentPreRun attached to cmd.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidParam("command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidParam("CLIContext not found in command context")
	}

	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.  Cancelling ctx
// stops running searches.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}

	return nil
}
