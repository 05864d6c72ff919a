package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/infrastructure/database/redis"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/infrastructure/structure"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis tautomer cache",
	}
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached tautomer list, e.g. after the structure helper changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, logger := cliCtx.Config.Redis, cliCtx.Logger
			if !cfg.Enabled {
				return errors.New(errors.ErrCodeConfig, "redis is not enabled")
			}
			client, err := redis.NewClient(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			cache := redis.NewRedisCache(client, logger, redis.WithPrefix(cfg.Prefix))
			n, err := cache.DeleteByPrefix(cmd.Context(), structure.CacheKeyPrefix)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeCacheError, "failed to clear tautomer cache")
			}
			logger.Info("tautomer cache cleared", logging.Int64("deleted", n))
			PrintSuccess(cmd, fmt.Sprintf("removed %d cached tautomer lists", n))
			return nil
		},
	}
}
