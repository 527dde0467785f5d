package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	redigo "github.com/gomodule/redigo/redis"
	"github.com/spf13/cobra"

	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/redis"
)

type commandContext struct {
	configFlag *string

	once sync.Once
	cfg  config
	pool *redigo.Pool
	repo redis.Repo
	err  error
}

func newRootCommand() (*cobra.Command, *commandContext) {
	var (
		configFlag string
		verbose    bool
	)
	cctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "popcornctl",
		Short:         "Inspect and repair the popcorn store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(logger.New(os.Stderr, "text", level))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "TOML file overriding the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log what the store layer is doing")

	rootCmd.AddCommand(
		newShowsCommand(cctx),
		newShowCommand(cctx),
		newFeedCommand(cctx),
		newSubscribersCommand(cctx),
		newSubscriptionsCommand(cctx),
		newSubscribeCommand(cctx),
		newUnsubscribeCommand(cctx),
		newScanStatusCommand(cctx),
		newRedeliverCommand(cctx),
	)

	return rootCmd, cctx
}

// store connects on first use so that help and flag errors never need Redis.
func (c *commandContext) store(cmd *cobra.Command) (redis.Repo, error) {
	c.once.Do(func() {
		cfg, err := loadConfig(cmd.Context(), strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		pool, err := redis.ConnectWithRetry(cmd.Context(), cfg.Redis, 5*time.Second)
		if err != nil {
			c.err = fmt.Errorf("error connecting to redis at %s: %w", cfg.Redis.Addr, err)
			return
		}

		c.cfg, c.pool, c.repo = cfg, pool, redis.New(pool)
	})

	return c.repo, c.err
}

func (c *commandContext) close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
