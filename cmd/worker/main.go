package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	"go.uber.org/fx"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/redis"
	"github.com/jdholdren/popcorn/internal/worker"
)

type config struct {
	Redis             redis.Config
	TemporalHostPort  string `env:"TEMPORAL_HOST_PORT, required"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE, default=default"`

	// How many feeds a fan-out writes to at once
	FanOutConcurrency int `env:"FANOUT_CONCURRENCY, default=8"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat, slog.LevelInfo))

	pool, err := redis.ConnectWithRetry(ctx, cfg.Redis, 30*time.Second)
	if err != nil {
		log.Fatalf("error connecting to redis: %s", err)
	}
	defer pool.Close()

	// Retry until temporal is ready
	var c client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		cli, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer c.Close()

	if err := worker.EnsureNamespace(ctx, c.WorkflowService(), cfg.TemporalNamespace); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	fx.New(
		fx.Supply(
			fx.Annotate(ctx, fx.As(new(context.Context))),
			fx.Annotate(redis.New(pool), fx.As(new(popcorn.Repository))),
			fx.Annotate(c, fx.As(new(client.Client))),
		),
		fx.Invoke(func(lc fx.Lifecycle, ctx context.Context, repo popcorn.Repository, c client.Client) error {
			w, err := worker.NewWorker(ctx, repo, c, cfg.FanOutConcurrency)
			if err != nil {
				return err
			}
			startStop(lc, w)

			return nil
		}), // Start the worker
	).Run()
}

func startStop(lc fx.Lifecycle, w sdkworker.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return w.Start()
		},
		OnStop: func(context.Context) error {
			w.Stop()
			return nil
		},
	})
}
