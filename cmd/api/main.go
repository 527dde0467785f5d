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
	"go.uber.org/fx"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/popcorn/internal/api"
	"github.com/jdholdren/popcorn/internal/logger"
	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/redis"
)

type config struct {
	Redis             redis.Config
	TemporalHostPort  string `env:"TEMPORAL_HOST_PORT, required"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE, default=default"`

	Port       int    `env:"PORT, default=4444"`
	CorsOrigin string `env:"CORS_ORIGIN, default=*"`

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
	repo := redis.New(pool)

	// Retry until temporal is ready
	var temporalCli client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		temporalCli = c

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer temporalCli.Close()

	// Start the application
	fx.New(
		fx.Supply(
			api.ServerConfig{
				Port:       cfg.Port,
				CorsOrigin: cfg.CorsOrigin,
			},
			fx.Annotate(repo, fx.As(new(popcorn.Repository))),
			fx.Annotate(temporalCli, fx.As(new(client.Client))),
		),
		api.Module,
		fx.Invoke(func(*api.Server) {}), // Start the API server
	).Run()
}
