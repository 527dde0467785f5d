package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.temporal.io/sdk/client"
	"go.uber.org/fx"

	"github.com/jdholdren/popcorn/internal/popcorn"
	"github.com/jdholdren/popcorn/internal/serverutil"
)

type (
	// Server is the HTTP API in front of the popcorn store.
	Server struct {
		*http.Server

		repo    popcorn.Repository
		tempCli client.Client
	}

	ServerConfig struct {
		Port       int
		CorsOrigin string
	}

	Params struct {
		fx.In

		Config   ServerConfig
		Repo     popcorn.Repository
		Temporal client.Client
	}
)

func NewServer(lc fx.Lifecycle, p Params) *Server {
	srvr := newServer(p.Config, p.Repo, p.Temporal)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srvr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("error serving api", "error", err)
				}
			}()

			slog.Info("started api server", "port", p.Config.Port)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srvr.Shutdown(ctx)
		},
	})

	return srvr
}

func newServer(config ServerConfig, repo popcorn.Repository, temporalCli client.Client) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		repo:    repo,
		tempCli: temporalCli,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything

	// Subscriptions
	r.HandleFuncE("/api/users/{userID}/subscriptions", srvr.getSubscriptions).Methods(http.MethodGet)
	r.HandleFuncE("/api/users/{userID}/subscriptions/{showID}", srvr.putSubscription).Methods(http.MethodPut)
	r.HandleFuncE("/api/users/{userID}/subscriptions/{showID}", srvr.deleteSubscription).Methods(http.MethodDelete)

	// Feed
	r.HandleFuncE("/api/users/{userID}/feed", srvr.getFeed).Methods(http.MethodGet)
	r.HandleFuncE("/api/users/{userID}/feed/{showID}/{sien}", srvr.deleteFeedEntry).Methods(http.MethodDelete)

	// Shows
	r.HandleFuncE("/api/shows", srvr.getShows).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows", srvr.postShow).Methods(http.MethodPost)
	r.HandleFuncE("/api/shows/{showID}", srvr.getShow).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows/{showID}/subscribers", srvr.getSubscribers).Methods(http.MethodGet)
	r.HandleFuncE("/api/shows/{showID}/redeliver", srvr.postRedeliver).Methods(http.MethodPost)

	slog.Debug("configured api server", "port", config.Port)

	return &srvr
}
