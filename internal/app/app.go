package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	api "github.com/pulselabs/linkpulse/internal/api/http"
	"github.com/pulselabs/linkpulse/internal/config"
	pgrepo "github.com/pulselabs/linkpulse/internal/database/postgres"
	rediscache "github.com/pulselabs/linkpulse/internal/database/redis"
	"github.com/pulselabs/linkpulse/internal/service"
	"github.com/pulselabs/linkpulse/internal/shortcode"
	"github.com/pulselabs/linkpulse/internal/visit"
	"github.com/pulselabs/linkpulse/pkg/postgres"
)

// maxAllocRetries bounds how many random codes the allocator tries before
// giving up on a pathologically full namespace.
const maxAllocRetries = 5

// Run wires the full application together and blocks until ctx is canceled
// or a component fails.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := httplog.NewLogger("linkpulse", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
	})

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	var geo visit.GeoResolver = visit.NoopResolver{}
	if cfg.GeoIPPath != "" {
		mm, err := visit.OpenMaxMind(cfg.GeoIPPath)
		if err != nil {
			return fmt.Errorf("%s: failed to open geoip database: %w", op, err)
		}
		defer mm.Close()
		geo = mm
	}

	linkRepo := pgrepo.NewLinkRepository(db)
	linkCache := rediscache.NewLinkCache(rdb, cfg.Redis.CacheTTL)
	allocator := shortcode.New(cfg.ShortCodeLength, maxAllocRetries, linkRepo.CodeExists)
	recorder := visit.NewRecorder(linkRepo, geo, logger.Logger, cfg.Visits.QueueSize)
	linkSvc := service.NewLinkService(linkRepo, linkCache, allocator, recorder, logger.Logger, cfg.GateURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, linkSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	workers := cfg.Visits.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
