package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phading-dev/play-activity-service/internal/config"
	"github.com/phading-dev/play-activity-service/internal/handlers"
	"github.com/phading-dev/play-activity-service/internal/ledger"
	"github.com/phading-dev/play-activity-service/internal/platform/db"
	"github.com/phading-dev/play-activity-service/internal/platform/httpserver"
	"github.com/phading-dev/play-activity-service/internal/platform/logging"
	"github.com/phading-dev/play-activity-service/internal/platform/metrics"
	"github.com/phading-dev/play-activity-service/internal/platform/natsconn"
	"github.com/phading-dev/play-activity-service/internal/platform/redisconn"
	"github.com/phading-dev/play-activity-service/internal/platform/run"
	"github.com/phading-dev/play-activity-service/internal/progresscache"
	"github.com/phading-dev/play-activity-service/internal/sessions"
	"github.com/phading-dev/play-activity-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config:", err)
		run.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Println("logging:", err)
		run.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	runner := run.New(log)
	run.Exit(runner.WithSignals(func(ctx context.Context) error {
		pool, err := db.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		defer pool.Close()

		rdb, err := redisconn.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rdb.Close() }()

		l := ledger.New(ledger.NewPostgresStore(pool), progresscache.NewRedis(rdb, cfg.Redis.CacheTTL), log)

		if cfg.NATS.Enabled {
			nc, err := natsconn.Connect(natsconn.Options{
				URL:           cfg.NATS.URL,
				MaxReconnects: cfg.NATS.MaxReconnects,
				ReconnectWait: cfg.NATS.ReconnectWait,
			})
			if err != nil {
				log.Error("nats connect", zap.Error(err))
			} else {
				defer nc.Close()
				go worker.StartProgressConsumer(ctx, nc, l, log)
			}
		}

		router := chi.NewRouter()
		httpserver.SetupRouter(router)
		router.Handle("/metrics", metrics.Handler())
		handlers.Mount(router, handlers.Deps{
			Ledger:   l,
			Sessions: sessions.JWTChecker{Secret: []byte(cfg.Session.Secret)},
			Log:      log,
			Now:      func() int64 { return time.Now().UnixMilli() },
		})

		srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: router})
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start(log)
	}))
}
