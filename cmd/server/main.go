package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/docstore"
	"rollcall/internal/export"
	"rollcall/internal/ledger"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/metrics"
	"rollcall/internal/platform/postgres"
	"rollcall/internal/platform/redis"
	"rollcall/internal/roster"
	httptransport "rollcall/internal/transport/http"
	"rollcall/pkg/platform/audit"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx := context.Background()

	store, health, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	auditor, closeAuditor := openAuditor(cfg, log)
	defer closeAuditor()

	cache, err := roster.NewCache(store,
		roster.WithLogger(log),
		roster.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("roster cache initialization failed", "error", err)
		os.Exit(1)
	}
	cache.OnRefresh(func([]roster.Person) { m.RosterRefreshes.Inc() })

	if err := cache.Refresh(ctx); err != nil {
		// Startup continues with an empty roster; the store may come back.
		log.Warn("initial roster refresh failed", "error", err)
	}

	ledgerSvc, err := ledger.New(store,
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
		ledger.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("ledger initialization failed", "error", err)
		os.Exit(1)
	}

	aggregator, err := export.New(cache, ledgerSvc,
		export.WithLogger(log),
		export.WithMetrics(m),
	)
	if err != nil {
		log.Error("export aggregator initialization failed", "error", err)
		os.Exit(1)
	}

	handlerOpts := []httptransport.Option{httptransport.WithMetrics(m)}
	if health != nil {
		handlerOpts = append(handlerOpts, httptransport.WithHealthCheck(health))
	}
	handler := httptransport.NewHandler(cache, ledgerSvc, aggregator, cfg.ShortlistSize, log, handlerOpts...)

	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("rollcall listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// openStore selects the document store backend. Redis wins when configured,
// then Postgres; neither configured means in-memory (single-process only).
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (docstore.Store, func(context.Context) error, func(), error) {
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	if redisClient != nil {
		log.Info("using redis document store")
		return docstore.NewRedis(redisClient.Client),
			redisClient.Health,
			func() { _ = redisClient.Close() },
			nil
	}

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return nil, nil, nil, err
	}
	if db != nil {
		store := docstore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		log.Info("using postgres document store")
		return store, db.PingContext, func() { _ = db.Close() }, nil
	}

	log.Info("using in-memory document store")
	return docstore.NewInMemory(), nil, func() {}, nil
}

// openAuditor returns the Kafka publisher when brokers are configured, and a
// no-op otherwise. A broker connection failure downgrades to no-op so the
// check-in path never depends on Kafka availability.
func openAuditor(cfg config.Config, log *slog.Logger) (audit.Publisher, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return audit.Nop(), func() {}
	}

	publisher, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Warn("audit publisher unavailable, events will be dropped", "error", err)
		return audit.Nop(), func() {}
	}

	return publisher, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Close(ctx); err != nil {
			log.Warn("audit publisher close failed", "error", err)
		}
	}
}
