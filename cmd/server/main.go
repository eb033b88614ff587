package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"licensenet/internal/accounts"
	"licensenet/internal/catalog"
	"licensenet/internal/license/cache"
	"licensenet/internal/license/handler"
	"licensenet/internal/license/metrics"
	"licensenet/internal/license/normalize"
	"licensenet/internal/license/service"
	"licensenet/internal/license/store"
	historyStore "licensenet/internal/license/store/history"
	licenseStore "licensenet/internal/license/store/license"
	stagedStore "licensenet/internal/license/store/staged"
	"licensenet/internal/platform/config"
	"licensenet/internal/platform/events"
	"licensenet/internal/platform/httpserver"
	"licensenet/internal/platform/logger"
	"licensenet/internal/platform/middleware"
	platformredis "licensenet/internal/platform/redis"
	"licensenet/internal/plugins"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := store.Ensure(ctx, db); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithCacheInvalidator(cache.NewInvalidator(redisClient)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, service.WithEventPublisher(publisher))
	}

	normalizer := normalize.NewDomain(normalize.DomainConfig{
		DevDomains:        cfg.Domain.DevDomains,
		DevTLDs:           cfg.Domain.DevTLDs,
		DevSubdomainWords: cfg.Domain.DevSubdomainWords,
	})

	svc := service.New(
		licenseStore.NewPostgres(db),
		stagedStore.NewPostgres(db),
		historyStore.NewPostgres(db),
		accounts.NewPostgres(db),
		catalog.NewPostgres(db),
		plugins.NewPostgres(db),
		newLicensePostgresTx(db),
		normalizer,
		opts...,
	)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	h := handler.New(svc, log, middleware.NewHMACValidator(cfg.JWTSigningKey))
	h.Register(router)

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting licensenet", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
