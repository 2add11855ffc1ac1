package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ingresshandler "cvintake/internal/ingress/handler"
	"cvintake/internal/ingress/mailbox"
	"cvintake/internal/intake"
	intakehandler "cvintake/internal/intake/handler"
	notifystore "cvintake/internal/notify/store"
	notifysync "cvintake/internal/notify/sync"
	"cvintake/internal/platform/config"
	"cvintake/internal/platform/httpserver"
	"cvintake/internal/platform/logger"
	"cvintake/internal/platform/metrics"
	"cvintake/internal/platform/middleware"
	platformredis "cvintake/internal/platform/redis"
	"cvintake/internal/records"
	"cvintake/internal/webhook"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Notification store, optionally mirrored to Postgres.
	storeOpts := []notifystore.Option{}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		persister := notifystore.NewPostgres(db)
		if err := persister.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure notification schema", "error", err)
			os.Exit(1)
		}
		storeOpts = append(storeOpts, notifystore.WithPersister(persister, cfg.NotificationRetention))
	}
	store := notifystore.New(log, storeOpts...)

	// Ingress mailbox: Redis when configured, in-memory ring otherwise.
	var box mailbox.Mailbox
	var fetcher notifysync.Fetcher
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		rm := mailbox.NewRedis(redisClient, cfg.IngressCapacity)
		box, fetcher = rm, rm
	} else {
		im := mailbox.NewInMemory(cfg.IngressCapacity)
		box, fetcher = im, im
	}

	syncer := notifysync.New(fetcher, store, log, cfg.SyncInterval, cfg.BurstSyncInterval, m)
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("notification syncer stopped", "error", err)
		}
	}()

	forwarder := webhook.New(cfg.WebhookURL, cfg.WebhookTimeout)
	validator := intake.NewValidator(cfg.MaxUploadSize)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(60 * time.Second))

	intakehandler.New(log, validator, forwarder, m).Register(router)
	ingresshandler.New(log, box, m).Register(router)
	records.NewHandler(log, records.NewClient(cfg.Airtable)).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting cv-intake server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
