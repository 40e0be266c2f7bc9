package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caixapdv/internal/config"
	"caixapdv/internal/infra"
	"caixapdv/internal/metrics"
	"caixapdv/internal/repository"
	"caixapdv/internal/router"
	"caixapdv/internal/service"
	"caixapdv/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title CaixaPDV API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Infrastructure ───────────────────────────────────────────────────────
	serverMetrics := metrics.NewServerMetrics(prometheus.DefaultRegisterer)
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	events := infra.NewEventBus(rdb)
	cache := infra.NewCache(rdb, "caixapdv:")
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)
	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// ── Repositories / services ──────────────────────────────────────────────
	registerRepo := repository.NewRegisterRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	userRepo := repository.NewUserRepository(db)

	registerSvc := service.NewRegisterService(registerRepo, orderRepo, events, dispatcher, cache,
		time.Duration(cfg.ReportCacheTTLMinutes)*time.Minute, ledgerMetrics)
	orderSvc := service.NewOrderService(orderRepo, events, registerSvc)
	authSvc := service.NewAuthService(userRepo, cfg)

	// ── Background workers ───────────────────────────────────────────────────
	pool := worker.NewPool(rdb, ledgerMetrics)
	pool.Handle(worker.QueueClosingReport,
		worker.NewClosingReportWorker(registerSvc, dispatcher, cfg.ReportStoragePath, cfg.ReportEmailTo).Process)
	if mailer.Enabled() {
		pool.Handle(worker.QueueEmail, worker.NewEmailWorker(mailer, smtpCB).Process)
	} else {
		log.Warn().Msg("SMTP_HOST not set, closing report emails stay queued")
	}
	pool.Start(ctx, cfg.WorkerPoolSize)
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		RDB:     rdb,
		CB:      smtpCB,
		Queues:  []string{worker.QueueClosingReport, worker.QueueEmail},
		Metrics: ledgerMetrics,
	})

	r, err := router.New(cfg, router.Deps{
		DB:        db,
		Redis:     rdb,
		Registers: registerSvc,
		Orders:    orderSvc,
		Auth:      authSvc,
		Events:    events,
		Metrics:   serverMetrics,
		Gatherer:  prometheus.DefaultGatherer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays 0: the SSE stream holds its response open
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("caixapdv listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	pool.Wait()
	log.Info().Msg("server exited")
}
