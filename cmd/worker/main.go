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

	"switchboard/internal/campaign"
	"switchboard/internal/compliance"
	"switchboard/internal/config"
	"switchboard/internal/queue"
	"switchboard/internal/telephony"
	"switchboard/pkg/logger"
	"switchboard/pkg/metrics"
	"switchboard/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// The worker drains campaign batches from JetStream and sends them.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

	if cfg.NATS.URL == "" {
		log.Error("NATS_URL is required for the worker")
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Campaign.SharedPacing {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var recheck compliance.Ledger
	if cfg.Campaign.RecheckOptOut {
		recheck = compliance.NewPostgresLedger(db)
	}

	// A nil *redis.Client must not become a non-nil interface.
	var pacer *campaign.Pacer
	if rdb != nil {
		pacer = campaign.NewPacer(cfg.Campaign.SendInterval, rdb)
	} else {
		pacer = campaign.NewPacer(cfg.Campaign.SendInterval, nil)
	}

	consumer := campaign.NewConsumer(
		campaign.NewPostgresRepo(db),
		telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken),
		pacer,
		recheck,
	)

	js, err := queue.Connect(rootCtx, queue.Config{URL: cfg.NATS.URL, Token: cfg.NATS.Token, Stream: cfg.NATS.Stream}, log)
	if err != nil {
		log.Error("nats init failed", "err", err)
		os.Exit(1)
	}
	defer js.Close()

	// Metrics only; the worker serves no API.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "err", err)
		}
	}()

	log.Info("worker started", "concurrency", cfg.Campaign.WorkerConcurrency, "shared_pacing", cfg.Campaign.SharedPacing, "recheck_opt_out", cfg.Campaign.RecheckOptOut)
	if err := js.Run(rootCtx, cfg.Campaign.WorkerConcurrency, queue.ConsumerHandler(consumer)); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
