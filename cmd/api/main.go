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

	"switchboard/internal/audit"
	"switchboard/internal/auth"
	"switchboard/internal/calls"
	"switchboard/internal/campaign"
	"switchboard/internal/compliance"
	"switchboard/internal/config"
	"switchboard/internal/conversation"
	"switchboard/internal/httpapi"
	"switchboard/internal/llm"
	"switchboard/internal/queue"
	"switchboard/internal/reporting"
	"switchboard/internal/routing"
	"switchboard/internal/telephony"
	"switchboard/internal/tenant"
	"switchboard/internal/voicemail"
	"switchboard/pkg/logger"
	"switchboard/pkg/objectstore"
	"switchboard/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	ai, err := llm.NewClient(llm.Provider(cfg.LLM.Provider), cfg.LLM.APIKey)
	if err != nil {
		log.Error("llm init failed", "err", err)
		os.Exit(1)
	}
	if ai == nil {
		log.Warn("no llm provider configured; speech routing and sms replies use scripted fallbacks")
	}

	var store objectstore.Store
	if cfg.Storage.Bucket != "" {
		gcs, err := objectstore.NewGCSStore(rootCtx, cfg.Storage.Bucket)
		if err != nil {
			log.Error("object store init failed", "err", err)
			os.Exit(1)
		}
		defer gcs.Close()
		store = gcs
	} else {
		log.Warn("VOICEMAIL_BUCKET not set; voicemail audio is kept in memory")
		store = objectstore.NewMemoryStore()
	}

	twilio := telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	callbacks := routing.NewCallbacks(cfg.App.PublicBaseURL)

	// Repositories and services.
	tenantRepo := tenant.NewPostgresRepo(db)
	registry := tenant.NewRegistry(tenantRepo, cfg.Auth.APIKeyPepper)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	ledger := compliance.NewPostgresLedger(db)
	callRepo := calls.NewPostgresRepo(db)
	callLog := calls.NewLog(callRepo)
	voicemailRepo := voicemail.NewPostgresRepo(db)
	campaignRepo := campaign.NewPostgresRepo(db)

	engine := routing.NewEngine(registry, callLog, auditSvc, ai, callbacks, routing.EngineConfig{
		RingTimeout:    cfg.Call.RingTimeout,
		InputTimeout:   cfg.Call.InputTimeout,
		LLMTimeout:     cfg.LLM.Timeout,
		MaxMenuRetries: cfg.Call.MaxMenuRetries,
		MaxAITurns:     cfg.Call.MaxAITurns,
		Model:          cfg.LLM.Model,
	})
	voicemailSvc := voicemail.NewService(voicemailRepo, store,
		voicemail.NewTwilioFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken), callRepo, cfg.Storage.SignedURLTTL)
	conversations := conversation.NewService(conversation.NewRedisStore(rdb), ledger, twilio, auditSvc, ai, registry, conversation.Config{
		TTL:          cfg.Conversation.TTL,
		HistoryLimit: cfg.Conversation.HistoryLimit,
		LLMTimeout:   cfg.LLM.Timeout,
		Model:        cfg.LLM.Model,
	})

	publisher, closeQueue := campaignPublisher(rootCtx, cfg, log, campaignRepo, twilio, ledger)
	defer closeQueue()
	dispatcher := campaign.NewDispatcher(campaignRepo, ledger, registry, publisher, cfg.Campaign.BatchSize)

	webhooks := telephony.WebhookHandler{
		Tenants:   registry,
		Calls:     engine,
		Voicemail: voicemailSvc,
		SMS:       conversations,
	}
	api := httpapi.Handlers{
		Extensions:    tenant.NewExtensionService(tenantRepo, registry),
		Voicemail:     voicemailSvc,
		Conversations: conversations,
		Campaigns:     dispatcher,
		Reporting:     reporting.NewService(callRepo, campaignRepo, voicemailRepo),
		Admin:         tenant.NewAdminService(tenantRepo, registry, twilio, callbacks, auditSvc),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	var signature gin.HandlerFunc
	if cfg.Twilio.ValidateSignatures {
		signature = telephony.RequireTwilioSignature(cfg.Twilio.AuthToken, cfg.App.PublicBaseURL)
	} else {
		log.Warn("twilio signature validation disabled")
	}

	registerRoutes(r, routeDeps{
		webhooks:  webhooks,
		api:       api,
		signature: signature,
		tenantMW:  auth.RequireTenantAPIKey(registry),
		adminMW:   auth.RequireOperatorToken(authManager),
		ready: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// campaignPublisher returns the JetStream publisher when NATS is configured.
// Without it, batches go to an in-process queue drained by a local consumer,
// which is only suitable for development.
func campaignPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, repo campaign.Repository, sender campaign.Sender, ledger compliance.Ledger) (campaign.Publisher, func()) {
	if cfg.NATS.URL != "" {
		js, err := queue.Connect(ctx, queue.Config{URL: cfg.NATS.URL, Token: cfg.NATS.Token, Stream: cfg.NATS.Stream}, log)
		if err != nil {
			log.Error("nats init failed", "err", err)
			os.Exit(1)
		}
		return js, js.Close
	}
	if cfg.IsProduction() {
		log.Error("NATS_URL is required in production")
		os.Exit(1)
	}

	log.Warn("NATS_URL not set; campaign batches are sent in-process")
	mem := queue.NewMemory()
	var recheck compliance.Ledger
	if cfg.Campaign.RecheckOptOut {
		recheck = ledger
	}
	consumer := campaign.NewConsumer(repo, sender, campaign.NewPacer(cfg.Campaign.SendInterval, nil), recheck)
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := mem.Drain(ctx, queue.ConsumerHandler(consumer)); err != nil && ctx.Err() == nil {
					log.Warn("in-process batch send failed; will retry", "err", err)
				}
			}
		}
	}()
	return mem, func() {}
}
