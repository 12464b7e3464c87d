// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-media-courier/internal/application"
	"telegram-media-courier/internal/config"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/infra/adapters/source"
	tele "telegram-media-courier/internal/infra/adapters/telegram"
	pg "telegram-media-courier/internal/infra/db/postgres"
	"telegram-media-courier/internal/infra/gateway"
	"telegram-media-courier/internal/infra/logging"
	"telegram-media-courier/internal/infra/metrics"
	red "telegram-media-courier/internal/infra/redis"
	"telegram-media-courier/internal/infra/resilience"
	"telegram-media-courier/internal/infra/sched"
	"telegram-media-courier/internal/infra/security"
	"telegram-media-courier/internal/infra/staging"
	"telegram-media-courier/internal/infra/web"
	"telegram-media-courier/internal/infra/worker"
	"telegram-media-courier/internal/usecase"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Runtime.Dev {
		log.Printf("[DEV MODE] Enabled")
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	botRateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)
	reportCache := red.NewReportCache(redisClient, cfg.Redis.TTL)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		log.Printf("WARNING: security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	itemRepo := pg.NewMediaItemRepo(pool)
	sessionRepo := pg.NewSessionRepo(pool, encSvc)

	// ---- Staging ----
	stagingStore, err := staging.NewDiskStore(cfg.Staging.Dir, logger)
	if err != nil {
		log.Fatalf("staging: %v", err)
	}

	// ---- Source + destination adapters ----
	var fetcher adapter.ContentFetchAdapter
	var validator adapter.SessionValidatorAdapter
	var deliverer adapter.MediaDeliveryAdapter
	if cfg.Runtime.Dev {
		fetcher = source.NewNoopFetchAdapter()
		validator = source.NewNoopSessionValidator()
		deliverer = tele.NewNoopDeliveryAdapter()
		log.Printf("source adapter: noop (dev)")
	} else {
		fetcher, err = source.NewInstagramFetchAdapter(&cfg.Source)
		if err != nil {
			log.Fatalf("source adapter: %v", err)
		}
		validator, err = source.NewInstagramSessionValidator(&cfg.Source)
		if err != nil {
			log.Fatalf("session validator: %v", err)
		}
		deliverer, err = tele.NewMediaDeliveryAdapter(cfg.Bot.Token)
		if err != nil {
			log.Fatalf("delivery adapter: %v", err)
		}
		log.Printf("source adapter: instagram base=%s", cfg.Source.BaseURL)
	}

	// ---- Gateways ----
	retrievalGW, err := buildRetrievalGateway(cfg.Courier.Retrieval, fetcher, stagingStore, logger)
	if err != nil {
		log.Fatalf("retrieval gateway: %v", err)
	}
	deliveryGW, err := buildDeliveryGateway(cfg.Courier.Delivery, deliverer, stagingStore, cfg.Courier.MaxFileSize, logger)
	if err != nil {
		log.Fatalf("delivery gateway: %v", err)
	}

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, logger)
	sessionUC := usecase.NewSessionUseCase(sessionRepo, validator, tm, cfg.Session.SubmissionWindow, cfg.Session.RequiredMarkers, logger)
	orc := usecase.NewOrchestrator(jobRepo, itemRepo, sessionUC, retrievalGW, deliveryGW, stagingStore, tm, cfg.Courier.MaxInFlight, logger)
	jobUC := usecase.NewJobUseCase(jobRepo, itemRepo, tm, orc, reportCache, logger)
	statsUC := usecase.NewStatsUseCase(jobRepo, userRepo, logger)

	// ---- Facade ----
	facade := application.NewBotFacade(userUC, jobUC, sessionUC, statsUC)

	// ---- Telegram ----
	var botAdapter adapter.TelegramBotAdapter
	stopPolling := func() {}
	if cfg.Runtime.Dev && cfg.Bot.Token == "" {
		botAdapter = tele.NewNoopBotAdapter()
		log.Printf("bot adapter: noop (dev, no token)")
	} else {
		realBot, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, botRateLimiter, cfg.Session.SubmissionWindow, logger)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		if strings.ToLower(cfg.Bot.Mode) != "polling" {
			log.Printf("bot.mode=%s not implemented; falling back to polling", cfg.Bot.Mode)
		}
		go func() {
			if err := realBot.StartPolling(ctx); err != nil {
				log.Printf("telegram polling stopped: %v", err)
			}
		}()
		botAdapter = realBot
		stopPolling = realBot.StopPolling
	}

	// ---- Job processors ----
	procPool := worker.NewPool(cfg.Courier.Workers)
	procPool.Start(ctx)
	processor := worker.NewJobProcessor(jobRepo, userRepo, orc, botAdapter, locker, reportCache, cfg.Courier.PollInterval, logger)
	go processor.Start(ctx, procPool)

	// ---- Background sweepers ----
	expiryWorker := sched.NewSessionExpiryWorker(cfg.Session.ExpiryCheckEvery, sessionRepo, logger)
	go func() { _ = expiryWorker.Run(ctx) }()
	cleanupWorker := sched.NewStagingCleanupWorker(time.Hour, cfg.Staging.CleanupAge, stagingStore, logger)
	go func() { _ = cleanupWorker.Run(ctx) }()
	stuckWorker := sched.NewStuckJobWorker(5*time.Minute, cfg.Courier.StuckJobAge, jobRepo, logger)
	go func() { _ = stuckWorker.Run(ctx) }()

	// ---- Admin API ----
	jwtSecret := cfg.Admin.JWTSecret
	if jwtSecret == "" {
		log.Printf("WARNING: admin.jwt_secret not set; falling back to dev secret (INSECURE)")
		jwtSecret = "courier-dev-jwt-secret"
	}
	auth := web.NewAuthManager(jwtSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	adminSrv := web.NewServer(jobUC, sessionUC, statsUC, stagingStore, cfg.Admin.APIKey, auth, logger)
	mux := http.NewServeMux()
	adminSrv.RegisterRoutes(mux)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: mux}
	go func() {
		log.Printf("admin api listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Println("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	stopPolling()
	procPool.Stop()
}

func buildGuards(g config.GatewayConfig) (*resilience.RateLimiter, *resilience.CircuitBreaker, resilience.RetryPolicy, error) {
	limiter, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Capacity:   g.RateCapacity,
		RefillRate: g.RateRefill,
	})
	if err != nil {
		return nil, nil, resilience.RetryPolicy{}, err
	}
	breaker, err := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold: g.BreakThreshold,
		Cooldown:  g.BreakCooldown,
	})
	if err != nil {
		return nil, nil, resilience.RetryPolicy{}, err
	}
	retry, err := resilience.NewRetryPolicy(g.RetryAttempts, g.RetryBaseDelay, g.RetryMaxDelay, g.RetryJitter)
	if err != nil {
		return nil, nil, resilience.RetryPolicy{}, err
	}
	return limiter, breaker, retry, nil
}

func buildRetrievalGateway(g config.GatewayConfig, fetcher adapter.ContentFetchAdapter, store adapter.StagingStore, logger *zerolog.Logger) (*gateway.RetrievalGateway, error) {
	limiter, breaker, retry, err := buildGuards(g)
	if err != nil {
		return nil, err
	}
	return gateway.NewRetrievalGateway(fetcher, store, limiter, breaker, retry, logger), nil
}

func buildDeliveryGateway(g config.GatewayConfig, deliverer adapter.MediaDeliveryAdapter, store adapter.StagingStore, maxFileSize int64, logger *zerolog.Logger) (*gateway.DeliveryGateway, error) {
	limiter, breaker, retry, err := buildGuards(g)
	if err != nil {
		return nil, err
	}
	return gateway.NewDeliveryGateway(deliverer, store, maxFileSize, limiter, breaker, retry, logger), nil
}
