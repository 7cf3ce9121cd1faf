package main

import (
	"context"
	"log"

	"designlens/internal/ai"
	"designlens/internal/capture"
	"designlens/internal/config"
	"designlens/internal/events"
	"designlens/internal/handler"
	"designlens/internal/middleware"
	"designlens/internal/redis"
	"designlens/internal/repository"
	"designlens/internal/server"
	"designlens/internal/services"
	"designlens/internal/storage"
	"designlens/internal/websocket"
	"designlens/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := repository.NewPool(ctx, cfg.Database.DSN())
	if err != nil {
		l.Logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		l.Logger.Fatal("init object storage", zap.Error(err))
	}

	provider, err := capture.NewProvider(ctx, cfg.Screenshot)
	if err != nil {
		l.Logger.Fatal("init screenshot provider", zap.Error(err))
	}
	if closer, ok := provider.(interface{ Close() }); ok {
		defer closer.Close()
	}
	capturer := capture.NewService(provider, store, capture.Options{
		Timeout:     cfg.Screenshot.Timeout,
		Concurrency: cfg.Screenshot.Concurrency,
	}, l)

	analyzer, err := ai.NewAnalyzer(ctx, cfg.AI)
	if err != nil {
		l.Logger.Fatal("init analyzer", zap.Error(err))
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	notifier := events.Fanout{events.NewLogNotifier(l)}
	var (
		accountCache services.AccountCache
		limiter      middleware.SendLimiter
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			l.Logger.Fatal("connect redis", zap.Error(err))
		}
		defer rdb.Close()

		accountCache = redis.NewCacheStore(rdb, cfg.Credits.CacheTTL)
		limiter = redis.NewRateLimiter(rdb, redis.RateLimitConfig{
			SendLimit:  cfg.RateLimit.SendLimit,
			SendWindow: cfg.RateLimit.SendWindow,
		})
		notifier = append(notifier, events.NewPubSubNotifier(redis.NewPublisher(rdb), nil, l))

		bridge := websocket.NewRedisBridge(redis.NewSubscriber(rdb), hub, l)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				l.Logger.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	} else {
		l.Logger.Warn("REDIS_ADDR empty: credit cache, rate limit and cross-instance notifications disabled")
		notifier = append(notifier, websocket.NewHubNotifier(hub, l))
	}

	sessionRepo := repository.NewSessionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)

	uploads := services.NewUploadService(store, l)
	sessions := services.NewSessionService(sessionRepo, messageRepo, notifier, l)
	attachments := services.NewAttachmentService(capturer, uploads, notifier, l)
	credits := services.NewCreditGate(accountRepo, accountCache, notifier, cfg.Credits, l)
	analysis := services.NewAnalysisService(credits, analyzer, templateRepo, sessions, uploads, notifier, l)
	tokens := services.NewTokenService(cfg.Server.JWTSecret)

	srv := server.New(cfg, l)
	srv.AddHealthCheck("postgres", pool.Ping)
	if cache, ok := accountCache.(*redis.CacheStore); ok {
		srv.AddHealthCheck("redis", cache.Ping)
	}
	srv.SetupRoutes(&server.Handlers{
		Sessions:  handler.NewSessionHandler(sessions),
		Workspace: handler.NewWorkspaceHandler(sessions, attachments, analysis),
		Credits:   handler.NewCreditHandler(credits, templateRepo),
		Socket:    websocket.NewHandler(hub, sessions, l),
	}, tokens, limiter)

	l.Logger.Info("designlens ready",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("capture", capturer.ProviderName()),
		zap.String("ai", cfg.AI.Provider))

	if err := srv.Start(); err != nil {
		l.Logger.Error("server stopped", zap.Error(err))
	}
}
