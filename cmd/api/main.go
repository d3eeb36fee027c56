package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fyp-inbox/internal/config"
	"fyp-inbox/internal/db"
	apihttp "fyp-inbox/internal/http"
	"fyp-inbox/internal/realtime"
	"fyp-inbox/internal/repository"
	"fyp-inbox/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	chatRepo := repository.NewPgChatRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	notificationRepo := repository.NewPgNotificationRepository(pool)
	directory := service.NewRepoDirectory(userRepo)

	hub := realtime.NewHub(logger)
	var (
		publisher   realtime.Publisher = realtime.NewLocalPublisher(hub)
		limiter                        = service.NewSendRateLimiter(cfg.SendRateWindow(), cfg.SendRateMax)
		redisClient *redis.Client
		bridge      *realtime.RedisBridge
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			// Sin redis cada instancia entrega solo a sus propias conexiones.
			logger.Warn("redis ping failed, using local realtime", zap.Error(err))
		} else {
			publisher = realtime.NewRedisPublisher(redisClient)
			bridge = realtime.NewRedisBridge(redisClient, hub, logger)
			limiter = service.NewRedisSendLimiter(redisClient, logger, cfg.SendRateWindow(), cfg.SendRateMax)
		}
		cancel()
	}

	threadSvc := service.NewThreadService(logger, chatRepo, messageRepo, directory, service.ThreadOptions{
		Publisher:     publisher,
		Limiter:       limiter,
		FetchLimit:    cfg.ChatFetchLimit,
		MaxFetchLimit: cfg.ChatMaxFetchLimit,
	})
	notificationSvc := service.NewNotificationService(logger, notificationRepo, directory, cfg.FanoutConcurrency)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	checks := map[string]apihttp.Pinger{"postgres": pool}
	if redisClient != nil {
		checks["redis"] = apihttp.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	chatHandler := apihttp.NewChatHandler(logger, threadSvc)
	notificationHandler := apihttp.NewNotificationHandler(logger, notificationSvc, directory)
	wsHandler := apihttp.NewWSHandler(ctx, logger, hub, threadSvc, cfg.WSAllowedOrigins)
	router := apihttp.NewRouter(logger, jwtSvc, chatHandler, notificationHandler, wsHandler, apihttp.HealthHandler(checks))

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
