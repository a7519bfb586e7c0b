package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"careline/infrastructure/cache"
	"careline/infrastructure/db"
	"careline/infrastructure/ws"
	"careline/internal/config"
	httpDelivery "careline/internal/delivery/http"
	wsDelivery "careline/internal/delivery/websocket"
	"careline/internal/repository"
	"careline/internal/usecase"
	"careline/pkg/logger"
	"careline/pkg/token"
)

func main() {
	// missing .env is fine in production, env comes from the platform
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	mongoStore, err := db.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal("mongo connect failed", zap.Error(err))
	}
	defer mongoStore.Close(ctx)

	log.Info("connected to mongodb", zap.String("database", cfg.MongoDatabase))

	messageRepo := repository.NewMessageRepository(mongoStore.DB)
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("ensure indexes failed", zap.Error(err))
	}

	messageUc := usecase.NewMessageUsecase(messageRepo)
	conversationUc := usecase.NewConversationUsecase(messageRepo)

	tokenManager := token.NewManager(cfg.JWTSecret, cfg.JWTExpiration)

	// With Redis configured the routing table relays across instances and
	// presence is shared; without it everything stays in-process.
	var hub ws.IHub
	var presence cache.Presence
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		hub = ws.NewRedisHub(rdb, cfg.ServerID, log)
		presence = cache.NewRedisPresence(rdb, cfg.PresenceTTL)
		log.Info("using redis hub", zap.String("addr", cfg.RedisAddr), zap.String("server_id", cfg.ServerID))
	} else {
		hub = ws.NewHub(log)
		memPresence := cache.NewMemPresence(cfg.PresenceTTL, cfg.PresenceTTL/2)
		defer memPresence.Close()
		presence = memPresence
		log.Info("using in-memory hub (single server)")
	}

	gatewayHandler := wsDelivery.NewGatewayHandler(hub, tokenManager, messageUc, presence, log)
	hub.SetOnUserOffline(gatewayHandler.HandleUserOffline)

	go hub.Run()

	httpHandler := httpDelivery.NewHttpHandler(conversationUc, messageUc, mongoStore.Ping, log)
	authMiddleware := httpDelivery.NewAuthMiddleware(tokenManager)

	router := chi.NewRouter()
	httpDelivery.MapHttpRoutes(router, httpHandler, gatewayHandler, authMiddleware, cfg, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
