package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"smsportal/internal/api"
	"smsportal/internal/cache"
	"smsportal/internal/config"
	"smsportal/internal/directory"
	"smsportal/internal/gateway"
	"smsportal/internal/logger"
	"smsportal/internal/repository"
	"smsportal/internal/service"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(logger.Config{Development: os.Getenv("APP_ENV") != "production"})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	repo, err := repository.NewPostgresRepo(cfg.DB.ConnString())
	if err != nil {
		log.Fatalw("failed to initialize database", "err", err)
	}
	log.Info("connected to PostgreSQL")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalw("failed to connect to Redis", "err", err)
	}
	log.Info("connected to Redis")

	users := make(map[string]directory.Identity, len(cfg.Directory.Users))
	for name, u := range cfg.Directory.Users {
		users[name] = directory.Identity{DisplayName: u.DisplayName, Department: u.Department}
	}

	gw := gateway.NewClient(cfg.Gateway, log)
	svc := service.NewMessageService(repo, gw, cache.NewRedisCache(redisClient), directory.NewStatic(users), log)
	scheduler := service.NewScheduler(svc, cfg.Poller.SyncInterval(), cfg.Poller.DispatchInterval(), log)
	if err := scheduler.Start(); err != nil {
		log.Fatalw("failed to start scheduler", "err", err)
	}

	r := gin.Default()
	r.Use(api.RequestID())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	handler := api.NewAPIHandler(scheduler, svc)
	handler.Register(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	_ = scheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("server shutdown failed", "err", err)
	}
}
