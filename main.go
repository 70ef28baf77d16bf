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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"linguameet/internal/api"
	"linguameet/internal/capability"
	"linguameet/internal/hub"
	"linguameet/internal/middleware"
	"linguameet/internal/repository"
	"linguameet/internal/service"
	"linguameet/internal/storage"
	"linguameet/internal/utils"
	"linguameet/pkg/config"
)

func main() {
	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.Log)

	// 初始化資料庫連接
	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := repository.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to auto migrate database")
	}

	blobs, err := storage.NewDiskBlobStore(cfg.Media.Root)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare media directory")
	}

	// 選擇語音後端，整個程序期間不再更換
	translator, err := capability.New(cfg.Capability, &http.Client{Timeout: cfg.Capability.RequestTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize translation capability")
	}
	defer translator.Close()

	registry := hub.NewRegistry()
	broadcaster, err := newBroadcaster(cfg.Redis, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize broadcaster")
	}
	defer broadcaster.Close()

	tokens := utils.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// 初始化 services
	services, err := service.NewServices(service.Dependencies{
		Repos:       repository.NewRepositories(db),
		Capability:  translator,
		Registry:    registry,
		Broadcaster: broadcaster,
		Blobs:       blobs,
		Tokens:      tokens,
	}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	services.Archiver.Start()
	defer services.Archiver.Stop()

	// 設置 Gin 路由
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	api.SetupRoutes(r, services, tokens, cfg.Server)

	server := &http.Server{Addr: cfg.Server.Address, Handler: r}
	go func() {
		log.Info().Str("address", cfg.Server.Address).Str("backend", translator.Name()).Msg("Conference relay is started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to run server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Conference relay is quitting...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

// newBroadcaster 啟用 redis 時透過 pub/sub 在多個程序間廣播
func newBroadcaster(cfg config.RedisConfig, registry *hub.Registry) (hub.Broadcaster, error) {
	if !cfg.Enabled {
		return hub.NewLocalBroadcaster(registry), nil
	}

	ctx := context.Background()
	client, err := hub.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return hub.NewRedisBroadcaster(ctx, client, registry, cfg.ChannelPrefix)
}
