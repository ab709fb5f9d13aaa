package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tamias-pos/customer-display/internal/app"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/internal/router"
	"github.com/tamias-pos/customer-display/pkg/config"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/logger"
)

func main() {
	envFile := global.GetEnvOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No %s file loaded: %v", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction(), cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open backends", zap.Error(err))
	}
	defer backends.Close()

	resolver := display.NewResolver(backends.Directory, cfg.DefaultStoreName, zlog)
	hub := display.NewHub(resolver, backends.Broker, display.HubOptions{
		RevertDelay:  cfg.RevertDelay,
		ConnectGrace: cfg.ConnectGrace,
		Logger:       zlog,
	})

	engine := router.InitEngine(cfg, zlog)
	router.InitializeRoutes(engine, router.NewHandler(hub, router.HandlerOptions{
		Checks:    backends.Checks,
		KeepAlive: cfg.KeepAlive,
		Presence:  backends.Presence,
		Cache:     backends.Cache,
		Logger:    zlog,
	}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	// end the event streams first so Shutdown does not wait on them
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
