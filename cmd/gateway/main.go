// Command gateway runs the external HTTP entry point (C9): authenticate
// callers, accept task submissions, and stream status back.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/swarmguard/agentmind/internal/core/config"
	"github.com/swarmguard/agentmind/internal/core/logging"
	"github.com/swarmguard/agentmind/internal/core/otelinit"
	"github.com/swarmguard/agentmind/internal/gateway"
	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/store"
)

func main() {
	service := "agentmind-gateway"
	logging.Init(service)
	logger := slog.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("gateway: config load failed", "error", err)
		return
	}

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics, _ := otelinit.InitMetrics(ctx, service)

	broker, err := io.Dial(cfg.BrokerURL)
	if err != nil {
		slog.Error("gateway: broker dial failed", "error", err)
		return
	}
	defer broker.Close()

	if err := broker.EnsureStream(ctx, "MANDATES", cfg.InputQueue); err != nil {
		slog.Error("gateway: input stream setup failed", "error", err)
		return
	}
	if err := broker.EnsureStream(ctx, "STATUS", cfg.StatusQueue); err != nil {
		slog.Error("gateway: status stream setup failed", "error", err)
		return
	}
	statusConsumer, err := broker.NewConsumer(ctx, "STATUS", "gateway", cfg.StatusQueue)
	if err != nil {
		slog.Error("gateway: status consumer setup failed", "error", err)
		return
	}

	taskStore := store.NewTaskStore(cfg.PostgresDSN)
	defer taskStore.Close()
	if err := taskStore.InitSchema(ctx); err != nil {
		slog.Error("gateway: schema init failed", "error", err)
		return
	}

	rateLimitCache := store.NewRedisCache(cfg.RedisAddr, "", 0, 0)
	defer rateLimitCache.Close()

	auth := gateway.NewAuthMiddleware(cfg.JWTSecret, cfg.RequireEmail, cfg.APIKeys)
	gw := gateway.New(taskStore, broker, cfg.InputQueue, cfg.StatusQueue, auth, rateLimitCache,
		cfg.RateLimitPerMinute, time.Duration(cfg.RateLimitWindowSec)*time.Second, logger)

	subscriber := &gateway.StatusSubscriber{Consumer: statusConsumer, Store: taskStore, Logger: logger}
	go func() {
		if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("gateway: status subscriber stopped unexpectedly", "error", err)
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: gw.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("gateway: server error", "error", err)
			cancel()
		}
	}()

	logger.Info("gateway: started", "addr", cfg.HTTPAddr)
	<-ctx.Done()
	logger.Info("gateway: shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	logger.Info("gateway: shutdown complete")
}
