// Command queuepublisher runs the autoscaler's queue-depth sidecar (C11): it
// samples the broker's input-queue backlog every P seconds and publishes it
// for the autoscaler controller to read back.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/swarmguard/agentmind/internal/core/config"
	"github.com/swarmguard/agentmind/internal/core/logging"
	"github.com/swarmguard/agentmind/internal/core/otelinit"
	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/metrics"
	"github.com/swarmguard/agentmind/internal/store"
)

func main() {
	service := "agentmind-queuepublisher"
	logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("queuepublisher: config load failed", "error", err)
		return
	}

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics, _ := otelinit.InitMetrics(ctx, service)

	broker, err := io.Dial(cfg.BrokerURL)
	if err != nil {
		slog.Error("queuepublisher: broker dial failed", "error", err)
		return
	}
	defer broker.Close()

	if err := broker.EnsureStream(ctx, "MANDATES", cfg.InputQueue); err != nil {
		slog.Error("queuepublisher: stream setup failed", "error", err)
		return
	}
	if _, err := broker.NewConsumer(ctx, "MANDATES", "worker", cfg.InputQueue); err != nil {
		slog.Error("queuepublisher: consumer setup failed", "error", err)
		return
	}

	// A ~2-minute TTL on the sample gives the autoscaler's "over the last
	// ≤2 minutes, fallback to 0 if none" for free: a
	// sample older than that simply expires out of the store.
	sampleStore := store.NewRedisCache(cfg.RedisAddr, "", 0, 2*time.Minute)
	defer sampleStore.Close()

	publisher := metrics.NewPublisher(broker, sampleStore, service, "MANDATES", "worker",
		cfg.InputQueue, time.Duration(cfg.PublishIntervalSec)*time.Second)

	slog.Info("queuepublisher: started", "interval_seconds", cfg.PublishIntervalSec, "queue", cfg.InputQueue)
	runErr := publisher.Run(ctx)
	slog.Info("queuepublisher: shutdown initiated", "reason", runErr)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("queuepublisher: shutdown complete")
}
