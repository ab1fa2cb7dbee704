// Command autoscaler runs the worker-fleet autoscale controller (C10): every
// T seconds it reads the queue-depth publisher's latest sample and adjusts
// the desired worker count.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/swarmguard/agentmind/internal/autoscale"
	"github.com/swarmguard/agentmind/internal/core/config"
	"github.com/swarmguard/agentmind/internal/core/logging"
	"github.com/swarmguard/agentmind/internal/core/otelinit"
	"github.com/swarmguard/agentmind/internal/store"
)

func main() {
	service := "agentmind-autoscaler"
	logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("autoscaler: config load failed", "error", err)
		return
	}

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics, _ := otelinit.InitMetrics(ctx, service)

	// Shares the same ~2-minute-TTL store the publisher writes into; a
	// deployment wires its own autoscale.Runtime to the real worker fleet,
	// the in-memory default here only self-documents the control loop.
	sampleStore := store.NewRedisCache(cfg.RedisAddr, "", 0, 2*time.Minute)
	defer sampleStore.Close()

	floor := cfg.MinWorkers
	if floor < 1 {
		floor = 1
	}
	runtime := autoscale.NewInMemoryRuntime(floor)
	runtime.Logger = slog.Default()

	controller := autoscale.NewController(sampleStore, runtime, cfg.InputQueue,
		cfg.MinWorkers, cfg.MaxWorkers, cfg.TargetPerWorker,
		time.Duration(cfg.AutoscaleIntervalSec)*time.Second)
	controller.Logger = slog.Default()

	slog.Info("autoscaler: started", "interval_seconds", cfg.AutoscaleIntervalSec,
		"min", cfg.MinWorkers, "max", cfg.MaxWorkers, "target_per_worker", cfg.TargetPerWorker)
	runErr := controller.Run(ctx)
	slog.Info("autoscaler: shutdown initiated", "reason", runErr)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("autoscaler: shutdown complete")
}
