// Command worker runs one agentmind worker process: it consumes task
// envelopes from the broker, drives each to completion through the idea DAG
// engine, and publishes status updates.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/swarmguard/agentmind/internal/action"
	"github.com/swarmguard/agentmind/internal/core/config"
	"github.com/swarmguard/agentmind/internal/core/logging"
	"github.com/swarmguard/agentmind/internal/core/otelinit"
	"github.com/swarmguard/agentmind/internal/dagmodel"
	"github.com/swarmguard/agentmind/internal/engine"
	"github.com/swarmguard/agentmind/internal/io"
	"github.com/swarmguard/agentmind/internal/policy"
	"github.com/swarmguard/agentmind/internal/store"
	"github.com/swarmguard/agentmind/internal/telemetry"
	"github.com/swarmguard/agentmind/internal/worker"
)

func main() {
	service := "agentmind-worker"
	logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("worker: config load failed", "error", err)
		return
	}

	shutdownTrace := otelinit.InitTracer(ctx, service)
	shutdownMetrics, _ := otelinit.InitMetrics(ctx, service)

	broker, err := io.Dial(cfg.BrokerURL)
	if err != nil {
		slog.Error("worker: broker dial failed", "error", err)
		return
	}
	defer broker.Close()

	if err := broker.EnsureStream(ctx, "MANDATES", cfg.InputQueue); err != nil {
		slog.Error("worker: stream setup failed", "error", err)
		return
	}
	consumer, err := broker.NewConsumer(ctx, "MANDATES", "worker", cfg.InputQueue)
	if err != nil {
		slog.Error("worker: consumer setup failed", "error", err)
		return
	}

	taskStore := store.NewTaskStore(cfg.PostgresDSN)
	defer taskStore.Close()
	if err := taskStore.InitSchema(ctx); err != nil {
		slog.Error("worker: schema init failed", "error", err)
		return
	}

	snapshots, err := store.NewDagSnapshotStore(cfg.BoltPath)
	if err != nil {
		slog.Error("worker: dag snapshot store open failed", "error", err)
		return
	}
	defer snapshots.Close()

	memoCache := store.NewRedisCache(cfg.RedisAddr, "", 0, time.Hour)
	defer memoCache.Close()

	llmClient := io.NewLLMClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	searchClient := io.NewSearchClient(cfg.SearchAPIURL)
	fetchClient := io.NewFetchClient()
	vectorStore, err := io.NewVectorStoreClient(ctx, cfg.MongoURI, "agentmind", "deliverables")
	if err != nil {
		slog.Error("worker: vector store connect failed", "error", err)
		return
	}

	registry := action.NewRegistry()
	registry.Register(dagmodel.ActionSearch, action.SearchExecutor{Client: searchClient})
	registry.Register(dagmodel.ActionVisit, action.VisitExecutor{Client: fetchClient})
	registry.Register(dagmodel.ActionThink, action.ThinkExecutor{Client: llmClient})
	registry.Register(dagmodel.ActionSave, action.SaveExecutor{Client: vectorStore})

	policySettings := policy.Settings{
		MaxChildren:            cfg.MaxChildren,
		MaxDepth:               cfg.MaxDepth,
		DecompositionThreshold: cfg.DecompositionThreshold,
		AllowUnscoredSelection: cfg.AllowUnscoredSelection,
		MinScoreThreshold:      cfg.MinScoreThreshold,
		EnableRecursiveMerge:   cfg.EnableRecursiveMerge,
	}
	policies := policy.Set{
		Expansion:     policy.DefaultExpansion{Scorer: llmClient, Settings: policySettings},
		Evaluation:    policy.DefaultEvaluation{Scorer: llmClient},
		Selection:     policy.DefaultSelection{Settings: policySettings},
		Decomposition: policy.DefaultDecomposition{Settings: policySettings},
		Merge:         policy.SimpleMergePolicy{Settings: policySettings},
		Memoization:   policy.RedisMemoPolicy{Cache: memoCache},
	}

	engineSettings := engine.Settings{
		Settings:                policySettings,
		ActionMaxRetries:        cfg.ActionMaxRetries,
		ActionRetryBackoffSteps: cfg.ActionRetryBackoffSteps,
		MemoNamespacePrefix:     "agentmind",
	}

	newEngine := func(correlationID string) (*engine.Engine, error) {
		rec, err := telemetry.NewRecorder(correlationID, "", 256)
		if err != nil {
			return nil, err
		}
		synth := engine.LLMSynthesizer{Client: llmClient}
		return engine.New(policies, registry, synth, rec, engineSettings), nil
	}

	w := &worker.Worker{
		Consumer:      consumer,
		Broker:        broker,
		StatusSubject: cfg.StatusQueue,
		Store:         taskStore,
		Snapshots:     snapshots,
		NewEngine:     newEngine,
		Cancellations: worker.NewRegistry(),
	}

	slog.Info("worker: started")
	runErr := w.Run(ctx)
	slog.Info("worker: shutdown initiated", "reason", runErr)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	otelinit.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	slog.Info("worker: shutdown complete")
}
