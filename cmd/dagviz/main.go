// Command dagviz dumps the persisted idea DAG for one correlation id as
// Graphviz DOT text, SVG, or {nodes, edges} JSON, reading the worker's bolt
// snapshot store read-only so it can run alongside a live worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/swarmguard/agentmind/internal/core/config"
	"github.com/swarmguard/agentmind/internal/core/logging"
	"github.com/swarmguard/agentmind/internal/store"
)

func main() {
	logging.Init("agentmind-dagviz")

	correlationID := flag.String("correlation-id", "", "mandate correlation id to render (required)")
	format := flag.String("format", "dot", "output format: dot, svg, or json")
	flag.Parse()

	if *correlationID == "" {
		slog.Error("dagviz: -correlation-id is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("dagviz: config load failed", "error", err)
		os.Exit(1)
	}

	snapshots, err := store.NewDagSnapshotStoreReadOnly(cfg.BoltPath)
	if err != nil {
		slog.Error("dagviz: open snapshot store failed", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	ctx := context.Background()
	dag, found, err := snapshots.Load(ctx, *correlationID)
	if err != nil {
		slog.Error("dagviz: load snapshot failed", "error", err)
		os.Exit(1)
	}
	if !found {
		slog.Error("dagviz: no snapshot for correlation id", "correlation_id", *correlationID)
		os.Exit(1)
	}

	switch *format {
	case "dot":
		fmt.Print(dag.ToDOT())
	case "svg":
		svg, err := dag.RenderSVG(ctx)
		if err != nil {
			slog.Error("dagviz: render svg failed", "error", err)
			os.Exit(1)
		}
		os.Stdout.Write(svg)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dag.GraphData()); err != nil {
			slog.Error("dagviz: encode json failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("dagviz: unknown -format", "format", *format)
		os.Exit(2)
	}
}
