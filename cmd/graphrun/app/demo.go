package app

import (
	"context"
	"strings"

	"github.com/ardenflow/graphrun/graph"
	"github.com/ardenflow/graphrun/graph/store"
	"github.com/ardenflow/graphrun/internal/config"
)

// newDemoEngine builds a small two-node graph — normalize then greet — so
// `run`/`resume` have something concrete to execute out of the box. A real
// deployment registers its own Graph; this one exists so the CLI is usable
// standalone and exercises the full invoke/checkpoint/resume path.
func newDemoEngine(st store.Store, cfg *config.Config) (*graph.Engine, error) {
	schema, err := graph.NewSchema(
		graph.Replace("name", func() any { return "" }),
		graph.Replace("greeting", func() any { return "" }),
	)
	if err != nil {
		return nil, err
	}

	b := graph.NewBuilder(schema)
	b.AddNode("normalize", func(ctx context.Context, in graph.State) (graph.NodeResult, error) {
		name, _ := in.Values["name"].(string)
		return graph.NodeResult{Updates: map[string]any{"name": strings.TrimSpace(name)}}, nil
	})
	b.AddNode("greet", func(ctx context.Context, in graph.State) (graph.NodeResult, error) {
		name, _ := in.Values["name"].(string)
		if name == "" {
			name = "there"
		}
		return graph.NodeResult{Updates: map[string]any{"greeting": "hello, " + name}}, nil
	})
	b.AddEdge(graph.Start, "normalize")
	b.AddEdge("normalize", "greet")
	b.AddEdge("greet", graph.End)

	g, err := b.Compile()
	if err != nil {
		return nil, err
	}

	return graph.NewEngine(g,
		graph.WithStore(st),
		graph.WithMaxSteps(cfg.Scheduler.MaxSteps),
		graph.WithMaxConcurrent(cfg.Scheduler.MaxConcurrent),
		graph.WithQueueDepth(cfg.Scheduler.QueueDepth),
		graph.WithBackpressureTimeout(cfg.Scheduler.BackpressureTimeout),
		graph.WithDefaultNodeTimeout(cfg.Scheduler.DefaultNodeTimeout),
		graph.WithRunWallClockBudget(cfg.Scheduler.WallClockBudget),
		graph.WithDurability(durabilityFromString(cfg.Scheduler.Durability)),
	)
}
