// Package reuse implements the Reuse Gate capability (C8): given a
// goal, look up similar stored workflows and short-circuit planning
// when one is close enough (spec.md §4.3).
package reuse

import (
	"context"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/subagents"
)

const (
	defaultTopK      = 5
	defaultThreshold = 0.90
)

// Gate is C8.
type Gate struct {
	embedder  embeddings.Client
	store     memory.Store
	registry  subagents.Registry
	logger    core.Logger
	topK      int
	threshold float64
}

// Option configures a Gate.
type Option func(*Gate)

// WithTopK overrides PROCEDURAL_TOP_K (default 5).
func WithTopK(k int) Option {
	return func(g *Gate) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithThreshold overrides PROCEDURAL_REUSE_THRESHOLD (default 0.90).
func WithThreshold(t float64) Option {
	return func(g *Gate) {
		if t > 0 {
			g.threshold = t
		}
	}
}

// New builds a Gate. embedder/store may be nil, in which case Lookup
// always reports no reuse (procedural memory disabled).
func New(embedder embeddings.Client, store memory.Store, registry subagents.Registry, logger core.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	g := &Gate{embedder: embedder, store: store, registry: registry, logger: logger, topK: defaultTopK, threshold: defaultThreshold}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result is the outcome of a reuse lookup.
type Result struct {
	Reused     bool
	WorkflowID string
	Plan       memory.Plan
}

// Lookup implements spec.md §4.3: embed the goal, find the best
// matching stored workflow, and rehydrate its plan if it clears the
// similarity threshold and survives agent-registry filtering. Any
// failure along the way (embedding, store, empty plan after filtering)
// soft-fails to Result{Reused: false}.
func (g *Gate) Lookup(ctx context.Context, goal string) Result {
	if g.embedder == nil || g.store == nil {
		return Result{}
	}

	vec, err := g.embedder.Embed(ctx, goal)
	if err != nil {
		g.logger.Debug("reuse: embedding unavailable, skipping reuse", map[string]interface{}{"error": err.Error()})
		return Result{}
	}

	scored, err := g.store.TopKSimilarWorkflows(ctx, vec, g.topK)
	if err != nil {
		g.logger.Debug("reuse: workflow lookup unavailable, skipping reuse", map[string]interface{}{"error": err.Error()})
		return Result{}
	}
	if len(scored) == 0 {
		return Result{}
	}

	best := scored[0]
	for _, sw := range scored[1:] {
		if sw.Score > best.Score {
			best = sw
		}
	}
	if best.Score < g.threshold {
		return Result{}
	}

	plan := make(memory.Plan, 0, len(best.Workflow.Plan))
	for _, step := range best.Workflow.Plan {
		if g.registry.Has(step.Agent) {
			plan = append(plan, step)
		}
	}
	if len(plan) == 0 {
		g.logger.Debug("reuse: matched workflow has no surviving steps, skipping reuse", map[string]interface{}{
			"workflow_id": best.Workflow.WorkflowID,
		})
		return Result{}
	}

	return Result{Reused: true, WorkflowID: best.Workflow.WorkflowID, Plan: plan}
}
