package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/executor"
	"github.com/gomind-labs/taskrunner/learner"
	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/planner"
	"github.com/gomind-labs/taskrunner/ragcollab"
	"github.com/gomind-labs/taskrunner/reuse"
	"github.com/gomind-labs/taskrunner/subagents"
)

// Orchestrator is C10: composes C8 -> (C6 or reuse) -> C7 per step ->
// C9, writing run-directory artifacts throughout (spec.md §4.5).
type Orchestrator struct {
	cfg      Config
	registry subagents.Registry
	gate     *reuse.Gate
	planner  *planner.Planner
	executor *executor.Executor
	learner  *learner.Learner
	rag      ragcollab.Collaborator
	embedder embeddings.Client
	store    memory.Store
	logger   core.Logger
}

// New wires the full orchestrator. Any of embedder/store/rag may be
// nil: procedural memory (reuse/learn/reflect) and the RAG fallback
// path soft-disable accordingly.
func New(
	cfg Config,
	registry subagents.Registry,
	pl *planner.Planner,
	ex *executor.Executor,
	lr *learner.Learner,
	gate *reuse.Gate,
	rag ragcollab.Collaborator,
	embedder embeddings.Client,
	store memory.Store,
	logger core.Logger,
) *Orchestrator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Orchestrator{
		cfg: cfg, registry: registry, gate: gate, planner: pl, executor: ex, learner: lr,
		rag: rag, embedder: embedder, store: store, logger: logger,
	}
}

// Handle runs one request to completion per spec.md §4.5 and returns
// the serialized RunContext (or a fallback RAG answer / partial
// result on deadline expiry).
func (o *Orchestrator) Handle(ctx context.Context, sessionID, goal string, now time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestDeadline)
	defer cancel()

	dir, err := runDir(o.cfg.RunsBaseDir, sessionID, now)
	if err != nil {
		return "", fmt.Errorf("runner: could not create run directory: %w", err)
	}

	writeArtifact(dir, "input", map[string]interface{}{"session_id": sessionID, "goal": goal}, o.logger)

	o.bestEffort("pre-retrieve lessons", func() error {
		return o.preRetrieveLessons(ctx, dir, goal)
	})

	plan, reused, workflowID := o.resolvePlan(ctx, goal)
	if len(plan) == 0 {
		return o.fallbackToRAG(ctx, dir, sessionID, goal)
	}

	writeArtifact(dir, "plan", map[string]interface{}{"steps": plan}, o.logger)

	runContext := map[string]interface{}{}
	orderedKeys := make([]string, 0, len(plan))
	var traces []executor.StepTrace

	for i, step := range plan {
		select {
		case <-ctx.Done():
			return o.finishPartial(dir, runContext), nil
		default:
		}

		stepKey := fmt.Sprintf("step_%d_%s", i+1, step.Agent)
		runCtx := executor.NewMapRunContext(append([]string(nil), orderedKeys...), runContext)
		out, trace := o.executor.Execute(ctx, sessionID, goal, step, runCtx)

		runContext[stepKey] = out
		orderedKeys = append(orderedKeys, stepKey)
		traces = append(traces, trace)
		writeArtifact(dir, stepKey, trace, o.logger)
	}

	writeArtifact(dir, "context", runContext, o.logger)

	if ctx.Err() != nil {
		return o.finishPartial(dir, runContext), nil
	}

	if !reused && o.cfg.ProceduralEnabled {
		o.bestEffort("learn", func() error {
			id := o.learner.Learn(ctx, goal, plan, orderedKeys)
			if id == "" {
				return nil
			}
			writeArtifact(dir, "learned", map[string]interface{}{"workflow_id": id}, o.logger)
			return nil
		})
	} else if reused && workflowID != "" {
		o.bestEffort("bump workflow usage", func() error {
			if err := o.store.BumpWorkflowUsage(ctx, workflowID, 1); err != nil {
				return err
			}
			writeArtifact(dir, "reused", map[string]interface{}{"workflow_id": workflowID}, o.logger)
			return nil
		})
	}

	o.bestEffort("reflect", func() error {
		if o.learner == nil {
			return nil
		}
		reflection := o.learner.Reflect(ctx, goal, traces)
		writeArtifact(dir, "reflection", reflection, o.logger)
		return nil
	})

	report := serialize(runContext)
	writeReport(dir, "", runContext, o.logger)
	return report, nil
}

// resolvePlan runs C8 first (when procedural memory is enabled); on
// no reuse, falls back to C6.
func (o *Orchestrator) resolvePlan(ctx context.Context, goal string) (memory.Plan, bool, string) {
	if o.cfg.ProceduralEnabled && o.gate != nil {
		result := o.gate.Lookup(ctx, goal)
		if result.Reused {
			return result.Plan, true, result.WorkflowID
		}
	}
	return o.planner.Plan(ctx, goal), false, ""
}

func (o *Orchestrator) preRetrieveLessons(ctx context.Context, dir, goal string) error {
	if o.embedder == nil || o.store == nil {
		return nil
	}
	vec, err := o.embedder.Embed(ctx, goal)
	if err != nil {
		return err
	}
	lessons, err := o.store.TopKSimilarLessons(ctx, vec, "", 5)
	if err != nil {
		return err
	}
	writeArtifact(dir, "pre_lessons", lessons, o.logger)
	return nil
}

func (o *Orchestrator) fallbackToRAG(ctx context.Context, dir, sessionID, goal string) (string, error) {
	if o.rag == nil {
		writeArtifact(dir, "result", map[string]interface{}{"fallback_answer": ""}, o.logger)
		return "", nil
	}
	answer, err := o.rag.Answer(ctx, sessionID, goal)
	if err != nil {
		return "", fmt.Errorf("runner: rag fallback failed: %w", err)
	}
	writeArtifact(dir, "result", map[string]interface{}{"fallback_answer": answer}, o.logger)
	return answer, nil
}

func (o *Orchestrator) finishPartial(dir string, runContext map[string]interface{}) string {
	writeReport(dir, "(partial: deadline exceeded)", runContext, o.logger)
	return "(partial: deadline exceeded)\n" + serialize(runContext)
}

func (o *Orchestrator) bestEffort(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("runner: best-effort step panicked", map[string]interface{}{"step": step, "panic": fmt.Sprintf("%v", r)})
		}
	}()
	if err := fn(); err != nil {
		o.logger.Warn("runner: best-effort step failed", map[string]interface{}{"step": step, "error": err.Error()})
	}
}

func serialize(v interface{}) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
