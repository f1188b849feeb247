// Package executor implements the Agent Executor capability (C7):
// run one plan step with parameter proposal, success adjudication,
// retries, and tracing (spec.md §4.4).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/genmodel"
	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/subagents"
	"github.com/gomind-labs/taskrunner/telemetry"
)

const (
	defaultScholarlyMin = 5
	previewLimit        = 4096
)

// StepAttempt is one realized attempt at a step, excluding the
// transient "context" key from its logged input.
type StepAttempt struct {
	Attempt       int                    `json:"attempt"`
	Input         map[string]interface{} `json:"input"`
	Success       bool                   `json:"success"`
	ElapsedSec    float64                `json:"elapsed_sec"`
	OutputPreview string                 `json:"output_preview"`
}

// StepTrace is the persistent per-step artifact.
type StepTrace struct {
	AgentName    string        `json:"agent"`
	Attempts     []StepAttempt `json:"attempts"`
	FinalSuccess bool          `json:"final_success"`
}

// RunContextView is a read-only view of the RunContext so far, passed
// to sub-agents under the reserved "context" key.
type RunContextView interface {
	Keys() []string
	Get(key string) (interface{}, bool)
}

// MapRunContext is the simplest RunContextView: an ordered snapshot.
type MapRunContext struct {
	keys   []string
	values map[string]interface{}
}

func NewMapRunContext(keys []string, values map[string]interface{}) MapRunContext {
	return MapRunContext{keys: keys, values: values}
}

func (m MapRunContext) Keys() []string { return m.keys }
func (m MapRunContext) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Executor is C7.
type Executor struct {
	model       *genmodel.Client
	registry    subagents.Registry
	embedder    embeddings.Client
	store       memory.Store
	logger      core.Logger
	maxAttempts int
	scholarlyMin int
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts overrides the per-step retry budget (default 3;
// cmd/taskrunner sets it to max(2, PLANNER_MAX_ATTEMPTS)).
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithScholarlyMin overrides WebSearch's scholarly-entries success
// threshold (default 5).
func WithScholarlyMin(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.scholarlyMin = n
		}
	}
}

// New builds an Executor. embedder/store may be nil (lesson seeding
// and persistence soft-fail when absent).
func New(model *genmodel.Client, registry subagents.Registry, embedder embeddings.Client, store memory.Store, logger core.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	e := &Executor{
		model: model, registry: registry, embedder: embedder, store: store, logger: logger,
		maxAttempts: 3, scholarlyMin: defaultScholarlyMin,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs step to completion (success or attempts exhausted) and
// returns the final sub-agent output plus the full StepTrace.
func (e *Executor) Execute(ctx context.Context, sessionID, goal string, step memory.PlanStep, runCtx RunContextView) (subagents.Output, StepTrace) {
	trace := StepTrace{AgentName: step.Agent}

	agent, ok := e.registry.Get(step.Agent)
	if !ok {
		out := subagents.Output{"error": fmt.Sprintf("unknown agent: %s", step.Agent)}
		trace.Attempts = append(trace.Attempts, StepAttempt{Attempt: 1, Input: map[string]interface{}{}, Success: false, OutputPreview: preview(out)})
		return out, trace
	}

	payload := cloneInput(step.Input)
	lessons := e.lookupLessons(ctx, step.Agent, goal)

	var prior map[string]interface{}
	var finalOut subagents.Output = subagents.Output{"error": "no_output"}
	var lastInput map[string]interface{}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if e.requiresProposal(step.Agent, payload) {
			proposed := e.proposeParams(ctx, step.Agent, goal, runCtx, prior, lessons)
			for k, v := range proposed {
				if k == "context" {
					continue
				}
				payload[k] = v
			}
		}

		execPayload := subagents.Payload{}
		for k, v := range payload {
			execPayload[k] = v
		}
		if runCtx != nil {
			execPayload["context"] = contextSnapshot(runCtx)
		}

		start := time.Now()
		out := agent.Execute(ctx, sessionID, execPayload)
		elapsed := time.Since(start).Seconds()

		success := e.isSuccessful(step.Agent, out)
		inputWithoutContext := cloneInput(payload)
		lastInput = inputWithoutContext

		telemetry.Counter("executor.step.attempt", "agent", step.Agent)
		telemetry.Histogram("executor.step.elapsed_ms", elapsed*1000, "agent", step.Agent)

		trace.Attempts = append(trace.Attempts, StepAttempt{
			Attempt: attempt, Input: inputWithoutContext, Success: success,
			ElapsedSec: elapsed, OutputPreview: preview(out),
		})

		if success {
			finalOut = out
			e.persistLesson(ctx, goal, step.Agent, memory.LessonSuccess, "", inputWithoutContext)
			telemetry.RecordSuccess("executor.step", "agent", step.Agent)
			break
		}

		finalOut = out
		prior = map[string]interface{}{"input": inputWithoutContext, "output": preview(out)}

		if attempt < e.maxAttempts {
			sleepDuration := time.Duration(min(2.0, 0.5*float64(attempt)) * float64(time.Second))
			select {
			case <-time.After(sleepDuration):
			case <-ctx.Done():
				trace.FinalSuccess = false
				return finalOut, trace
			}
		}
	}

	trace.FinalSuccess = e.isSuccessful(step.Agent, finalOut)
	if !trace.FinalSuccess {
		telemetry.RecordError("executor.step", "exhausted", "agent", step.Agent)
		e.persistLesson(ctx, goal, step.Agent, memory.LessonFail, truncate(preview(finalOut), 500), lastInput)
	}
	return finalOut, trace
}

func contextSnapshot(runCtx RunContextView) map[string]interface{} {
	keys := runCtx.Keys()
	snapshot := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		if v, ok := runCtx.Get(k); ok {
			snapshot[k] = v
		}
	}
	return snapshot
}

func lastN(keys []string, n int) []string {
	if len(keys) <= n {
		return keys
	}
	return keys[len(keys)-n:]
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func cloneInput(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func preview(out subagents.Output) string {
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return truncate(string(raw), previewLimit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...<truncated>"
}
