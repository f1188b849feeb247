// Package planner implements the Planner capability (C6): decompose a
// goal into an ordered Plan of (agent, input) steps via C2, retrying
// on malformed output and refining the prompt with the previous
// failed attempt, per spec.md §4.2.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/genmodel"
	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/subagents"
)

const defaultMaxAttempts = 3

const systemPrompt = "You are a task planner. Decompose the high-level goal into ordered steps.\n" +
	"Available agents: RetrievalQA, DatabaseQuery, WebSearch, ShellTool, ReportSynthesis.\n" +
	`Return strict JSON: {"steps":[{"agent":<name>,"input":{...}}]}` + "\n" +
	"Rules: Keep 3-6 steps. Use RetrievalQA for internal/indexed knowledge, WebSearch for the live web, " +
	"DatabaseQuery for SQL, ReportSynthesis for the final summary.\n"

// Planner is C6.
type Planner struct {
	model       *genmodel.Client
	registry    subagents.Registry
	logger      core.Logger
	maxAttempts int
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxAttempts overrides PLANNER_MAX_ATTEMPTS (default 3).
func WithMaxAttempts(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// New builds a Planner. model and registry are required; a nil logger
// becomes a no-op logger.
func New(model *genmodel.Client, registry subagents.Registry, logger core.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	p := &Planner{model: model, registry: registry, logger: logger, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type rawStep struct {
	Agent string          `json:"agent"`
	Input json.RawMessage `json:"input"`
}

type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

// Plan produces a Plan of length >= 1 for goal, retrying up to
// maxAttempts times on malformed or empty output before returning the
// fallback plan.
func (p *Planner) Plan(ctx context.Context, goal string) memory.Plan {
	userPrompt := fmt.Sprintf("Goal: %s\nProduce steps now.", goal)
	var lastRaw string
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		prompt := userPrompt
		if attempt > 1 {
			prompt = userPrompt + fmt.Sprintf("\nRefine based on last failed attempt: %s", lastRaw)
		}

		var data rawPlan
		raw, err := p.model.JSONCompletion(ctx, systemPrompt, prompt, &data)
		lastRaw = raw
		if err != nil {
			p.logger.Warn("planner: malformed model output, retrying", map[string]interface{}{
				"attempt": attempt, "error": err.Error(),
			})
			continue
		}

		plan := p.filter(data.Steps)
		if len(plan) > 0 {
			return plan
		}
		p.logger.Warn("planner: model returned no usable steps, retrying", map[string]interface{}{"attempt": attempt})
	}

	p.logger.Warn("planner: all attempts exhausted, using fallback plan", map[string]interface{}{"goal": goal})
	return FallbackPlan(goal)
}

// filter drops steps whose agent is empty or unknown to the registry,
// and coerces a missing/non-object input to {}.
func (p *Planner) filter(steps []rawStep) memory.Plan {
	plan := make(memory.Plan, 0, len(steps))
	for _, st := range steps {
		agent := strings.TrimSpace(st.Agent)
		if agent == "" || !p.registry.Has(agent) {
			continue
		}
		input := map[string]interface{}{}
		if len(st.Input) > 0 {
			var decoded map[string]interface{}
			if err := json.Unmarshal(st.Input, &decoded); err == nil && decoded != nil {
				input = decoded
			}
		}
		plan = append(plan, memory.PlanStep{Agent: agent, Input: input})
	}
	return plan
}

// FallbackPlan is the default plan used when planning fails entirely:
// answer from retrieval, then synthesize a report from it.
func FallbackPlan(goal string) memory.Plan {
	return memory.Plan{
		{Agent: string(subagents.RetrievalQA), Input: map[string]interface{}{"query": goal}},
		{Agent: string(subagents.ReportSynthesis), Input: map[string]interface{}{}},
	}
}
