// Package learner implements the Learner capability (C9): persist a
// completed run's executed plan as reusable procedural memory, and
// distill reflective lessons from its step traces (spec.md §4.6–4.7).
package learner

import (
	"context"

	"github.com/google/uuid"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/executor"
	"github.com/gomind-labs/taskrunner/memory"
)

// Learner is C9.
type Learner struct {
	embedder embeddings.Client
	store    memory.Store
	model    genmodelClient
	logger   core.Logger
}

// genmodelClient is the narrow slice of genmodel.Client reflection
// needs, kept as an interface so tests can stub it without a real AI
// client.
type genmodelClient interface {
	JSONCompletion(ctx context.Context, systemPrompt, userPrompt string, v interface{}) (string, error)
}

// New builds a Learner. Any dependency may be nil: Learn/Reflect then
// no-op rather than erroring, matching spec.md's "best-effort, never
// affects the returned result" framing for this whole component.
func New(embedder embeddings.Client, store memory.Store, model genmodelClient, logger core.Logger) *Learner {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Learner{embedder: embedder, store: store, model: model, logger: logger}
}

// Learn persists plan as a fresh ProceduralWorkflow keyed by the
// embedding of goal. Embedding failure aborts silently, returning "".
func (l *Learner) Learn(ctx context.Context, goal string, plan memory.Plan, resultKeys []string) string {
	if l.embedder == nil || l.store == nil {
		return ""
	}
	vec, err := l.embedder.Embed(ctx, goal)
	if err != nil {
		l.logger.Debug("learner: embedding unavailable, skipping learn", map[string]interface{}{"error": err.Error()})
		return ""
	}
	workflowID := uuid.NewString()
	wf := memory.ProceduralWorkflow{
		WorkflowID:       workflowID,
		TriggerEmbedding: vec,
		TriggerPattern:   goal,
		Plan:             plan,
		ResultKeys:       resultKeys,
	}
	if err := l.store.UpsertWorkflow(ctx, wf); err != nil {
		l.logger.Debug("learner: workflow persistence unavailable", map[string]interface{}{"error": err.Error()})
		return ""
	}
	return workflowID
}

// Reflection is what C2 must return for Reflect, also persisted
// verbatim as the run's reflection.json artifact.
type Reflection struct {
	FailPatterns []struct {
		Agent          string                 `json:"agent"`
		Pattern        string                 `json:"pattern"`
		RecommendedFix string                 `json:"recommended_fix"`
		ExampleInput   map[string]interface{} `json:"example_input"`
	} `json:"fail_patterns"`
	SuccessSnippets []struct {
		Agent         string                 `json:"agent"`
		WorkingParams map[string]interface{} `json:"working_params"`
	} `json:"success_snippets"`
}

const reflectionSystemPrompt = "You review an agent run's step traces and extract reusable lessons.\n" +
	"Return strict JSON: {\"fail_patterns\":[{agent,pattern,recommended_fix,example_input}]," +
	"\"success_snippets\":[{agent,working_params}]}\n" +
	"Only include patterns clearly supported by the evidence."

const maxErrorSnippetLen = 500

// Reflect composes evidence from the last 1-2 attempts of each trace,
// asks C2 for fail patterns and success snippets, persists each as a
// Lesson, and returns the parsed Reflection for the caller to persist
// as an artifact. Entirely best-effort and never returns an error: a
// model failure returns a zero Reflection, and an embedding failure
// returns the parsed Reflection without persisting any lesson.
func (l *Learner) Reflect(ctx context.Context, goal string, traces []executor.StepTrace) Reflection {
	if l.model == nil || l.embedder == nil || l.store == nil {
		return Reflection{}
	}
	evidence := buildEvidence(traces)

	var parsed Reflection
	if _, err := l.model.JSONCompletion(ctx, reflectionSystemPrompt, evidence, &parsed); err != nil {
		l.logger.Debug("learner: reflection model call failed", map[string]interface{}{"error": err.Error()})
		return Reflection{}
	}

	vec, err := l.embedder.Embed(ctx, goal)
	if err != nil {
		l.logger.Debug("learner: reflection embedding unavailable", map[string]interface{}{"error": err.Error()})
		return parsed
	}

	for _, snippet := range parsed.SuccessSnippets {
		l.insertLesson(ctx, memory.Lesson{
			LessonID: uuid.NewString(), TriggerEmbedding: vec, GoalText: goal,
			AgentName: snippet.Agent, Status: memory.LessonSuccess, WorkingParams: snippet.WorkingParams,
		})
	}
	for _, fp := range parsed.FailPatterns {
		l.insertLesson(ctx, memory.Lesson{
			LessonID: uuid.NewString(), TriggerEmbedding: vec, GoalText: goal,
			AgentName: fp.Agent, Status: memory.LessonFail,
			ErrorSnippet: truncate(fp.Pattern, maxErrorSnippetLen),
			FixSummary:   fp.RecommendedFix, WorkingParams: fp.ExampleInput,
		})
	}
	return parsed
}

func (l *Learner) insertLesson(ctx context.Context, lesson memory.Lesson) {
	if err := l.store.InsertLesson(ctx, lesson); err != nil {
		l.logger.Debug("learner: reflection lesson persistence failed", map[string]interface{}{"error": err.Error()})
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
