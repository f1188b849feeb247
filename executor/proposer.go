package executor

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/gomind-labs/taskrunner/memory"
	"github.com/gomind-labs/taskrunner/subagents"
)

const paramProposerSystemPrompt = "You are an autonomous executor parameterizer.\n" +
	"Given the high-level goal and partial context, propose the next action input strictly as JSON.\n" +
	"Do NOT include any explanations, only return the JSON object matching the schema hints.\n"

// schemaHints mirrors spec.md §6.1's authoritative input schemas, used
// to steer the parameter proposer.
var schemaHints = map[string]string{
	string(subagents.RetrievalQA):     `{"query": "string (derived from goal if missing)"}`,
	string(subagents.DatabaseQuery):   `{"request": "string natural-language data request"}`,
	string(subagents.WebSearch):       `{"query": "string", "sources": ["general-web","scholarly"]}`,
	string(subagents.ShellTool):       `{"pattern": "string", "path": "string (default .)"}`,
	string(subagents.ReportSynthesis): `{"points": "object summarizing prior context"}`,
}

// requiresProposal reports whether payload is missing the fields the
// agent needs to run at all, per spec.md §4.4 step 1.
func (e *Executor) requiresProposal(agent string, payload map[string]interface{}) bool {
	switch subagents.Name(agent) {
	case subagents.RetrievalQA:
		return !nonEmptyString(payload["query"]) && !nonEmptyString(payload["question"])
	case subagents.DatabaseQuery:
		return !nonEmptyString(payload["request"]) && !nonEmptyString(payload["query"])
	case subagents.WebSearch:
		return !nonEmptyString(payload["query"])
	case subagents.ReportSynthesis:
		_, hasPoints := payload["points"]
		_, hasData := payload["data"]
		_, hasPayload := payload["payload"]
		return !hasPoints && !hasData && !hasPayload
	default:
		return false
	}
}

func nonEmptyString(v interface{}) bool {
	s, ok := v.(string)
	return ok && s != ""
}

type lessonSeed struct {
	successParams []map[string]interface{}
	avoidPatterns []string
}

// lookupLessons retrieves up to 5 lessons for agent by similarity to
// goal; embedding/store failures soft-fail to an empty seed.
func (e *Executor) lookupLessons(ctx context.Context, agent, goal string) lessonSeed {
	if e.embedder == nil || e.store == nil {
		return lessonSeed{}
	}
	vec, err := e.embedder.Embed(ctx, goal)
	if err != nil {
		e.logger.Debug("executor: lesson embedding unavailable", map[string]interface{}{"error": err.Error()})
		return lessonSeed{}
	}
	scored, err := e.store.TopKSimilarLessons(ctx, vec, agent, 5)
	if err != nil {
		e.logger.Debug("executor: lesson lookup unavailable", map[string]interface{}{"error": err.Error()})
		return lessonSeed{}
	}
	seed := lessonSeed{}
	for _, sl := range scored {
		switch sl.Lesson.Status {
		case memory.LessonSuccess:
			if len(sl.Lesson.WorkingParams) > 0 {
				seed.successParams = append(seed.successParams, sl.Lesson.WorkingParams)
			}
		case memory.LessonFail:
			if sl.Lesson.FixSummary != "" {
				seed.avoidPatterns = append(seed.avoidPatterns, sl.Lesson.FixSummary)
			}
		}
		if len(seed.successParams) >= 3 && len(seed.avoidPatterns) >= 3 {
			break
		}
	}
	seed.successParams = capSlice(seed.successParams, 3)
	seed.avoidPatterns = capSliceStr(seed.avoidPatterns, 3)
	return seed
}

func capSlice(s []map[string]interface{}, n int) []map[string]interface{} {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capSliceStr(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// proposeParams implements spec.md §4.4 step 1: ask C2, seeded with
// lessons, falling back to a deterministic template when C2 fails,
// then layering the first success snippet beneath the C2 result (C2
// wins on overlapping keys).
func (e *Executor) proposeParams(ctx context.Context, agent, goal string, runCtx RunContextView, prior map[string]interface{}, lessons lessonSeed) map[string]interface{} {
	var contextKeys []string
	if runCtx != nil {
		contextKeys = lastN(runCtx.Keys(), 8)
	}

	userPayload := map[string]interface{}{
		"agent":          agent,
		"goal":           goal,
		"schema_hint":    schemaHints[agent],
		"last_attempt":   prior,
		"context_keys":   contextKeys,
		"success_params": lessons.successParams,
		"avoid_patterns": lessons.avoidPatterns,
	}
	userRaw, err := json.Marshal(userPayload)
	if err != nil {
		return e.deterministicFallback(agent, goal, runCtx)
	}

	result := map[string]interface{}{}
	if e.model != nil {
		if _, err := e.model.JSONCompletion(ctx, paramProposerSystemPrompt, string(userRaw), &result); err != nil {
			e.logger.Debug("executor: parameter proposer failed, using fallback", map[string]interface{}{
				"agent": agent, "error": err.Error(),
			})
			result = map[string]interface{}{}
		}
	}

	if len(result) == 0 {
		result = e.deterministicFallback(agent, goal, runCtx)
	}

	if len(lessons.successParams) > 0 {
		merged := map[string]interface{}{}
		for k, v := range lessons.successParams[0] {
			merged[k] = v
		}
		for k, v := range result {
			merged[k] = v
		}
		result = merged
	}
	return result
}

// deterministicFallback is the built-in per-agent template used when
// C2 is unavailable or returns nothing usable.
func (e *Executor) deterministicFallback(agent, goal string, runCtx RunContextView) map[string]interface{} {
	switch subagents.Name(agent) {
	case subagents.RetrievalQA, subagents.WebSearch:
		return map[string]interface{}{"query": goal}
	case subagents.DatabaseQuery:
		return map[string]interface{}{"request": goal}
	case subagents.ReportSynthesis:
		var last3 []string
		if runCtx != nil {
			last3 = lastN(runCtx.Keys(), 3)
		}
		return map[string]interface{}{"points": map[string]interface{}{"title": goal, "context": last3}}
	default:
		return map[string]interface{}{}
	}
}

// isSuccessful applies spec.md §4.4 step 3's per-agent adjudication.
func (e *Executor) isSuccessful(agent string, out subagents.Output) bool {
	if out == nil {
		return false
	}
	if errVal, ok := out["error"]; ok && nonEmptyValue(errVal) {
		return false
	}
	switch subagents.Name(agent) {
	case subagents.RetrievalQA:
		return nonEmptyString(out["answer"])
	case subagents.ReportSynthesis:
		return nonEmptyString(out["report"])
	case subagents.DatabaseQuery:
		_, hasHeaders := out["headers"]
		_, hasRows := out["rows"]
		return hasHeaders || hasRows
	case subagents.ShellTool:
		if exitCode, ok := out["exit_code"]; ok {
			if n, ok := asInt(exitCode); ok && n == 0 {
				return true
			}
		}
		return nonEmptyString(out["output"])
	case subagents.WebSearch:
		scholarly, ok := out["scholarly"].(map[string]interface{})
		if !ok {
			return false
		}
		entries, ok := scholarly["entries"].([]interface{})
		if !ok {
			return false
		}
		return len(entries) >= e.scholarlyMin
	default:
		return true
	}
}

func nonEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func (e *Executor) persistLesson(ctx context.Context, goal, agent string, status memory.LessonStatus, errSnippet string, params map[string]interface{}) {
	if e.embedder == nil || e.store == nil {
		return
	}
	vec, err := e.embedder.Embed(ctx, goal)
	if err != nil {
		e.logger.Debug("executor: lesson embedding unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	lesson := memory.Lesson{
		LessonID:         uuid.NewString(),
		TriggerEmbedding: vec, GoalText: goal, AgentName: agent,
		Status: status, ErrorSnippet: errSnippet, WorkingParams: params,
	}
	if err := e.store.InsertLesson(ctx, lesson); err != nil {
		e.logger.Debug("executor: lesson persistence unavailable", map[string]interface{}{"error": err.Error()})
	}
}
