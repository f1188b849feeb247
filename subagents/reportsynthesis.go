package subagents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/genmodel"
)

// ReportSynthesisAgent asks the generative model to compose a brief
// from arbitrary structured input; on model failure it falls back to a
// local deterministic flatten-to-bulletpoints formatter so it never
// propagates a model exception (spec.md §4.1). One of points, data, or
// payload is expected; if none is present the whole payload is used.
type ReportSynthesisAgent struct {
	model  *genmodel.Client
	logger core.Logger
}

func NewReportSynthesisAgent(model *genmodel.Client, logger core.Logger) *ReportSynthesisAgent {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ReportSynthesisAgent{model: model, logger: logger}
}

const reportSystemPrompt = "You are a precise report writer. Summarize the given structured data into a concise, well-formatted brief."

func (a *ReportSynthesisAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	points := payload["points"]
	if points == nil {
		points = payload["data"]
	}
	if points == nil {
		points = payload["payload"]
	}
	if points == nil {
		points = map[string]interface{}(payload)
	}

	text, err := json.Marshal(points)
	if err != nil {
		return Output{"report": flattenToBullets(points), "note": err.Error()}
	}
	if a.model == nil {
		return Output{"report": flattenToBullets(points)}
	}

	report, err := a.model.Complete(ctx, reportSystemPrompt, string(text), nil)
	if err != nil {
		a.logger.Warn("report synthesis: model failed, using offline fallback", map[string]interface{}{"error": err.Error()})
		return Output{"report": flattenToBullets(points), "note": err.Error()}
	}
	if report == "" {
		return Output{"report": flattenToBullets(points)}
	}
	return Output{"report": report}
}

// flattenToBullets is the deterministic local fallback formatter.
func flattenToBullets(points interface{}) string {
	lines := []string{"Report (offline fallback):"}
	switch v := points.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, truncate(fmt.Sprintf("%v", v[k]), 200)))
		}
	case []interface{}:
		for i, item := range v {
			lines = append(lines, fmt.Sprintf("- %d: %s", i, truncate(fmt.Sprintf("%v", item), 200)))
		}
	default:
		lines = append(lines, fmt.Sprintf("- value: %s", truncate(fmt.Sprintf("%v", points), 200)))
	}
	return strings.Join(lines, "\n")
}
