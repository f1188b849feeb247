package learner

import (
	"encoding/json"

	"github.com/gomind-labs/taskrunner/executor"
)

// traceEvidence is a compact summary of one step's last 1-2 attempts,
// bounding reflection's prompt size to the just-written trace data
// rather than the entire run.
type traceEvidence struct {
	Agent        string                   `json:"agent"`
	FinalSuccess bool                     `json:"final_success"`
	LastAttempts []executor.StepAttempt   `json:"last_attempts"`
}

// buildEvidence serializes the last 1-2 attempts of each trace as the
// reflection prompt body (spec.md §4.7).
func buildEvidence(traces []executor.StepTrace) string {
	evidence := make([]traceEvidence, 0, len(traces))
	for _, t := range traces {
		attempts := t.Attempts
		if len(attempts) > 2 {
			attempts = attempts[len(attempts)-2:]
		}
		evidence = append(evidence, traceEvidence{
			Agent: t.AgentName, FinalSuccess: t.FinalSuccess, LastAttempts: attempts,
		})
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
