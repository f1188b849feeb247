// Package subagents implements the five bounded sub-agent capabilities
// (C5): RetrievalQA, DatabaseQuery, WebSearch, ShellTool, and
// ReportSynthesis. Each is total on malformed input and never panics
// (P2); the registry is a fixed, closed mapping from name to
// implementation (spec.md §4.1).
package subagents

import (
	"context"
	"fmt"
	"time"
)

// Name identifies a sub-agent in the closed registry.
type Name string

const (
	RetrievalQA     Name = "RetrievalQA"
	DatabaseQuery   Name = "DatabaseQuery"
	WebSearch       Name = "WebSearch"
	ShellTool       Name = "ShellTool"
	ReportSynthesis Name = "ReportSynthesis"
)

// Payload is the heterogeneous input mapping a sub-agent receives. The
// reserved "context" key is injected by the executor as a read-only
// view into the RunContext; sub-agents MAY ignore it.
type Payload map[string]interface{}

// Output is the heterogeneous result mapping a sub-agent returns. A
// non-empty "error" field marks failure; adjudication beyond that is
// the executor's concern, not the agent's.
type Output map[string]interface{}

// Agent is the sub-agent capability contract: execute(session_id,
// payload) -> output. Implementations MUST be total (never panic) and
// idempotent with respect to external side effects.
type Agent interface {
	Execute(ctx context.Context, sessionID string, payload Payload) Output
}

// Registry is the fixed name -> Agent mapping spec.md §4.1 requires.
type Registry map[Name]Agent

// Has reports whether name is present in the registry.
func (r Registry) Has(name string) bool {
	_, ok := r[Name(name)]
	return ok
}

// Get looks up an agent by name.
func (r Registry) Get(name string) (Agent, bool) {
	a, ok := r[Name(name)]
	return a, ok
}

// Safe wraps an Agent so a language-level panic can never escape
// (design note "exception-for-control-flow in sub-agents"): it is
// converted to an {error} output instead.
func Safe(a Agent) Agent { return safeAgent{inner: a} }

type safeAgent struct{ inner Agent }

func (s safeAgent) Execute(ctx context.Context, sessionID string, payload Payload) (out Output) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{"error": fmt.Sprintf("panic: %v", r)}
		}
	}()
	out = s.inner.Execute(ctx, sessionID, payload)
	if out == nil {
		out = Output{"error": "agent returned nil output"}
	}
	return out
}

// WithTimeout bounds an Agent's execution to d. Exceeding it yields
// {error: "timeout"} (spec.md §4.1's bounded wall-time contract)
// instead of leaving the call running past the caller's patience.
func WithTimeout(a Agent, d time.Duration) Agent {
	return timeoutAgent{inner: a, timeout: d}
}

type timeoutAgent struct {
	inner   Agent
	timeout time.Duration
}

func (t timeoutAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan Output, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Output{"error": fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- t.inner.Execute(ctx, sessionID, payload)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return Output{"error": "timeout"}
	}
}
