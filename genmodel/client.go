// Package genmodel adapts the teacher's multi-provider ai.AIClient into
// the Generative Model capability (C2): freeform text completions and
// strict-JSON completions, the latter used by the planner, the
// parameter proposer, and reflection.
package genmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomind-labs/taskrunner/core"
)

// Client is C2: produce freeform text or strict-JSON completions from
// a system+user prompt. Built on top of core.AIClient so any
// registered ai provider (OpenAI, Anthropic, Gemini, Bedrock, or the
// teacher's ChainClient fallback composition) can back it.
type Client struct {
	ai     core.AIClient
	logger core.Logger
	cb     core.CircuitBreaker
}

// Option configures a Client, following the teacher's
// injected-not-constructed circuit breaker convention (memory.
// WithCircuitBreaker, ai/providers.BaseClient).
type Option func(*Client)

// WithCircuitBreaker guards every generative-model call with cb.
// Not constructed internally: the caller decides the policy (e.g. a
// *resilience.CircuitBreaker, which satisfies core.CircuitBreaker).
func WithCircuitBreaker(cb core.CircuitBreaker) Option {
	return func(c *Client) { c.cb = cb }
}

// New wraps an existing core.AIClient (e.g. ai.NewChainClient(...),
// or a single provider client) as a genmodel.Client.
func New(aiClient core.AIClient, logger core.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	c := &Client{ai: aiClient, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// generate runs the underlying AIClient call through the circuit
// breaker when one is configured, otherwise directly.
func (c *Client) generate(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	if c.cb == nil {
		return c.ai.GenerateResponse(ctx, prompt, opts)
	}
	var resp *core.AIResponse
	err := c.cb.Execute(ctx, func() error {
		r, err := c.ai.GenerateResponse(ctx, prompt, opts)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// Complete produces freeform text, used by ReportSynthesis.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, opts *core.AIOptions) (string, error) {
	if opts == nil {
		opts = &core.AIOptions{}
	}
	opts.SystemPrompt = systemPrompt
	resp, err := c.generate(ctx, userPrompt, opts)
	if err != nil {
		return "", core.NewFrameworkError("genmodel.Complete", "model", err)
	}
	return resp.Content, nil
}

// JSONCompletion asks the model for a strict-JSON response and
// unmarshals it into v. A leading/trailing code fence is stripped
// first; any other surrounding prose or non-JSON output is treated as
// core.ErrMalformedModelOutput — the
// caller (planner, parameter proposer, reflection) decides whether to
// retry or fall back.
func (c *Client) JSONCompletion(ctx context.Context, systemPrompt, userPrompt string, v interface{}) (string, error) {
	opts := &core.AIOptions{SystemPrompt: systemPrompt + jsonOnlySuffix}
	resp, err := c.generate(ctx, userPrompt, opts)
	if err != nil {
		return "", core.NewFrameworkError("genmodel.JSONCompletion", "model", err)
	}
	raw := resp.Content
	clean := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return raw, core.NewFrameworkError("genmodel.JSONCompletion", "model",
			fmt.Errorf("%w: %v", core.ErrMalformedModelOutput, err))
	}
	return raw, nil
}

const jsonOnlySuffix = "\n\nRespond with strict JSON only. No prose, no markdown code fences, no explanation."

// stripCodeFence removes a leading/trailing ``` or ```json fence,
// a common model habit even when explicitly told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
