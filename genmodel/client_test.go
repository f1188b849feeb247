package genmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-labs/taskrunner/core"
)

type stubAIClient struct {
	content string
	err     error
}

func (s *stubAIClient) GenerateResponse(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.AIResponse{Content: s.content}, nil
}

func TestJSONCompletion_StripsCodeFence(t *testing.T) {
	stub := &stubAIClient{content: "```json\n{\"steps\":[{\"agent\":\"RetrievalQA\",\"input\":{}}]}\n```"}
	c := New(stub, nil)

	var out struct {
		Steps []struct {
			Agent string                 `json:"agent"`
			Input map[string]interface{} `json:"input"`
		} `json:"steps"`
	}
	_, err := c.JSONCompletion(context.Background(), "sys", "user", &out)
	require.NoError(t, err)
	assert.Len(t, out.Steps, 1)
	assert.Equal(t, "RetrievalQA", out.Steps[0].Agent)
}

func TestJSONCompletion_MalformedIsReported(t *testing.T) {
	stub := &stubAIClient{content: "not json at all"}
	c := New(stub, nil)

	var out map[string]interface{}
	_, err := c.JSONCompletion(context.Background(), "sys", "user", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedModelOutput)
}

func TestComplete_ReturnsModelContent(t *testing.T) {
	stub := &stubAIClient{content: "hello"}
	c := New(stub, nil)
	out, err := c.Complete(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

// fakeCircuitBreaker is a minimal core.CircuitBreaker stub that either
// runs fn or rejects, recording how many times it was invoked.
type fakeCircuitBreaker struct {
	calls int
	open  bool
}

func (f *fakeCircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	f.calls++
	if f.open {
		return core.ErrCircuitBreakerOpen
	}
	return fn()
}

func (f *fakeCircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	return f.Execute(ctx, fn)
}
func (f *fakeCircuitBreaker) GetState() string                  { return "closed" }
func (f *fakeCircuitBreaker) GetMetrics() map[string]interface{} { return nil }
func (f *fakeCircuitBreaker) Reset()                             {}
func (f *fakeCircuitBreaker) CanExecute() bool                   { return !f.open }

func TestComplete_RoutesThroughCircuitBreaker(t *testing.T) {
	stub := &stubAIClient{content: "hello"}
	cb := &fakeCircuitBreaker{}
	c := New(stub, nil, WithCircuitBreaker(cb))

	out, err := c.Complete(context.Background(), "sys", "user", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, cb.calls)
}

func TestComplete_OpenCircuitBreakerShortCircuits(t *testing.T) {
	stub := &stubAIClient{content: "hello"}
	cb := &fakeCircuitBreaker{open: true}
	c := New(stub, nil, WithCircuitBreaker(cb))

	_, err := c.Complete(context.Background(), "sys", "user", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
}
