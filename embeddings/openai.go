package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gomind-labs/taskrunner/ai/providers"
	"github.com/gomind-labs/taskrunner/core"
)

// OpenAIClient implements Client against an OpenAI-compatible
// /embeddings endpoint (OpenAI itself, or any Bedrock/Azure gateway
// that speaks the same request/response shape).
type OpenAIClient struct {
	*providers.BaseClient
	apiKey  string
	baseURL string
	model   string
	dim     int
}

// NewOpenAIClient builds an embedding client. dim is the fixed vector
// dimension this deployment expects (spec's EMBEDDING_DIM); the
// provider's actual output is not resized — a mismatch is a fatal
// InvariantViolation surfaced by CheckDimension at the call site.
func NewOpenAIClient(apiKey, baseURL, model string, dim int, logger core.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIClient{
		BaseClient: providers.NewBaseClient(30*time.Second, logger),
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		dim:        dim,
	}
}

func (c *OpenAIClient) Dimensions() int { return c.dim }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.apiKey == "" {
		return nil, core.NewFrameworkError("embeddings.EmbedBatch", "embedding", core.ErrEmbeddingUnavailable)
	}
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.ExecuteWithRetry(ctx, req)
	if err != nil {
		return nil, core.NewFrameworkError("embeddings.EmbedBatch", "embedding", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embeddings: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, core.NewFrameworkError("embeddings.EmbedBatch", "embedding",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 500)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings: parse response: %w", err)
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
