// Package embeddings defines the Embedding Provider capability (C1):
// mapping text to a fixed-dimension float vector. Concrete providers
// are external collaborators; this package only fixes the contract
// and a couple of deployment-agnostic helpers (cosine similarity,
// dimension checks) shared by the reuse gate and learner.
package embeddings

import (
	"context"
	"errors"
	"math"

	"github.com/gomind-labs/taskrunner/core"
)

// Client embeds text into fixed-dimension vectors. Implementations
// MUST return vectors of exactly Dimensions() length or an error —
// never a short/zero vector standing in for failure.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

var ErrDimensionMismatch = errors.New("embedding: vector length does not match configured dimension")

// CosineSimilarity computes cosine similarity between two vectors of
// equal length. Returns 0 for mismatched or zero-magnitude vectors
// rather than erroring — callers treat that as "not similar".
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// CheckDimension returns a core.FrameworkError wrapping ErrDimensionMismatch
// when vec does not have exactly dim elements. Used at every
// persistence boundary to enforce P9 (embedding dimension invariant).
func CheckDimension(vec []float32, dim int) error {
	if len(vec) != dim {
		return core.NewFrameworkError("embeddings.CheckDimension", "embedding", ErrDimensionMismatch)
	}
	return nil
}
