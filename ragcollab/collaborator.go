// Package ragcollab implements the RAG Collaborator (C4): answering a
// query using retrieval over stored chunks/facts and recent
// conversation history. spec.md §1 explicitly scopes the generic RAG
// chat path (ingest, history truncation, prompt assembly) out of this
// repo's core as an external collaborator; this package is the thin,
// concrete stand-in that subagents.RetrievalQA calls, kept deliberately
// small relative to the planner/executor/learner core.
package ragcollab

import "context"

// Collaborator answers a query for a session. It is the entire
// contract the core depends on (spec.md §2 C4); everything else
// (ingestion, extraction, chunking policy) is this package's own
// concern.
type Collaborator interface {
	Answer(ctx context.Context, sessionID, query string) (string, error)
}

// Chunk is a retrieved document fragment.
type Chunk struct {
	Content string
	Score   float64
}

// HistoryTurn is one prior (role, content) message in a session.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// KnowledgeStore is the retrieval surface this collaborator queries.
// Scoped separately from memory.Store per spec.md §6.2: conversations,
// documents_chunks, and structured_memory are collaborator tables
// queried by C4 only.
type KnowledgeStore interface {
	SimilarChunks(ctx context.Context, vec []float32, k int) ([]Chunk, error)
	RecentHistory(ctx context.Context, sessionID string, limit int) ([]HistoryTurn, error)
	AppendHistory(ctx context.Context, sessionID string, turn HistoryTurn) error
}
