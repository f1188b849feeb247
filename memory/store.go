package memory

import "context"

// Store is the persistent memory store contract (spec.md §6.2):
// procedural workflows and lessons, both embedding-indexed.
// Collaborator tables (conversations, chunks, structured facts) are
// owned by the RAG collaborator and are not part of this contract.
type Store interface {
	// TopKSimilarWorkflows returns the k most similar workflows to vec
	// by cosine similarity, highest score first.
	TopKSimilarWorkflows(ctx context.Context, vec []float32, k int) ([]ScoredWorkflow, error)

	// UpsertWorkflow replaces the record by WorkflowID, or inserts if
	// absent, and increments UsageCount.
	UpsertWorkflow(ctx context.Context, wf ProceduralWorkflow) error

	// BumpWorkflowUsage increments usage_count by n for workflowID.
	BumpWorkflowUsage(ctx context.Context, workflowID string, n int) error

	// InsertLesson appends a new lesson record.
	InsertLesson(ctx context.Context, lesson Lesson) error

	// TopKSimilarLessons returns the k most similar lessons to vec,
	// optionally filtered to a single agent name (empty = unfiltered).
	TopKSimilarLessons(ctx context.Context, vec []float32, agent string, k int) ([]ScoredLesson, error)
}
