package subagents

import (
	"context"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/ragcollab"
)

// RetrievalQAAgent delegates to the RAG collaborator (C4). Required
// field: query (alias: question).
type RetrievalQAAgent struct {
	rag    ragcollab.Collaborator
	logger core.Logger
}

func NewRetrievalQAAgent(rag ragcollab.Collaborator, logger core.Logger) *RetrievalQAAgent {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &RetrievalQAAgent{rag: rag, logger: logger}
}

func (a *RetrievalQAAgent) Execute(ctx context.Context, sessionID string, payload Payload) Output {
	query := stringField(payload, "query", "question")
	if query == "" {
		return Output{"error": "RetrievalQA requires query"}
	}
	if a.rag == nil {
		return Output{"error": "no RAG collaborator configured"}
	}
	answer, err := a.rag.Answer(ctx, sessionID, query)
	if err != nil {
		return Output{"error": err.Error()}
	}
	return Output{"answer": answer}
}
