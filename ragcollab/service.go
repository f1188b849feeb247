package ragcollab

import (
	"context"
	"fmt"
	"strings"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/genmodel"
)

// Service is the default Collaborator: embed the query, retrieve
// similar chunks plus recent history, and ask the generative model for
// an answer grounded in that context. The shape (history fetch ->
// retrieval -> context build -> completion -> persist turn) mirrors
// the surveyed RAG chat path, condensed to what RetrievalQA needs.
type Service struct {
	embedder embeddings.Client
	store    KnowledgeStore
	model    *genmodel.Client
	logger   core.Logger
	topK     int
	historyN int
}

// NewService wires an embedder, a knowledge store, and a generative
// model into a Collaborator.
func NewService(embedder embeddings.Client, store KnowledgeStore, model *genmodel.Client, logger core.Logger) *Service {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Service{embedder: embedder, store: store, model: model, logger: logger, topK: 5, historyN: 6}
}

const ragSystemPrompt = "Answer the user's question using only the provided context and conversation history. " +
	"If the context is insufficient, say so plainly."

// Answer implements Collaborator.
func (s *Service) Answer(ctx context.Context, sessionID, query string) (string, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", core.NewFrameworkError("ragcollab.Answer", "embedding", err)
	}

	chunks, err := s.store.SimilarChunks(ctx, vec, s.topK)
	if err != nil {
		s.logger.Warn("ragcollab: chunk retrieval failed", map[string]interface{}{"error": err.Error()})
		chunks = nil
	}
	history, err := s.store.RecentHistory(ctx, sessionID, s.historyN)
	if err != nil {
		s.logger.Warn("ragcollab: history retrieval failed", map[string]interface{}{"error": err.Error()})
		history = nil
	}

	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("- %s\n", c.Content))
	}
	sb.WriteString("\nConversation history:\n")
	for _, h := range history {
		sb.WriteString(fmt.Sprintf("%s: %s\n", h.Role, h.Content))
	}
	sb.WriteString("\nQuestion: " + query)

	answer, err := s.model.Complete(ctx, ragSystemPrompt, sb.String(), nil)
	if err != nil {
		return "", core.NewFrameworkError("ragcollab.Answer", "model", err)
	}

	if err := s.store.AppendHistory(ctx, sessionID, HistoryTurn{Role: "user", Content: query}); err != nil {
		s.logger.Warn("ragcollab: failed to append user turn", map[string]interface{}{"error": err.Error()})
	}
	if err := s.store.AppendHistory(ctx, sessionID, HistoryTurn{Role: "assistant", Content: answer}); err != nil {
		s.logger.Warn("ragcollab: failed to append assistant turn", map[string]interface{}{"error": err.Error()})
	}
	return answer, nil
}

var _ Collaborator = (*Service)(nil)
