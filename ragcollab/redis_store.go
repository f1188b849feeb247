package ragcollab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/gomind-labs/taskrunner/embeddings"
)

// RedisKnowledgeStore is a minimal Redis-backed KnowledgeStore: chunks
// are indexed in a set with client-side cosine scoring (the same
// tradeoff memory.RedisStore makes, acceptable at this deployment's
// scale), and history is a capped per-session list.
type RedisKnowledgeStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisKnowledgeStore wraps an existing Redis client.
func NewRedisKnowledgeStore(client *redis.Client, keyPrefix string) *RedisKnowledgeStore {
	if keyPrefix == "" {
		keyPrefix = "taskrunner:rag:"
	}
	return &RedisKnowledgeStore{client: client, keyPrefix: keyPrefix}
}

type storedChunk struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

func (r *RedisKnowledgeStore) chunkIndexKey() string         { return r.keyPrefix + "chunk:index" }
func (r *RedisKnowledgeStore) chunkKey(id string) string      { return r.keyPrefix + "chunk:" + id }
func (r *RedisKnowledgeStore) historyKey(sessionID string) string {
	return r.keyPrefix + "history:" + sessionID
}

// IngestChunk stores a chunk and its embedding for later retrieval.
// Ingestion policy (chunking, dedup) belongs to an external indexer;
// this method is the storage primitive it would call.
func (r *RedisKnowledgeStore) IngestChunk(ctx context.Context, content string, vec []float32) error {
	id := uuid.NewString()
	data, err := json.Marshal(storedChunk{Content: content, Embedding: vec})
	if err != nil {
		return fmt.Errorf("ragcollab: marshal chunk: %w", err)
	}
	if err := r.client.Set(ctx, r.chunkKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("ragcollab: set chunk: %w", err)
	}
	return r.client.SAdd(ctx, r.chunkIndexKey(), id).Err()
}

func (r *RedisKnowledgeStore) SimilarChunks(ctx context.Context, vec []float32, k int) ([]Chunk, error) {
	ids, err := r.client.SMembers(ctx, r.chunkIndexKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("ragcollab: list chunks: %w", err)
	}
	scored := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.Get(ctx, r.chunkKey(id)).Bytes()
		if err != nil {
			continue
		}
		var sc storedChunk
		if err := json.Unmarshal(data, &sc); err != nil {
			continue
		}
		scored = append(scored, Chunk{Content: sc.Content, Score: embeddings.CosineSimilarity(vec, sc.Embedding)})
	}
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *RedisKnowledgeStore) RecentHistory(ctx context.Context, sessionID string, limit int) ([]HistoryTurn, error) {
	raw, err := r.client.LRange(ctx, r.historyKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("ragcollab: history fetch: %w", err)
	}
	turns := make([]HistoryTurn, 0, len(raw))
	for _, s := range raw {
		var t HistoryTurn
		if err := json.Unmarshal([]byte(s), &t); err == nil {
			turns = append(turns, t)
		}
	}
	return turns, nil
}

func (r *RedisKnowledgeStore) AppendHistory(ctx context.Context, sessionID string, turn HistoryTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("ragcollab: marshal history turn: %w", err)
	}
	key := r.historyKey(sessionID)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("ragcollab: append history: %w", err)
	}
	return r.client.LTrim(ctx, key, -200, -1).Err()
}

var _ KnowledgeStore = (*RedisKnowledgeStore)(nil)
