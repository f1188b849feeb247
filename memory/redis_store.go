package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/gomind-labs/taskrunner/core"
	"github.com/gomind-labs/taskrunner/embeddings"
	"github.com/gomind-labs/taskrunner/resilience"
)

// RedisStoreOption configures a RedisStore, following the teacher's
// functional-option pattern for Redis-backed stores
// (orchestration.RedisExecutionDebugStoreOption).
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	redisURL       string
	redisDB        int
	logger         core.Logger
	circuitBreaker core.CircuitBreaker
	keyPrefix      string
}

func WithRedisURL(url string) RedisStoreOption {
	return func(c *redisStoreConfig) { c.redisURL = url }
}

func WithRedisDB(db int) RedisStoreOption {
	return func(c *redisStoreConfig) { c.redisDB = db }
}

func WithLogger(logger core.Logger) RedisStoreOption {
	return func(c *redisStoreConfig) { c.logger = logger }
}

// WithCircuitBreaker injects a circuit breaker around Redis calls.
// Not constructed internally — matches the teacher's
// "circuit breaker is injected by application, not created internally" rule.
func WithCircuitBreaker(cb core.CircuitBreaker) RedisStoreOption {
	return func(c *redisStoreConfig) { c.circuitBreaker = cb }
}

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) { c.keyPrefix = prefix }
}

// RedisStore is the Redis-backed Store implementation. Vector
// similarity is computed client-side over every stored record —
// go-redis v8 has no native vector index — which is acceptable at the
// scale (thousands, not millions, of workflows/lessons per
// deployment) this spec targets; a future store could swap in a
// vector-capable backend behind the same Store interface.
type RedisStore struct {
	client    *redis.Client
	logger    core.Logger
	cb        core.CircuitBreaker
	keyPrefix string

	failureMu    sync.Mutex
	failureCount int
	lastFailure  time.Time
}

const (
	layer1MaxRetries     = 3
	layer1InitialBackoff = 100 * time.Millisecond
	layer1MaxBackoff     = 2 * time.Second
	layer1FailureWindow  = 30 * time.Second
	layer1MaxFailures    = 5
)

// NewRedisStore connects to Redis and returns a ready Store.
func NewRedisStore(opts ...RedisStoreOption) (*RedisStore, error) {
	cfg := &redisStoreConfig{
		redisURL:  firstNonEmptyEnv("TASKRUNNER_REDIS_URL", "REDIS_URL", "redis://localhost:6379"),
		redisDB:   core.RedisDBReserved9,
		logger:    &core.NoOpLogger{},
		keyPrefix: "taskrunner:memory:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	redisOpt, err := redis.ParseURL(cfg.redisURL)
	if err != nil {
		redisOpt = &redis.Options{Addr: cfg.redisURL}
	}
	redisOpt.DB = cfg.redisDB

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("memory: redis connection failed at %s (DB %d): %w", cfg.redisURL, cfg.redisDB, err)
	}

	return &RedisStore{
		client:    client,
		logger:    cfg.logger,
		cb:        cfg.circuitBreaker,
		keyPrefix: cfg.keyPrefix,
	}, nil
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys[:len(keys)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return keys[len(keys)-1]
}

func (s *RedisStore) wfKey(id string) string     { return s.keyPrefix + "workflow:" + id }
func (s *RedisStore) wfIndexKey() string         { return s.keyPrefix + "workflow:index" }
func (s *RedisStore) lessonKey(id string) string { return s.keyPrefix + "lesson:" + id }
func (s *RedisStore) lessonIndexKey() string     { return s.keyPrefix + "lesson:index" }

func (s *RedisStore) execute(ctx context.Context, op func() error) error {
	if s.cb != nil {
		return s.cb.Execute(ctx, op)
	}
	return s.executeWithRetry(ctx, op)
}

// executeWithRetry is the Layer-1 fallback used when no core.CircuitBreaker
// is injected: a short cooldown window on top of resilience.Retry's
// exponential backoff, so a dead Redis doesn't get hammered by every
// memory-store call between circuit-breaker evaluations.
func (s *RedisStore) executeWithRetry(ctx context.Context, op func() error) error {
	s.failureMu.Lock()
	if s.failureCount >= layer1MaxFailures && time.Since(s.lastFailure) < layer1FailureWindow {
		s.failureMu.Unlock()
		return fmt.Errorf("memory store in cooldown after %d failures", s.failureCount)
	}
	s.failureMu.Unlock()

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:   layer1MaxRetries,
		InitialDelay:  layer1InitialBackoff,
		MaxDelay:      layer1MaxBackoff,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
	if err := resilience.Retry(ctx, retryCfg, op); err != nil {
		s.failureMu.Lock()
		s.failureCount++
		s.lastFailure = time.Now()
		s.failureMu.Unlock()
		return fmt.Errorf("memory store operation failed: %w", err)
	}
	s.failureMu.Lock()
	s.failureCount = 0
	s.failureMu.Unlock()
	return nil
}

func (s *RedisStore) UpsertWorkflow(ctx context.Context, wf ProceduralWorkflow) error {
	if wf.WorkflowID == "" {
		wf.WorkflowID = uuid.NewString()
	}
	return s.execute(ctx, func() error {
		existing, err := s.getWorkflow(ctx, wf.WorkflowID)
		now := time.Now()
		if err == nil && existing != nil {
			wf.UsageCount = existing.UsageCount + 1
			wf.CreatedAt = existing.CreatedAt
		} else {
			if wf.UsageCount == 0 {
				wf.UsageCount = 1
			}
			wf.CreatedAt = now
		}
		wf.UpdatedAt = now

		data, err := json.Marshal(wf)
		if err != nil {
			return fmt.Errorf("memory: marshal workflow: %w", err)
		}
		if err := s.client.Set(ctx, s.wfKey(wf.WorkflowID), data, 0).Err(); err != nil {
			return fmt.Errorf("memory: set workflow: %w", err)
		}
		if err := s.client.SAdd(ctx, s.wfIndexKey(), wf.WorkflowID).Err(); err != nil {
			s.logger.Warn("memory: failed to update workflow index", map[string]interface{}{"error": err.Error()})
		}
		return nil
	})
}

func (s *RedisStore) getWorkflow(ctx context.Context, id string) (*ProceduralWorkflow, error) {
	data, err := s.client.Get(ctx, s.wfKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var wf ProceduralWorkflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *RedisStore) BumpWorkflowUsage(ctx context.Context, workflowID string, n int) error {
	return s.execute(ctx, func() error {
		wf, err := s.getWorkflow(ctx, workflowID)
		if err != nil {
			return fmt.Errorf("memory: bump usage: workflow %s not found: %w", workflowID, err)
		}
		wf.UsageCount += n
		wf.UpdatedAt = time.Now()
		data, err := json.Marshal(wf)
		if err != nil {
			return err
		}
		return s.client.Set(ctx, s.wfKey(workflowID), data, 0).Err()
	})
}

func (s *RedisStore) TopKSimilarWorkflows(ctx context.Context, vec []float32, k int) ([]ScoredWorkflow, error) {
	var out []ScoredWorkflow
	err := s.execute(ctx, func() error {
		ids, err := s.client.SMembers(ctx, s.wfIndexKey()).Result()
		if err != nil {
			return fmt.Errorf("memory: list workflows: %w", err)
		}
		scored := make([]ScoredWorkflow, 0, len(ids))
		for _, id := range ids {
			wf, err := s.getWorkflow(ctx, id)
			if err != nil {
				_ = s.client.SRem(ctx, s.wfIndexKey(), id)
				continue
			}
			scored = append(scored, ScoredWorkflow{
				Workflow: *wf,
				Score:    embeddings.CosineSimilarity(vec, wf.TriggerEmbedding),
			})
		}
		out = topKScoredWorkflows(scored, k)
		return nil
	})
	return out, err
}

func topKScoredWorkflows(scored []ScoredWorkflow, k int) []ScoredWorkflow {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func (s *RedisStore) InsertLesson(ctx context.Context, lesson Lesson) error {
	if lesson.LessonID == "" {
		lesson.LessonID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now()
	}
	return s.execute(ctx, func() error {
		data, err := json.Marshal(lesson)
		if err != nil {
			return fmt.Errorf("memory: marshal lesson: %w", err)
		}
		if err := s.client.Set(ctx, s.lessonKey(lesson.LessonID), data, 0).Err(); err != nil {
			return fmt.Errorf("memory: set lesson: %w", err)
		}
		if err := s.client.SAdd(ctx, s.lessonIndexKey(), lesson.LessonID).Err(); err != nil {
			s.logger.Warn("memory: failed to update lesson index", map[string]interface{}{"error": err.Error()})
		}
		return nil
	})
}

func (s *RedisStore) TopKSimilarLessons(ctx context.Context, vec []float32, agent string, k int) ([]ScoredLesson, error) {
	var out []ScoredLesson
	err := s.execute(ctx, func() error {
		ids, err := s.client.SMembers(ctx, s.lessonIndexKey()).Result()
		if err != nil {
			return fmt.Errorf("memory: list lessons: %w", err)
		}
		scored := make([]ScoredLesson, 0, len(ids))
		for _, id := range ids {
			data, err := s.client.Get(ctx, s.lessonKey(id)).Bytes()
			if err != nil {
				_ = s.client.SRem(ctx, s.lessonIndexKey(), id)
				continue
			}
			var lesson Lesson
			if err := json.Unmarshal(data, &lesson); err != nil {
				continue
			}
			if agent != "" && lesson.AgentName != agent {
				continue
			}
			scored = append(scored, ScoredLesson{
				Lesson: lesson,
				Score:  embeddings.CosineSimilarity(vec, lesson.TriggerEmbedding),
			})
		}
		for i := 1; i < len(scored); i++ {
			for j := i; j > 0 && scored[j].Score > scored[j-1].Score; j-- {
				scored[j], scored[j-1] = scored[j-1], scored[j]
			}
		}
		if k > 0 && len(scored) > k {
			scored = scored[:k]
		}
		out = scored
		return nil
	})
	return out, err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
