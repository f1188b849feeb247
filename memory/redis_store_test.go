package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStore(WithRedisURL(mr.Addr()))
	require.NoError(t, err)
	return mr, store
}

func TestRedisStore_UpsertAndTopKWorkflows(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	wf := ProceduralWorkflow{
		TriggerEmbedding: []float32{1, 0, 0},
		Plan:             Plan{{Agent: "RetrievalQA", Input: map[string]interface{}{"query": "x"}}},
		ResultKeys:       []string{"step_1_RetrievalQA"},
	}
	require.NoError(t, store.UpsertWorkflow(ctx, wf))

	scored, err := store.TopKSimilarWorkflows(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.InDelta(t, 1.0, scored[0].Score, 0.0001)
	assert.Equal(t, 1, scored[0].Workflow.UsageCount)
}

func TestRedisStore_UpsertReplacesAndBumpsUsage(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	wf := ProceduralWorkflow{WorkflowID: "wf-1", TriggerEmbedding: []float32{1, 0}, Plan: Plan{{Agent: "WebSearch"}}}
	require.NoError(t, store.UpsertWorkflow(ctx, wf))
	require.NoError(t, store.UpsertWorkflow(ctx, wf))

	scored, err := store.TopKSimilarWorkflows(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 2, scored[0].Workflow.UsageCount)

	require.NoError(t, store.BumpWorkflowUsage(ctx, "wf-1", 3))
	scored, err = store.TopKSimilarWorkflows(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, scored[0].Workflow.UsageCount)
}

func TestRedisStore_InsertAndTopKLessons(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.InsertLesson(ctx, Lesson{
		TriggerEmbedding: []float32{1, 0}, GoalText: "g1", AgentName: "DatabaseQuery",
		Status: LessonSuccess, WorkingParams: map[string]interface{}{"request": "list users"},
	}))
	require.NoError(t, store.InsertLesson(ctx, Lesson{
		TriggerEmbedding: []float32{0, 1}, GoalText: "g2", AgentName: "WebSearch",
		Status: LessonFail, FixSummary: "narrow the query",
	}))

	scored, err := store.TopKSimilarLessons(ctx, []float32{1, 0}, "DatabaseQuery", 5)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, LessonSuccess, scored[0].Lesson.Status)

	all, err := store.TopKSimilarLessons(ctx, []float32{1, 0}, "", 5)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRedisStore_TopKWorkflowsEmpty(t *testing.T) {
	mr, store := setupTestStore(t)
	defer mr.Close()
	defer store.Close()

	scored, err := store.TopKSimilarWorkflows(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, scored)
}
