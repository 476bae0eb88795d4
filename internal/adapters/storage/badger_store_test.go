package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow/internal/domain"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	store := NewBadgerStore(db, nil)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_OpenInMemory(t *testing.T) {
	store, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer store.Close()

	logs, err := store.GetLogs(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestBadgerStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r1", WorkflowID: "wf"}))

	run, err := store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Empty(t, run.Logs)
	assert.False(t, run.CreatedAt.IsZero())

	require.NoError(t, store.SetStatus(ctx, "r1", domain.RunStatusRunning))
	require.NoError(t, store.AppendLog(ctx, "r1", "first"))
	require.NoError(t, store.AppendLog(ctx, "r1", "second"))
	require.NoError(t, store.SetStatus(ctx, "r1", domain.RunStatusCompleted))

	run, err = store.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"first", "second"}, run.Logs)
}

func TestBadgerStore_UnknownRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetRun(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsNotFound(store.SetStatus(ctx, "missing", domain.RunStatusFailed)))

	logs, err := store.GetLogs(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestBadgerStore_RejectsInvalidStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r1"}))

	err := store.SetStatus(ctx, "r1", domain.RunStatus("exploded"))
	assert.True(t, domain.IsInvalidInput(err))
}

func TestBadgerStore_LogOrderBeyondNineEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var expected []string
	for i := 0; i < 25; i++ {
		line := fmt.Sprintf("line %d", i)
		expected = append(expected, line)
		require.NoError(t, store.AppendLog(ctx, "r1", line))
	}

	logs, err := store.GetLogs(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, expected, logs)
}

func TestBadgerStore_LogsAreIsolatedPerRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for _, runID := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(runID string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.NoError(t, store.AppendLog(ctx, runID, fmt.Sprintf("%s-%d", runID, i)))
			}
		}(runID)
	}
	wg.Wait()

	for _, runID := range []string{"a", "b", "c"} {
		logs, err := store.GetLogs(ctx, runID)
		require.NoError(t, err)
		require.Len(t, logs, 20)
		for i, line := range logs {
			assert.Equal(t, fmt.Sprintf("%s-%d", runID, i), line)
		}
	}
}

func TestBadgerStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r1", WorkflowID: "wf-a", CreatedAt: base}))
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r2", WorkflowID: "wf-a", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r3", WorkflowID: "wf-b", CreatedAt: base}))

	runs, err := store.ListRuns(ctx, "wf-a")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)

	all, err := store.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBadgerStore_WorkflowCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	wf := &domain.WorkflowRecord{
		ID:   "wf-1",
		Name: "示例流程",
		Graph: domain.WorkflowGraph{
			Nodes: []domain.NodeSpec{{ID: "n1", Type: "trigger.http"}},
			Debug: &domain.DebugConfig{Nodes: map[string]map[string]interface{}{
				"n1": {"outputs": []interface{}{"A"}},
			}},
		},
	}
	require.NoError(t, store.SaveWorkflow(ctx, wf))
	created := wf.CreatedAt

	got, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "示例流程", got.Name)
	assert.Equal(t, "wf-1", got.Graph.ID)
	require.NotNil(t, got.Graph.Debug)
	assert.Equal(t, []interface{}{"A"}, got.Graph.Debug.Nodes["n1"]["outputs"])

	wf.Name = "改名"
	require.NoError(t, store.SaveWorkflow(ctx, wf))
	got, err = store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "改名", got.Name)
	assert.True(t, got.CreatedAt.Equal(created))

	list, err := store.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteWorkflow(ctx, "wf-1"))
	_, err = store.GetWorkflow(ctx, "wf-1")
	assert.True(t, domain.IsNotFound(err))
	assert.True(t, domain.IsNotFound(store.DeleteWorkflow(ctx, "wf-1")))
}

func TestBadgerStore_Timeline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	events := []domain.DebugEvent{
		{StepID: "n1", StepType: "llm", Event: domain.DebugEventStart, Payload: map[string]interface{}{}},
		{StepID: "n1", StepType: "llm", Event: domain.DebugEventOverride, Payload: map[string]interface{}{"has_outputs": true}},
	}
	require.NoError(t, store.SaveTimeline(ctx, "r1", events))

	got, err := store.GetTimeline(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.DebugEventOverride, got[1].Event)
	assert.Equal(t, true, got[1].Payload["has_outputs"])

	_, err = store.GetTimeline(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}
