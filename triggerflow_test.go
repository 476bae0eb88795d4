package triggerflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	plan, err := Compile(&WorkflowGraph{
		ID: "wf",
		Nodes: []NodeSpec{
			{ID: "b", Type: "transform.echo"},
			{ID: "a", Type: "trigger.http"},
		},
		Edges: []EdgeSpec{{ID: "e", SourceNodeID: "a", TargetNodeID: "b"}},
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "a", plan.Steps[0].ID)
	assert.True(t, plan.Steps[1].IsTerminal)

	_, err = Compile(&WorkflowGraph{
		Nodes: []NodeSpec{{ID: "a", Type: "x"}, {ID: "b", Type: "x"}},
	})
	assert.True(t, IsCompileError(err))
	assert.ErrorIs(t, err, ErrMultipleEntryNodes)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggerflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
in_memory: true
http:
  addr: ""
runs:
  max_concurrent_runs: 3
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, config.InMemory)
	assert.Equal(t, 3, config.Runs.MaxConcurrentRuns)
	assert.Equal(t, DefaultConfig().Engine.SummaryLimit, config.Engine.SummaryLimit)
}

func TestManagerEndToEnd(t *testing.T) {
	config := DefaultConfig().WithInMemory().WithHTTPAddr("")
	manager, err := NewWithConfig(config)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, manager.Start(ctx))
	defer manager.Stop(ctx)

	runID, err := manager.Execute(ctx, &WorkflowGraph{
		ID:    "greeting",
		Nodes: []NodeSpec{{ID: "hook", Type: "trigger.http", Label: "Hook"}},
	})
	require.NoError(t, err)

	var lines []string
	for line, err := range manager.StreamLogs(ctx, runID) {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "步骤 1/1: 节点 Hook (类型 trigger.http) 开始执行", lines[0])
	assert.Equal(t, "工作流执行完成。", lines[3])

	require.NoError(t, manager.WaitForRun(ctx, runID))
	run, err := manager.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
}
