package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow"
)

const yamlWorkflow = `
name: 客服流程
nodes:
  - id: hook
    type: trigger.http
    label: 入口
  - id: reply
    type: action.chat_completion
    label: 回复
edges:
  - id: e1
    from: {nodeId: hook}
    to: {nodeId: reply}
debug:
  nodes:
    reply:
      outputs: [您好]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadWorkflow_YAML(t *testing.T) {
	graph, err := readWorkflow(writeFile(t, "support.yaml", yamlWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "support", graph.ID)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, "hook", graph.Edges[0].SourceNodeID)
	assert.Equal(t, "reply", graph.Edges[0].TargetNodeID)
	require.NotNil(t, graph.Debug)
}

func TestReadWorkflow_JSON(t *testing.T) {
	path := writeFile(t, "flow.json", `{"id":"flow","nodes":[{"id":"a","type":"transform.echo"}],"edges":[]}`)
	graph, err := readWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, "flow", graph.ID)
	assert.Len(t, graph.Nodes, 1)

	_, err = readWorkflow(writeFile(t, "broken.json", `{"nodes":`))
	assert.ErrorIs(t, err, triggerflow.ErrInvalidInput)
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "support.yml", yamlWorkflow)

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	defer validateCmd.SetOut(nil)

	require.NoError(t, validateWorkflowFile(validateCmd, []string{path}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "workflow 客服流程: 2 steps", lines[0])
	assert.Equal(t, "  1. 入口 (trigger.http)", lines[1])
	assert.Equal(t, "  2. 回复 (action.chat_completion) [debug override]", lines[2])
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, "support.yaml", yamlWorkflow)

	var out bytes.Buffer
	runCmd.SetOut(&out)
	defer runCmd.SetOut(nil)

	require.NoError(t, runWorkflowFile(runCmd, []string{path}))
	assert.Contains(t, out.String(), "调试输出[1]: 您好")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out.String()), "工作流执行完成。"))
}

func TestRunCommand_YAMLOutputsKeepAuthoredOrder(t *testing.T) {
	path := writeFile(t, "ordered.yaml", `
nodes:
  - id: reply
    type: action.chat_completion
    label: 回复
edges: []
debug:
  nodes:
    reply:
      outputs:
        zeta: 第一
        alpha: 第二
`)

	var out bytes.Buffer
	runCmd.SetOut(&out)
	defer runCmd.SetOut(nil)

	require.NoError(t, runWorkflowFile(runCmd, []string{path}))
	text := out.String()
	assert.Contains(t, text, "调试输出[1]: 第一")
	assert.Contains(t, text, "调试输出[2]: 第二")
}
