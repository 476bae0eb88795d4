package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/xjson"
)

func steps() []domain.ExecutionStep {
	return []domain.ExecutionStep{
		{ID: "n1", Type: "trigger.http", Label: "入口"},
		{ID: "n2", Type: "action.chat_completion", Label: "对话"},
		{ID: "n3", Type: "action.http_request", Label: "回调"},
	}
}

func graphWith(entries map[string]map[string]interface{}) *domain.WorkflowGraph {
	return &domain.WorkflowGraph{Debug: &domain.DebugConfig{Nodes: entries}}
}

func TestResolveOverrides_LookupPriority(t *testing.T) {
	g := graphWith(map[string]map[string]interface{}{
		"n2":                     {"outputs": "by id"},
		"对话":                     {"outputs": "by label"},
		"action.chat_completion": {"outputs": "by type"},
		"回调":                     {"outputs": "label for n3"},
		"action.http_request":    {"outputs": "type for n3"},
		"trigger.http":           {"outputs": "type for n1"},
	})

	overrides := ResolveOverrides(g, steps())
	require.Len(t, overrides, 3)
	assert.Equal(t, []string{"by id"}, overrides["n2"].Outputs)
	assert.Equal(t, []string{"label for n3"}, overrides["n3"].Outputs)
	assert.Equal(t, []string{"type for n1"}, overrides["n1"].Outputs)
}

func TestResolveOverrides_NoDebugConfig(t *testing.T) {
	assert.Empty(t, ResolveOverrides(&domain.WorkflowGraph{}, steps()))
	assert.Empty(t, ResolveOverrides(nil, steps()))
}

func TestResolveOverrides_OutputShapes(t *testing.T) {
	tests := []struct {
		name     string
		entry    map[string]interface{}
		expected []string
	}{
		{"single string", map[string]interface{}{"outputs": "A"}, []string{"A"}},
		{"sequence", map[string]interface{}{"outputs": []interface{}{"A", 2, true}}, []string{"A", "2", "true"}},
		{"output alias", map[string]interface{}{"output": "B"}, []string{"B"}},
		{"responses alias", map[string]interface{}{"responses": []interface{}{"C"}}, []string{"C"}},
		{"plain map sorted by key", map[string]interface{}{"outputs": map[string]interface{}{"b": "2", "a": "1"}}, []string{"1", "2"}},
		{"unsupported scalar", map[string]interface{}{"outputs": 12}, []string{}},
		{"absent", map[string]interface{}{"notes": "x"}, []string{}},
		{"structured element", map[string]interface{}{"outputs": []interface{}{map[string]interface{}{"k": "v"}}}, []string{`{"k":"v"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := ResolveOverrides(graphWith(map[string]map[string]interface{}{"n1": tt.entry}), steps())
			assert.Equal(t, tt.expected, overrides["n1"].Outputs)
		})
	}
}

func TestResolveOverrides_OrderedOutputsFromJSON(t *testing.T) {
	var g domain.WorkflowGraph
	doc := `{"id":"wf","nodes":[],"edges":[],"debug":{"nodes":{"n1":{"outputs":{"second":"B","first":"A"}}}}}`
	require.NoError(t, xjson.Unmarshal([]byte(doc), &g))

	overrides := ResolveOverrides(&g, steps())
	assert.Equal(t, []string{"B", "A"}, overrides["n1"].Outputs)
}

func TestResolveOverrides_NotesInputMetadata(t *testing.T) {
	g := graphWith(map[string]map[string]interface{}{
		"n1": {
			"outputs":     []interface{}{"A"},
			"description": "explains",
			"payload":     map[string]interface{}{"messages": []interface{}{"hi"}},
			"latencyMs":   30,
			"tags":        []interface{}{"x"},
		},
	})

	o := ResolveOverrides(g, steps())["n1"]
	assert.Equal(t, "explains", o.Notes)
	assert.Equal(t, map[string]interface{}{"messages": []interface{}{"hi"}}, o.InputPayload)
	assert.Equal(t, map[string]interface{}{"latencyMs": 30, "tags": []interface{}{"x"}}, o.Metadata)
	assert.True(t, o.HasOutputs())
}

func TestResolveOverrides_FirstAliasWins(t *testing.T) {
	g := graphWith(map[string]map[string]interface{}{
		"n1": {"notes": "primary", "note": "secondary", "input": "in", "payload": "p"},
	})

	o := ResolveOverrides(g, steps())["n1"]
	assert.Equal(t, "primary", o.Notes)
	assert.Equal(t, "in", o.InputPayload)
	assert.Equal(t, map[string]interface{}{"note": "secondary", "payload": "p"}, o.Metadata)
	assert.False(t, o.HasOutputs())
}

func TestResolveOverrides_NullAliasIsStillFirst(t *testing.T) {
	g := graphWith(map[string]map[string]interface{}{
		"n1": {"outputs": nil, "output": "x", "notes": nil, "note": "ignored"},
	})

	o := ResolveOverrides(g, steps())["n1"]
	assert.Equal(t, []string{}, o.Outputs)
	assert.False(t, o.HasOutputs())
	assert.Empty(t, o.Notes)
	assert.Equal(t, map[string]interface{}{"output": "x", "note": "ignored"}, o.Metadata)
	assert.NotContains(t, o.Metadata, "outputs")
}
