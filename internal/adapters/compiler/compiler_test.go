package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow/internal/domain"
)

func node(id, typ string) domain.NodeSpec {
	return domain.NodeSpec{ID: id, Type: typ}
}

func edge(from, to string) domain.EdgeSpec {
	return domain.EdgeSpec{ID: from + "->" + to, SourceNodeID: from, TargetNodeID: to}
}

func chain(n int) *domain.WorkflowGraph {
	g := &domain.WorkflowGraph{ID: "wf-chain"}
	for i := 1; i <= n; i++ {
		g.Nodes = append(g.Nodes, node(fmt.Sprintf("n%d", i), "transform.echo"))
		if i > 1 {
			g.Edges = append(g.Edges, edge(fmt.Sprintf("n%d", i-1), fmt.Sprintf("n%d", i)))
		}
	}
	return g
}

func TestCompile_EmptyGraph(t *testing.T) {
	plan, err := NewCompiler(nil).Compile(&domain.WorkflowGraph{ID: "empty"})
	require.NoError(t, err)
	assert.Equal(t, "empty", plan.WorkflowID)
	assert.Empty(t, plan.Steps)
}

func TestCompile_SingleNodeIsTerminal(t *testing.T) {
	plan, err := NewCompiler(nil).Compile(&domain.WorkflowGraph{
		ID:    "one",
		Nodes: []domain.NodeSpec{node("n1", "trigger.http")},
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.True(t, plan.Steps[0].IsTerminal)
	assert.Equal(t, "trigger.http", plan.Steps[0].Label, "label defaults to type")
}

func TestCompile_LinearChainFollowsEdges(t *testing.T) {
	for _, n := range []int{2, 3, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			g := chain(n)
			// Declaration order of nodes must not matter.
			for i, j := 0, len(g.Nodes)-1; i < j; i, j = i+1, j-1 {
				g.Nodes[i], g.Nodes[j] = g.Nodes[j], g.Nodes[i]
			}

			plan, err := NewCompiler(nil).Compile(g)
			require.NoError(t, err)
			require.Len(t, plan.Steps, n)

			terminals := 0
			for i, step := range plan.Steps {
				assert.Equal(t, fmt.Sprintf("n%d", i+1), step.ID)
				if step.IsTerminal {
					terminals++
				}
			}
			assert.Equal(t, 1, terminals)
			assert.True(t, plan.Steps[n-1].IsTerminal)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		graph  *domain.WorkflowGraph
		reason error
	}{
		{
			name: "unknown edge target",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x")},
				Edges: []domain.EdgeSpec{edge("a", "ghost")},
			},
			reason: domain.ErrInvalidEdgeReference,
		},
		{
			name: "fan out",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("b", "x"), node("c", "x"), node("d", "x")},
				Edges: []domain.EdgeSpec{edge("a", "b"), edge("a", "c"), edge("c", "d")},
			},
			reason: domain.ErrMultiBranchUnsupported,
		},
		{
			name: "fan in",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("b", "x"), node("c", "x")},
				Edges: []domain.EdgeSpec{edge("a", "c"), edge("b", "c")},
			},
			reason: domain.ErrMultiBranchUnsupported,
		},
		{
			name: "pure cycle has no entry",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("b", "x")},
				Edges: []domain.EdgeSpec{edge("a", "b"), edge("b", "a")},
			},
			reason: domain.ErrMissingEntryNode,
		},
		{
			name: "two entries",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("b", "x")},
			},
			reason: domain.ErrMultipleEntryNodes,
		},
		{
			name: "cycle behind entry",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("b", "x"), node("c", "x")},
				Edges: []domain.EdgeSpec{edge("b", "c"), edge("c", "b")},
			},
			reason: domain.ErrCyclicOrDisconnectedGraph,
		},
		{
			name: "duplicate id",
			graph: &domain.WorkflowGraph{
				Nodes: []domain.NodeSpec{node("a", "x"), node("a", "y")},
			},
			reason: domain.ErrDuplicateNodeID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewCompiler(nil).Compile(tt.graph)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.ErrorIs(t, err, tt.reason)
			assert.True(t, domain.IsCompileError(err))
		})
	}
}

func TestCompile_NilGraph(t *testing.T) {
	_, err := NewCompiler(nil).Compile(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompile_IsIdempotent(t *testing.T) {
	g := chain(4)
	g.Debug = &domain.DebugConfig{Nodes: map[string]map[string]interface{}{
		"n2": {"outputs": []interface{}{"A", "B"}, "notes": "fake"},
	}}

	c := NewCompiler(nil)
	first, err := c.Compile(g)
	require.NoError(t, err)
	second, err := c.Compile(g)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompile_CopiesConfiguration(t *testing.T) {
	g := &domain.WorkflowGraph{Nodes: []domain.NodeSpec{{
		ID:            "n1",
		Type:          "action.http_request",
		Configuration: map[string]interface{}{"url": "https://a.test"},
	}}}

	plan, err := NewCompiler(nil).Compile(g)
	require.NoError(t, err)

	plan.Steps[0].Configuration["url"] = "changed"
	assert.Equal(t, "https://a.test", g.Nodes[0].Configuration["url"])
}

func TestCompile_InitialPayload(t *testing.T) {
	g := &domain.WorkflowGraph{Nodes: []domain.NodeSpec{{
		ID:   "n1",
		Type: "trigger.http",
		Configuration: map[string]interface{}{
			"method":        "post",
			"samplePayload": map[string]interface{}{"message": "hi"},
		},
	}}}

	plan, err := NewCompiler(nil).Compile(g)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"method":  "POST",
		"path":    "/",
		"payload": map[string]interface{}{"message": "hi"},
	}, plan.InitialPayload)

	plan, err = NewCompiler(nil).Compile(chain(1))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, plan.InitialPayload)
}
