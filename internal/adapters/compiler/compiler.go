package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/eleven-am/triggerflow/internal/domain"
)

const (
	msgInvalidEdge  = "连线引用了不存在的节点，请检查流程配置。"
	msgMultiOut     = "节点 %s 存在多个输出分支，目前的执行器仅支持单一路径。"
	msgMultiIn      = "节点 %s 存在多个输入分支，目前的执行器仅支持单一路径。"
	msgNoEntry      = "流程缺少入口节点，请至少保留一个触发器。"
	msgMultiEntry   = "检测到多个入口节点，目前仅支持单一入口的工作流。"
	msgCycle        = "流程存在闭环或与主干断开的节点，无法编译。"
	msgDuplicateID  = "节点 ID %s 重复，请为每个节点使用唯一 ID。"
	httpTriggerType = "trigger.http"
)

// Compiler turns a workflow graph into a linear execution plan. It holds no
// per-compile state and is safe for concurrent use.
type Compiler struct {
	logger *slog.Logger
}

func NewCompiler(logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		logger: logger.With("component", "compiler"),
	}
}

func (c *Compiler) Compile(graph *domain.WorkflowGraph) (*domain.ExecutionPlan, error) {
	if graph == nil {
		return nil, fmt.Errorf("compile: nil workflow graph: %w", domain.ErrInvalidInput)
	}

	plan := &domain.ExecutionPlan{
		WorkflowID:   graph.ID,
		WorkflowName: graph.Name,
		Steps:        []domain.ExecutionStep{},
	}

	if len(graph.Nodes) == 0 {
		c.logger.Debug("workflow has no nodes", "workflow_id", graph.ID)
		return plan, nil
	}

	order := make([]string, 0, len(graph.Nodes))
	nodes := make(map[string]domain.NodeSpec, len(graph.Nodes))
	for _, node := range graph.Nodes {
		if _, exists := nodes[node.ID]; exists {
			return nil, domain.NewCompileError(domain.ErrDuplicateNodeID, node.ID, fmt.Sprintf(msgDuplicateID, node.ID))
		}
		nodes[node.ID] = node
		order = append(order, node.ID)
	}

	adjacency, indegree, err := buildGraph(order, nodes, graph.Edges)
	if err != nil {
		return nil, err
	}

	entry, err := validateGraph(order, adjacency, indegree)
	if err != nil {
		return nil, err
	}

	sorted, err := topologicalOrder(adjacency, indegree, entry)
	if err != nil {
		return nil, err
	}

	for _, id := range sorted {
		node := nodes[id]
		config := domain.CopyMap(node.Configuration)
		if config == nil {
			config = make(map[string]interface{})
		}
		plan.Steps = append(plan.Steps, domain.ExecutionStep{
			ID:            node.ID,
			Type:          node.Type,
			Label:         node.DisplayLabel(),
			Configuration: config,
			IsTerminal:    len(adjacency[id]) == 0,
		})
	}

	plan.DebugOverrides = ResolveOverrides(graph, plan.Steps)
	plan.InitialPayload = initialPayload(plan.Steps[0])

	c.logger.Debug("compiled workflow",
		"workflow_id", graph.ID,
		"steps", len(plan.Steps),
		"overrides", len(plan.DebugOverrides))

	return plan, nil
}

func buildGraph(order []string, nodes map[string]domain.NodeSpec, edges []domain.EdgeSpec) (map[string][]string, map[string]int, error) {
	adjacency := make(map[string][]string, len(order))
	indegree := make(map[string]int, len(order))
	for _, id := range order {
		adjacency[id] = nil
		indegree[id] = 0
	}

	for _, edge := range edges {
		if _, ok := nodes[edge.SourceNodeID]; !ok {
			return nil, nil, domain.NewCompileError(domain.ErrInvalidEdgeReference, edge.SourceNodeID, msgInvalidEdge)
		}
		if _, ok := nodes[edge.TargetNodeID]; !ok {
			return nil, nil, domain.NewCompileError(domain.ErrInvalidEdgeReference, edge.TargetNodeID, msgInvalidEdge)
		}
		adjacency[edge.SourceNodeID] = append(adjacency[edge.SourceNodeID], edge.TargetNodeID)
		indegree[edge.TargetNodeID]++
	}

	return adjacency, indegree, nil
}

func validateGraph(order []string, adjacency map[string][]string, indegree map[string]int) (string, error) {
	for _, id := range order {
		if len(adjacency[id]) > 1 {
			return "", domain.NewCompileError(domain.ErrMultiBranchUnsupported, id, fmt.Sprintf(msgMultiOut, id))
		}
	}
	for _, id := range order {
		if indegree[id] > 1 {
			return "", domain.NewCompileError(domain.ErrMultiBranchUnsupported, id, fmt.Sprintf(msgMultiIn, id))
		}
	}

	var entries []string
	for _, id := range order {
		if indegree[id] == 0 {
			entries = append(entries, id)
		}
	}

	switch len(entries) {
	case 0:
		return "", domain.NewCompileError(domain.ErrMissingEntryNode, "", msgNoEntry)
	case 1:
		return entries[0], nil
	default:
		return "", domain.NewCompileError(domain.ErrMultipleEntryNodes, strings.Join(entries, ","), msgMultiEntry)
	}
}

func topologicalOrder(adjacency map[string][]string, indegree map[string]int, entry string) ([]string, error) {
	remaining := make(map[string]int, len(indegree))
	for id, degree := range indegree {
		remaining[id] = degree
	}

	queue := []string{entry}
	order := make([]string, 0, len(adjacency))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(adjacency) {
		return nil, domain.NewCompileError(domain.ErrCyclicOrDisconnectedGraph, "", msgCycle)
	}
	return order, nil
}

func initialPayload(entry domain.ExecutionStep) interface{} {
	if entry.Type != httpTriggerType {
		return map[string]interface{}{}
	}

	config := entry.Configuration
	method := "GET"
	if m, ok := config["method"]; ok && m != nil {
		method = strings.ToUpper(fmt.Sprint(m))
	}
	path := interface{}("/")
	if p, ok := config["path"]; ok {
		path = p
	}
	payload := interface{}(map[string]interface{}{})
	if sample, ok := config["samplePayload"]; ok {
		payload = sample
	}

	return map[string]interface{}{
		"method":  method,
		"path":    path,
		"payload": payload,
	}
}
