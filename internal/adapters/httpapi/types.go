package httpapi

import (
	"time"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// workflowPayload is the body accepted by create, update and validate.
type workflowPayload struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Nodes       []domain.NodeSpec   `json:"nodes"`
	Edges       []domain.EdgeSpec   `json:"edges"`
	Debug       *domain.DebugConfig `json:"debug,omitempty"`
}

type workflowResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Nodes       []domain.NodeSpec   `json:"nodes"`
	Edges       []domain.EdgeSpec   `json:"edges"`
	Debug       *domain.DebugConfig `json:"debug,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type executeResponse struct {
	RunID string `json:"runId"`
}

type validateResponse struct {
	Valid          bool     `json:"valid"`
	Steps          []string `json:"steps"`
	DebugOverrides []string `json:"debugOverrides,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	NodeID string `json:"nodeId,omitempty"`
}

type logMessage struct {
	Message string `json:"message"`
}

func (p *workflowPayload) graph(id string) domain.WorkflowGraph {
	nodes := p.Nodes
	if nodes == nil {
		nodes = []domain.NodeSpec{}
	}
	edges := p.Edges
	if edges == nil {
		edges = []domain.EdgeSpec{}
	}
	return domain.WorkflowGraph{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Nodes:       nodes,
		Edges:       edges,
		Debug:       p.Debug,
	}
}

func toWorkflowResponse(wf *domain.WorkflowRecord) workflowResponse {
	nodes := wf.Graph.Nodes
	if nodes == nil {
		nodes = []domain.NodeSpec{}
	}
	edges := wf.Graph.Edges
	if edges == nil {
		edges = []domain.EdgeSpec{}
	}
	return workflowResponse{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Nodes:       nodes,
		Edges:       edges,
		Debug:       wf.Graph.Debug,
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
}
