package domain

// ExecutionStep is one compiled unit of a plan, derived from exactly one node.
type ExecutionStep struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Label         string                 `json:"label"`
	Configuration map[string]interface{} `json:"configuration"`
	IsTerminal    bool                   `json:"is_terminal"`
}

// DebugOverride replaces a step's handler with authored, simulated output.
type DebugOverride struct {
	Outputs      []string               `json:"outputs"`
	InputPayload interface{}            `json:"input,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func (o DebugOverride) HasOutputs() bool {
	return len(o.Outputs) > 0
}

type ExecutionPlan struct {
	WorkflowID     string                   `json:"workflow_id"`
	WorkflowName   string                   `json:"workflow_name,omitempty"`
	Steps          []ExecutionStep          `json:"steps"`
	DebugOverrides map[string]DebugOverride `json:"debug_overrides,omitempty"`
	InitialPayload interface{}              `json:"initial_payload,omitempty"`
}

func (p *ExecutionPlan) Override(stepID string) (DebugOverride, bool) {
	if p == nil || p.DebugOverrides == nil {
		return DebugOverride{}, false
	}
	o, ok := p.DebugOverrides[stepID]
	return o, ok
}

func (p *ExecutionPlan) Entry() (ExecutionStep, bool) {
	if p == nil || len(p.Steps) == 0 {
		return ExecutionStep{}, false
	}
	return p.Steps[0], true
}
