package compiler

import (
	"github.com/eleven-am/triggerflow/internal/domain"
)

var (
	outputKeys = []string{"outputs", "output", "responses"}
	notesKeys  = []string{"notes", "note", "description"}
	inputKeys  = []string{"input", "payload"}
)

// ResolveOverrides matches debug entries to steps by id, then label, then
// type. Steps without a match are absent from the result.
func ResolveOverrides(graph *domain.WorkflowGraph, steps []domain.ExecutionStep) map[string]domain.DebugOverride {
	overrides := make(map[string]domain.DebugOverride)
	if graph == nil || graph.Debug == nil || len(graph.Debug.Nodes) == 0 {
		return overrides
	}

	for _, step := range steps {
		entry, ok := lookupEntry(graph.Debug.Nodes, step)
		if !ok {
			continue
		}
		overrides[step.ID] = parseOverride(entry)
	}
	return overrides
}

func lookupEntry(entries map[string]map[string]interface{}, step domain.ExecutionStep) (map[string]interface{}, bool) {
	for _, key := range []string{step.ID, step.Label, step.Type} {
		if key == "" {
			continue
		}
		if entry, ok := entries[key]; ok && entry != nil {
			return entry, true
		}
	}
	return nil, false
}

func parseOverride(entry map[string]interface{}) domain.DebugOverride {
	consumed := make(map[string]bool)
	override := domain.DebugOverride{Outputs: []string{}}

	if key, value, ok := firstPresent(entry, outputKeys); ok {
		consumed[key] = true
		override.Outputs = normalizeOutputs(value)
	}
	if key, value, ok := firstPresent(entry, notesKeys); ok {
		consumed[key] = true
		if value != nil {
			override.Notes = domain.Stringify(value)
		}
	}
	if key, value, ok := firstPresent(entry, inputKeys); ok {
		consumed[key] = true
		override.InputPayload = value
	}

	for key, value := range entry {
		if consumed[key] {
			continue
		}
		if override.Metadata == nil {
			override.Metadata = make(map[string]interface{})
		}
		override.Metadata[key] = value
	}
	return override
}

// firstPresent picks the first alias present in entry, even when its value
// is null.
func firstPresent(entry map[string]interface{}, keys []string) (string, interface{}, bool) {
	for _, key := range keys {
		if value, ok := entry[key]; ok {
			return key, value, true
		}
	}
	return "", nil, false
}

func normalizeOutputs(value interface{}) []string {
	var items []interface{}
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string{}, v...)
	case *domain.OrderedMap:
		items = v.OrderedValues()
	case domain.OrderedMap:
		items = v.OrderedValues()
	case map[string]interface{}:
		items = domain.SortedValues(v)
	case []interface{}:
		items = v
	default:
		return []string{}
	}

	outputs := make([]string, 0, len(items))
	for _, item := range items {
		outputs = append(outputs, domain.Stringify(item))
	}
	return outputs
}
