package domain

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/triggerflow/internal/xjson"
)

type NodeSpec struct {
	ID            string                 `json:"id" yaml:"id"`
	Type          string                 `json:"type" yaml:"type"`
	Label         string                 `json:"label,omitempty" yaml:"label,omitempty"`
	Configuration map[string]interface{} `json:"configuration,omitempty" yaml:"configuration,omitempty"`

	// Canvas placement, carried through storage untouched.
	X     float64    `json:"x,omitempty" yaml:"x,omitempty"`
	Y     float64    `json:"y,omitempty" yaml:"y,omitempty"`
	Ports []PortSpec `json:"ports,omitempty" yaml:"ports,omitempty"`
}

type PortSpec struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

func (n NodeSpec) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Type
}

type EdgeSpec struct {
	ID           string
	SourceNodeID string
	TargetNodeID string
}

type edgeEndpoint struct {
	NodeID string `json:"nodeId" yaml:"nodeId"`
	PortID string `json:"portId,omitempty" yaml:"portId,omitempty"`
}

type edgeWire struct {
	ID   string       `json:"id" yaml:"id"`
	From edgeEndpoint `json:"from" yaml:"from"`
	To   edgeEndpoint `json:"to" yaml:"to"`
}

func (e EdgeSpec) MarshalJSON() ([]byte, error) {
	return xjson.Marshal(edgeWire{
		ID:   e.ID,
		From: edgeEndpoint{NodeID: e.SourceNodeID},
		To:   edgeEndpoint{NodeID: e.TargetNodeID},
	})
}

func (e *EdgeSpec) UnmarshalJSON(data []byte) error {
	var wire edgeWire
	if err := xjson.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.ID = wire.ID
	e.SourceNodeID = wire.From.NodeID
	e.TargetNodeID = wire.To.NodeID
	return nil
}

func (e EdgeSpec) MarshalYAML() (interface{}, error) {
	return edgeWire{
		ID:   e.ID,
		From: edgeEndpoint{NodeID: e.SourceNodeID},
		To:   edgeEndpoint{NodeID: e.TargetNodeID},
	}, nil
}

func (e *EdgeSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var wire edgeWire
	if err := unmarshal(&wire); err != nil {
		return err
	}
	e.ID = wire.ID
	e.SourceNodeID = wire.From.NodeID
	e.TargetNodeID = wire.To.NodeID
	return nil
}

type WorkflowGraph struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []NodeSpec   `json:"nodes" yaml:"nodes"`
	Edges       []EdgeSpec   `json:"edges" yaml:"edges"`
	Debug       *DebugConfig `json:"debug,omitempty" yaml:"debug,omitempty"`
}

type DebugConfig struct {
	Nodes map[string]map[string]interface{} `json:"nodes" yaml:"nodes"`
}

var orderedOutputKeys = []string{"outputs", "output", "responses"}

// UnmarshalJSON decodes object-valued output entries into OrderedMap so the
// authored order of simulated outputs survives decoding.
func (d *DebugConfig) UnmarshalJSON(data []byte) error {
	var wire struct {
		Nodes map[string]map[string]xjson.RawMessage `json:"nodes"`
	}
	if err := xjson.Unmarshal(data, &wire); err != nil {
		return err
	}

	d.Nodes = make(map[string]map[string]interface{}, len(wire.Nodes))
	for key, entry := range wire.Nodes {
		decoded := make(map[string]interface{}, len(entry))
		for field, raw := range entry {
			if isOrderedOutputKey(field) && isJSONObject(raw) {
				var om OrderedMap
				if err := om.UnmarshalJSON(raw); err != nil {
					return err
				}
				decoded[field] = &om
				continue
			}
			var value interface{}
			if err := xjson.Unmarshal(raw, &value); err != nil {
				return err
			}
			decoded[field] = value
		}
		d.Nodes[key] = decoded
	}
	return nil
}

func (d *DebugConfig) UnmarshalYAML(value *yaml.Node) error {
	var wire struct {
		Nodes map[string]map[string]yaml.Node `yaml:"nodes"`
	}
	if err := value.Decode(&wire); err != nil {
		return err
	}

	d.Nodes = make(map[string]map[string]interface{}, len(wire.Nodes))
	for key, entry := range wire.Nodes {
		if entry == nil {
			d.Nodes[key] = nil
			continue
		}
		decoded := make(map[string]interface{}, len(entry))
		for field, node := range entry {
			target := resolveAlias(&node)
			if isOrderedOutputKey(field) && target.Kind == yaml.MappingNode {
				om, err := orderedMapFromYAML(target)
				if err != nil {
					return err
				}
				decoded[field] = om
				continue
			}
			var v interface{}
			if err := target.Decode(&v); err != nil {
				return err
			}
			decoded[field] = v
		}
		d.Nodes[key] = decoded
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func orderedMapFromYAML(n *yaml.Node) (*OrderedMap, error) {
	om := NewOrderedMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		var key string
		if err := n.Content[i].Decode(&key); err != nil {
			return nil, err
		}
		var v interface{}
		if err := resolveAlias(n.Content[i+1]).Decode(&v); err != nil {
			return nil, err
		}
		om.Set(key, v)
	}
	return om, nil
}

func isOrderedOutputKey(field string) bool {
	for _, k := range orderedOutputKeys {
		if k == field {
			return true
		}
	}
	return false
}

func isJSONObject(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

type OrderedMap struct {
	Keys   []string
	Values map[string]interface{}
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{Values: make(map[string]interface{})}
}

func (m *OrderedMap) Set(key string, value interface{}) {
	if m.Values == nil {
		m.Values = make(map[string]interface{})
	}
	if _, ok := m.Values[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = value
}

func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Keys)
}

func (m *OrderedMap) OrderedValues() []interface{} {
	if m == nil {
		return nil
	}
	out := make([]interface{}, 0, len(m.Keys))
	for _, k := range m.Keys {
		out = append(out, m.Values[k])
	}
	return out
}

func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	keys, raws, err := xjson.ObjectKeys(data)
	if err != nil {
		return err
	}
	m.Keys = keys
	m.Values = make(map[string]interface{}, len(keys))
	for _, k := range keys {
		var value interface{}
		if err := xjson.Unmarshal(raws[k], &value); err != nil {
			return err
		}
		m.Values[k] = value
	}
	return nil
}

func (m OrderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.Keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := xjson.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := xjson.Marshal(m.Values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, value...)
	}
	return append(buf, '}'), nil
}

// SortedValues returns a plain map's values ordered by key, the fallback
// order for maps built in Go code rather than decoded from a document.
func SortedValues(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
