package ports

import (
	"context"
)

// NodeHandler executes one node type. Handlers receive the step's
// configuration and the previous step's result, and return the value
// passed downstream. Handle must return once ctx is done; a handler that
// outlives its step timeout is abandoned and keeps its goroutine.
type NodeHandler interface {
	GetType() string
	Handle(ctx context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error)
}

// NodeHandlerFunc adapts a plain function to NodeHandler.
type NodeHandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error)
}

func (f NodeHandlerFunc) GetType() string {
	return f.Type
}

func (f NodeHandlerFunc) Handle(ctx context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	return f.Fn(ctx, config, upstream)
}

// DefaultsProvider is implemented by handlers that ship default configuration.
type DefaultsProvider interface {
	Defaults() map[string]interface{}
}

type NodeRegistryPort interface {
	RegisterHandler(handler NodeHandler) error
	GetHandler(nodeType string) (NodeHandler, error)
	ListHandlers() []string
	UnregisterHandler(nodeType string) error
	HasHandler(nodeType string) bool
	GetHandlerCount() int

	// Invoke runs the handler registered for nodeType. Unregistered types
	// return upstream unchanged.
	Invoke(ctx context.Context, nodeType string, config map[string]interface{}, upstream interface{}) (interface{}, error)
}

type NodeRegistrationError struct {
	NodeType string
	Reason   string
}

func (e NodeRegistrationError) Error() string {
	return "handler registration failed for '" + e.NodeType + "': " + e.Reason
}
