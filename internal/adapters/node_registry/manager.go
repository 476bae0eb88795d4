package node_registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

type Manager struct {
	handlers map[string]ports.NodeHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		handlers: make(map[string]ports.NodeHandler),
		logger:   logger.With("component", "node-registry"),
	}
}

func (r *Manager) RegisterHandler(handler ports.NodeHandler) error {
	if handler == nil {
		r.logger.Error("attempted to register nil handler")
		return &ports.NodeRegistrationError{
			NodeType: "<nil>",
			Reason:   "handler cannot be nil",
		}
	}

	nodeType := handler.GetType()
	r.logger.Debug("attempting to register handler", "node_type", nodeType)

	if nodeType == "" {
		r.logger.Error("attempted to register handler with empty type")
		return &ports.NodeRegistrationError{
			NodeType: nodeType,
			Reason:   "node type cannot be empty",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[nodeType]; exists {
		r.logger.Debug("handler registration failed - already exists", "node_type", nodeType)
		return &ports.NodeRegistrationError{
			NodeType: nodeType,
			Reason:   "handler already registered",
		}
	}

	r.handlers[nodeType] = handler
	r.logger.Debug("handler registered", "node_type", nodeType, "total_handlers", len(r.handlers))
	return nil
}

// ReplaceHandler registers handler, overwriting any existing one for its type.
func (r *Manager) ReplaceHandler(handler ports.NodeHandler) error {
	if handler == nil || handler.GetType() == "" {
		return &ports.NodeRegistrationError{NodeType: "<invalid>", Reason: "handler must be non-nil with a type"}
	}

	r.mu.Lock()
	r.handlers[handler.GetType()] = handler
	r.mu.Unlock()

	r.logger.Debug("handler replaced", "node_type", handler.GetType())
	return nil
}

func (r *Manager) GetHandler(nodeType string) (ports.NodeHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[nodeType]
	if !exists {
		return nil, domain.NewNotFoundError("handler", nodeType)
	}
	return handler, nil
}

func (r *Manager) ListHandlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for nodeType := range r.handlers {
		types = append(types, nodeType)
	}
	sort.Strings(types)
	return types
}

func (r *Manager) UnregisterHandler(nodeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[nodeType]; !exists {
		r.logger.Debug("handler unregistration failed - not found", "node_type", nodeType)
		return domain.NewNotFoundError("handler", nodeType)
	}

	delete(r.handlers, nodeType)
	r.logger.Debug("handler unregistered", "node_type", nodeType, "remaining_handlers", len(r.handlers))
	return nil
}

func (r *Manager) HasHandler(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.handlers[nodeType]
	return exists
}

func (r *Manager) GetHandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers)
}

func (r *Manager) Invoke(ctx context.Context, nodeType string, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	r.mu.RLock()
	handler, exists := r.handlers[nodeType]
	r.mu.RUnlock()

	if !exists {
		r.logger.Debug("no handler registered, passing upstream through", "node_type", nodeType)
		return upstream, nil
	}

	if provider, ok := handler.(ports.DefaultsProvider); ok {
		merged, err := domain.MergeConfiguration(provider.Defaults(), config)
		if err != nil {
			return nil, err
		}
		config = merged
	}

	return handler.Handle(ctx, config, upstream)
}
