package node_registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

type MockHandler struct {
	mock.Mock
	nodeType string
}

func (m *MockHandler) GetType() string {
	return m.nodeType
}

func (m *MockHandler) Handle(ctx context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	args := m.Called(ctx, config, upstream)
	return args.Get(0), args.Error(1)
}

type defaultingHandler struct {
	MockHandler
}

func (d *defaultingHandler) Defaults() map[string]interface{} {
	return map[string]interface{}{"model": "default-model", "temperature": 0.2}
}

func TestNodeRegistry_RegisterHandler(t *testing.T) {
	manager := NewManager(nil)

	require.NoError(t, manager.RegisterHandler(&MockHandler{nodeType: "test"}))
	assert.True(t, manager.HasHandler("test"))
	assert.Equal(t, 1, manager.GetHandlerCount())
}

func TestNodeRegistry_RegisterHandlerTwice(t *testing.T) {
	manager := NewManager(nil)

	require.NoError(t, manager.RegisterHandler(&MockHandler{nodeType: "test"}))
	err := manager.RegisterHandler(&MockHandler{nodeType: "test"})

	var regErr *ports.NodeRegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "test", regErr.NodeType)
}

func TestNodeRegistry_RejectsInvalidHandlers(t *testing.T) {
	manager := NewManager(nil)

	assert.Error(t, manager.RegisterHandler(nil))
	assert.Error(t, manager.RegisterHandler(&MockHandler{nodeType: ""}))
	assert.Equal(t, 0, manager.GetHandlerCount())
}

func TestNodeRegistry_ReplaceHandler(t *testing.T) {
	manager := NewManager(nil)
	first := &MockHandler{nodeType: "test"}
	second := &MockHandler{nodeType: "test"}

	require.NoError(t, manager.RegisterHandler(first))
	require.NoError(t, manager.ReplaceHandler(second))

	got, err := manager.GetHandler("test")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestNodeRegistry_GetAndUnregister(t *testing.T) {
	manager := NewManager(nil)
	require.NoError(t, manager.RegisterHandler(&MockHandler{nodeType: "b"}))
	require.NoError(t, manager.RegisterHandler(&MockHandler{nodeType: "a"}))

	assert.Equal(t, []string{"a", "b"}, manager.ListHandlers())

	require.NoError(t, manager.UnregisterHandler("a"))
	_, err := manager.GetHandler("a")
	assert.True(t, domain.IsNotFound(err))
	assert.True(t, domain.IsNotFound(manager.UnregisterHandler("a")))
}

func TestNodeRegistry_InvokeCallsHandlerOnce(t *testing.T) {
	manager := NewManager(nil)
	handler := &MockHandler{nodeType: "test"}
	config := map[string]interface{}{"k": "v"}
	handler.On("Handle", mock.Anything, config, "upstream").Return("result", nil).Once()
	require.NoError(t, manager.RegisterHandler(handler))

	result, err := manager.Invoke(context.Background(), "test", config, "upstream")
	require.NoError(t, err)
	assert.Equal(t, "result", result)
	handler.AssertNumberOfCalls(t, "Handle", 1)
}

func TestNodeRegistry_InvokeUnknownTypePassesThrough(t *testing.T) {
	manager := NewManager(nil)
	upstream := map[string]interface{}{"x": 1}

	result, err := manager.Invoke(context.Background(), "unknown.type", nil, upstream)
	require.NoError(t, err)
	assert.Equal(t, upstream, result)
}

func TestNodeRegistry_InvokeMergesDefaults(t *testing.T) {
	manager := NewManager(nil)
	handler := &defaultingHandler{MockHandler{nodeType: "llm"}}
	expected := map[string]interface{}{"model": "custom", "temperature": 0.2}
	handler.On("Handle", mock.Anything, expected, nil).Return("ok", nil)
	require.NoError(t, manager.RegisterHandler(handler))

	_, err := manager.Invoke(context.Background(), "llm", map[string]interface{}{"model": "custom"}, nil)
	require.NoError(t, err)
	handler.AssertExpectations(t)
}

func TestNodeRegistry_InvokePropagatesErrors(t *testing.T) {
	manager := NewManager(nil)
	handler := &MockHandler{nodeType: "bad"}
	boom := errors.New("boom")
	handler.On("Handle", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)
	require.NoError(t, manager.RegisterHandler(handler))

	_, err := manager.Invoke(context.Background(), "bad", nil, nil)
	assert.ErrorIs(t, err, boom)
}
