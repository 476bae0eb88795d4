package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

var (
	_ ports.MetricsPort = (*Collector)(nil)
	_ ports.MetricsPort = Noop{}
)

func TestCollector_RunLifecycle(t *testing.T) {
	c := NewCollector()

	c.RunStarted()
	c.RunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsActive))

	c.RunFinished(domain.RunStatusCompleted, 0.2)
	c.RunFinished(domain.RunStatusFailed, 1.5)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.runsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.runDuration))
}

func TestCollector_StepsAndCompileFailures(t *testing.T) {
	c := NewCollector()

	c.StepFinished("trigger.http", "ok", 0.01)
	c.StepFinished("trigger.http", "ok", 0.02)
	c.StepFinished("action.chat_completion", "override", 0)
	c.CompileFailed("multi_branch")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stepsFinished.WithLabelValues("trigger.http", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stepsFinished.WithLabelValues("action.chat_completion", "override")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compileFailures.WithLabelValues("multi_branch")))
}

func TestCollector_Subscribers(t *testing.T) {
	c := NewCollector()

	c.SubscriberAttached()
	c.SubscriberAttached()
	c.SubscriberDetached()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamSubscribers))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RunStarted()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runsStarted))

	families, err := a.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["triggerflow_runs_started_total"])
	assert.True(t, names["go_goroutines"])
}
