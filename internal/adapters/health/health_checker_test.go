package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRuns struct {
	active   []string
	draining bool
}

func (f fakeRuns) Active() []string { return f.active }
func (f fakeRuns) Draining() bool   { return f.draining }

type fakeStore bool

func (f fakeStore) Healthy() bool { return bool(f) }

func TestChecker(t *testing.T) {
	tests := []struct {
		name    string
		runs    RunTracker
		store   StoreProbe
		status  string
		healthy bool
		ready   bool
		active  int
	}{
		{name: "nothing wired", status: "ok", healthy: true, ready: true},
		{name: "busy", runs: fakeRuns{active: []string{"a", "b"}}, store: fakeStore(true), status: "ok", healthy: true, ready: true, active: 2},
		{name: "draining", runs: fakeRuns{draining: true}, store: fakeStore(true), status: "draining", healthy: true, ready: false},
		{name: "store down", runs: fakeRuns{draining: true}, store: fakeStore(false), status: "storage_unavailable", healthy: false, ready: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(tt.runs, tt.store, nil)
			status := checker.GetHealth()
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.healthy, status.Healthy)
			assert.Equal(t, tt.active, status.ActiveRuns)
			assert.Equal(t, tt.ready, checker.IsReady())
		})
	}
}
