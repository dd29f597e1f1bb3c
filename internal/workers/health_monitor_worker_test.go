package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/agents"
)

// probeWorker is an agent worker whose health outcome can be toggled.
type probeWorker struct {
	healthy atomic.Bool
	panics  bool
}

func newProbeWorker(healthy bool) *probeWorker {
	w := &probeWorker{}
	w.healthy.Store(healthy)
	return w
}

func (w *probeWorker) CanHandle(task agents.TaskType, market string) bool { return true }

func (w *probeWorker) Execute(ctx context.Context, task *agents.TaskContext) *agents.TaskResult {
	return &agents.TaskResult{TaskID: task.TaskID, Status: agents.TaskSuccess}
}

func (w *probeWorker) HealthCheck(ctx context.Context) bool {
	if w.panics {
		panic("probe exploded")
	}
	return w.healthy.Load()
}

func registerProbeAgents(t *testing.T, registry *agents.Registry, workers ...*probeWorker) []*agents.AgentRecord {
	t.Helper()
	records := make([]*agents.AgentRecord, len(workers))
	for i, w := range workers {
		record := agents.NewRecord(agents.AgentMarketAnalyst, w, agents.DefaultCapabilities(agents.AgentMarketAnalyst))
		require.True(t, registry.Register(context.Background(), record))
		records[i] = record
	}
	return records
}

func TestHealthMonitor_EmptyRegistryIsUnhealthy(t *testing.T) {
	registry := agents.NewRegistry(nil, nil)
	monitor := NewHealthMonitorWorker(registry, time.Minute)

	require.NoError(t, monitor.Run(context.Background()))

	assert.False(t, monitor.SystemHealthy())
	assert.Equal(t, 0.0, monitor.HealthRatio())
}

func TestHealthMonitor_AllHealthy(t *testing.T) {
	registry := agents.NewRegistry(nil, nil)
	registerProbeAgents(t, registry, newProbeWorker(true), newProbeWorker(true))

	monitor := NewHealthMonitorWorker(registry, time.Minute)
	require.NoError(t, monitor.Run(context.Background()))

	assert.True(t, monitor.SystemHealthy())
	assert.Equal(t, 1.0, monitor.HealthRatio())
}

func TestHealthMonitor_ThresholdIsExclusive(t *testing.T) {
	registry := agents.NewRegistry(nil, nil)

	// 4 of 5 healthy: ratio is exactly 0.8, which is not healthy.
	workers := []*probeWorker{
		newProbeWorker(true), newProbeWorker(true), newProbeWorker(true),
		newProbeWorker(true), newProbeWorker(false),
	}
	registerProbeAgents(t, registry, workers...)

	monitor := NewHealthMonitorWorker(registry, time.Minute)
	require.NoError(t, monitor.Run(context.Background()))

	assert.InDelta(t, 0.8, monitor.HealthRatio(), 1e-9)
	assert.False(t, monitor.SystemHealthy())

	// One agent recovers: 5 of 5 crosses the boundary.
	workers[4].healthy.Store(true)
	require.NoError(t, monitor.Run(context.Background()))
	assert.True(t, monitor.SystemHealthy())
}

func TestHealthMonitor_FailureFlipsAgentToError(t *testing.T) {
	registry := agents.NewRegistry(nil, nil)
	worker := newProbeWorker(false)
	records := registerProbeAgents(t, registry, worker)

	monitor := NewHealthMonitorWorker(registry, time.Minute)
	require.NoError(t, monitor.Run(context.Background()))
	assert.Equal(t, agents.StatusError, records[0].Status())

	// Recovery flips the agent back to idle and refreshes its heartbeat.
	worker.healthy.Store(true)
	before := records[0].LastHeartbeat()
	require.NoError(t, monitor.Run(context.Background()))
	assert.Equal(t, agents.StatusIdle, records[0].Status())
	assert.True(t, records[0].LastHeartbeat().After(before) || records[0].LastHeartbeat().Equal(before))
}

func TestHealthMonitor_PanickingProbeIsIsolated(t *testing.T) {
	registry := agents.NewRegistry(nil, nil)
	bad := newProbeWorker(true)
	bad.panics = true
	records := registerProbeAgents(t, registry, bad, newProbeWorker(true))

	monitor := NewHealthMonitorWorker(registry, time.Minute)
	require.NotPanics(t, func() {
		require.NoError(t, monitor.Run(context.Background()))
	})

	// The panicking agent is unhealthy, the other one was still probed.
	assert.Equal(t, agents.StatusError, records[0].Status())
	assert.Equal(t, agents.StatusIdle, records[1].Status())
	assert.InDelta(t, 0.5, monitor.HealthRatio(), 1e-9)
}
