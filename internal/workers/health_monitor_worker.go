package workers

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"quorum/internal/agents"
	"quorum/internal/metrics"
)

// healthyThreshold is the exclusive lower bound on the healthy ratio for the
// system to be considered healthy.
const healthyThreshold = 0.8

// HealthMonitorWorker probes every registered agent each cycle and publishes
// the aggregate system health. One agent's probe failure never aborts the
// cycle for the others.
type HealthMonitorWorker struct {
	*BaseWorker
	registry *agents.Registry

	healthy   atomic.Bool
	ratioBits atomic.Uint64
}

// NewHealthMonitorWorker creates the monitor with the given probe interval.
func NewHealthMonitorWorker(registry *agents.Registry, interval time.Duration) *HealthMonitorWorker {
	return &HealthMonitorWorker{
		BaseWorker: NewBaseWorker("health_monitor", interval, true),
		registry:   registry,
	}
}

// Run executes one monitoring cycle.
func (w *HealthMonitorWorker) Run(ctx context.Context) error {
	start := time.Now()

	records := w.registry.List()
	if len(records) == 0 {
		w.publish(0)
		w.RecordRun(time.Since(start))
		return nil
	}

	healthyCount := 0
	for _, record := range records {
		if w.probe(ctx, record) {
			healthyCount++
			// Recover agents that a previous cycle flipped to error.
			if record.Status() == agents.StatusError {
				record.SetStatus(agents.StatusIdle)
				w.Log().Infof("Agent %s recovered", record.ID())
			}
			record.Heartbeat()
		} else {
			w.Log().Warnf("Health probe failed: %s (id: %s)", record.Type(), record.ID())
			record.SetStatus(agents.StatusError)
			metrics.HealthCheckFailures.WithLabelValues(string(record.Type())).Inc()
		}
	}

	ratio := float64(healthyCount) / float64(len(records))
	w.publish(ratio)

	w.Log().Debugf("Health check complete: %d/%d agents healthy", healthyCount, len(records))
	w.RecordRun(time.Since(start))
	return nil
}

// probe isolates a single agent's health check, treating a panic as unhealthy.
func (w *HealthMonitorWorker) probe(ctx context.Context, record *agents.AgentRecord) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			w.Log().Errorf("Health probe panicked: agent=%s panic=%v", record.ID(), r)
			ok = false
		}
	}()
	return record.Worker().HealthCheck(ctx)
}

func (w *HealthMonitorWorker) publish(ratio float64) {
	w.ratioBits.Store(math.Float64bits(ratio))
	w.healthy.Store(ratio > healthyThreshold)
	metrics.SystemHealthRatio.Set(ratio)
}

// SystemHealthy reports whether the last cycle's ratio exceeded the threshold.
// Exactly at the threshold is unhealthy.
func (w *HealthMonitorWorker) SystemHealthy() bool {
	return w.healthy.Load()
}

// HealthRatio returns the last published healthy ratio.
func (w *HealthMonitorWorker) HealthRatio() float64 {
	return math.Float64frombits(w.ratioBits.Load())
}
