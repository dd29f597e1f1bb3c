package agents

import (
	"context"
	"time"

	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Dispatcher routes one task to an eligible worker of the requested type.
// It never surfaces worker failures as errors; every outcome is a TaskResult.
type Dispatcher struct {
	registry *Registry
	balancer *LoadBalancer
	store    Store
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given registry and balancer.
func NewDispatcher(registry *Registry, balancer *LoadBalancer, store Store) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		balancer: balancer,
		store:    store,
		log:      logger.Get().With("component", "dispatcher"),
	}
}

// ExecuteTask finds an idle, capable agent, dispatches the task to it and
// returns the worker's result. Dispatch-level failures (no agent available,
// capacity race) come back as error-status results.
func (d *Dispatcher) ExecuteTask(ctx context.Context, agentType AgentType, task TaskType, taskCtx *TaskContext) *TaskResult {
	candidates := d.registry.FindAvailable(agentType, task, taskCtx.Market)
	if len(candidates) == 0 {
		d.log.Warnf("No available agents: type=%s task=%s market=%s", agentType, task, taskCtx.Market)
		metrics.DispatchTotal.WithLabelValues(string(agentType), "error").Inc()
		return ErrorResult(taskCtx.TaskID, agentType,
			errors.Wrapf(errors.ErrNoAgentsAvailable, "type %s", agentType))
	}

	record, err := d.balancer.Select(candidates)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(string(agentType), "error").Inc()
		return ErrorResult(taskCtx.TaskID, agentType, err)
	}

	// A concurrent dispatch may have consumed the last slot between the
	// availability check and here; treat that as unavailability too.
	if err := record.BeginTask(); err != nil {
		d.log.Warnf("Selected agent %s rejected task: %v", record.ID(), err)
		metrics.DispatchTotal.WithLabelValues(string(agentType), "error").Inc()
		return ErrorResult(taskCtx.TaskID, agentType, err)
	}

	d.log.Debugf("Dispatching task %s to %s (id: %s)", taskCtx.TaskID, agentType, record.ID())

	result := d.execute(ctx, record, taskCtx)

	success := !result.Failed()
	record.FinishTask(success, result.Duration)

	status := "success"
	if !success {
		status = "error"
	}
	metrics.DispatchTotal.WithLabelValues(string(agentType), status).Inc()
	metrics.DispatchLatency.WithLabelValues(string(agentType)).Observe(result.Duration.Seconds())

	if d.store != nil {
		if err := d.store.SaveTaskResult(ctx, result); err != nil {
			d.log.Warnf("Task result persist failed for %s: %v", result.TaskID, err)
		}
	}

	return result
}

// execute runs the worker call, converting panics into error results so a
// misbehaving worker cannot break the dispatch contract.
func (d *Dispatcher) execute(ctx context.Context, record *AgentRecord, taskCtx *TaskContext) (result *TaskResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("Worker panicked: agent=%s panic=%v", record.ID(), r)
			result = &TaskResult{
				TaskID:    taskCtx.TaskID,
				AgentID:   record.ID(),
				AgentType: record.Type(),
				Status:    TaskError,
				Error:     errors.Newf("worker panic: %v", r).Error(),
				Duration:  time.Since(start),
				Timestamp: time.Now(),
			}
		}
	}()

	result = record.Worker().Execute(ctx, taskCtx)
	if result == nil {
		result = ErrorResult(taskCtx.TaskID, record.Type(), errors.New("worker returned no result"))
	}

	result.AgentID = record.ID()
	result.AgentType = record.Type()
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return result
}
