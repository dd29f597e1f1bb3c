package agents

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quorum/pkg/errors"
)

// TaskContext carries the inputs for one dispatched task.
// It is immutable once created and passed by reference into the worker.
type TaskContext struct {
	TaskID       string                 `json:"task_id"`
	Symbol       string                 `json:"symbol"`
	CompanyName  string                 `json:"company_name"`
	Market       string                 `json:"market"`
	AnalysisDate string                 `json:"analysis_date"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// TaskStatus is the outcome of a dispatched task.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// TaskResult is always returned from a dispatch, never raised.
// Callers must branch on Status.
type TaskResult struct {
	TaskID    string                 `json:"task_id"`
	AgentID   string                 `json:"agent_id"`
	AgentType AgentType              `json:"agent_type"`
	Status    TaskStatus             `json:"status"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
}

// Failed reports whether the task produced an error outcome.
func (r *TaskResult) Failed() bool {
	return r.Status != TaskSuccess
}

// ErrorResult builds an error-status result for a task that never reached a worker.
func ErrorResult(taskID string, agentType AgentType, err error) *TaskResult {
	return &TaskResult{
		TaskID:    taskID,
		AgentID:   "unknown",
		AgentType: agentType,
		Status:    TaskError,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// Worker is the contract implemented by the analysis workers.
// Execute encodes ordinary failures in the result status instead of returning
// an error, so a dispatch never propagates worker failures as exceptions.
type Worker interface {
	CanHandle(task TaskType, market string) bool
	Execute(ctx context.Context, task *TaskContext) *TaskResult
	HealthCheck(ctx context.Context) bool
}

// Snapshot is a point-in-time copy of a record's observable state.
type Snapshot struct {
	AgentID       string       `json:"agent_id"`
	AgentType     AgentType    `json:"agent_type"`
	Status        AgentStatus  `json:"status"`
	CurrentTasks  int          `json:"current_tasks"`
	Metrics       Metrics      `json:"metrics"`
	CreatedAt     time.Time    `json:"created_at"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	Capabilities  []Capability `json:"capabilities"`
}

// AgentRecord is the registry-owned state for one worker. Identity fields are
// fixed at creation; mutable state is only touched through the guarded methods.
type AgentRecord struct {
	id           string
	agentType    AgentType
	worker       Worker
	capabilities []Capability
	createdAt    time.Time

	mu            sync.RWMutex
	status        AgentStatus
	currentTasks  int
	metrics       Metrics
	lastHeartbeat time.Time
}

// NewRecord creates a record with a generated id for the given worker.
func NewRecord(agentType AgentType, worker Worker, capabilities []Capability) *AgentRecord {
	now := time.Now()
	return &AgentRecord{
		id:            uuid.NewString(),
		agentType:     agentType,
		worker:        worker,
		capabilities:  capabilities,
		createdAt:     now,
		status:        StatusIdle,
		lastHeartbeat: now,
	}
}

// ID returns the unique agent id.
func (r *AgentRecord) ID() string { return r.id }

// Type returns the agent type.
func (r *AgentRecord) Type() AgentType { return r.agentType }

// Worker returns the worker backing this record.
func (r *AgentRecord) Worker() Worker { return r.worker }

// Capabilities returns the declared capability set.
func (r *AgentRecord) Capabilities() []Capability { return r.capabilities }

// CreatedAt returns the record creation time.
func (r *AgentRecord) CreatedAt() time.Time { return r.createdAt }

// Status returns the current lifecycle status.
func (r *AgentRecord) Status() AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SetStatus overrides the lifecycle status (health flips, deregistration).
func (r *AgentRecord) SetStatus(status AgentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// CurrentTasks returns the number of in-flight dispatches.
func (r *AgentRecord) CurrentTasks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentTasks
}

// SuccessRate returns the agent's lifetime task success rate.
func (r *AgentRecord) SuccessRate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics.SuccessRate()
}

// MaxConcurrentTasks returns the largest concurrency limit across capabilities.
func (r *AgentRecord) MaxConcurrentTasks() int {
	max := 1
	for _, c := range r.capabilities {
		if c.MaxConcurrentTasks > max {
			max = c.MaxConcurrentTasks
		}
	}
	return max
}

// CanHandle reports whether any declared capability covers the task and market.
func (r *AgentRecord) CanHandle(task TaskType, market string) bool {
	for _, c := range r.capabilities {
		if c.Matches(task, market) {
			return true
		}
	}
	return false
}

// BeginTask transitions the record into the busy state for one dispatch.
func (r *AgentRecord) BeginTask() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case StatusOffline:
		return errors.ErrAgentOffline
	case StatusError:
		return errors.Wrapf(errors.ErrUnavailable, "agent %s in error state", r.id)
	}

	max := 1
	for _, c := range r.capabilities {
		if c.MaxConcurrentTasks > max {
			max = c.MaxConcurrentTasks
		}
	}
	if r.currentTasks >= max {
		return errors.ErrAgentBusy
	}

	r.currentTasks++
	r.status = StatusBusy
	return nil
}

// FinishTask completes one dispatch, updating metrics and flipping back to idle
// once no tasks remain in flight.
func (r *AgentRecord) FinishTask(success bool, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentTasks > 0 {
		r.currentTasks--
	}
	if r.currentTasks == 0 && r.status == StatusBusy {
		r.status = StatusIdle
	}
	r.metrics.record(success, duration)
	r.lastHeartbeat = time.Now()
}

// Heartbeat refreshes the liveness timestamp.
func (r *AgentRecord) Heartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHeartbeat = time.Now()
}

// LastHeartbeat returns the most recent liveness timestamp.
func (r *AgentRecord) LastHeartbeat() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastHeartbeat
}

// Snapshot copies the record's observable state.
func (r *AgentRecord) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		AgentID:       r.id,
		AgentType:     r.agentType,
		Status:        r.status,
		CurrentTasks:  r.currentTasks,
		Metrics:       r.metrics,
		CreatedAt:     r.createdAt,
		LastHeartbeat: r.lastHeartbeat,
		Capabilities:  r.capabilities,
	}
}
