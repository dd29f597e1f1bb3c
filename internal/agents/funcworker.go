package agents

import (
	"context"
	"time"
)

// FuncWorker adapts a plain function into a Worker. Handle receives the task
// context and returns the worker's result payload; a non-nil error becomes an
// error-status result.
type FuncWorker struct {
	Tasks  []TaskType
	Handle func(ctx context.Context, task *TaskContext) (map[string]interface{}, error)
	Health func(ctx context.Context) bool
}

// CanHandle reports whether the task type is in the worker's task list.
// Market filtering is left to the record's capability set.
func (w *FuncWorker) CanHandle(task TaskType, market string) bool {
	for _, t := range w.Tasks {
		if t == task {
			return true
		}
	}
	return false
}

// Execute invokes the wrapped handler and wraps its outcome into a result.
func (w *FuncWorker) Execute(ctx context.Context, task *TaskContext) *TaskResult {
	payload, err := w.Handle(ctx, task)
	if err != nil {
		return &TaskResult{
			TaskID:    task.TaskID,
			Status:    TaskError,
			Error:     err.Error(),
			Timestamp: time.Now(),
		}
	}
	return &TaskResult{
		TaskID:    task.TaskID,
		Status:    TaskSuccess,
		Result:    payload,
		Timestamp: time.Now(),
	}
}

// HealthCheck invokes the optional health function; a nil function means
// always healthy.
func (w *FuncWorker) HealthCheck(ctx context.Context) bool {
	if w.Health == nil {
		return true
	}
	return w.Health(ctx)
}
