package analysis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/config"
	"quorum/internal/agents"
	"quorum/internal/workflow"
	"quorum/pkg/errors"
)

// stubExecutor answers every dispatch successfully. An optional gate blocks
// the first dispatch until released, to hold a run in flight.
type stubExecutor struct {
	dispatches atomic.Int32
	started    chan struct{}
	release    chan struct{}
}

func (s *stubExecutor) ExecuteTask(ctx context.Context, agentType agents.AgentType, task agents.TaskType, taskCtx *agents.TaskContext) *agents.TaskResult {
	if s.dispatches.Add(1) == 1 && s.started != nil {
		close(s.started)
		<-s.release
	}
	return &agents.TaskResult{
		TaskID:    taskCtx.TaskID,
		AgentType: agentType,
		Status:    agents.TaskSuccess,
		Result:    map[string]interface{}{"report": string(agentType) + " report"},
	}
}

func testDefaults() config.AnalysisConfig {
	return config.AnalysisConfig{
		SelectedAnalysts: []string{"market", "news"},
		ResearchDepth:    1,
		MarketType:       "US",
		LLMProvider:      "openai",
		LLMModel:         "gpt-4o-mini",
	}
}

func newTestService(executor workflow.TaskExecutor) *Service {
	return NewService(workflow.NewEngine(executor), nil, testDefaults())
}

func TestService_SubmitRunsToCompletion(t *testing.T) {
	service := newTestService(&stubExecutor{})

	id, err := service.Submit(context.Background(), Request{Symbol: "AAPL"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, ok := service.Get(id)
	require.True(t, ok)

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	result, runErr, done := service.Result(id)
	require.True(t, done)
	require.NoError(t, runErr)
	require.NotNil(t, result)
	assert.Equal(t, id, result.AnalysisID)
	assert.Equal(t, "AAPL", result.Symbol)
	assert.NotEmpty(t, result.FinalDecision)

	progress, ok := service.Progress(id)
	require.True(t, ok)
	assert.Equal(t, "completed", progress.Status)
	assert.Equal(t, 100, progress.Percent)
}

func TestService_SubmitAppliesDefaults(t *testing.T) {
	executor := &stubExecutor{}
	service := newTestService(executor)

	id, err := service.Submit(context.Background(), Request{Symbol: "AAPL"})
	require.NoError(t, err)

	run, _ := service.Get(id)
	<-run.Done()

	result, _, _ := service.Result(id)
	require.NotNil(t, result)

	// Two analysts at depth 1: 2 + 2 debate + manager + trader + 3 risk + 1.
	assert.Equal(t, int32(2+2+1+1+3+1), executor.dispatches.Load())
	assert.NotEmpty(t, result.AnalysisDate, "analysis date defaulted")
}

func TestService_SubmitRejectsInvalidRequests(t *testing.T) {
	service := newTestService(&stubExecutor{})

	_, err := service.Submit(context.Background(), Request{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = service.Submit(context.Background(), Request{Symbol: "AAPL", ResearchDepth: 7})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = service.Submit(context.Background(), Request{Symbol: "AAPL", Analysts: []string{"quant"}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestService_CancelStopsRun(t *testing.T) {
	executor := &stubExecutor{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	service := newTestService(executor)

	id, err := service.Submit(context.Background(), Request{Symbol: "AAPL"})
	require.NoError(t, err)

	// Result is unavailable while the run is in flight.
	<-executor.started
	_, _, done := service.Result(id)
	assert.False(t, done)

	require.True(t, service.Cancel(id))
	close(executor.release)

	run, _ := service.Get(id)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not finish")
	}

	result, runErr, done := service.Result(id)
	require.True(t, done)
	assert.Nil(t, result)
	assert.ErrorIs(t, runErr, errors.ErrCancelled)

	// The in-flight stage completed, nothing further was dispatched.
	assert.Equal(t, int32(1), executor.dispatches.Load())

	progress, ok := service.Progress(id)
	require.True(t, ok)
	assert.Equal(t, "cancelled", progress.Status)
}

func TestService_UnknownID(t *testing.T) {
	service := newTestService(&stubExecutor{})

	assert.False(t, service.Cancel("missing"))

	_, ok := service.Progress("missing")
	assert.False(t, ok)

	_, _, done := service.Result("missing")
	assert.False(t, done)
}

func TestService_SubmitterContextDoesNotCancelRun(t *testing.T) {
	service := newTestService(&stubExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	id, err := service.Submit(ctx, Request{Symbol: "AAPL"})
	require.NoError(t, err)
	cancel()

	run, _ := service.Get(id)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	_, runErr, done := service.Result(id)
	require.True(t, done)
	assert.NoError(t, runErr, "run outlives the submitter's context")
}
