package agents

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory records mirror operations in memory.
type fakeDirectory struct {
	mu      sync.Mutex
	entries map[string]DirectoryEntry
	failPut bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: make(map[string]DirectoryEntry)}
}

func (d *fakeDirectory) Put(ctx context.Context, agentID string, entry DirectoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failPut {
		return assert.AnError
	}
	d.entries[agentID] = entry
	return nil
}

func (d *fakeDirectory) Delete(ctx context.Context, agentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, agentID)
	return nil
}

func (d *fakeDirectory) has(agentID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[agentID]
	return ok
}

// fakeStore records persisted snapshots and task results.
type fakeStore struct {
	mu      sync.Mutex
	agents  map[string]Snapshot
	results []*TaskResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{agents: make(map[string]Snapshot)}
}

func (s *fakeStore) SaveAgent(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[snap.AgentID] = snap
	return nil
}

func (s *fakeStore) DeleteAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
	return nil
}

func (s *fakeStore) SaveTaskResult(ctx context.Context, result *TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func okWorker(task TaskType) Worker {
	return &FuncWorker{
		Tasks: []TaskType{task},
		Handle: func(ctx context.Context, taskCtx *TaskContext) (map[string]interface{}, error) {
			return map[string]interface{}{"report": "ok"}, nil
		},
	}
}

func newTestRecord(agentType AgentType) *AgentRecord {
	task := TaskTypeFor(agentType)
	return NewRecord(agentType, okWorker(task), DefaultCapabilities(agentType))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	directory := newFakeDirectory()
	store := newFakeStore()
	registry := NewRegistry(directory, store)

	record := newTestRecord(AgentMarketAnalyst)
	require.True(t, registry.Register(context.Background(), record))

	got, ok := registry.Get(record.ID())
	require.True(t, ok)
	assert.Same(t, record, got)
	assert.Equal(t, StatusIdle, got.Status())

	// Registration mirrors into both external stores.
	assert.True(t, directory.has(record.ID()))
	store.mu.Lock()
	_, persisted := store.agents[record.ID()]
	store.mu.Unlock()
	assert.True(t, persisted)
}

func TestRegistry_DuplicateRegistrationRejected(t *testing.T) {
	registry := NewRegistry(nil, nil)

	record := newTestRecord(AgentTrader)
	require.True(t, registry.Register(context.Background(), record))
	assert.False(t, registry.Register(context.Background(), record))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_MirrorFailureDoesNotBlockRegistration(t *testing.T) {
	directory := newFakeDirectory()
	directory.failPut = true
	registry := NewRegistry(directory, nil)

	record := newTestRecord(AgentNewsAnalyst)
	assert.True(t, registry.Register(context.Background(), record))

	_, ok := registry.Get(record.ID())
	assert.True(t, ok)
	assert.False(t, directory.has(record.ID()))
}

func TestRegistry_Unregister(t *testing.T) {
	directory := newFakeDirectory()
	store := newFakeStore()
	registry := NewRegistry(directory, store)

	record := newTestRecord(AgentBullResearcher)
	require.True(t, registry.Register(context.Background(), record))
	require.True(t, registry.Unregister(context.Background(), record.ID()))

	_, ok := registry.Get(record.ID())
	assert.False(t, ok)
	assert.Empty(t, registry.ListByType(AgentBullResearcher))
	assert.Equal(t, StatusOffline, record.Status())
	assert.False(t, directory.has(record.ID()))

	// Unknown ids are reported, not fatal.
	assert.False(t, registry.Unregister(context.Background(), "missing"))
}

func TestRegistry_FindAvailable(t *testing.T) {
	registry := NewRegistry(nil, nil)

	idle := newTestRecord(AgentRiskManager)
	busy := newTestRecord(AgentRiskManager)
	errored := newTestRecord(AgentRiskManager)
	require.True(t, registry.Register(context.Background(), idle))
	require.True(t, registry.Register(context.Background(), busy))
	require.True(t, registry.Register(context.Background(), errored))

	require.NoError(t, busy.BeginTask())
	errored.SetStatus(StatusError)

	available := registry.FindAvailable(AgentRiskManager, TaskRiskAssessment, "US")
	require.Len(t, available, 1)
	assert.Equal(t, idle.ID(), available[0].ID())

	// Unsupported market filters everything out.
	assert.Empty(t, registry.FindAvailable(AgentRiskManager, TaskRiskAssessment, "JP"))

	// No agents of the requested type is an empty result, not an error.
	assert.Empty(t, registry.FindAvailable(AgentTrader, TaskTradingDecision, "US"))
}

func TestRegistry_RegisterDefaultsCoversAllTypes(t *testing.T) {
	registry := NewRegistry(nil, nil)

	err := RegisterDefaults(context.Background(), registry, func(agentType AgentType) (Worker, error) {
		return okWorker(TaskTypeFor(agentType)), nil
	})
	require.NoError(t, err)

	assert.Equal(t, len(AllAgentTypes()), registry.Count())
	for _, agentType := range AllAgentTypes() {
		records := registry.ListByType(agentType)
		require.Len(t, records, 1, "type %s", agentType)
		assert.Equal(t, StatusIdle, records[0].Status())
	}
}

func TestRegistry_SystemStatusCounts(t *testing.T) {
	registry := NewRegistry(nil, nil)

	a := newTestRecord(AgentMarketAnalyst)
	b := newTestRecord(AgentMarketAnalyst)
	c := newTestRecord(AgentTrader)
	for _, record := range []*AgentRecord{a, b, c} {
		require.True(t, registry.Register(context.Background(), record))
	}

	require.NoError(t, b.BeginTask())
	c.SetStatus(StatusOffline)

	status := registry.SystemStatus()
	assert.Equal(t, 3, status.TotalAgents)
	assert.Equal(t, 2, status.ActiveAgents)
	assert.Equal(t, 1, status.BusyAgents)
	assert.Equal(t, 1, status.IdleAgents)
	assert.Equal(t, 0, status.ErrorAgents)

	marketStatus := status.ByType[AgentMarketAnalyst]
	assert.Equal(t, 2, marketStatus.Total)
	assert.Equal(t, 2, marketStatus.Active)
	assert.Equal(t, 1, marketStatus.Busy)
}
