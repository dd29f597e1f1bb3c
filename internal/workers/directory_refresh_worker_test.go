package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/agents"
)

// countingDirectory counts mirror writes per agent id.
type countingDirectory struct {
	mu   sync.Mutex
	puts map[string]int
}

func newCountingDirectory() *countingDirectory {
	return &countingDirectory{puts: make(map[string]int)}
}

func (d *countingDirectory) Put(ctx context.Context, agentID string, entry agents.DirectoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.puts[agentID]++
	return nil
}

func (d *countingDirectory) Delete(ctx context.Context, agentID string) error {
	return nil
}

func (d *countingDirectory) count(agentID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.puts[agentID]
}

func TestDirectoryRefresh_RemirrorsLiveAgents(t *testing.T) {
	directory := newCountingDirectory()
	registry := agents.NewRegistry(directory, nil)

	record := agents.NewRecord(agents.AgentTrader, newProbeWorker(true), agents.DefaultCapabilities(agents.AgentTrader))
	require.True(t, registry.Register(context.Background(), record))
	require.Equal(t, 1, directory.count(record.ID()), "registration mirrors once")

	refresher := NewDirectoryRefreshWorker(registry, time.Minute, time.Hour)
	require.NoError(t, refresher.Run(context.Background()))

	assert.Equal(t, 2, directory.count(record.ID()), "refresh cycle re-mirrors")
	assert.Equal(t, agents.StatusIdle, record.Status())
}

func TestDirectoryRefresh_ExpiredHeartbeatGoesOffline(t *testing.T) {
	directory := newCountingDirectory()
	registry := agents.NewRegistry(directory, nil)

	record := agents.NewRecord(agents.AgentTrader, newProbeWorker(true), agents.DefaultCapabilities(agents.AgentTrader))
	require.True(t, registry.Register(context.Background(), record))
	mirrorsAfterRegister := directory.count(record.ID())

	refresher := NewDirectoryRefreshWorker(registry, time.Minute, time.Nanosecond)
	time.Sleep(time.Millisecond)
	require.NoError(t, refresher.Run(context.Background()))

	// Expired agents flip offline and are not re-mirrored, but the local
	// record stays in the index.
	assert.Equal(t, agents.StatusOffline, record.Status())
	assert.Equal(t, mirrorsAfterRegister, directory.count(record.ID()))
	_, stillThere := registry.Get(record.ID())
	assert.True(t, stillThere)

	// Subsequent cycles skip offline agents entirely.
	require.NoError(t, refresher.Run(context.Background()))
	assert.Equal(t, mirrorsAfterRegister, directory.count(record.ID()))
}
