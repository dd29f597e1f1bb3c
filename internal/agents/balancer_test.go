package agents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/errors"
)

func recordsOfType(agentType AgentType, n int) []*AgentRecord {
	records := make([]*AgentRecord, n)
	for i := range records {
		records[i] = newTestRecord(agentType)
	}
	return records
}

func TestLoadBalancer_EmptyCandidates(t *testing.T) {
	balancer := NewLoadBalancer(StrategyRoundRobin)

	_, err := balancer.Select(nil)
	assert.ErrorIs(t, err, errors.ErrNoAgentsAvailable)
}

func TestLoadBalancer_SingleCandidateShortCircuit(t *testing.T) {
	balancer := NewLoadBalancer(StrategyRoundRobin)
	only := newTestRecord(AgentTrader)

	// Repeated single-candidate selections must not advance the rotation.
	for i := 0; i < 3; i++ {
		selected, err := balancer.Select([]*AgentRecord{only})
		require.NoError(t, err)
		assert.Same(t, only, selected)
	}

	pair := recordsOfType(AgentTrader, 2)
	selected, err := balancer.Select(pair)
	require.NoError(t, err)
	assert.Same(t, pair[0], selected, "rotation starts at index 0")
}

func TestLoadBalancer_RoundRobinCycles(t *testing.T) {
	balancer := NewLoadBalancer(StrategyRoundRobin)
	records := recordsOfType(AgentMarketAnalyst, 3)

	for i := 0; i < 7; i++ {
		selected, err := balancer.Select(records)
		require.NoError(t, err)
		assert.Same(t, records[i%3], selected, "selection %d", i)
	}
}

func TestLoadBalancer_RoundRobinCountersPerType(t *testing.T) {
	balancer := NewLoadBalancer(StrategyRoundRobin)
	analysts := recordsOfType(AgentMarketAnalyst, 2)
	traders := recordsOfType(AgentTrader, 2)

	first, err := balancer.Select(analysts)
	require.NoError(t, err)
	assert.Same(t, analysts[0], first)

	// A different type starts its own rotation.
	selected, err := balancer.Select(traders)
	require.NoError(t, err)
	assert.Same(t, traders[0], selected)

	second, err := balancer.Select(analysts)
	require.NoError(t, err)
	assert.Same(t, analysts[1], second)
}

func TestLoadBalancer_LeastBusy(t *testing.T) {
	balancer := NewLoadBalancer(StrategyLeastBusy)
	records := recordsOfType(AgentRiskManager, 3)

	require.NoError(t, records[0].BeginTask())
	require.NoError(t, records[1].BeginTask())

	selected, err := balancer.Select(records)
	require.NoError(t, err)
	assert.Same(t, records[2], selected)
}

func TestLoadBalancer_LeastBusyTieGoesToFirst(t *testing.T) {
	balancer := NewLoadBalancer(StrategyLeastBusy)
	records := recordsOfType(AgentRiskManager, 3)

	selected, err := balancer.Select(records)
	require.NoError(t, err)
	assert.Same(t, records[0], selected)
}

func TestLoadBalancer_BestPerformance(t *testing.T) {
	balancer := NewLoadBalancer(StrategyBestPerformance)
	records := recordsOfType(AgentNewsAnalyst, 3)

	// records[1]: 2/2 succeeded, records[0]: 1/2, records[2]: untouched.
	finishTask(t, records[0], true)
	finishTask(t, records[0], false)
	finishTask(t, records[1], true)
	finishTask(t, records[1], true)

	selected, err := balancer.Select(records)
	require.NoError(t, err)
	assert.Same(t, records[1], selected)
}

func TestLoadBalancer_BestPerformanceZeroHistoryTie(t *testing.T) {
	balancer := NewLoadBalancer(StrategyBestPerformance)
	records := recordsOfType(AgentNewsAnalyst, 2)

	// No history anywhere: rate is 0 for all, first candidate wins.
	selected, err := balancer.Select(records)
	require.NoError(t, err)
	assert.Same(t, records[0], selected)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, StrategyLeastBusy, ParseStrategy("least_busy"))
	assert.Equal(t, StrategyBestPerformance, ParseStrategy("best_performance"))
	assert.Equal(t, StrategyRoundRobin, ParseStrategy("round_robin"))
	assert.Equal(t, StrategyRoundRobin, ParseStrategy("unknown"))
	assert.Equal(t, StrategyRoundRobin, ParseStrategy(""))
}

func finishTask(t *testing.T, record *AgentRecord, success bool) {
	t.Helper()
	require.NoError(t, record.BeginTask())
	record.FinishTask(success, 10*time.Millisecond)
}
