package agents

import (
	"sync"

	"quorum/pkg/errors"
)

// Strategy selects how the load balancer picks among eligible agents.
type Strategy string

const (
	StrategyRoundRobin      Strategy = "round_robin"
	StrategyLeastBusy       Strategy = "least_busy"
	StrategyBestPerformance Strategy = "best_performance"
)

// ParseStrategy maps a config string to a Strategy, defaulting to round robin.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyLeastBusy:
		return StrategyLeastBusy
	case StrategyBestPerformance:
		return StrategyBestPerformance
	default:
		return StrategyRoundRobin
	}
}

// LoadBalancer picks exactly one agent from a list of eligible candidates of
// the same type. Round-robin counters are per type and live for the lifetime
// of the balancer instance.
type LoadBalancer struct {
	strategy Strategy

	mu       sync.Mutex
	counters map[AgentType]int
}

// NewLoadBalancer creates a balancer with the given strategy.
func NewLoadBalancer(strategy Strategy) *LoadBalancer {
	return &LoadBalancer{
		strategy: strategy,
		counters: make(map[AgentType]int),
	}
}

// Select returns one agent from the candidate list. An empty list is an
// error; a single-element list is returned without touching strategy state.
func (b *LoadBalancer) Select(candidates []*AgentRecord) (*AgentRecord, error) {
	if len(candidates) == 0 {
		return nil, errors.ErrNoAgentsAvailable
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	switch b.strategy {
	case StrategyLeastBusy:
		return b.selectLeastBusy(candidates), nil
	case StrategyBestPerformance:
		return b.selectBestPerformance(candidates), nil
	default:
		return b.selectRoundRobin(candidates), nil
	}
}

func (b *LoadBalancer) selectRoundRobin(candidates []*AgentRecord) *AgentRecord {
	agentType := candidates[0].Type()

	b.mu.Lock()
	index := b.counters[agentType] % len(candidates)
	b.counters[agentType]++
	b.mu.Unlock()

	return candidates[index]
}

// Ties go to the earliest candidate in input order.
func (b *LoadBalancer) selectLeastBusy(candidates []*AgentRecord) *AgentRecord {
	best := candidates[0]
	bestTasks := best.CurrentTasks()
	for _, candidate := range candidates[1:] {
		if tasks := candidate.CurrentTasks(); tasks < bestTasks {
			best = candidate
			bestTasks = tasks
		}
	}
	return best
}

// Ties go to the earliest candidate in input order.
func (b *LoadBalancer) selectBestPerformance(candidates []*AgentRecord) *AgentRecord {
	best := candidates[0]
	bestRate := best.SuccessRate()
	for _, candidate := range candidates[1:] {
		if rate := candidate.SuccessRate(); rate > bestRate {
			best = candidate
			bestRate = rate
		}
	}
	return best
}
