package agents

import (
	"context"
	"time"

	"quorum/internal/metrics"
	"quorum/pkg/errors"
)

// WorkerFactory produces a worker implementation for an agent type.
type WorkerFactory func(agentType AgentType) (Worker, error)

var defaultMarkets = []string{"US", "CN", "HK"}

// taskTypeFor maps each agent type to the task category its stage dispatches.
var taskTypeFor = map[AgentType]TaskType{
	AgentMarketAnalyst:       TaskTechnicalAnalysis,
	AgentFundamentalsAnalyst: TaskFundamentalsAnalysis,
	AgentNewsAnalyst:         TaskNewsAnalysis,
	AgentSocialMediaAnalyst:  TaskSentimentAnalysis,
	AgentBullResearcher:      TaskBullResearch,
	AgentBearResearcher:      TaskBearResearch,
	AgentResearchManager:     TaskResearchManagement,
	AgentTrader:              TaskTradingDecision,
	AgentRiskyDebator:        TaskRiskAssessment,
	AgentSafeDebator:         TaskRiskAssessment,
	AgentNeutralDebator:      TaskRiskAssessment,
	AgentRiskManager:         TaskRiskAssessment,
}

// TaskTypeFor returns the task category dispatched to the given agent type.
func TaskTypeFor(agentType AgentType) TaskType {
	return taskTypeFor[agentType]
}

// DefaultCapabilities returns the capability set a default instance of the
// given type exposes.
func DefaultCapabilities(agentType AgentType) []Capability {
	return []Capability{
		{
			Name:               taskTypeFor[agentType],
			Description:        string(agentType) + " default capability",
			SupportedMarkets:   defaultMarkets,
			MaxConcurrentTasks: 1,
			EstimatedDuration:  60 * time.Second,
		},
	}
}

// RegisterDefaults creates and registers one record per agent type.
// A factory failure for one type does not block the others; the combined
// error is returned after all types were attempted.
func RegisterDefaults(ctx context.Context, registry *Registry, factory WorkerFactory) error {
	var errs errors.MultiError

	for _, agentType := range AllAgentTypes() {
		worker, err := factory(agentType)
		if err != nil {
			errs.Add(errors.Wrapf(err, "create worker for %s", agentType))
			continue
		}

		record := NewRecord(agentType, worker, DefaultCapabilities(agentType))
		if !registry.Register(ctx, record) {
			errs.Add(errors.Wrapf(errors.ErrDuplicateAgent, "register %s", agentType))
			continue
		}
		metrics.RegisteredAgents.WithLabelValues(string(agentType)).Inc()
	}

	return errs.ToError()
}
