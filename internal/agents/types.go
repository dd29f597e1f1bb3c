package agents

import "time"

// AgentType enumerates the fixed set of worker roles in the decision pipeline.
type AgentType string

const (
	// Analyst team
	AgentMarketAnalyst       AgentType = "market_analyst"
	AgentFundamentalsAnalyst AgentType = "fundamentals_analyst"
	AgentNewsAnalyst         AgentType = "news_analyst"
	AgentSocialMediaAnalyst  AgentType = "social_media_analyst"

	// Research team
	AgentBullResearcher  AgentType = "bull_researcher"
	AgentBearResearcher  AgentType = "bear_researcher"
	AgentResearchManager AgentType = "research_manager"

	// Execution
	AgentTrader AgentType = "trader"

	// Risk team
	AgentRiskyDebator   AgentType = "risky_debator"
	AgentSafeDebator    AgentType = "safe_debator"
	AgentNeutralDebator AgentType = "neutral_debator"
	AgentRiskManager    AgentType = "risk_manager"
)

// AllAgentTypes returns every supported agent type, in a stable order.
func AllAgentTypes() []AgentType {
	return []AgentType{
		AgentMarketAnalyst,
		AgentFundamentalsAnalyst,
		AgentNewsAnalyst,
		AgentSocialMediaAnalyst,
		AgentBullResearcher,
		AgentBearResearcher,
		AgentResearchManager,
		AgentTrader,
		AgentRiskyDebator,
		AgentSafeDebator,
		AgentNeutralDebator,
		AgentRiskManager,
	}
}

// Valid reports whether t is one of the supported agent types.
func (t AgentType) Valid() bool {
	for _, known := range AllAgentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// AgentStatus tracks the lifecycle state of a registered agent.
type AgentStatus string

const (
	StatusIdle    AgentStatus = "idle"
	StatusBusy    AgentStatus = "busy"
	StatusError   AgentStatus = "error"
	StatusOffline AgentStatus = "offline"
)

// TaskType categorizes the work a stage dispatches to an agent.
type TaskType string

const (
	TaskFundamentalsAnalysis TaskType = "fundamentals_analysis"
	TaskTechnicalAnalysis    TaskType = "technical_analysis"
	TaskNewsAnalysis         TaskType = "news_analysis"
	TaskSentimentAnalysis    TaskType = "sentiment_analysis"
	TaskBullResearch         TaskType = "bull_research"
	TaskBearResearch         TaskType = "bear_research"
	TaskResearchManagement   TaskType = "research_management"
	TaskTradingDecision      TaskType = "trading_decision"
	TaskRiskAssessment       TaskType = "risk_assessment"
)

// Capability declares one category of work an agent can perform.
type Capability struct {
	Name               TaskType      `json:"name"`
	Description        string        `json:"description"`
	SupportedMarkets   []string      `json:"supported_markets"`
	MaxConcurrentTasks int           `json:"max_concurrent_tasks"`
	EstimatedDuration  time.Duration `json:"estimated_duration"`
}

// Matches reports whether the capability covers the given task type and market.
func (c Capability) Matches(task TaskType, market string) bool {
	if c.Name != task {
		return false
	}
	for _, m := range c.SupportedMarkets {
		if m == market {
			return true
		}
	}
	return false
}

// Metrics accumulates per-agent task outcomes.
type Metrics struct {
	TotalTasks      int64         `json:"total_tasks"`
	SuccessfulTasks int64         `json:"successful_tasks"`
	FailedTasks     int64         `json:"failed_tasks"`
	TotalDuration   time.Duration `json:"-"`
	LastActivity    time.Time     `json:"last_activity"`
}

// SuccessRate returns the fraction of tasks that succeeded, 0 if none ran.
func (m Metrics) SuccessRate() float64 {
	if m.TotalTasks == 0 {
		return 0
	}
	return float64(m.SuccessfulTasks) / float64(m.TotalTasks)
}

// AverageDuration returns the mean task duration, 0 if none ran.
func (m Metrics) AverageDuration() time.Duration {
	if m.TotalTasks == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.TotalTasks)
}

func (m *Metrics) record(success bool, duration time.Duration) {
	m.TotalTasks++
	if success {
		m.SuccessfulTasks++
	} else {
		m.FailedTasks++
	}
	m.TotalDuration += duration
	m.LastActivity = time.Now()
}
