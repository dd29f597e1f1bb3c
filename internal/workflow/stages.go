package workflow

import "quorum/internal/agents"

// Stage names one step of the decision pipeline. Stage names match the agent
// type that backs them.
type Stage string

const (
	StageMarketAnalyst       Stage = "market_analyst"
	StageFundamentalsAnalyst Stage = "fundamentals_analyst"
	StageNewsAnalyst         Stage = "news_analyst"
	StageSocialMediaAnalyst  Stage = "social_media_analyst"
	StageBullResearcher      Stage = "bull_researcher"
	StageBearResearcher      Stage = "bear_researcher"
	StageResearchManager     Stage = "research_manager"
	StageTrader              Stage = "trader"
	StageRiskyDebator        Stage = "risky_debator"
	StageSafeDebator         Stage = "safe_debator"
	StageNeutralDebator      Stage = "neutral_debator"
	StageRiskManager         Stage = "risk_manager"

	// StageDone marks pipeline completion; it is never executed.
	StageDone Stage = "done"
)

// analystStages maps the configuration-level analyst names to their stages.
var analystStages = map[string]Stage{
	"market":       StageMarketAnalyst,
	"fundamentals": StageFundamentalsAnalyst,
	"news":         StageNewsAnalyst,
	"social":       StageSocialMediaAnalyst,
}

// AgentTypeFor returns the agent type that executes the stage.
func AgentTypeFor(stage Stage) agents.AgentType {
	return agents.AgentType(stage)
}

// TaskTypeFor returns the task category the stage dispatches.
func TaskTypeFor(stage Stage) agents.TaskType {
	return agents.TaskTypeFor(AgentTypeFor(stage))
}

var displayNames = map[Stage]string{
	StageMarketAnalyst:       "Market Analyst",
	StageFundamentalsAnalyst: "Fundamentals Analyst",
	StageNewsAnalyst:         "News Analyst",
	StageSocialMediaAnalyst:  "Social Media Analyst",
	StageBullResearcher:      "Bull Researcher",
	StageBearResearcher:      "Bear Researcher",
	StageResearchManager:     "Research Manager",
	StageTrader:              "Trader",
	StageRiskyDebator:        "Risky Debator",
	StageSafeDebator:         "Safe Debator",
	StageNeutralDebator:      "Neutral Debator",
	StageRiskManager:         "Risk Manager",
}

// DisplayName returns the human-readable stage name used in progress updates.
func DisplayName(stage Stage) string {
	if name, ok := displayNames[stage]; ok {
		return name
	}
	return string(stage)
}

// IsDebateStage reports whether the stage belongs to the investment debate region.
func IsDebateStage(stage Stage) bool {
	return stage == StageBullResearcher || stage == StageBearResearcher
}

// IsRiskStage reports whether the stage belongs to the risk debate region.
func IsRiskStage(stage Stage) bool {
	return stage == StageRiskyDebator || stage == StageSafeDebator || stage == StageNeutralDebator
}
