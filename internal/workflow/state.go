package workflow

import "time"

// Speaker labels for the two cyclic regions.
const (
	SpeakerBull = "bull"
	SpeakerBear = "bear"

	SpeakerRisky   = "risky"
	SpeakerSafe    = "safe"
	SpeakerNeutral = "neutral"
)

// DebateTurn is one contribution to a cyclic region's history.
type DebateTurn struct {
	Round     int       `json:"round"`
	Speaker   string    `json:"speaker"`
	Argument  string    `json:"argument"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the mutable context threaded through one workflow run. It is owned
// exclusively by the engine instance driving the run and never shared.
type State struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`
	Market      string `json:"market"`
	CurrentDate string `json:"current_date"`

	// Report slots, each empty until its stage produces output
	FundamentalsReport string `json:"fundamentals_report,omitempty"`
	TechnicalReport    string `json:"technical_report,omitempty"`
	NewsReport         string `json:"news_report,omitempty"`
	SentimentReport    string `json:"sentiment_report,omitempty"`
	BullAnalysis       string `json:"bull_analysis,omitempty"`
	BearAnalysis       string `json:"bear_analysis,omitempty"`
	ResearchDecision   string `json:"research_decision,omitempty"`
	InvestmentPlan     string `json:"investment_plan,omitempty"`
	RiskAssessment     string `json:"risk_assessment,omitempty"`
	FinalDecision      string `json:"final_decision,omitempty"`

	// Investment debate tracking
	DebateHistory       []DebateTurn `json:"debate_history"`
	DebateCount         int          `json:"debate_count"`
	DebateLatestSpeaker string       `json:"debate_latest_speaker,omitempty"`

	// Risk debate tracking
	RiskHistory       []DebateTurn `json:"risk_history"`
	RiskCount         int          `json:"risk_count"`
	RiskLatestSpeaker string       `json:"risk_latest_speaker,omitempty"`

	Errors         []string `json:"errors"`
	CompletedSteps []string `json:"completed_steps"`
	CurrentStep    Stage    `json:"current_step"`
}

// NewState creates the initial state for one run.
func NewState(symbol, companyName, market, currentDate string) *State {
	if companyName == "" {
		companyName = symbol
	}
	return &State{
		Symbol:         symbol,
		CompanyName:    companyName,
		Market:         market,
		CurrentDate:    currentDate,
		DebateHistory:  make([]DebateTurn, 0),
		RiskHistory:    make([]DebateTurn, 0),
		Errors:         make([]string, 0),
		CompletedSteps: make([]string, 0),
		CurrentStep:    "initialization",
	}
}

// RecordError appends a stage-level error message.
func (s *State) RecordError(message string) {
	s.Errors = append(s.Errors, message)
}
