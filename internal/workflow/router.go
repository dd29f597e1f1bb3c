package workflow

// Router is the finite-state routing function for the pipeline. Given the
// stage that just executed and the run's state, it decides the next stage.
// It keeps no mutable state of its own: termination is driven entirely by the
// counters the engine maintains in State, so the router is a pure function
// and can be unit-tested in isolation from dispatch and I/O.
type Router struct {
	analysts        []Stage
	maxDebateRounds int
	maxRiskRounds   int
}

// NewRouter builds a router for the given analyst order and round budgets.
func NewRouter(analysts []Stage, maxDebateRounds, maxRiskRounds int) *Router {
	return &Router{
		analysts:        analysts,
		maxDebateRounds: maxDebateRounds,
		maxRiskRounds:   maxRiskRounds,
	}
}

// Next returns the stage to execute after current. Routing decisions read the
// state only; they never mutate it.
func (r *Router) Next(current Stage, state *State) Stage {
	// Analyst stage: advance through the configured order, then enter the
	// debate region with the bull speaking first.
	for i, analyst := range r.analysts {
		if current != analyst {
			continue
		}
		if i+1 < len(r.analysts) {
			return r.analysts[i+1]
		}
		return StageBullResearcher
	}

	switch {
	case IsDebateStage(current):
		return r.nextDebateStage(state)
	case current == StageResearchManager:
		return StageTrader
	case current == StageTrader:
		return StageRiskyDebator
	case IsRiskStage(current):
		return r.nextRiskStage(state)
	case current == StageRiskManager:
		return StageDone
	}

	return StageDone
}

// nextDebateStage alternates bull and bear until the round budget is spent.
// The budget of 2*maxDebateRounds executions holds regardless of which
// speaker entered the region.
func (r *Router) nextDebateStage(state *State) Stage {
	if state.DebateCount >= 2*r.maxDebateRounds {
		return StageResearchManager
	}
	if state.DebateLatestSpeaker == SpeakerBull {
		return StageBearResearcher
	}
	return StageBullResearcher
}

// nextRiskStage follows the fixed risky -> safe -> neutral cycle until the
// round budget is spent. The cycle order is independent of the caller.
func (r *Router) nextRiskStage(state *State) Stage {
	if state.RiskCount >= 3*r.maxRiskRounds {
		return StageRiskManager
	}
	switch state.RiskLatestSpeaker {
	case SpeakerRisky:
		return StageSafeDebator
	case SpeakerSafe:
		return StageNeutralDebator
	default:
		return StageRiskyDebator
	}
}
