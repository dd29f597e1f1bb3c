package workflow

import (
	"quorum/pkg/errors"
)

// roundsForDepth maps the research depth setting to debate and risk round
// budgets.
func roundsForDepth(depth int) (maxDebateRounds, maxRiskRounds int) {
	switch depth {
	case 1, 2:
		return 1, 1
	case 3:
		return 2, 2
	case 4:
		return 3, 2
	default: // 5
		return 3, 3
	}
}

// Plan is a fully resolved, immutable pipeline shape. Changing the analyst
// subset or depth requires building a new plan; a plan is never mutated after
// Build returns it.
type Plan struct {
	analysts        []Stage
	maxDebateRounds int
	maxRiskRounds   int
	router          *Router
	totalStages     int
}

// Entry returns the first stage of the pipeline.
func (p *Plan) Entry() Stage {
	return p.analysts[0]
}

// Next delegates to the plan's router.
func (p *Plan) Next(current Stage, state *State) Stage {
	return p.router.Next(current, state)
}

// Analysts returns the configured analyst stages in execution order.
func (p *Plan) Analysts() []Stage {
	out := make([]Stage, len(p.analysts))
	copy(out, p.analysts)
	return out
}

// MaxDebateRounds returns the investment debate round budget.
func (p *Plan) MaxDebateRounds() int { return p.maxDebateRounds }

// MaxRiskRounds returns the risk debate round budget.
func (p *Plan) MaxRiskRounds() int { return p.maxRiskRounds }

// TotalStages returns the exact number of stage executions a full run
// performs: each analyst once, the bounded debate region, research manager,
// trader, the bounded risk region and the terminal risk manager.
func (p *Plan) TotalStages() int {
	return p.totalStages
}

// Builder produces Plans from the configuration surface.
type Builder struct {
	analysts []string
	depth    int
}

// NewBuilder creates a builder with the standard defaults: all four analysts
// at depth 3.
func NewBuilder() *Builder {
	return &Builder{
		analysts: []string{"market", "fundamentals", "news", "social"},
		depth:    3,
	}
}

// WithAnalysts overrides the analyst subset, keeping the given order.
func (b *Builder) WithAnalysts(analysts []string) *Builder {
	b.analysts = analysts
	return b
}

// WithDepth overrides the research depth (1-5).
func (b *Builder) WithDepth(depth int) *Builder {
	b.depth = depth
	return b
}

// Build validates the configuration and resolves it into an immutable plan.
func (b *Builder) Build() (*Plan, error) {
	if len(b.analysts) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "at least one analyst required")
	}
	if b.depth < 1 || b.depth > 5 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "research depth %d out of range 1..5", b.depth)
	}

	stages := make([]Stage, 0, len(b.analysts))
	seen := make(map[Stage]bool)
	for _, name := range b.analysts {
		stage, ok := analystStages[name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown analyst %q", name)
		}
		if seen[stage] {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate analyst %q", name)
		}
		seen[stage] = true
		stages = append(stages, stage)
	}

	maxDebate, maxRisk := roundsForDepth(b.depth)

	return &Plan{
		analysts:        stages,
		maxDebateRounds: maxDebate,
		maxRiskRounds:   maxRisk,
		router:          NewRouter(stages, maxDebate, maxRisk),
		totalStages:     len(stages) + 2*maxDebate + 1 + 1 + 3*maxRisk + 1,
	}, nil
}
