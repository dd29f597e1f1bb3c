package workflow

import (
	"context"
	"time"

	"quorum/internal/agents"
	"quorum/internal/metrics"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// recursionLimit is a defensive ceiling on total stage executions, independent
// of the round-derived termination guarantees. A routing defect trips it long
// before the process loops indefinitely.
const recursionLimit = 100

// TaskExecutor is the dispatch boundary the engine drives stages through.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, agentType agents.AgentType, task agents.TaskType, taskCtx *agents.TaskContext) *agents.TaskResult
}

// ProgressFunc receives stage-boundary progress updates. Percent is
// monotonically non-decreasing within one run: 0 at start, 100 only at
// terminal success.
type ProgressFunc func(stage string, percent int, message string)

// Request describes one analysis run.
type Request struct {
	AnalysisID   string
	Symbol       string
	CompanyName  string
	Market       string
	AnalysisDate string

	// Parameters are passed through to workers untouched (llm provider,
	// model and similar worker-level settings).
	Parameters map[string]interface{}
}

// FinalResult is the assembled outcome of a successful run.
type FinalResult struct {
	AnalysisID      string            `json:"analysis_id"`
	Symbol          string            `json:"symbol"`
	AnalysisDate    string            `json:"analysis_date"`
	FinalDecision   string            `json:"final_decision"`
	InvestmentPlan  string            `json:"investment_plan"`
	RiskAssessment  string            `json:"risk_assessment"`
	Reports         map[string]string `json:"reports"`
	Errors          []string          `json:"errors"`
	CompletedStages []string          `json:"completed_stages"`
	Duration        time.Duration     `json:"duration"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Engine drives one workflow instance per Run call. Stages execute strictly
// sequentially within a run; concurrency lives above the engine, one Run per
// request goroutine.
type Engine struct {
	executor TaskExecutor
	log      *logger.Logger
}

// NewEngine creates an engine over the given dispatch boundary.
func NewEngine(executor TaskExecutor) *Engine {
	return &Engine{
		executor: executor,
		log:      logger.Get().With("component", "workflow_engine"),
	}
}

// Run executes the plan for one request. Per-stage failures are recorded in
// the state and the pipeline continues; a terminal-stage failure, a tripped
// recursion limit or cancellation abort the run with an error.
func (e *Engine) Run(ctx context.Context, plan *Plan, req Request, onProgress ProgressFunc) (*FinalResult, error) {
	if plan == nil {
		return nil, errors.ErrPlanNotBuilt
	}

	log := e.log.With("analysis_id", req.AnalysisID, "symbol", req.Symbol)
	started := time.Now()

	state := NewState(req.Symbol, req.CompanyName, req.Market, req.AnalysisDate)
	report(onProgress, "initialization", 0, "starting analysis of "+req.Symbol)

	// In-flight worker dispatches are not interrupted on cancellation; the
	// run only stops at stage boundaries and discards the last result.
	dispatchCtx := context.WithoutCancel(ctx)

	executions := 0
	stage := plan.Entry()

	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			return e.fail(log, onProgress, started, "cancelled", errors.ErrCancelled)
		}

		executions++
		if executions > recursionLimit {
			log.Errorf("Recursion limit exceeded after %d stage executions at %s", executions-1, stage)
			return e.fail(log, onProgress, started, "aborted", errors.Wrapf(errors.ErrRecursionLimit, "at stage %s", stage))
		}

		state.CurrentStep = stage
		log.Debugf("Executing stage %s (%d/%d)", stage, executions, plan.TotalStages())

		result := e.executor.ExecuteTask(dispatchCtx, AgentTypeFor(stage), TaskTypeFor(stage), e.taskContext(req, stage, executions))

		if err := ctx.Err(); err != nil {
			// Completed during cancellation; discard the result.
			return e.fail(log, onProgress, started, "cancelled", errors.ErrCancelled)
		}

		if result.Failed() {
			metrics.StageExecutions.WithLabelValues(string(stage), "error").Inc()
			log.Warnf("Stage %s failed: %s", stage, result.Error)

			if stage == StageRiskManager {
				err := errors.Wrapf(errors.ErrTerminalStageFailed, "%s: %s", stage, result.Error)
				return e.fail(log, onProgress, started, "failed", err)
			}

			state.RecordError(string(stage) + ": " + result.Error)
			e.recordStage(state, stage, nil)
		} else {
			metrics.StageExecutions.WithLabelValues(string(stage), "success").Inc()
			e.recordStage(state, stage, result)
		}

		state.CompletedSteps = append(state.CompletedSteps, string(stage))
		report(onProgress, string(stage), stagePercent(executions, plan.TotalStages()), DisplayName(stage)+" completed")

		stage = plan.Next(stage, state)
	}

	final := e.assemble(req, state, time.Since(started))
	report(onProgress, "completed", 100, "analysis completed: "+req.Symbol)

	metrics.WorkflowRuns.WithLabelValues("success").Inc()
	metrics.WorkflowDuration.WithLabelValues("success").Observe(final.Duration.Seconds())
	log.Infof("Workflow completed in %v (%d stages, %d errors)", final.Duration, len(state.CompletedSteps), len(state.Errors))

	return final, nil
}

func (e *Engine) fail(log *logger.Logger, onProgress ProgressFunc, started time.Time, label string, err error) (*FinalResult, error) {
	report(onProgress, label, 0, "analysis "+label+": "+err.Error())

	status := "error"
	if errors.Is(err, errors.ErrCancelled) {
		status = "cancelled"
	}
	metrics.WorkflowRuns.WithLabelValues(status).Inc()
	metrics.WorkflowDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())

	log.Errorf("Workflow %s: %v", label, err)
	return nil, err
}

// taskContext builds the immutable per-stage task context.
func (e *Engine) taskContext(req Request, stage Stage, execution int) *agents.TaskContext {
	return &agents.TaskContext{
		TaskID:       req.AnalysisID + ":" + string(stage),
		Symbol:       req.Symbol,
		CompanyName:  req.CompanyName,
		Market:       req.Market,
		AnalysisDate: req.AnalysisDate,
		Parameters:   req.Parameters,
		Metadata: map[string]interface{}{
			"stage":     string(stage),
			"execution": execution,
		},
	}
}

// recordStage merges one stage outcome into the state. Region counters are
// incremented exactly once per stage execution, failed or not, so the round
// budgets bound the regions even under persistent worker failures. A nil
// result means the stage failed and its report slot stays unset.
func (e *Engine) recordStage(state *State, stage Stage, result *agents.TaskResult) {
	text := resultText(result)

	switch stage {
	case StageMarketAnalyst:
		state.TechnicalReport = text
	case StageFundamentalsAnalyst:
		state.FundamentalsReport = text
	case StageNewsAnalyst:
		state.NewsReport = text
	case StageSocialMediaAnalyst:
		state.SentimentReport = text

	case StageBullResearcher:
		state.DebateCount++
		state.DebateLatestSpeaker = SpeakerBull
		if result != nil {
			state.BullAnalysis = text
			state.DebateHistory = append(state.DebateHistory, DebateTurn{
				Round: state.DebateCount, Speaker: SpeakerBull, Argument: text, Timestamp: time.Now(),
			})
		}
	case StageBearResearcher:
		state.DebateCount++
		state.DebateLatestSpeaker = SpeakerBear
		if result != nil {
			state.BearAnalysis = text
			state.DebateHistory = append(state.DebateHistory, DebateTurn{
				Round: state.DebateCount, Speaker: SpeakerBear, Argument: text, Timestamp: time.Now(),
			})
		}

	case StageResearchManager:
		state.ResearchDecision = text
	case StageTrader:
		state.InvestmentPlan = text

	case StageRiskyDebator, StageSafeDebator, StageNeutralDebator:
		state.RiskCount++
		state.RiskLatestSpeaker = riskSpeaker(stage)
		if result != nil {
			state.RiskHistory = append(state.RiskHistory, DebateTurn{
				Round: state.RiskCount, Speaker: riskSpeaker(stage), Argument: text, Timestamp: time.Now(),
			})
		}

	case StageRiskManager:
		state.FinalDecision = text
		if result != nil {
			if assessment, ok := result.Result["risk_assessment"].(string); ok {
				state.RiskAssessment = assessment
			}
		}
	}
}

func riskSpeaker(stage Stage) string {
	switch stage {
	case StageRiskyDebator:
		return SpeakerRisky
	case StageSafeDebator:
		return SpeakerSafe
	default:
		return SpeakerNeutral
	}
}

// resultText extracts the primary textual output from a worker result map.
func resultText(result *agents.TaskResult) string {
	if result == nil || result.Result == nil {
		return ""
	}
	for _, key := range []string{"report", "analysis", "decision", "content"} {
		if text, ok := result.Result[key].(string); ok && text != "" {
			return text
		}
	}
	return ""
}

// stagePercent maps stage completions into the 10-90 band. The terminal 100
// is reported only after the final result is assembled.
func stagePercent(completed, total int) int {
	if total <= 0 {
		return 10
	}
	if completed > total {
		completed = total
	}
	return 10 + (80*completed)/total
}

func report(onProgress ProgressFunc, stage string, percent int, message string) {
	if onProgress != nil {
		onProgress(stage, percent, message)
	}
}

func (e *Engine) assemble(req Request, state *State, duration time.Duration) *FinalResult {
	reports := make(map[string]string)
	addReport := func(name, text string) {
		if text != "" {
			reports[name] = text
		}
	}
	addReport("technical", state.TechnicalReport)
	addReport("fundamentals", state.FundamentalsReport)
	addReport("news", state.NewsReport)
	addReport("sentiment", state.SentimentReport)
	addReport("bull", state.BullAnalysis)
	addReport("bear", state.BearAnalysis)
	addReport("research_decision", state.ResearchDecision)
	addReport("investment_plan", state.InvestmentPlan)

	return &FinalResult{
		AnalysisID:      req.AnalysisID,
		Symbol:          req.Symbol,
		AnalysisDate:    req.AnalysisDate,
		FinalDecision:   state.FinalDecision,
		InvestmentPlan:  state.InvestmentPlan,
		RiskAssessment:  state.RiskAssessment,
		Reports:         reports,
		Errors:          state.Errors,
		CompletedStages: state.CompletedSteps,
		Duration:        duration,
		Timestamp:       time.Now(),
	}
}
