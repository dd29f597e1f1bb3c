package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"quorum/internal/adapters/config"
	redisadapter "quorum/internal/adapters/redis"
	"quorum/internal/workflow"
	"quorum/pkg/errors"
	"quorum/pkg/logger"
)

// Request is one analysis submission. Zero-valued fields fall back to the
// configured defaults.
type Request struct {
	Symbol        string
	CompanyName   string
	Market        string
	AnalysisDate  string
	Analysts      []string
	ResearchDepth int
	LLMProvider   string
	LLMModel      string
}

// Run tracks one in-flight or finished analysis.
type Run struct {
	ID     string
	Symbol string

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	progress redisadapter.ProgressRecord
	result   *workflow.FinalResult
	err      error
}

// Done is closed when the run has finished, whatever the outcome.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Service runs analyses concurrently, one engine run per request goroutine.
// Each run owns its workflow state exclusively; the only shared surfaces are
// the registry underneath the dispatcher and the Redis progress/result keys.
type Service struct {
	engine   *workflow.Engine
	store    *redisadapter.AnalysisStore
	defaults config.AnalysisConfig
	log      *logger.Logger

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewService creates the analysis service. store may be nil, in which case
// progress and results are kept in memory only.
func NewService(engine *workflow.Engine, store *redisadapter.AnalysisStore, defaults config.AnalysisConfig) *Service {
	return &Service{
		engine:   engine,
		store:    store,
		defaults: defaults,
		log:      logger.Get().With("component", "analysis_service"),
		runs:     make(map[string]*Run),
	}
}

// Submit validates the request, resolves the workflow plan and starts the run
// on its own goroutine. The returned id addresses progress and result lookups.
func (s *Service) Submit(ctx context.Context, req Request) (string, error) {
	if req.Symbol == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "symbol required")
	}
	s.applyDefaults(&req)

	// The plan is resolved per submission: analyst subset and depth changes
	// never affect a run already in flight.
	plan, err := workflow.NewBuilder().
		WithAnalysts(req.Analysts).
		WithDepth(req.ResearchDepth).
		Build()
	if err != nil {
		return "", err
	}

	analysisID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	run := &Run{
		ID:     analysisID,
		Symbol: req.Symbol,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: redisadapter.ProgressRecord{
			AnalysisID: analysisID,
			Stage:      "submitted",
			Status:     "running",
			UpdatedAt:  time.Now(),
		},
	}

	s.mu.Lock()
	s.runs[analysisID] = run
	s.mu.Unlock()

	s.log.Infof("Analysis submitted: id=%s symbol=%s analysts=%v depth=%d",
		analysisID, req.Symbol, req.Analysts, req.ResearchDepth)

	go s.execute(runCtx, run, plan, req)

	return analysisID, nil
}

func (s *Service) execute(ctx context.Context, run *Run, plan *workflow.Plan, req Request) {
	defer close(run.done)
	defer run.cancel()

	wfReq := workflow.Request{
		AnalysisID:   run.ID,
		Symbol:       req.Symbol,
		CompanyName:  req.CompanyName,
		Market:       req.Market,
		AnalysisDate: req.AnalysisDate,
		Parameters: map[string]interface{}{
			"llm_provider": req.LLMProvider,
			"llm_model":    req.LLMModel,
		},
	}

	onProgress := func(stage string, percent int, message string) {
		s.updateProgress(run, redisadapter.ProgressRecord{
			AnalysisID: run.ID,
			Stage:      stage,
			Percent:    percent,
			Message:    message,
			Status:     "running",
			UpdatedAt:  time.Now(),
		})
	}

	result, err := s.engine.Run(ctx, plan, wfReq, onProgress)

	run.mu.Lock()
	run.result = result
	run.err = err
	final := run.progress
	run.mu.Unlock()

	switch {
	case err == nil:
		final.Status = "completed"
		if s.store != nil {
			if storeErr := s.store.SaveResult(context.WithoutCancel(ctx), run.ID, result); storeErr != nil {
				s.log.Warnf("Result persist failed for %s: %v", run.ID, storeErr)
			}
		}
	case errors.Is(err, errors.ErrCancelled):
		final.Status = "cancelled"
	default:
		final.Status = "failed"
	}
	final.UpdatedAt = time.Now()
	s.updateProgress(run, final)
}

func (s *Service) updateProgress(run *Run, record redisadapter.ProgressRecord) {
	run.mu.Lock()
	run.progress = record
	run.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveProgress(context.Background(), record); err != nil {
			s.log.Warnf("Progress persist failed for %s: %v", run.ID, err)
		}
	}
}

// Cancel requests cooperative cancellation of a run. The in-flight stage is
// allowed to complete; its result is discarded. Returns false for unknown ids.
func (s *Service) Cancel(analysisID string) bool {
	s.mu.RLock()
	run, ok := s.runs[analysisID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// Progress returns the latest progress record for a run. Runs submitted by
// another process are resolved through the shared progress key.
func (s *Service) Progress(analysisID string) (redisadapter.ProgressRecord, bool) {
	s.mu.RLock()
	run, ok := s.runs[analysisID]
	s.mu.RUnlock()
	if !ok {
		if s.store != nil {
			record, found, err := s.store.GetProgress(context.Background(), analysisID)
			if err != nil {
				s.log.Warnf("Progress lookup failed for %s: %v", analysisID, err)
				return redisadapter.ProgressRecord{}, false
			}
			return record, found
		}
		return redisadapter.ProgressRecord{}, false
	}
	run.mu.RLock()
	defer run.mu.RUnlock()
	return run.progress, true
}

// Result returns the final result and error of a finished run. Results
// produced by another process are resolved through the shared result key.
func (s *Service) Result(analysisID string) (*workflow.FinalResult, error, bool) {
	s.mu.RLock()
	run, ok := s.runs[analysisID]
	s.mu.RUnlock()
	if !ok {
		if s.store != nil {
			var result workflow.FinalResult
			found, err := s.store.GetResult(context.Background(), analysisID, &result)
			if err != nil {
				s.log.Warnf("Result lookup failed for %s: %v", analysisID, err)
				return nil, nil, false
			}
			if found {
				return &result, nil, true
			}
		}
		return nil, nil, false
	}
	select {
	case <-run.done:
	default:
		return nil, nil, false
	}
	run.mu.RLock()
	defer run.mu.RUnlock()
	return run.result, run.err, true
}

// Get returns the run handle for an id.
func (s *Service) Get(analysisID string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[analysisID]
	return run, ok
}

func (s *Service) applyDefaults(req *Request) {
	if len(req.Analysts) == 0 {
		req.Analysts = s.defaults.SelectedAnalysts
	}
	if req.ResearchDepth == 0 {
		req.ResearchDepth = s.defaults.ResearchDepth
	}
	if req.Market == "" {
		req.Market = s.defaults.MarketType
	}
	if req.LLMProvider == "" {
		req.LLMProvider = s.defaults.LLMProvider
	}
	if req.LLMModel == "" {
		req.LLMModel = s.defaults.LLMModel
	}
	if req.AnalysisDate == "" {
		req.AnalysisDate = time.Now().Format("2006-01-02")
	}
	if req.CompanyName == "" {
		req.CompanyName = req.Symbol
	}
}
