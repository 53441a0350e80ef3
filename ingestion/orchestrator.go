// Package ingestion is the pipeline entry point. It persists raw input as
// working memory synchronously, answers the caller, and then fans derivation
// out to background strategy pipelines whose outcomes never reach the
// original caller.
package ingestion

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/executor"
	"github.com/hupe1980/memorymesh/extraction"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/observability"
	"github.com/hupe1980/memorymesh/reconcile"
	"github.com/hupe1980/memorymesh/search"
	"github.com/hupe1980/memorymesh/strategy"
)

// Request is one ingestion call.
type Request struct {
	ContainerID string
	Caller      string
	// SessionID groups working memory. Empty triggers session
	// auto-creation unless the container disables sessions.
	SessionID string
	Namespace core.Namespace
	// MemoryType tags the working document; defaults to "working".
	MemoryType string
	Messages   []core.Message
	// Infer enables background derivation for this input.
	Infer bool
}

// Response is returned as soon as working memory is durable. Derivation
// outcomes are never part of it.
type Response struct {
	WorkingMemoryID string
	SessionID       string
}

// StrategyOutcome reports one finished background pipeline to the optional
// completion sink.
type StrategyOutcome struct {
	ContainerID string
	StrategyID  string
	Results     []core.MemoryResult
	Err         error
	Duration    time.Duration
}

// Options configures an Orchestrator.
type Options struct {
	Logger logging.Logger
	// OnStrategyComplete, when set, receives every background pipeline
	// outcome. Called from the pipeline goroutine.
	OnStrategyComplete func(StrategyOutcome)
	// StrategyTimeout bounds each background pipeline. Zero means no
	// deadline.
	StrategyTimeout time.Duration
}

// Orchestrator wires the pipeline stages behind a single Ingest entry point.
type Orchestrator struct {
	containers core.ContainerStore
	access     core.AccessChecker
	store      core.DocumentStore
	registry   *strategy.Registry
	extractor  *extraction.Engine
	searcher   *search.Service
	reconciler *reconcile.Engine
	executor   *executor.Executor

	logger             logging.Logger
	onStrategyComplete func(StrategyOutcome)
	strategyTimeout    time.Duration

	wg sync.WaitGroup
}

// New constructs an orchestrator from its stage collaborators.
func New(
	containers core.ContainerStore,
	access core.AccessChecker,
	store core.DocumentStore,
	registry *strategy.Registry,
	extractor *extraction.Engine,
	searcher *search.Service,
	reconciler *reconcile.Engine,
	exec *executor.Executor,
	optFns ...func(o *Options),
) *Orchestrator {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Orchestrator{
		containers:         containers,
		access:             access,
		store:              store,
		registry:           registry,
		extractor:          extractor,
		searcher:           searcher,
		reconciler:         reconciler,
		executor:           exec,
		logger:             opts.Logger,
		onStrategyComplete: opts.OnStrategyComplete,
		strategyTimeout:    opts.StrategyTimeout,
	}
}

// Ingest persists the input as working memory and returns. When req.Infer is
// set, one background pipeline per eligible strategy is started after the
// response is ready; their failures are logged and reported to the optional
// completion sink, never to the caller. The only synchronous failure modes
// are container resolution, access denial and the working-memory write.
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (*Response, error) {
	ctx, span := observability.Tracer("memorymesh/ingestion").Start(ctx, "ingestion.ingest")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	container, err := o.containers.GetContainer(ctx, req.ContainerID)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", core.ErrContainerNotFound, req.ContainerID, err)
		return nil, err
	}

	allowed, err := o.access.CheckAccess(ctx, req.Caller, container)
	if err != nil {
		err = fmt.Errorf("access check failed: %w", err)
		return nil, err
	}
	if !allowed {
		err = fmt.Errorf("%w: caller %q on container %q", core.ErrPermissionDenied, req.Caller, req.ContainerID)
		return nil, err
	}

	cfg := container.Configuration
	now := time.Now().UTC()

	var ops []core.BulkOperation

	sessionID := req.SessionID
	if sessionID == "" && !cfg.DisableSession {
		sessionID = core.NewID()
		ops = append(ops, core.BulkOperation{
			Action: core.BulkCreate,
			Index:  cfg.WorkingIndex,
			Doc: &core.Document{
				ID:         sessionID,
				Index:      cfg.WorkingIndex,
				Namespace:  req.Namespace.Clone(),
				SessionID:  sessionID,
				MemoryType: core.MemoryTypeSession,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		})
	}

	memoryType := req.MemoryType
	if memoryType == "" {
		memoryType = core.MemoryTypeWorking
	}

	working := &core.Document{
		ID:         core.NewID(),
		Index:      cfg.WorkingIndex,
		Text:       core.ContentText(req.Messages),
		Namespace:  req.Namespace.Clone(),
		SessionID:  sessionID,
		MemoryType: memoryType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ops = append(ops, core.BulkOperation{
		Action: core.BulkCreate,
		Index:  cfg.WorkingIndex,
		Doc:    working,
	})

	items, err := o.store.BulkWrite(ctx, ops)
	if err != nil {
		err = fmt.Errorf("failed to persist working memory: %w", err)
		return nil, err
	}
	for _, item := range items {
		if item.Err != nil {
			err = fmt.Errorf("failed to persist working memory: %w", item.Err)
			return nil, err
		}
	}

	if req.Infer {
		o.startDerivation(container, req, sessionID)
	}

	return &Response{
		WorkingMemoryID: working.ID,
		SessionID:       sessionID,
	}, nil
}

// startDerivation launches one detached pipeline per eligible strategy. The
// pipelines run on fresh contexts so cancelling the ingestion request cannot
// abort derivation already in flight.
func (o *Orchestrator) startDerivation(container *core.Container, req Request, sessionID string) {
	cfg := container.Configuration

	for _, strat := range o.registry.Eligible(cfg, req.Namespace) {
		strat := strat
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()

			ctx := context.Background()
			if o.strategyTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.strategyTimeout)
				defer cancel()
			}

			start := time.Now()
			results, err := o.runStrategy(ctx, strat, cfg, req, sessionID)

			logger := o.logger
			if pl, ok := logger.(*logging.PipelineLogger); ok {
				logger = pl.WithScope(container.ID, strat.ID)
			}
			if err != nil {
				logger.Error("strategy pipeline failed", "container_id", container.ID, "strategy_id", strat.ID, "error", err)
			} else {
				logger.Info("strategy pipeline complete", "container_id", container.ID, "strategy_id", strat.ID, "results", len(results), "duration", time.Since(start))
			}

			if o.onStrategyComplete != nil {
				o.onStrategyComplete(StrategyOutcome{
					ContainerID: container.ID,
					StrategyID:  strat.ID,
					Results:     results,
					Err:         err,
					Duration:    time.Since(start),
				})
			}
		}()
	}
}

// runStrategy executes extract, search, reconcile and execute for one
// strategy. Zero extracted facts ends the pipeline successfully with no
// results.
func (o *Orchestrator) runStrategy(ctx context.Context, strat core.MemoryStrategy, cfg core.MemoryConfiguration, req Request, sessionID string) ([]core.MemoryResult, error) {
	facts, err := o.extractor.ExtractFacts(ctx, req.Messages, strat, cfg)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	if len(facts) == 0 {
		return nil, nil
	}

	existing, err := o.searcher.SearchSimilarFacts(ctx, facts, req.Namespace, cfg)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	decisions, err := o.reconciler.Reconcile(ctx, facts, existing, cfg)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	results, err := o.executor.Execute(ctx, decisions, req.Namespace, sessionID, cfg)
	if err != nil {
		return results, fmt.Errorf("execute: %w", err)
	}

	return results, nil
}

// History returns the most recent working-memory documents for a session,
// newest first, capped at limit. A non-positive limit returns the whole
// session. Containers with history disabled return an empty slice. Access is
// checked the same way as ingestion.
func (o *Orchestrator) History(ctx context.Context, containerID, caller, sessionID string, limit int) ([]core.Document, error) {
	container, err := o.containers.GetContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrContainerNotFound, containerID, err)
	}

	allowed, err := o.access.CheckAccess(ctx, caller, container)
	if err != nil {
		return nil, fmt.Errorf("access check failed: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: caller %q on container %q", core.ErrPermissionDenied, caller, containerID)
	}

	cfg := container.Configuration
	if cfg.DisableHistory {
		return []core.Document{}, nil
	}

	// Fetch every session document and cap only after sorting, so the cap
	// keeps the newest entries rather than an arbitrary store subset.
	hits, err := o.store.Search(ctx, core.SearchQuery{
		Index:      cfg.WorkingIndex,
		SessionID:  sessionID,
		MemoryType: core.MemoryTypeWorking,
		Size:       core.SizeUnbounded,
	})
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}

	docs := make([]core.Document, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, hit.Document)
	}
	sortByRecency(docs)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	return docs, nil
}

func sortByRecency(docs []core.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

// Wait blocks until all background pipelines started so far have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close waits for background pipelines and releases the orchestrator.
func (o *Orchestrator) Close() error {
	o.Wait()
	return nil
}
