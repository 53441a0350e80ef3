// Package executor applies reconciliation decisions to the long-term store.
// All persistence for one decision list goes through a single bulk write so
// individual item failures surface as per-memory results instead of aborting
// the batch.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/observability"
)

// Options configures an Executor.
type Options struct {
	// Logger receives skipped-decision and embedding warnings.
	Logger logging.Logger
}

// Executor translates decisions into bulk store operations. Safe for
// concurrent use.
type Executor struct {
	store    core.DocumentStore
	embedder embedding.Embedder
	opts     Options
}

// New creates an executor. The embedder may be nil; new and updated memories
// are only embedded when the configuration names an embedding model.
func New(store core.DocumentStore, embedder embedding.Embedder, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		store:    store,
		embedder: embedder,
		opts:     opts,
	}
}

// Execute applies the decision list within the given scope. An empty list is
// a no-op returning empty results. NONE decisions yield noop results without
// touching the store; invalid decisions are logged and dropped without a
// result. A non-empty list that produces neither operations nor results is
// core.ErrNothingToExecute. All operations go to the store in one BulkWrite:
// a rejected submission fails the whole call, while per-item rejections
// become failure results. No retries at this layer.
func (e *Executor) Execute(ctx context.Context, decisions []core.MemoryDecision, scope core.Namespace, sessionID string, cfg core.MemoryConfiguration) ([]core.MemoryResult, error) {
	if len(decisions) == 0 {
		return []core.MemoryResult{}, nil
	}

	ctx, span := observability.Tracer("memorymesh/executor").Start(ctx, "executor.execute")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var (
		ops         []core.BulkOperation
		opDecisions []core.MemoryDecision
		noops       []core.MemoryResult
	)

	for _, d := range decisions {
		if verr := d.Validate(); verr != nil {
			e.opts.Logger.Warn("skipping invalid memory decision", "event", string(d.Event), "error", verr)
			continue
		}

		switch d.Event {
		case core.DecisionNone:
			noops = append(noops, core.MemoryResult{
				Event:  core.DecisionNone,
				Status: core.ResultNoop,
			})
		case core.DecisionAdd:
			now := time.Now().UTC()
			ops = append(ops, core.BulkOperation{
				Action: core.BulkCreate,
				Index:  cfg.LongTermIndex,
				Doc: &core.Document{
					ID:         core.NewID(),
					Index:      cfg.LongTermIndex,
					Text:       d.Text,
					Namespace:  scope.Clone(),
					SessionID:  sessionID,
					MemoryType: core.MemoryTypeFact,
					Embedding:  e.embedText(ctx, d.Text, cfg),
					CreatedAt:  now,
					UpdatedAt:  now,
				},
			})
			opDecisions = append(opDecisions, d)
		case core.DecisionUpdate:
			ops = append(ops, core.BulkOperation{
				Action:    core.BulkUpdate,
				Index:     cfg.LongTermIndex,
				ID:        d.ID,
				Text:      d.Text,
				Embedding: e.embedText(ctx, d.Text, cfg),
			})
			opDecisions = append(opDecisions, d)
		case core.DecisionDelete:
			ops = append(ops, core.BulkOperation{
				Action: core.BulkDelete,
				Index:  cfg.LongTermIndex,
				ID:     d.ID,
			})
			opDecisions = append(opDecisions, d)
		}
	}

	if len(ops) == 0 {
		if len(noops) == 0 {
			err = core.ErrNothingToExecute
			return nil, err
		}
		return noops, nil
	}

	items, err := e.store.BulkWrite(ctx, ops)
	if err != nil {
		err = fmt.Errorf("bulk write submission failed: %w", err)
		return nil, err
	}

	results := make([]core.MemoryResult, 0, len(items)+len(noops))
	for i, item := range items {
		result := core.MemoryResult{
			MemoryID: item.ID,
			Event:    opDecisions[i].Event,
			Status:   core.ResultSuccess,
		}
		if item.Err != nil {
			result.Status = core.ResultFailure
			result.Err = item.Err
			e.opts.Logger.Warn("memory operation rejected", "event", string(result.Event), "memory_id", item.ID, "error", item.Err)
		}
		results = append(results, result)
	}

	return append(results, noops...), nil
}

// embedText returns the vector for text, or nil when embeddings are not
// configured or the embed fails. A missing vector degrades the memory to
// lexical matching instead of blocking execution.
func (e *Executor) embedText(ctx context.Context, text string, cfg core.MemoryConfiguration) []float32 {
	if !cfg.SemanticSearchEnabled() || e.embedder == nil {
		return nil
	}
	vector, err := e.embedder.Embed(ctx, cfg.EmbeddingModelID, text)
	if err != nil {
		e.opts.Logger.Warn("memory embedding failed, storing without vector", "error", err)
		return nil
	}
	return vector
}
