// Package reconcile decides how candidate facts change the long-term memory
// set. A language model compares the new facts against existing memories and
// emits ADD, UPDATE, DELETE or NONE decisions; the package's parser tolerates
// the usual model formatting drift around the decision JSON.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/internal/util"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/observability"
)

// Options configures a reconcile Engine.
type Options struct {
	// Logger receives reconciliation diagnostics.
	Logger logging.Logger
}

// Engine produces memory decisions from facts and their existing matches.
// Safe for concurrent use.
type Engine struct {
	model model.Model
	opts  Options
}

// New creates a reconciliation engine backed by the given model.
func New(m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		model: m,
		opts:  opts,
	}
}

// Reconcile asks the model to compare facts against existing memories and
// returns its decision list. Unlike extraction, reconciliation cannot run
// without a model: a configuration lacking one is a hard
// core.ErrNoModelConfigured. An empty decision list is a valid outcome
// meaning nothing needs to change. Decisions are returned exactly as the
// model produced them, duplicates included; the executor owns validation.
func (e *Engine) Reconcile(ctx context.Context, facts []string, existing []core.FactSearchResult, cfg core.MemoryConfiguration) ([]core.MemoryDecision, error) {
	if cfg.ModelID == "" {
		return nil, core.ErrNoModelConfigured
	}

	ctx, span := observability.Tracer("memorymesh/reconcile").Start(ctx, "reconcile.decide")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	prompt, err := buildPrompt(facts, existing)
	if err != nil {
		return nil, err
	}

	resp, err := e.model.Invoke(ctx, model.Request{
		ModelID: cfg.ModelID,
		System:  reconciliationSystemPrompt,
		Prompt:  prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation model call failed: %w", err)
	}

	decisions, err := ParseDecisions(resp.Text)
	if err != nil {
		e.opts.Logger.Error("unusable reconciliation response", "error", err, "response", util.Truncate(resp.Text, 200))
		return nil, err
	}

	e.opts.Logger.Debug("reconciliation complete", "facts", len(facts), "existing", len(existing), "decisions", len(decisions))

	return decisions, nil
}

// buildPrompt renders the user prompt: the fact list plus the existing
// matches with their ids, texts and scores so the model can reference
// memories it wants changed.
func buildPrompt(facts []string, existing []core.FactSearchResult) (string, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode facts: %w", err)
	}

	type match struct {
		ID    string  `json:"memory_id"`
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	}
	matches := make([]match, 0, len(existing))
	for _, m := range existing {
		matches = append(matches, match{ID: m.ID, Text: m.Text, Score: m.Score})
	}
	matchesJSON, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode existing memories: %w", err)
	}

	return fmt.Sprintf("New facts:\n%s\n\nExisting memories:\n%s", factsJSON, matchesJSON), nil
}

const reconciliationSystemPrompt = `You maintain a long-term memory store. Compare the new facts against the existing memories and decide, for each needed change, one of:
- ADD: the fact is new information. Provide "text".
- UPDATE: an existing memory should be rewritten. Provide "memory_id" and the new "text".
- DELETE: an existing memory is contradicted or obsolete. Provide "memory_id".
- NONE: an existing memory already covers the fact. No fields required.

Respond with JSON only, no prose, in this exact shape:
{"memory_decisions": [{"event": "ADD", "text": "..."}, {"event": "UPDATE", "memory_id": "...", "text": "..."}]}

An empty list {"memory_decisions": []} is the correct answer when nothing needs to change.`
