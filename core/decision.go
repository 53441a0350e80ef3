package core

import "fmt"

// FactSearchResult is one existing memory considered similar to a candidate
// fact. Produced by similarity search, consumed only by reconciliation;
// never persisted.
type FactSearchResult struct {
	// ID is the existing memory document id; empty when the match has not
	// been persisted yet.
	ID string `json:"id,omitempty"`
	// Text is the stored memory content.
	Text string `json:"text"`
	// Score is the similarity score assigned by the store.
	Score float64 `json:"score"`
}

// DecisionEvent is the reconciliation verdict for one candidate fact.
type DecisionEvent string

const (
	// DecisionAdd creates a new long-term memory.
	DecisionAdd DecisionEvent = "ADD"
	// DecisionUpdate rewrites an existing memory's content.
	DecisionUpdate DecisionEvent = "UPDATE"
	// DecisionDelete removes an existing memory.
	DecisionDelete DecisionEvent = "DELETE"
	// DecisionNone records that the fact needs no persistence change.
	DecisionNone DecisionEvent = "NONE"
)

// MemoryDecision is one reconciliation verdict emitted by the decision
// engine. Ephemeral: created and discarded within a single pipeline run.
type MemoryDecision struct {
	Event DecisionEvent `json:"event"`
	// Text is the new or updated content. Required for ADD and UPDATE.
	Text string `json:"text,omitempty"`
	// ID targets an existing memory. Required for UPDATE and DELETE.
	ID string `json:"id,omitempty"`
}

// Validate checks the per-event field requirements.
func (d MemoryDecision) Validate() error {
	switch d.Event {
	case DecisionAdd:
		if d.Text == "" {
			return fmt.Errorf("ADD decision requires text")
		}
	case DecisionUpdate:
		if d.ID == "" {
			return fmt.Errorf("UPDATE decision requires a target id")
		}
		if d.Text == "" {
			return fmt.Errorf("UPDATE decision requires text")
		}
	case DecisionDelete:
		if d.ID == "" {
			return fmt.Errorf("DELETE decision requires a target id")
		}
	case DecisionNone:
	default:
		return fmt.Errorf("unknown decision event %q", d.Event)
	}
	return nil
}

// ResultStatus classifies the outcome of executing one decision.
type ResultStatus string

const (
	// ResultSuccess means the persistence operation applied.
	ResultSuccess ResultStatus = "success"
	// ResultFailure means the store rejected this individual operation.
	ResultFailure ResultStatus = "failure"
	// ResultNoop means no operation was required (NONE decisions).
	ResultNoop ResultStatus = "noop"
)

// MemoryResult is the per-decision outcome surfaced to callers or logged on
// fire-and-forget paths. Exactly one result is produced per submitted
// operation plus one per NONE decision.
type MemoryResult struct {
	MemoryID string        `json:"memory_id,omitempty"`
	Event    DecisionEvent `json:"event"`
	Status   ResultStatus  `json:"status"`
	// Err carries the per-item failure reason when Status is failure.
	Err error `json:"-"`
}
