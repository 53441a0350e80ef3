package core

import "time"

// Memory type tags attached to persisted documents.
const (
	// MemoryTypeWorking marks raw input persisted synchronously at ingestion.
	MemoryTypeWorking = "working"
	// MemoryTypeSession marks auto-created session records.
	MemoryTypeSession = "session"
	// MemoryTypeFact marks derived, reconciled long-term memories.
	MemoryTypeFact = "fact"
)

// Document is the unit of persistence shared by working and long-term
// memory. Scope tagging (Namespace, SessionID) is always applied by the
// caller, never assumed by the store.
type Document struct {
	ID         string         `json:"id"`
	Index      string         `json:"index"`
	Text       string         `json:"text"`
	Namespace  Namespace      `json:"namespace,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	MemoryType string         `json:"memory_type,omitempty"`
	StrategyID string         `json:"strategy_id,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
