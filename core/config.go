package core

// DefaultMaxInferSize caps similarity matches considered per fact when the
// configuration does not set its own limit.
const DefaultMaxInferSize = 5

// MemoryConfiguration holds per-container pipeline settings. It is loaded
// fresh per request from the owning container and read-only during pipeline
// execution, so concurrent strategy pipelines may share one instance.
type MemoryConfiguration struct {
	// ModelID identifies the LLM used for extraction and reconciliation.
	// Empty disables extraction (best effort) and fails reconciliation.
	ModelID string `json:"model_id,omitempty"`
	// EmbeddingModelID identifies the embedding model. Empty disables
	// semantic similarity clauses; search falls back to lexical matching.
	EmbeddingModelID string `json:"embedding_model_id,omitempty"`
	// WorkingIndex names the working-memory index.
	WorkingIndex string `json:"working_index"`
	// LongTermIndex names the long-term memory index.
	LongTermIndex string `json:"long_term_index"`
	// MaxInferSize caps similarity matches considered per fact.
	MaxInferSize int `json:"max_infer_size,omitempty"`
	// DisableSession suppresses automatic session record creation.
	DisableSession bool `json:"disable_session,omitempty"`
	// DisableHistory suppresses working-memory history reads.
	DisableHistory bool `json:"disable_history,omitempty"`
	// Strategies lists the configured derivation rules.
	Strategies []MemoryStrategy `json:"strategies,omitempty"`
}

// InferSize returns MaxInferSize or the default when unset.
func (c MemoryConfiguration) InferSize() int {
	if c.MaxInferSize > 0 {
		return c.MaxInferSize
	}
	return DefaultMaxInferSize
}

// SemanticSearchEnabled reports whether vector similarity clauses apply.
func (c MemoryConfiguration) SemanticSearchEnabled() bool {
	return c.EmbeddingModelID != ""
}
