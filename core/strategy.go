package core

import "fmt"

// StrategyType is the closed set of memory derivation kinds. An unmatched
// value is a modeled error (ErrUnsupportedStrategy), never a silent default.
type StrategyType string

const (
	// StrategySemantic derives atomic facts from conversation content.
	StrategySemantic StrategyType = "SEMANTIC"
	// StrategyUserPreference derives durable user preferences.
	StrategyUserPreference StrategyType = "USER_PREFERENCE"
	// StrategySummary derives a condensed summary of the exchange.
	StrategySummary StrategyType = "SUMMARY"
)

// ParseStrategyType validates a wire value against the closed enum.
func ParseStrategyType(s string) (StrategyType, error) {
	switch StrategyType(s) {
	case StrategySemantic, StrategyUserPreference, StrategySummary:
		return StrategyType(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStrategy, s)
	}
}

// MemoryStrategy is one configured derivation rule owned by the container
// configuration. Immutable once loaded for a request; safe for concurrent
// reads by parallel pipelines.
type MemoryStrategy struct {
	// ID is the stable identifier of this strategy within its container.
	ID string `json:"id"`
	// Type selects the extraction/reconciliation behavior.
	Type StrategyType `json:"type"`
	// Enabled gates the strategy entirely.
	Enabled bool `json:"enabled"`
	// ScopeFields lists namespace keys that must ALL be present in the
	// input's namespace for this strategy to run. No partial credit.
	ScopeFields []string `json:"scope_fields"`
	// Config carries free-form per-strategy settings such as prompt
	// overrides ("prompt") or a result-path expression ("result_path").
	Config map[string]string `json:"config,omitempty"`
}

// ConfigValue returns the named config entry or the provided fallback.
func (s MemoryStrategy) ConfigValue(key, fallback string) string {
	if v, ok := s.Config[key]; ok && v != "" {
		return v
	}
	return fallback
}
