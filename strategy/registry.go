// Package strategy provides the registry of memory derivation behaviors and
// the eligibility selection that decides which configured strategies apply to
// a given input. The registry is constructed once at startup and passed
// explicitly to pipeline components; there is no ambient global state.
package strategy

import (
	"fmt"

	"github.com/hupe1980/memorymesh/core"
)

// Handler bundles the per-type extraction behavior: the system prompt handed
// to the model and the default result-path expression used to pull facts out
// of the structured response. Strategy config may override both.
type Handler struct {
	Type              core.StrategyType
	SystemPrompt      string
	DefaultResultPath string
}

// Registry holds the closed set of strategy handlers. Register all handlers
// during startup; the registry is read-only afterwards and safe for
// concurrent reads by parallel pipelines.
type Registry struct {
	handlers map[core.StrategyType]Handler
}

// New creates a registry preloaded with the built-in SEMANTIC,
// USER_PREFERENCE and SUMMARY handlers.
func New() *Registry {
	r := &Registry{handlers: make(map[core.StrategyType]Handler)}
	r.Register(Handler{
		Type:              core.StrategySemantic,
		SystemPrompt:      semanticExtractionPrompt,
		DefaultResultPath: "facts",
	})
	r.Register(Handler{
		Type:              core.StrategyUserPreference,
		SystemPrompt:      preferenceExtractionPrompt,
		DefaultResultPath: "facts",
	})
	r.Register(Handler{
		Type:         core.StrategySummary,
		SystemPrompt: summaryExtractionPrompt,
		// Summaries are free text: the whole response is the fact.
		DefaultResultPath: "",
	})
	return r
}

// Register adds or replaces a handler. Call during startup only.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Type] = h
}

// Handler resolves the handler for a strategy type. An unknown type is a
// modeled error, never a silent default.
func (r *Registry) Handler(t core.StrategyType) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", core.ErrUnsupportedStrategy, t)
	}
	return h, nil
}

// Eligible returns the configured strategies that apply to the namespace: a
// strategy runs iff it is enabled and every one of its scope fields is
// present as a namespace key. A strategy missing even one field is skipped
// silently. No ordering guarantee between returned strategies.
func (r *Registry) Eligible(cfg core.MemoryConfiguration, namespace core.Namespace) []core.MemoryStrategy {
	eligible := make([]core.MemoryStrategy, 0, len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		if !s.Enabled {
			continue
		}
		if !namespace.Covers(s.ScopeFields) {
			continue
		}
		eligible = append(eligible, s)
	}
	return eligible
}
