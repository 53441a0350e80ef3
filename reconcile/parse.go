package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/memorymesh/core"
)

// wireDecision is the decision shape as models actually emit it. Both
// "memory_id" (the prompted key) and "id" are accepted.
type wireDecision struct {
	Event    string `json:"event"`
	Text     string `json:"text"`
	MemoryID string `json:"memory_id"`
	ID       string `json:"id"`
}

func (w wireDecision) toDecision() core.MemoryDecision {
	id := w.MemoryID
	if id == "" {
		id = w.ID
	}
	return core.MemoryDecision{
		Event: core.DecisionEvent(strings.ToUpper(strings.TrimSpace(w.Event))),
		Text:  w.Text,
		ID:    id,
	}
}

// ParseDecisions recovers the decision list from a raw model response. The
// accepted shapes, tried in order after Markdown fence stripping:
//
//  1. an object carrying a "memory_decisions" array,
//  2. a bare decision array.
//
// A present-but-empty list parses to an empty slice with no error. A
// response matching neither shape is core.ErrUnusableDecisionResponse.
func ParseDecisions(text string) ([]core.MemoryDecision, error) {
	body := StripFences(text)

	if decisions, ok := parseWrappedObject(body); ok {
		return decisions, nil
	}
	if decisions, ok := parseBareArray(body); ok {
		return decisions, nil
	}

	return nil, fmt.Errorf("%w: no decision list found", core.ErrUnusableDecisionResponse)
}

// StripFences removes a leading/trailing Markdown code fence (with or
// without a language tag) and surrounding whitespace. Content without fences
// passes through trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop a language tag like "json" up to the first newline.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "" || isFenceTag(firstLine) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// parseWrappedObject handles {"memory_decisions": [...]}. The key must be
// present: {"memory_decisions": []} is a valid empty verdict, but an object
// without the key is not a decision response.
func parseWrappedObject(body string) ([]core.MemoryDecision, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil, false
	}
	rawList, ok := probe["memory_decisions"]
	if !ok {
		return nil, false
	}
	var raw []wireDecision
	if err := json.Unmarshal(rawList, &raw); err != nil {
		return nil, false
	}
	return convert(raw), true
}

func parseBareArray(body string) ([]core.MemoryDecision, bool) {
	// json.Unmarshal accepts bare null into a slice; only a real array
	// counts as decision content.
	if !strings.HasPrefix(strings.TrimSpace(body), "[") {
		return nil, false
	}
	var raw []wireDecision
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, false
	}
	return convert(raw), true
}

func convert(raw []wireDecision) []core.MemoryDecision {
	decisions := make([]core.MemoryDecision, 0, len(raw))
	for _, w := range raw {
		decisions = append(decisions, w.toDecision())
	}
	return decisions
}
