package core

import "errors"

// Sentinel errors shared across pipeline components. Wrap with fmt.Errorf
// and %w so callers can branch with errors.Is.
var (
	// ErrNoModelConfigured is returned when reconciliation is requested
	// without an LLM in the configuration. Extraction treats the same
	// condition as "no facts" instead.
	ErrNoModelConfigured = errors.New("no llm model configured")

	// ErrUnsupportedStrategy is returned for a strategy type outside the
	// closed SEMANTIC / USER_PREFERENCE / SUMMARY set.
	ErrUnsupportedStrategy = errors.New("unsupported strategy type")

	// ErrMalformedModelResponse marks malformed JSON at a configured
	// result path: a prompt/response contract mismatch, not an absence of
	// facts.
	ErrMalformedModelResponse = errors.New("malformed model response")

	// ErrUnusableDecisionResponse marks a reconciliation response with no
	// recognizable decision content in any accepted shape.
	ErrUnusableDecisionResponse = errors.New("unusable reconciliation response")

	// ErrNothingToExecute is returned when a non-empty decision list
	// yields no operations and no results after filtering.
	ErrNothingToExecute = errors.New("nothing to execute")

	// ErrContainerNotFound is returned when the container lookup fails.
	ErrContainerNotFound = errors.New("memory container not found")

	// ErrPermissionDenied is returned when the caller may not write to
	// the resolved container.
	ErrPermissionDenied = errors.New("permission denied")
)
