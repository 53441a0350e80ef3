package model

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request captures one normalized inference call produced by the pipeline.
type Request struct {
	// ModelID selects the concrete model at the provider; empty falls back
	// to the adapter's configured default.
	ModelID string `json:"model_id,omitempty"`
	// System carries the strategy-specific system prompt.
	System string `json:"system,omitempty"`
	// Prompt carries the rendered user prompt.
	Prompt string `json:"prompt"`
	// Parameters passes provider-specific overrides (temperature, ...).
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Response is the full (non-streaming) model output.
type Response struct {
	// Text is the concatenated textual output.
	Text string `json:"text"`
	// Raw is the provider's structured payload, used for result-path
	// extraction. May be empty for providers without structured output.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive fact extraction and
// decision reconciliation. Invoke blocks until the full response is
// available; cancellation flows through ctx.
type Model interface {
	Invoke(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
	raw       map[string]json.RawMessage
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		raw:       make(map[string]json.RawMessage),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddRawResponse registers a structured payload returned alongside the text.
func (m *MockModel) AddRawResponse(prompt string, raw json.RawMessage) { m.raw[prompt] = raw }

// Invoke implements Model; returns the canned response or a generic echo.
func (m *MockModel) Invoke(ctx context.Context, req Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	text, ok := m.responses[req.Prompt]
	if !ok {
		text = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}
	return &Response{Text: text, Raw: m.raw[req.Prompt]}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
