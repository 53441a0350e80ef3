// Package testutil provides shared test doubles for the pipeline packages:
// scripted models with call recording, recording and failing stores, and
// container/access fixtures.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/model"
)

// Step is one scripted model response.
type Step struct {
	Text string
	Raw  json.RawMessage
	Err  error
}

// RecordedCall captures one model invocation and when it happened.
type RecordedCall struct {
	Request model.Request
	At      time.Time
}

// ScriptedModel replays a fixed response sequence regardless of prompt
// content and records every invocation. An optional gate makes Invoke block
// until released, which lets tests observe ordering between the synchronous
// response and background derivation.
type ScriptedModel struct {
	mu    sync.Mutex
	steps []Step
	next  int
	calls []RecordedCall
	gate  chan struct{}
}

// NewScriptedModel creates a model that answers with the given steps in
// order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Gate makes subsequent Invoke calls block until Release.
func (m *ScriptedModel) Gate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks all gated Invoke calls.
func (m *ScriptedModel) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Invoke implements model.Model.
func (m *ScriptedModel) Invoke(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RecordedCall{Request: req, At: time.Now()})
	gate := m.gate
	var step Step
	exhausted := m.next >= len(m.steps)
	if !exhausted {
		step = m.steps[m.next]
		m.next++
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if exhausted {
		return nil, fmt.Errorf("scripted model exhausted after %d calls", len(m.steps))
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &model.Response{Text: step.Text, Raw: step.Raw}, nil
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock"}
}

// Calls returns a snapshot of recorded invocations.
func (m *ScriptedModel) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Invoke ran.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ model.Model = (*ScriptedModel)(nil)

// RecordingStore wraps a DocumentStore and counts calls, keeping the
// submitted queries and operations for assertions.
type RecordingStore struct {
	Inner core.DocumentStore

	mu       sync.Mutex
	Searches []core.SearchQuery
	Bulks    [][]core.BulkOperation
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner core.DocumentStore) *RecordingStore {
	return &RecordingStore{Inner: inner}
}

func (s *RecordingStore) Search(ctx context.Context, query core.SearchQuery) ([]core.SearchHit, error) {
	s.mu.Lock()
	s.Searches = append(s.Searches, query)
	s.mu.Unlock()
	return s.Inner.Search(ctx, query)
}

func (s *RecordingStore) BulkWrite(ctx context.Context, ops []core.BulkOperation) ([]core.BulkItemResult, error) {
	s.mu.Lock()
	s.Bulks = append(s.Bulks, ops)
	s.mu.Unlock()
	return s.Inner.BulkWrite(ctx, ops)
}

func (s *RecordingStore) Get(ctx context.Context, index, id string) (*core.Document, error) {
	return s.Inner.Get(ctx, index, id)
}

func (s *RecordingStore) Delete(ctx context.Context, index, id string) error {
	return s.Inner.Delete(ctx, index, id)
}

// SearchCount returns the number of recorded searches.
func (s *RecordingStore) SearchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Searches)
}

var _ core.DocumentStore = (*RecordingStore)(nil)

// FailingStore rejects every call with Err. When ItemErrs is set, BulkWrite
// instead succeeds at submission and fails the listed item positions.
type FailingStore struct {
	Err      error
	ItemErrs map[int]error
}

func (s *FailingStore) Search(context.Context, core.SearchQuery) ([]core.SearchHit, error) {
	return nil, s.Err
}

func (s *FailingStore) BulkWrite(_ context.Context, ops []core.BulkOperation) ([]core.BulkItemResult, error) {
	if s.ItemErrs == nil {
		return nil, s.Err
	}
	results := make([]core.BulkItemResult, 0, len(ops))
	for i, op := range ops {
		id := op.ID
		if op.Doc != nil {
			id = op.Doc.ID
		}
		results = append(results, core.BulkItemResult{Action: op.Action, ID: id, Err: s.ItemErrs[i]})
	}
	return results, nil
}

func (s *FailingStore) Get(context.Context, string, string) (*core.Document, error) {
	return nil, s.Err
}

func (s *FailingStore) Delete(context.Context, string, string) error {
	return s.Err
}

var _ core.DocumentStore = (*FailingStore)(nil)

// StaticContainers is a ContainerStore backed by a map.
type StaticContainers map[string]*core.Container

func (s StaticContainers) GetContainer(_ context.Context, id string) (*core.Container, error) {
	c, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("container %q does not exist", id)
	}
	return c, nil
}

var _ core.ContainerStore = (StaticContainers)(nil)

// AccessFunc adapts a function to core.AccessChecker.
type AccessFunc func(ctx context.Context, caller string, container *core.Container) (bool, error)

func (f AccessFunc) CheckAccess(ctx context.Context, caller string, container *core.Container) (bool, error) {
	return f(ctx, caller, container)
}

// AllowAll grants every caller.
func AllowAll() core.AccessChecker {
	return AccessFunc(func(context.Context, string, *core.Container) (bool, error) {
		return true, nil
	})
}

// DenyAll rejects every caller.
func DenyAll() core.AccessChecker {
	return AccessFunc(func(context.Context, string, *core.Container) (bool, error) {
		return false, nil
	})
}

// Config returns a memory configuration with test indices and the given
// strategies. Model and embedding ids are set; individual tests blank them
// to exercise the disabled paths.
func Config(strategies ...core.MemoryStrategy) core.MemoryConfiguration {
	return core.MemoryConfiguration{
		ModelID:          "test-model",
		EmbeddingModelID: "test-embedder",
		WorkingIndex:     "working",
		LongTermIndex:    "long-term",
		Strategies:       strategies,
	}
}

// Strategy returns an enabled strategy of the given type and scope fields.
func Strategy(id string, t core.StrategyType, scopeFields ...string) core.MemoryStrategy {
	return core.MemoryStrategy{
		ID:          id,
		Type:        t,
		Enabled:     true,
		ScopeFields: scopeFields,
	}
}
