package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/internal/testutil"
	"github.com/hupe1980/memorymesh/store"
)

var scope = core.Namespace{"user_id": "u1"}

func TestExecuteEmptyDecisions(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	e := New(recording, nil)

	results, err := e.Execute(context.Background(), nil, scope, "sess-1", testutil.Config())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Empty(t, recording.Bulks, "empty decision list must not reach the store")
}

func TestExecuteNoneOnly(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	e := New(recording, nil)

	decisions := []core.MemoryDecision{{Event: core.DecisionNone}, {Event: core.DecisionNone}}
	results, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, core.ResultNoop, r.Status)
		assert.Equal(t, core.DecisionNone, r.Event)
	}
	assert.Empty(t, recording.Bulks, "noop decisions must not trigger a bulk write")
}

func TestExecuteInvalidOnly(t *testing.T) {
	e := New(store.NewInMemoryStore(), nil)

	decisions := []core.MemoryDecision{
		{Event: core.DecisionAdd},               // missing text
		{Event: core.DecisionUpdate, Text: "x"}, // missing id
		{Event: "MERGE", Text: "unknown"},       // unknown event
	}
	_, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	assert.ErrorIs(t, err, core.ErrNothingToExecute)
}

func TestExecuteInvalidSkippedAlongsideNone(t *testing.T) {
	e := New(store.NewInMemoryStore(), nil)

	decisions := []core.MemoryDecision{
		{Event: core.DecisionAdd}, // invalid, no result
		{Event: core.DecisionNone},
	}
	results, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ResultNoop, results[0].Status)
}

func TestExecuteDoubleAddCreatesDistinctMemories(t *testing.T) {
	s := store.NewInMemoryStore()
	e := New(s, nil)

	decisions := []core.MemoryDecision{
		{Event: core.DecisionAdd, Text: "likes jazz"},
		{Event: core.DecisionAdd, Text: "likes jazz"},
	}
	results, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, core.ResultSuccess, results[0].Status)
	assert.Equal(t, core.ResultSuccess, results[1].Status)
	assert.NotEqual(t, results[0].MemoryID, results[1].MemoryID, "duplicate decisions create distinct memories")

	for _, r := range results {
		doc, err := s.Get(context.Background(), "long-term", r.MemoryID)
		require.NoError(t, err)
		assert.Equal(t, "likes jazz", doc.Text)
		assert.Equal(t, core.MemoryTypeFact, doc.MemoryType)
		assert.Equal(t, "sess-1", doc.SessionID)
		assert.Equal(t, scope, doc.Namespace)
	}
}

func TestExecuteUpdateAndDelete(t *testing.T) {
	s := store.NewInMemoryStore()
	e := New(s, nil)

	seed, err := e.Execute(context.Background(), []core.MemoryDecision{
		{Event: core.DecisionAdd, Text: "prefers coffee"},
		{Event: core.DecisionAdd, Text: "lives in Hamburg"},
	}, scope, "sess-1", testutil.Config())
	require.NoError(t, err)

	results, err := e.Execute(context.Background(), []core.MemoryDecision{
		{Event: core.DecisionUpdate, ID: seed[0].MemoryID, Text: "prefers tea"},
		{Event: core.DecisionDelete, ID: seed[1].MemoryID},
	}, scope, "sess-1", testutil.Config())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ResultSuccess, results[0].Status)
	assert.Equal(t, core.ResultSuccess, results[1].Status)

	doc, err := s.Get(context.Background(), "long-term", seed[0].MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "prefers tea", doc.Text)

	_, err = s.Get(context.Background(), "long-term", seed[1].MemoryID)
	assert.Error(t, err, "deleted memory must be gone")
}

func TestExecutePartialFailure(t *testing.T) {
	itemErr := errors.New("version conflict")
	s := &testutil.FailingStore{ItemErrs: map[int]error{1: itemErr}}
	e := New(s, nil)

	decisions := []core.MemoryDecision{
		{Event: core.DecisionAdd, Text: "likes jazz"},
		{Event: core.DecisionUpdate, ID: "missing", Text: "nope"},
		{Event: core.DecisionNone},
	}
	results, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	require.NoError(t, err, "per-item failures must not fail the call")
	require.Len(t, results, 3)

	assert.Equal(t, core.ResultSuccess, results[0].Status)
	assert.Equal(t, core.ResultFailure, results[1].Status)
	assert.ErrorIs(t, results[1].Err, itemErr)
	assert.Equal(t, core.DecisionUpdate, results[1].Event)
	assert.Equal(t, core.ResultNoop, results[2].Status, "noop results follow op results")
}

func TestExecuteSubmissionFailure(t *testing.T) {
	boom := errors.New("store unreachable")
	e := New(&testutil.FailingStore{Err: boom}, nil)

	decisions := []core.MemoryDecision{{Event: core.DecisionAdd, Text: "likes jazz"}}
	_, err := e.Execute(context.Background(), decisions, scope, "sess-1", testutil.Config())
	assert.ErrorIs(t, err, boom)
}

func TestExecuteEmbeddingsAttachedWhenConfigured(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	e := New(recording, embedding.NewHashEmbedder(8))

	_, err := e.Execute(context.Background(), []core.MemoryDecision{
		{Event: core.DecisionAdd, Text: "likes jazz"},
	}, scope, "sess-1", testutil.Config())
	require.NoError(t, err)

	require.Len(t, recording.Bulks, 1)
	require.Len(t, recording.Bulks[0], 1)
	assert.NotEmpty(t, recording.Bulks[0][0].Doc.Embedding)
}

func TestExecuteNoEmbeddingsWithoutModel(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	e := New(recording, embedding.NewHashEmbedder(8))

	cfg := testutil.Config()
	cfg.EmbeddingModelID = ""

	_, err := e.Execute(context.Background(), []core.MemoryDecision{
		{Event: core.DecisionAdd, Text: "likes jazz"},
	}, scope, "sess-1", cfg)
	require.NoError(t, err)

	require.Len(t, recording.Bulks, 1)
	assert.Empty(t, recording.Bulks[0][0].Doc.Embedding)
}
