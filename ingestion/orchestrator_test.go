package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/executor"
	"github.com/hupe1980/memorymesh/extraction"
	"github.com/hupe1980/memorymesh/internal/testutil"
	"github.com/hupe1980/memorymesh/reconcile"
	"github.com/hupe1980/memorymesh/search"
	"github.com/hupe1980/memorymesh/store"
	"github.com/hupe1980/memorymesh/strategy"
)

var testMessages = []core.Message{{Role: "user", Content: "I moved to Berlin last month."}}

func testContainer(strategies ...core.MemoryStrategy) *core.Container {
	return &core.Container{
		ID:            "c1",
		Name:          "test container",
		Owner:         "alice",
		Configuration: testutil.Config(strategies...),
	}
}

func newOrchestrator(m *testutil.ScriptedModel, docs core.DocumentStore, containers core.ContainerStore, access core.AccessChecker, optFns ...func(o *Options)) *Orchestrator {
	registry := strategy.New()
	embedder := embedding.NewHashEmbedder(8)
	return New(
		containers,
		access,
		docs,
		registry,
		extraction.New(m, registry),
		search.New(docs, embedder),
		reconcile.New(m),
		executor.New(docs, embedder),
		optFns...,
	)
}

func TestIngestContainerNotFound(t *testing.T) {
	o := newOrchestrator(testutil.NewScriptedModel(), store.NewInMemoryStore(), testutil.StaticContainers{}, testutil.AllowAll())

	_, err := o.Ingest(context.Background(), Request{ContainerID: "missing", Caller: "alice"})
	assert.ErrorIs(t, err, core.ErrContainerNotFound)
}

func TestIngestPermissionDenied(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), recording, containers, testutil.DenyAll())

	_, err := o.Ingest(context.Background(), Request{ContainerID: "c1", Caller: "mallory", Messages: testMessages})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.Empty(t, recording.Bulks, "denied calls must leave no side effects")
}

func TestIngestAccessCheckError(t *testing.T) {
	boom := errors.New("authz backend down")
	access := testutil.AccessFunc(func(context.Context, string, *core.Container) (bool, error) {
		return false, boom
	})
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), store.NewInMemoryStore(), containers, access)

	_, err := o.Ingest(context.Background(), Request{ContainerID: "c1", Caller: "alice"})
	assert.ErrorIs(t, err, boom)
}

func TestIngestPersistsWorkingMemory(t *testing.T) {
	docs := store.NewInMemoryStore()
	m := testutil.NewScriptedModel()
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(m, docs, containers, testutil.AllowAll())

	resp, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		Namespace:   core.Namespace{"user_id": "u1"},
		Messages:    testMessages,
		Infer:       false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.WorkingMemoryID)
	require.NotEmpty(t, resp.SessionID)

	doc, err := docs.Get(context.Background(), "working", resp.WorkingMemoryID)
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "I moved to Berlin last month.")
	assert.Equal(t, core.MemoryTypeWorking, doc.MemoryType)
	assert.Equal(t, resp.SessionID, doc.SessionID)

	session, err := docs.Get(context.Background(), "working", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, core.MemoryTypeSession, session.MemoryType)

	o.Wait()
	assert.Zero(t, m.CallCount(), "infer=false must not invoke the model")
}

func TestIngestCallerSuppliedSession(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), recording, containers, testutil.AllowAll())

	resp, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		SessionID:   "sess-42",
		Messages:    testMessages,
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", resp.SessionID)

	require.Len(t, recording.Bulks, 1)
	assert.Len(t, recording.Bulks[0], 1, "existing session must not create a session record")
}

func TestIngestDisableSession(t *testing.T) {
	recording := testutil.NewRecordingStore(store.NewInMemoryStore())
	container := testContainer()
	container.Configuration.DisableSession = true
	containers := testutil.StaticContainers{"c1": container}
	o := newOrchestrator(testutil.NewScriptedModel(), recording, containers, testutil.AllowAll())

	resp, err := o.Ingest(context.Background(), Request{ContainerID: "c1", Caller: "alice", Messages: testMessages})
	require.NoError(t, err)
	assert.Empty(t, resp.SessionID)
	require.Len(t, recording.Bulks, 1)
	assert.Len(t, recording.Bulks[0], 1)
}

func TestIngestWorkingMemoryWriteFailure(t *testing.T) {
	boom := errors.New("store unreachable")
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), &testutil.FailingStore{Err: boom}, containers, testutil.AllowAll())

	_, err := o.Ingest(context.Background(), Request{ContainerID: "c1", Caller: "alice", Messages: testMessages})
	assert.ErrorIs(t, err, boom)
}

func TestIngestDerivationPersistsFacts(t *testing.T) {
	docs := store.NewInMemoryStore()
	m := testutil.NewScriptedModel(
		testutil.Step{Text: `{"facts": ["lives in Berlin"]}`},
		testutil.Step{Text: `{"memory_decisions": [{"event": "ADD", "text": "lives in Berlin"}]}`},
	)
	containers := testutil.StaticContainers{"c1": testContainer(
		testutil.Strategy("s1", core.StrategySemantic, "user_id"),
	)}

	outcomes := make(chan StrategyOutcome, 1)
	o := newOrchestrator(m, docs, containers, testutil.AllowAll(), func(o *Options) {
		o.OnStrategyComplete = func(out StrategyOutcome) { outcomes <- out }
	})

	_, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		Namespace:   core.Namespace{"user_id": "u1"},
		Messages:    testMessages,
		Infer:       true,
	})
	require.NoError(t, err)
	o.Wait()

	select {
	case out := <-outcomes:
		require.NoError(t, out.Err)
		assert.Equal(t, "c1", out.ContainerID)
		assert.Equal(t, "s1", out.StrategyID)
		require.Len(t, out.Results, 1)
		assert.Equal(t, core.ResultSuccess, out.Results[0].Status)
		assert.Equal(t, core.DecisionAdd, out.Results[0].Event)

		fact, err := docs.Get(context.Background(), "long-term", out.Results[0].MemoryID)
		require.NoError(t, err)
		assert.Equal(t, "lives in Berlin", fact.Text)
		assert.Equal(t, core.MemoryTypeFact, fact.MemoryType)
		assert.Equal(t, core.Namespace{"user_id": "u1"}, fact.Namespace)
	default:
		t.Fatal("expected a strategy outcome")
	}
}

func TestIngestBackgroundFailureNotSurfaced(t *testing.T) {
	boom := errors.New("provider unavailable")
	m := testutil.NewScriptedModel(testutil.Step{Err: boom})
	containers := testutil.StaticContainers{"c1": testContainer(
		testutil.Strategy("s1", core.StrategySemantic, "user_id"),
	)}

	outcomes := make(chan StrategyOutcome, 1)
	o := newOrchestrator(m, store.NewInMemoryStore(), containers, testutil.AllowAll(), func(o *Options) {
		o.OnStrategyComplete = func(out StrategyOutcome) { outcomes <- out }
	})

	resp, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		Namespace:   core.Namespace{"user_id": "u1"},
		Messages:    testMessages,
		Infer:       true,
	})
	require.NoError(t, err, "derivation failures must never surface to the caller")
	require.NotEmpty(t, resp.WorkingMemoryID)
	o.Wait()

	out := <-outcomes
	assert.ErrorIs(t, out.Err, boom)
	assert.Empty(t, out.Results)
}

func TestIngestIneligibleStrategyNeverStarts(t *testing.T) {
	m := testutil.NewScriptedModel()
	containers := testutil.StaticContainers{"c1": testContainer(
		testutil.Strategy("s1", core.StrategySemantic, "user_id", "agent_id"),
	)}
	o := newOrchestrator(m, store.NewInMemoryStore(), containers, testutil.AllowAll())

	_, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		Namespace:   core.Namespace{"user_id": "u1"}, // agent_id missing
		Messages:    testMessages,
		Infer:       true,
	})
	require.NoError(t, err)
	o.Wait()
	assert.Zero(t, m.CallCount(), "strategy without full scope coverage must not run")
}

func TestIngestRespondsBeforeDerivationCompletes(t *testing.T) {
	m := testutil.NewScriptedModel(
		testutil.Step{Text: `{"facts": ["lives in Berlin"]}`},
		testutil.Step{Text: `{"memory_decisions": []}`},
	)
	m.Gate()

	containers := testutil.StaticContainers{"c1": testContainer(
		testutil.Strategy("s1", core.StrategySemantic, "user_id"),
	)}

	outcomes := make(chan StrategyOutcome, 1)
	o := newOrchestrator(m, store.NewInMemoryStore(), containers, testutil.AllowAll(), func(o *Options) {
		o.OnStrategyComplete = func(out StrategyOutcome) { outcomes <- out }
	})

	resp, err := o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		Namespace:   core.Namespace{"user_id": "u1"},
		Messages:    testMessages,
		Infer:       true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.WorkingMemoryID, "response is ready while the model is still blocked")

	select {
	case <-outcomes:
		t.Fatal("derivation finished before the model was released")
	case <-time.After(50 * time.Millisecond):
	}

	m.Release()
	o.Wait()

	out := <-outcomes
	assert.NoError(t, out.Err)
}

func TestHistory(t *testing.T) {
	docs := store.NewInMemoryStore()
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), docs, containers, testutil.AllowAll())

	resp, err := o.Ingest(context.Background(), Request{ContainerID: "c1", Caller: "alice", Messages: testMessages})
	require.NoError(t, err)

	_, err = o.Ingest(context.Background(), Request{
		ContainerID: "c1",
		Caller:      "alice",
		SessionID:   resp.SessionID,
		Messages:    []core.Message{{Role: "user", Content: "Actually, Hamburg."}},
	})
	require.NoError(t, err)

	history, err := o.History(context.Background(), "c1", "alice", resp.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, doc := range history {
		assert.Equal(t, resp.SessionID, doc.SessionID)
		assert.Equal(t, core.MemoryTypeWorking, doc.MemoryType)
	}
}

func TestHistoryKeepsNewestOverLimit(t *testing.T) {
	docs := store.NewInMemoryStore()
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), docs, containers, testutil.AllowAll())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ops := make([]core.BulkOperation, 0, 10)
	for i := 0; i < 10; i++ {
		ops = append(ops, core.BulkOperation{
			Action: core.BulkCreate,
			Index:  "working",
			Doc: &core.Document{
				ID:         core.NewID(),
				Text:       "user: msg-" + string(rune('0'+i)),
				SessionID:  "sess-1",
				MemoryType: core.MemoryTypeWorking,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			},
		})
	}
	_, err := docs.BulkWrite(context.Background(), ops)
	require.NoError(t, err)

	history, err := o.History(context.Background(), "c1", "alice", "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user: msg-9", history[0].Text)
	assert.Equal(t, "user: msg-8", history[1].Text)

	all, err := o.History(context.Background(), "c1", "alice", "sess-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)
	assert.Equal(t, "user: msg-9", all[0].Text)
	assert.Equal(t, "user: msg-0", all[9].Text)
}

func TestHistoryDisabled(t *testing.T) {
	container := testContainer()
	container.Configuration.DisableHistory = true
	containers := testutil.StaticContainers{"c1": container}
	o := newOrchestrator(testutil.NewScriptedModel(), store.NewInMemoryStore(), containers, testutil.AllowAll())

	history, err := o.History(context.Background(), "c1", "alice", "sess-1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryAccessDenied(t *testing.T) {
	containers := testutil.StaticContainers{"c1": testContainer()}
	o := newOrchestrator(testutil.NewScriptedModel(), store.NewInMemoryStore(), containers, testutil.DenyAll())

	_, err := o.History(context.Background(), "c1", "mallory", "sess-1", 10)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
}
