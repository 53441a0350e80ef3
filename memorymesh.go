// Package memorymesh provides a high-level façade over the memory pipeline
// (ingestion, extraction, similarity search, reconciliation and execution).
// Most applications interact with this package by:
//  1. Creating a MemoryMesh via New() (optionally overriding default in-memory services)
//  2. Registering memory containers with their strategy configurations
//  3. Ingesting conversation batches (Ingest); derivation runs in the background
//
// The façade delegates orchestration to ingestion.Orchestrator while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable document store,
// real model adapters and a structured logger.
package memorymesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/executor"
	"github.com/hupe1980/memorymesh/extraction"
	"github.com/hupe1980/memorymesh/ingestion"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/model"
	"github.com/hupe1980/memorymesh/reconcile"
	"github.com/hupe1980/memorymesh/search"
	"github.com/hupe1980/memorymesh/store"
	"github.com/hupe1980/memorymesh/strategy"
)

// Options configures the MemoryMesh instance.
type Options struct {
	// Model drives fact extraction and reconciliation. Defaults to the
	// mock model, which is only useful for local experimentation.
	Model model.Model

	// Embedder produces vectors for semantic search. Defaults to the
	// deterministic hash embedder.
	Embedder embedding.Embedder

	// DocumentStore persists working and long-term memory. Defaults to
	// the in-memory store.
	DocumentStore core.DocumentStore

	// ContainerStore resolves containers; defaults to the built-in
	// registry populated via RegisterContainer.
	ContainerStore core.ContainerStore

	// AccessChecker gates writes; defaults to allowing every caller.
	AccessChecker core.AccessChecker

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// OnStrategyComplete observes background pipeline outcomes.
	OnStrategyComplete func(ingestion.StrategyOutcome)
}

// MemoryMesh is the high-level façade aggregating the pipeline stages.
type MemoryMesh struct {
	opts         Options
	containers   *ContainerRegistry
	orchestrator *ingestion.Orchestrator
}

// New creates a MemoryMesh with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *MemoryMesh {
	opts := Options{
		Model:         model.NewMockModel("mock", "mock"),
		Embedder:      embedding.NewHashEmbedder(0),
		DocumentStore: store.NewInMemoryStore(),
		AccessChecker: allowAllAccess{},
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	containers := NewContainerRegistry()
	containerStore := opts.ContainerStore
	if containerStore == nil {
		containerStore = containers
	}

	registry := strategy.New()

	orchestrator := ingestion.New(
		containerStore,
		opts.AccessChecker,
		opts.DocumentStore,
		registry,
		extraction.New(opts.Model, registry, func(o *extraction.Options) { o.Logger = opts.Logger }),
		search.New(opts.DocumentStore, opts.Embedder, func(o *search.Options) { o.Logger = opts.Logger }),
		reconcile.New(opts.Model, func(o *reconcile.Options) { o.Logger = opts.Logger }),
		executor.New(opts.DocumentStore, opts.Embedder, func(o *executor.Options) { o.Logger = opts.Logger }),
		func(o *ingestion.Options) {
			o.Logger = opts.Logger
			o.OnStrategyComplete = opts.OnStrategyComplete
		},
	)

	return &MemoryMesh{
		opts:         opts,
		containers:   containers,
		orchestrator: orchestrator,
	}
}

// RegisterContainer adds a container to the built-in registry. A no-op when
// an external ContainerStore was supplied.
func (m *MemoryMesh) RegisterContainer(c *core.Container) {
	m.containers.Register(c)
}

// Ingest persists the batch as working memory and, when req.Infer is set,
// starts background derivation.
func (m *MemoryMesh) Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Response, error) {
	return m.orchestrator.Ingest(ctx, req)
}

// History returns recent working-memory documents for a session.
func (m *MemoryMesh) History(ctx context.Context, containerID, caller, sessionID string, limit int) ([]core.Document, error) {
	return m.orchestrator.History(ctx, containerID, caller, sessionID, limit)
}

// Wait blocks until all background derivation started so far has finished.
func (m *MemoryMesh) Wait() {
	m.orchestrator.Wait()
}

// Close drains background work and releases resources.
func (m *MemoryMesh) Close() error {
	return m.orchestrator.Close()
}

// ContainerRegistry is a threadsafe in-memory ContainerStore.
type ContainerRegistry struct {
	mu         sync.RWMutex
	containers map[string]*core.Container
}

// NewContainerRegistry creates an empty registry.
func NewContainerRegistry() *ContainerRegistry {
	return &ContainerRegistry{containers: make(map[string]*core.Container)}
}

// Register adds or replaces a container.
func (r *ContainerRegistry) Register(c *core.Container) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[c.ID] = c
}

// GetContainer implements core.ContainerStore.
func (r *ContainerRegistry) GetContainer(_ context.Context, id string) (*core.Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[id]
	if !ok {
		return nil, fmt.Errorf("container %q is not registered", id)
	}
	return c, nil
}

var _ core.ContainerStore = (*ContainerRegistry)(nil)

type allowAllAccess struct{}

func (allowAllAccess) CheckAccess(context.Context, string, *core.Container) (bool, error) {
	return true, nil
}
