// Package search resolves candidate facts against existing long-term
// memories so the reconciliation stage can decide between adding, updating
// and deleting. Each fact is searched independently and failures degrade to
// "no matches" instead of aborting the pipeline.
package search

import (
	"context"
	"sync"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
	"github.com/hupe1980/memorymesh/logging"
	"github.com/hupe1980/memorymesh/observability"
)

// Options configures a search Service.
type Options struct {
	// Logger receives per-fact degradation warnings.
	Logger logging.Logger
}

// Service performs scoped similarity search over the long-term index. Safe
// for concurrent use.
type Service struct {
	store    core.DocumentStore
	embedder embedding.Embedder
	opts     Options
}

// New creates a search service. The embedder may be nil; vector search is
// only attempted when the configuration names an embedding model.
func New(store core.DocumentStore, embedder embedding.Embedder, optFns ...func(o *Options)) *Service {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{
		store:    store,
		embedder: embedder,
		opts:     opts,
	}
}

// SearchSimilarFacts looks up existing memories similar to each fact within
// the given scope. Facts are searched concurrently; the combined result
// preserves fact order, with each fact's matches in descending score order as
// returned by the store. A fact whose embedding or query fails contributes no
// matches. Duplicate memories reached from different facts are preserved.
func (s *Service) SearchSimilarFacts(ctx context.Context, facts []string, scope core.Namespace, cfg core.MemoryConfiguration) ([]core.FactSearchResult, error) {
	if len(facts) == 0 {
		return []core.FactSearchResult{}, nil
	}

	ctx, span := observability.Tracer("memorymesh/search").Start(ctx, "search.similar_facts")
	defer observability.EndSpan(span, nil)

	size := cfg.InferSize()
	useVectors := cfg.SemanticSearchEnabled() && s.embedder != nil

	perFact := make([][]core.FactSearchResult, len(facts))

	var wg sync.WaitGroup
	for i, fact := range facts {
		wg.Add(1)
		go func(i int, fact string) {
			defer wg.Done()
			perFact[i] = s.searchOne(ctx, fact, scope, cfg, size, useVectors)
		}(i, fact)
	}
	wg.Wait()

	results := make([]core.FactSearchResult, 0, len(facts)*size)
	for _, matches := range perFact {
		results = append(results, matches...)
	}

	return results, nil
}

// searchOne resolves a single fact. Failures are logged and yield an empty
// match list so one bad fact cannot sink the batch.
func (s *Service) searchOne(ctx context.Context, fact string, scope core.Namespace, cfg core.MemoryConfiguration, size int, useVectors bool) []core.FactSearchResult {
	query := core.SearchQuery{
		Index:      cfg.LongTermIndex,
		Text:       fact,
		Namespace:  scope,
		MemoryType: core.MemoryTypeFact,
		Size:       size,
	}

	if useVectors {
		vector, err := s.embedder.Embed(ctx, cfg.EmbeddingModelID, fact)
		if err != nil {
			s.opts.Logger.Warn("fact embedding failed, skipping matches", "fact", fact, "error", err)
			return nil
		}
		query.Embedding = vector
	}

	hits, err := s.store.Search(ctx, query)
	if err != nil {
		s.opts.Logger.Warn("similarity search failed, skipping matches", "fact", fact, "error", err)
		return nil
	}

	matches := make([]core.FactSearchResult, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, core.FactSearchResult{
			ID:    hit.Document.ID,
			Text:  hit.Document.Text,
			Score: hit.Score,
		})
	}

	return matches
}
