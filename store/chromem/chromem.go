// Package chromem provides a core.DocumentStore backed by chromem-go, a pure
// Go embedded vector database. Each index maps to one chromem collection;
// scope filters become metadata where-clauses. Lexical queries are served by
// embedding the query text, so the store always ranks by vector similarity.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/hupe1980/memorymesh/core"
	"github.com/hupe1980/memorymesh/embedding"
)

const (
	metaSessionID  = "session_id"
	metaMemoryType = "memory_type"
	metaStrategyID = "strategy_id"
	metaCreatedAt  = "created_at"
	metaUpdatedAt  = "updated_at"
	nsMetaPrefix   = "ns_"
)

// Options configures the chromem document store.
type Options struct {
	// EmbeddingModelID is passed to the embedder for query/document vectors.
	EmbeddingModelID string
}

// Store implements core.DocumentStore on an embedded chromem database.
type Store struct {
	db          *chromemgo.DB
	embedder    embedding.Embedder
	opts        Options
	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection // index -> collection
}

var _ core.DocumentStore = (*Store)(nil)

// New creates an empty in-process store. The embedder supplies vectors for
// documents persisted without one and for lexical query texts.
func New(embedder embedding.Embedder, optFns ...func(o *Options)) *Store {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		db:          chromemgo.NewDB(),
		embedder:    embedder,
		opts:        opts,
		collections: make(map[string]*chromemgo.Collection),
	}
}

func (s *Store) collection(index string) (*chromemgo.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[index]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[index]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(index, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", index, err)
	}
	s.collections[index] = col
	return col, nil
}

// Search ranks scope-matching documents by vector similarity. Lexical
// queries are embedded first.
func (s *Store) Search(ctx context.Context, query core.SearchQuery) ([]core.SearchHit, error) {
	col, err := s.collection(query.Index)
	if err != nil {
		return nil, err
	}

	queryVec := query.Embedding
	if len(queryVec) == 0 {
		queryVec, err = s.embedder.Embed(ctx, s.opts.EmbeddingModelID, query.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	size := query.Size
	if size == 0 {
		size = core.DefaultMaxInferSize
	}
	// chromem rejects nResults larger than the collection.
	if count := col.Count(); size < 0 || count < size {
		size = count
	}
	if size == 0 {
		return []core.SearchHit{}, nil
	}

	// Where-clauses shrink the candidate set below col.Count(), so retry
	// with smaller limits until chromem accepts the request.
	var results []chromemgo.Result
	for limit := size; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, queryVec, limit, whereClause(query), nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return []core.SearchHit{}, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]core.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, core.SearchHit{Document: resultToDocument(query.Index, r), Score: float64(r.Similarity)})
	}

	return hits, nil
}

// BulkWrite applies each operation independently, reporting one item result
// per operation in submission order.
func (s *Store) BulkWrite(ctx context.Context, ops []core.BulkOperation) ([]core.BulkItemResult, error) {
	results := make([]core.BulkItemResult, 0, len(ops))
	for _, op := range ops {
		results = append(results, s.apply(ctx, op))
	}
	return results, nil
}

func (s *Store) apply(ctx context.Context, op core.BulkOperation) core.BulkItemResult {
	res := core.BulkItemResult{Action: op.Action, ID: op.ID}

	switch op.Action {
	case core.BulkCreate:
		if op.Doc == nil {
			res.Err = fmt.Errorf("create operation without document")
			return res
		}
		doc := *op.Doc
		if doc.ID == "" {
			doc.ID = core.NewID()
		}
		doc.Index = op.Index
		now := time.Now()
		doc.CreatedAt = now
		doc.UpdatedAt = now
		res.ID = doc.ID
		res.Err = s.write(ctx, &doc)
	case core.BulkUpdate:
		doc, err := s.Get(ctx, op.Index, op.ID)
		if err != nil {
			res.Err = err
			return res
		}
		doc.Text = op.Text
		if op.Embedding != nil {
			doc.Embedding = op.Embedding
		}
		doc.UpdatedAt = time.Now()
		// chromem overwrites on same-id add.
		res.Err = s.write(ctx, doc)
	case core.BulkDelete:
		res.Err = s.Delete(ctx, op.Index, op.ID)
	default:
		res.Err = fmt.Errorf("unknown bulk action %q", op.Action)
	}

	return res
}

func (s *Store) write(ctx context.Context, doc *core.Document) error {
	col, err := s.collection(doc.Index)
	if err != nil {
		return err
	}

	vec := doc.Embedding
	if len(vec) == 0 {
		vec, err = s.embedder.Embed(ctx, s.opts.EmbeddingModelID, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document: %w", err)
		}
	}

	if err := col.AddDocument(ctx, chromemgo.Document{
		ID:        doc.ID,
		Content:   doc.Text,
		Embedding: vec,
		Metadata:  documentMetadata(doc),
	}); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	return nil
}

// Get retrieves a document by index and id.
func (s *Store) Get(ctx context.Context, index, id string) (*core.Document, error) {
	col, err := s.collection(index)
	if err != nil {
		return nil, err
	}

	stored, err := col.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("document %s not found", id)
	}

	doc := storedToDocument(index, stored)
	return &doc, nil
}

// Delete removes a document by index and id.
func (s *Store) Delete(ctx context.Context, index, id string) error {
	col, err := s.collection(index)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

func whereClause(query core.SearchQuery) map[string]string {
	where := make(map[string]string)
	for k, v := range query.Namespace {
		where[nsMetaPrefix+k] = v
	}
	if query.SessionID != "" {
		where[metaSessionID] = query.SessionID
	}
	if query.MemoryType != "" {
		where[metaMemoryType] = query.MemoryType
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func documentMetadata(doc *core.Document) map[string]string {
	meta := make(map[string]string, len(doc.Namespace)+5)
	for k, v := range doc.Namespace {
		meta[nsMetaPrefix+k] = v
	}
	if doc.SessionID != "" {
		meta[metaSessionID] = doc.SessionID
	}
	if doc.MemoryType != "" {
		meta[metaMemoryType] = doc.MemoryType
	}
	if doc.StrategyID != "" {
		meta[metaStrategyID] = doc.StrategyID
	}
	meta[metaCreatedAt] = doc.CreatedAt.Format(time.RFC3339Nano)
	meta[metaUpdatedAt] = doc.UpdatedAt.Format(time.RFC3339Nano)
	return meta
}

func metadataToDocument(index, id, content string, embeddingVec []float32, meta map[string]string) core.Document {
	doc := core.Document{
		ID:        id,
		Index:     index,
		Text:      content,
		Embedding: embeddingVec,
		Namespace: core.Namespace{},
	}
	for k, v := range meta {
		switch k {
		case metaSessionID:
			doc.SessionID = v
		case metaMemoryType:
			doc.MemoryType = v
		case metaStrategyID:
			doc.StrategyID = v
		case metaCreatedAt:
			doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
		case metaUpdatedAt:
			doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
		default:
			if len(k) > len(nsMetaPrefix) && k[:len(nsMetaPrefix)] == nsMetaPrefix {
				doc.Namespace[k[len(nsMetaPrefix):]] = v
			}
		}
	}
	return doc
}

func resultToDocument(index string, r chromemgo.Result) core.Document {
	return metadataToDocument(index, r.ID, r.Content, r.Embedding, r.Metadata)
}

func storedToDocument(index string, d chromemgo.Document) core.Document {
	return metadataToDocument(index, d.ID, d.Content, d.Embedding, d.Metadata)
}
