package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/memorymesh/core"
)

// InMemoryStore is a process-local core.DocumentStore. Vector queries are
// ranked by cosine similarity, lexical queries by term overlap. Suitable for
// tests and local development; swap for the redis or chromem backends (or a
// real search engine) for production retrieval.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	indices map[string]map[string]*core.Document // index -> id -> document
}

var _ core.DocumentStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{indices: make(map[string]map[string]*core.Document)}
}

// Search returns scope-filtered documents ranked by descending score.
func (s *InMemoryStore) Search(ctx context.Context, query core.SearchQuery) ([]core.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.indices[query.Index]
	if !ok {
		return []core.SearchHit{}, nil
	}

	hits := make([]core.SearchHit, 0, len(docs))
	for _, doc := range docs {
		if !matchesScope(doc, query) {
			continue
		}
		var score float64
		if len(query.Embedding) > 0 {
			score = cosineSimilarity(query.Embedding, doc.Embedding)
		} else {
			score = lexicalScore(query.Text, doc.Text)
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, core.SearchHit{Document: cloneDocument(doc), Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	size := query.Size
	if size == 0 {
		size = core.DefaultMaxInferSize
	}
	if size > 0 && len(hits) > size {
		hits = hits[:size]
	}

	return hits, nil
}

// BulkWrite applies each operation independently, reporting one item result
// per operation in submission order. Individual rejections do not fail the
// call.
func (s *InMemoryStore) BulkWrite(ctx context.Context, ops []core.BulkOperation) ([]core.BulkItemResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]core.BulkItemResult, 0, len(ops))
	for _, op := range ops {
		results = append(results, s.applyLocked(op))
	}

	return results, nil
}

func (s *InMemoryStore) applyLocked(op core.BulkOperation) core.BulkItemResult {
	res := core.BulkItemResult{Action: op.Action, ID: op.ID}

	switch op.Action {
	case core.BulkCreate:
		if op.Doc == nil {
			res.Err = fmt.Errorf("create operation without document")
			return res
		}
		doc := cloneDocumentValue(*op.Doc)
		if doc.ID == "" {
			doc.ID = core.NewID()
		}
		doc.Index = op.Index
		now := time.Now()
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = now
		}
		if _, ok := s.indices[op.Index]; !ok {
			s.indices[op.Index] = make(map[string]*core.Document)
		}
		s.indices[op.Index][doc.ID] = &doc
		res.ID = doc.ID
	case core.BulkUpdate:
		doc, ok := s.lookupLocked(op.Index, op.ID)
		if !ok {
			res.Err = fmt.Errorf("document %s not found", op.ID)
			return res
		}
		doc.Text = op.Text
		if op.Embedding != nil {
			doc.Embedding = op.Embedding
		}
		doc.UpdatedAt = time.Now()
	case core.BulkDelete:
		if _, ok := s.lookupLocked(op.Index, op.ID); !ok {
			res.Err = fmt.Errorf("document %s not found", op.ID)
			return res
		}
		delete(s.indices[op.Index], op.ID)
	default:
		res.Err = fmt.Errorf("unknown bulk action %q", op.Action)
	}

	return res
}

// Get retrieves a document by index and id.
func (s *InMemoryStore) Get(ctx context.Context, index, id string) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.lookupLocked(index, id)
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	out := cloneDocumentValue(*doc)
	return &out, nil
}

// Delete removes a document by index and id.
func (s *InMemoryStore) Delete(ctx context.Context, index, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupLocked(index, id); !ok {
		return fmt.Errorf("document %s not found", id)
	}
	delete(s.indices[index], id)
	return nil
}

func (s *InMemoryStore) lookupLocked(index, id string) (*core.Document, bool) {
	docs, ok := s.indices[index]
	if !ok {
		return nil, false
	}
	doc, ok := docs[id]
	return doc, ok
}

func matchesScope(doc *core.Document, query core.SearchQuery) bool {
	for k, v := range query.Namespace {
		if doc.Namespace[k] != v {
			return false
		}
	}
	if query.SessionID != "" && doc.SessionID != query.SessionID {
		return false
	}
	if query.MemoryType != "" && doc.MemoryType != query.MemoryType {
		return false
	}
	return true
}

// lexicalScore is the fraction of query terms present in the document text.
func lexicalScore(query, text string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 1.0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// cosineSimilarity between two vectors; 0 when lengths differ or a vector is
// empty.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneDocument(doc *core.Document) core.Document {
	return cloneDocumentValue(*doc)
}

func cloneDocumentValue(doc core.Document) core.Document {
	out := doc
	out.Namespace = doc.Namespace.Clone()
	if doc.Embedding != nil {
		out.Embedding = make([]float32, len(doc.Embedding))
		copy(out.Embedding, doc.Embedding)
	}
	if doc.Metadata != nil {
		out.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
