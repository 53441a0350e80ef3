// Package redis provides a Redis-backed core.DocumentStore. Documents are
// stored as JSON values with a per-index id set for enumeration; similarity
// is computed client-side (cosine over stored embeddings for vector queries,
// term overlap otherwise), which keeps the backend a plain Redis without
// modules.
//
// Redis data layout:
//   - "<prefix>:<index>:doc:<id>" -> JSON(document)
//   - "<prefix>:<index>:ids"      -> SET of document ids
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/memorymesh/core"
)

// Options configures the Redis document store.
type Options struct {
	// KeyPrefix namespaces all keys written by this store.
	KeyPrefix string
	// TTL expires documents automatically; zero disables expiry.
	TTL time.Duration
}

// Store implements core.DocumentStore on top of a Redis client.
type Store struct {
	client *redis.Client
	opts   Options
}

var _ core.DocumentStore = (*Store)(nil)

// New connects to the given Redis URL.
func New(redisURL string, optFns ...func(o *Options)) (*Store, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(redis.NewClient(parsed), optFns...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "memorymesh"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

func (s *Store) docKey(index, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.opts.KeyPrefix, index, id)
}

func (s *Store) idsKey(index string) string {
	return fmt.Sprintf("%s:%s:ids", s.opts.KeyPrefix, index)
}

// Search enumerates the index and ranks scope-matching documents client-side.
func (s *Store) Search(ctx context.Context, query core.SearchQuery) ([]core.SearchHit, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey(query.Index)).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(ids) == 0 {
		return []core.SearchHit{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(query.Index, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	hits := make([]core.SearchHit, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue // expired or missing
		}
		var doc core.Document
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			continue // skip malformed entries
		}
		if !matchesScope(&doc, query) {
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
		hits = append(hits, core.SearchHit{Document: doc, Score: score})
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
// per operation in submission order.
func (s *Store) BulkWrite(ctx context.Context, ops []core.BulkOperation) ([]core.BulkItemResult, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bulk submission failed: %w", err)
	}

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
		res.Err = s.write(ctx, doc)
	case core.BulkDelete:
		res.Err = s.Delete(ctx, op.Index, op.ID)
	default:
		res.Err = fmt.Errorf("unknown bulk action %q", op.Action)
	}

	return res
}

func (s *Store) write(ctx context.Context, doc *core.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}
	key := s.docKey(doc.Index, doc.ID)
	if err := s.client.Set(ctx, key, data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := s.client.SAdd(ctx, s.idsKey(doc.Index), doc.ID).Err(); err != nil {
		return fmt.Errorf("register document id: %w", err)
	}
	return nil
}

// Get retrieves a document by index and id.
func (s *Store) Get(ctx context.Context, index, id string) (*core.Document, error) {
	data, err := s.client.Get(ctx, s.docKey(index, id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	var doc core.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("deserialize document: %w", err)
	}
	return &doc, nil
}

// Delete removes a document by index and id.
func (s *Store) Delete(ctx context.Context, index, id string) error {
	deleted, err := s.client.Del(ctx, s.docKey(index, id)).Result()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	if err := s.client.SRem(ctx, s.idsKey(index), id).Err(); err != nil {
		return fmt.Errorf("unregister document id: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
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
