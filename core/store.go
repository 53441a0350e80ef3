package core

import "context"

// SizeUnbounded disables the result cap on a SearchQuery.
const SizeUnbounded = -1

// SearchQuery describes one scoped similarity lookup. When Embedding is set
// the store ranks by vector similarity; otherwise it falls back to lexical
// matching on Text. Namespace filters are equality clauses and always apply.
// A zero Size falls back to DefaultMaxInferSize; SizeUnbounded returns every
// match.
type SearchQuery struct {
	Index      string
	Text       string
	Embedding  []float32
	Namespace  Namespace
	SessionID  string
	MemoryType string
	Size       int
}

// SearchHit is one scored document returned by a store search.
type SearchHit struct {
	Document Document
	Score    float64
}

// BulkAction enumerates the persistence operations a bulk write may carry.
type BulkAction string

const (
	// BulkCreate indexes a new document.
	BulkCreate BulkAction = "create"
	// BulkUpdate replaces the targeted document's text content.
	BulkUpdate BulkAction = "update"
	// BulkDelete removes the targeted document.
	BulkDelete BulkAction = "delete"
)

// BulkOperation is a single item in a bulk write. Create operations carry a
// full document (ID may be pre-assigned); update operations carry the target
// ID plus replacement Text and optional refreshed Embedding; delete
// operations carry only the target ID.
type BulkOperation struct {
	Action    BulkAction
	Index     string
	ID        string
	Doc       *Document
	Text      string
	Embedding []float32
}

// BulkItemResult reports the outcome of one bulk operation. Err is nil on
// success. The store returns exactly one item result per submitted
// operation, in submission order.
type BulkItemResult struct {
	Action BulkAction
	ID     string
	Err    error
}

// DocumentStore is the persistence collaborator for working and long-term
// memory. Implementations decide how similarity is computed; the pipeline
// only relies on the contract below. Bulk writes are atomic in submission
// but not in effect: the store may apply some items and reject others.
type DocumentStore interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchHit, error)
	BulkWrite(ctx context.Context, ops []BulkOperation) ([]BulkItemResult, error)
	Get(ctx context.Context, index, id string) (*Document, error)
	Delete(ctx context.Context, index, id string) error
}
