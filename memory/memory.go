package memory

import (
	"context"
	"errors"

	"github.com/kotori-ai/kotori-go-sdk/core"
)

// Errors surfaced by the memory subsystem. Callers on the conversation read
// path are expected to treat all of them as degradations, never as fatal.
var (
	// ErrInvalidRole marks a role outside the closed taxonomy.
	ErrInvalidRole = errors.New("invalid memory role")

	// ErrNotFound marks a missing ingestion target.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable marks an unreachable storage backend. Read paths
	// degrade to empty results; write paths drop the operation and rely on
	// the next cadence trigger.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNotSupported marks an adapter operation the backend cannot serve.
	ErrNotSupported = errors.New("operation not supported by this store")
)

// Document is the unit stored in a VectorStore: text plus flat string
// metadata used for filtering.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is a document returned from a similarity query.
type Result struct {
	Document

	// Similarity is the cosine similarity to the query, higher is closer.
	Similarity float32
}

// VectorStore is the contract for similarity-search backends consumed by the
// memory Store and by knowledge ingestion. Implementations own embedding
// generation; callers pass text only.
//
// Implementations: store/local (embedded, tests), store/sqlite (persistent),
// store/chromem (knowledge collection; Get and Delete unsupported).
type VectorStore interface {
	// Add stores documents. Documents with empty content are the caller's
	// responsibility to avoid.
	Add(ctx context.Context, docs []Document) error

	// Query returns up to k documents ranked by cosine similarity to text,
	// most similar first, restricted to documents matching where (nil means
	// no restriction). k is clamped to the collection size.
	Query(ctx context.Context, text string, k int, where *Filter) ([]Result, error)

	// Get returns all documents matching where, in no particular order.
	Get(ctx context.Context, where *Filter) ([]Document, error)

	// Delete removes documents by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
}

// Embedder converts text to a vector. Implementations: embedder/mock
// (deterministic, tests), embedder/ollama (local Ollama HTTP API),
// embedder/cached (ristretto decorator).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// LLM is the external language-model collaborator used by the Consolidator.
// It is treated as unreliable: every call site wraps it in error recovery.
type LLM interface {
	Complete(ctx context.Context, messages []core.Message, system string) (string, error)
}
