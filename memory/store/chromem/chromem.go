// Package chromem wraps chromem-go, a pure Go embedded vector database, as a
// VectorStore. chromem only exposes similarity queries with equality filters,
// so this adapter backs the static knowledge collection: equality constraints
// are pushed down, the remaining operators are applied client-side, and the
// Get/Delete bulk paths report ErrNotSupported. Dialogue memory, which needs
// those paths for retention, runs on store/local or store/sqlite instead.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// Store is a chromem-go backed memory.VectorStore.
type Store struct {
	col      *chromem.Collection
	embedder memory.Embedder
}

// New creates a store over an in-memory chromem database.
func New(collection string, embedder memory.Embedder) (*Store, error) {
	return newStore(chromem.NewDB(), collection, embedder)
}

// NewPersistent creates a store persisting to dir.
func NewPersistent(dir, collection string, embedder memory.Embedder) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return newStore(db, collection, embedder)
}

func newStore(db *chromem.DB, collection string, embedder memory.Embedder) (*Store, error) {
	col, err := db.GetOrCreateCollection(collection, nil, chromem.EmbeddingFunc(embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{col: col, embedder: embedder}, nil
}

// Add stores documents, embedding them through the collection's embedder.
func (s *Store) Add(ctx context.Context, docs []memory.Document) error {
	for _, doc := range docs {
		err := s.col.AddDocument(ctx, chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("add document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Query ranks documents by cosine similarity. Equality constraints from where
// are pushed into chromem; set-membership and numeric operators are applied
// to the returned results.
func (s *Store) Query(ctx context.Context, text string, k int, where *memory.Filter) ([]memory.Result, error) {
	if k <= 0 || s.col.Count() == 0 {
		return nil, nil
	}

	queryEmb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var whereEq map[string]string
	if where != nil {
		if eq := where.Equalities(); len(eq) > 0 {
			whereEq = eq
		}
	}

	// chromem requires nResults <= matching collection size; retry with
	// smaller limits until the query fits.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = s.col.QueryEmbedding(ctx, queryEmb, limit, whereEq, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]memory.Result, 0, len(results))
	for _, r := range results {
		doc := memory.Document{ID: r.ID, Content: r.Content, Metadata: r.Metadata}
		if !where.Matches(doc.Metadata) {
			continue
		}
		out = append(out, memory.Result{Document: doc, Similarity: r.Similarity})
	}
	return out, nil
}

// Get is not supported: chromem does not expose metadata-only enumeration.
func (s *Store) Get(ctx context.Context, where *memory.Filter) ([]memory.Document, error) {
	return nil, fmt.Errorf("%w: chromem get by filter", memory.ErrNotSupported)
}

// Delete is not supported; knowledge chunks are replaced by re-ingesting into
// a fresh collection.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	log.Printf("[KNOWLEDGE] Delete not supported on chromem store")
	return fmt.Errorf("%w: chromem delete", memory.ErrNotSupported)
}

// Count returns the collection size.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.col.Count(), nil
}

// isInsufficientDocsError checks whether a query failed because it asked for
// more results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
