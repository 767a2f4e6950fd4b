// Package local provides an embedded in-memory VectorStore with cosine
// ranking and full metadata-filter support. It is the reference backend used
// by tests and small deployments; nothing persists across restarts.
package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// Store is an in-memory memory.VectorStore. Safe for concurrent use.
type Store struct {
	embedder memory.Embedder

	mu   sync.RWMutex
	docs []entry
	byID map[string]int // id -> index into docs; -1 for tombstones
}

type entry struct {
	doc       memory.Document
	embedding []float32
	deleted   bool
}

// New creates an empty store embedding documents with embedder.
func New(embedder memory.Embedder) *Store {
	return &Store{
		embedder: embedder,
		byID:     make(map[string]int),
	}
}

// Add embeds and stores documents. A document whose ID already exists
// replaces the previous version.
func (s *Store) Add(ctx context.Context, docs []memory.Document) error {
	for _, doc := range docs {
		emb, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}

		// Copy metadata so callers can reuse their map.
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		doc.Metadata = meta

		s.mu.Lock()
		if i, ok := s.byID[doc.ID]; ok && !s.docs[i].deleted {
			s.docs[i].deleted = true
		}
		s.byID[doc.ID] = len(s.docs)
		s.docs = append(s.docs, entry{doc: doc, embedding: emb})
		s.mu.Unlock()
	}
	return nil
}

// Query ranks matching documents by cosine similarity to text.
func (s *Store) Query(ctx context.Context, text string, k int, where *memory.Filter) ([]memory.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	queryEmb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	var results []memory.Result
	for _, e := range s.docs {
		if e.deleted || !where.Matches(e.doc.Metadata) {
			continue
		}
		results = append(results, memory.Result{
			Document:   e.doc,
			Similarity: cosine(queryEmb, e.embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns all documents matching where, in insertion order.
func (s *Store) Get(ctx context.Context, where *memory.Filter) ([]memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []memory.Document
	for _, e := range s.docs {
		if e.deleted || !where.Matches(e.doc.Metadata) {
			continue
		}
		docs = append(docs, e.doc)
	}
	return docs, nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			s.docs[i].deleted = true
			delete(s.byID, id)
		}
	}
	return nil
}

// Count returns the number of live documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// cosine computes cosine similarity between two vectors. Mismatched or zero
// vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
