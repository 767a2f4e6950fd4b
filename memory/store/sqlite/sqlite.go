// Package sqlite provides a persistent VectorStore backed by SQLite.
// Embeddings are stored as little-endian float32 BLOBs and ranked by a
// brute-force cosine scan; metadata is stored as JSON and filtered in Go.
// That is plenty for per-character dialogue memory, which stays small by
// construction (retention sweeps raw roles, facts are capped per batch).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// Store is a SQLite-backed memory.VectorStore.
type Store struct {
	db       *sql.DB
	embedder memory.Embedder
}

// New opens or creates the database at dbPath.
func New(dbPath string, embedder memory.Embedder) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, embedder: embedder}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		id        TEXT PRIMARY KEY,
		content   TEXT NOT NULL,
		metadata  TEXT NOT NULL DEFAULT '{}',
		embedding BLOB NOT NULL
	);
	`)
	return err
}

// Add embeds and inserts documents. An existing ID is replaced.
func (s *Store) Add(ctx context.Context, docs []memory.Document) error {
	for _, doc := range docs {
		emb, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)`,
			doc.ID, doc.Content, string(meta), encodeVector(emb))
		if err != nil {
			return fmt.Errorf("%w: insert: %v", memory.ErrStoreUnavailable, err)
		}
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

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", memory.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var results []memory.Result
	for rows.Next() {
		doc, emb, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if !where.Matches(doc.Metadata) {
			continue
		}
		results = append(results, memory.Result{Document: doc, Similarity: cosine(queryEmb, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", memory.ErrStoreUnavailable, err)
	}

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
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", memory.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var docs []memory.Document
	for rows.Next() {
		doc, _, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if where.Matches(doc.Metadata) {
			docs = append(docs, doc)
		}
	}
	return docs, rows.Err()
}

// Delete removes documents by ID.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", memory.ErrStoreUnavailable, err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", memory.ErrStoreUnavailable, err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanDocument(rows *sql.Rows) (memory.Document, []float32, error) {
	var doc memory.Document
	var metaJSON string
	var blob []byte
	if err := rows.Scan(&doc.ID, &doc.Content, &metaJSON, &blob); err != nil {
		return doc, nil, fmt.Errorf("scan row: %w", err)
	}
	doc.Metadata = make(map[string]string)
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return doc, nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
	}
	return doc, decodeVector(blob), nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// cosine computes cosine similarity between two vectors.
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
