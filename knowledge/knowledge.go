// Package knowledge ingests static reference documents into a vector
// collection and serves similarity retrieval during conversation. The
// collection is shared across all conversations and characters, unlike
// dialogue memory.
package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kotori-ai/kotori-go-sdk/chunker"
	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// Metadata keys attached to knowledge chunks.
const (
	metaSource     = "source"
	metaChunkIndex = "chunk_index"
)

// DefaultExtensions are the file types ingested when none are specified.
var DefaultExtensions = []string{".txt", ".md"}

// IngestOptions configures a directory ingestion run.
type IngestOptions struct {
	// Extensions filters files by suffix (case-insensitive). Defaults to
	// DefaultExtensions.
	Extensions []string

	// ChunkSize and Overlap are passed to the chunker. Defaults: 512 / 64.
	ChunkSize int
	Overlap   int
}

// Chunk is a retrievable slice of an ingested document.
type Chunk struct {
	Content    string
	SourcePath string
	ChunkIndex int
}

// Base is the knowledge collection: a VectorStore holding document chunks.
type Base struct {
	vs memory.VectorStore

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewBase creates a knowledge base over the given vector store.
func NewBase(vs memory.VectorStore) *Base {
	return &Base{
		vs:      vs,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *Base) newChunkID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy).String()
}

// IngestDirectory recursively loads matching files under dir, chunks them,
// and adds every chunk to the collection. Returns the number of chunks added.
//
// Unreadable files and invalid UTF-8 are tolerated best-effort; a directory
// with no qualifying text logs a warning and returns 0. Only a missing or
// non-directory root is an error (ErrNotFound).
func (b *Base) IngestDirectory(ctx context.Context, dir string, opts IngestOptions) (int, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: directory %s", memory.ErrNotFound, dir)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	chunkSize, overlap := opts.ChunkSize, opts.Overlap
	if chunkSize <= 0 {
		chunkSize, overlap = chunker.DefaultChunkSize, chunker.DefaultOverlap
	}

	added := 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("[KNOWLEDGE] Skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !matchesExtension(path, extensions) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[KNOWLEDGE] Could not read %s: %v", path, err)
			return nil
		}
		// Best-effort decoding: drop invalid byte sequences instead of
		// failing the whole run.
		text := strings.ToValidUTF8(string(raw), "")

		chunks, err := chunker.Chunk(text, chunkSize, overlap)
		if err != nil {
			return err
		}
		for i, content := range chunks {
			doc := memory.Document{
				ID:      b.newChunkID(),
				Content: content,
				Metadata: map[string]string{
					metaSource:     path,
					metaChunkIndex: strconv.Itoa(i),
				},
			}
			if err := b.vs.Add(ctx, []memory.Document{doc}); err != nil {
				return fmt.Errorf("add chunk %d of %s: %w", i, path, err)
			}
			added++
		}
		return nil
	})
	if walkErr != nil {
		return added, walkErr
	}

	if added == 0 {
		log.Printf("[KNOWLEDGE] No text content found in %s", dir)
		return 0, nil
	}
	log.Printf("[KNOWLEDGE] Ingested %d chunks from %s", added, dir)
	return added, nil
}

// Query returns up to n chunk contents most similar to text, most similar
// first. An empty collection yields an empty slice.
func (b *Base) Query(ctx context.Context, text string, n int) ([]string, error) {
	if n <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	count, err := b.vs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	results, err := b.vs.Query(ctx, text, n, nil)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content != "" {
			out = append(out, r.Content)
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.vs.Count(ctx)
}

func matchesExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
