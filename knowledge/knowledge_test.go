package knowledge_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kotori-ai/kotori-go-sdk/knowledge"
	"github.com/kotori-ai/kotori-go-sdk/memory"
	"github.com/kotori-ai/kotori-go-sdk/memory/embedder/mock"
	"github.com/kotori-ai/kotori-go-sdk/memory/store/local"
)

func newBase() *knowledge.Base {
	return knowledge.NewBase(local.New(mock.New()))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDirectoryMissing(t *testing.T) {
	base := newBase()
	_, err := base.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), knowledge.IngestOptions{})
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIngestDirectoryNotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "content")

	base := newBase()
	_, err := base.IngestDirectory(context.Background(), filepath.Join(dir, "file.txt"), knowledge.IngestOptions{})
	if !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIngestDirectoryChunkCount(t *testing.T) {
	dir := t.TempDir()
	// 1000 characters at size 512 overlap 64: windows start at 0, 448, 896,
	// so three chunks.
	writeFile(t, dir, "doc.txt", strings.Repeat("a", 1000))

	base := newBase()
	n, err := base.IngestDirectory(context.Background(), dir, knowledge.IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ingested %d chunks, want 3", n)
	}
	if count, _ := base.Count(context.Background()); count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestIngestDirectorySkipsNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "Some markdown notes about birds and their songs.")
	writeFile(t, dir, "image.png", "binarydata")
	writeFile(t, dir, "code.go", "package main")

	base := newBase()
	n, err := base.IngestDirectory(context.Background(), dir, knowledge.IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ingested %d chunks, want 1 (only the .md file)", n)
	}
}

func TestIngestDirectoryEmptyYieldsZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.txt", "   \n\t  ")

	base := newBase()
	n, err := base.IngestDirectory(context.Background(), dir, knowledge.IngestOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("ingested %d chunks from blank content, want 0", n)
	}
}

func TestIngestDirectoryCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "log.TXT", "Uppercase extension should still match here.")
	writeFile(t, dir, "data.rst", "Restructured text only matches when asked for.")

	base := newBase()
	n, err := base.IngestDirectory(context.Background(), dir, knowledge.IngestOptions{Extensions: []string{".rst"}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ingested %d chunks, want 1 (.rst only)", n)
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	base := newBase()
	for _, n := range []int{0, 1, 10} {
		out, err := base.Query(context.Background(), "anything", n)
		if err != nil {
			t.Fatalf("Query(n=%d) returned error: %v", n, err)
		}
		if len(out) != 0 {
			t.Errorf("Query(n=%d) on empty collection returned %d results", n, len(out))
		}
	}
}

func TestQueryReturnsRelevantChunk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "The capital of France is Paris.")
	writeFile(t, dir, "b.txt", "Photosynthesis converts light into chemical energy.")

	base := newBase()
	if _, err := base.IngestDirectory(ctx, dir, knowledge.IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	out, err := base.Query(ctx, "The capital of France is Paris.", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}
	if out[0] != "The capital of France is Paris." {
		t.Errorf("top result = %q, want the matching chunk", out[0])
	}
}

func TestQueryClampsToCollectionSize(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Just one small document.")

	base := newBase()
	if _, err := base.IngestDirectory(ctx, dir, knowledge.IngestOptions{}); err != nil {
		t.Fatal(err)
	}

	out, err := base.Query(ctx, "document", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("got %d results, want 1", len(out))
	}
}
