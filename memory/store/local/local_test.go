package local_test

import (
	"context"
	"testing"

	"github.com/kotori-ai/kotori-go-sdk/memory"
	"github.com/kotori-ai/kotori-go-sdk/memory/embedder/mock"
	"github.com/kotori-ai/kotori-go-sdk/memory/store/local"
)

func addDocs(t *testing.T, s *local.Store, docs ...memory.Document) {
	t.Helper()
	if err := s.Add(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
}

func TestQueryRanksExactMatchFirst(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	addDocs(t, s,
		memory.Document{ID: "1", Content: "the weather in Berlin"},
		memory.Document{ID: "2", Content: "a recipe for sourdough bread"},
		memory.Document{ID: "3", Content: "the history of jazz music"},
	)

	results, err := s.Query(ctx, "a recipe for sourdough bread", 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].ID != "2" {
		t.Errorf("top result = %s, want 2", results[0].ID)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Errorf("similarities not descending: %v then %v", results[0].Similarity, results[1].Similarity)
	}
}

func TestQueryRespectsFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	addDocs(t, s,
		memory.Document{ID: "1", Content: "alpha", Metadata: map[string]string{"kind": "a"}},
		memory.Document{ID: "2", Content: "beta", Metadata: map[string]string{"kind": "b"}},
		memory.Document{ID: "3", Content: "gamma", Metadata: map[string]string{"kind": "a"}},
	)

	results, err := s.Query(ctx, "alpha", 10, memory.Eq("kind", "a"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Metadata["kind"] != "a" {
			t.Errorf("result %s escaped filter", r.ID)
		}
	}

	results, err = s.Query(ctx, "alpha", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results with k=1, want 1", len(results))
	}
}

func TestAddReplacesExistingID(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	addDocs(t, s, memory.Document{ID: "1", Content: "old text"})
	addDocs(t, s, memory.Document{ID: "1", Content: "new text"})

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d after replace, want 1", n)
	}
	docs, err := s.Get(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Content != "new text" {
		t.Errorf("docs = %v, want the replacement only", docs)
	}
}

func TestGetPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	addDocs(t, s,
		memory.Document{ID: "1", Content: "first"},
		memory.Document{ID: "2", Content: "second"},
		memory.Document{ID: "3", Content: "third"},
	)

	docs, err := s.Get(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2", "3"}
	for i, d := range docs {
		if d.ID != want[i] {
			t.Errorf("docs[%d].ID = %s, want %s", i, d.ID, want[i])
		}
	}
}

func TestDeleteIgnoresUnknownIDs(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	addDocs(t, s,
		memory.Document{ID: "1", Content: "keep"},
		memory.Document{ID: "2", Content: "drop"},
	)

	if err := s.Delete(ctx, []string{"2", "nope"}); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	results, err := s.Query(ctx, "drop", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "2" {
			t.Error("deleted document still returned by Query")
		}
	}
}

func TestMetadataCopiedOnAdd(t *testing.T) {
	ctx := context.Background()
	s := local.New(mock.New())
	meta := map[string]string{"role": "fact"}
	addDocs(t, s, memory.Document{ID: "1", Content: "content", Metadata: meta})

	meta["role"] = "mutated"

	docs, err := s.Get(ctx, memory.Eq("role", "fact"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("caller mutation leaked into stored metadata")
	}
}
