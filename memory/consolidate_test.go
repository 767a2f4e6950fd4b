package memory_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kotori-ai/kotori-go-sdk/core"
	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// scriptedLLM routes completions by the system instruction so one fake can
// serve extraction, summarization, and merge in a single Process call.
type scriptedLLM struct {
	facts     []string // popped per extraction call
	summary   string
	merge     func(prompt string) string
	mergeSeen []string
	err       error
}

func (s *scriptedLLM) Complete(_ context.Context, msgs []core.Message, system string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	switch {
	case strings.Contains(system, "extracts important facts"):
		if len(s.facts) == 0 {
			return "", nil
		}
		resp := s.facts[0]
		s.facts = s.facts[1:]
		return resp, nil
	case strings.Contains(system, "summarizes a dialogue"):
		return s.summary, nil
	case strings.Contains(system, "merges facts"):
		prompt := msgs[len(msgs)-1].Content
		s.mergeSeen = append(s.mergeSeen, prompt)
		if s.merge != nil {
			return s.merge(prompt), nil
		}
		return "", nil
	}
	return "", errors.New("unexpected system instruction")
}

func TestConsolidationCadence(t *testing.T) {
	var factAt, summaryAt []int
	for count := 1; count <= 20; count++ {
		if memory.FactExtractionDue(count) {
			factAt = append(factAt, count)
		}
		if memory.SummaryDue(count) {
			summaryAt = append(summaryAt, count)
		}
	}
	if want := []int{3, 6, 9, 12, 15, 18}; !reflect.DeepEqual(factAt, want) {
		t.Errorf("fact extraction fires at %v, want %v", factAt, want)
	}
	if want := []int{6, 12, 18}; !reflect.DeepEqual(summaryAt, want) {
		t.Errorf("summarization fires at %v, want %v", summaryAt, want)
	}
}

func TestSplitFacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "  \n \n", nil},
		{"newlines", "Name: Alex\nLikes: coffee", []string{"Name: Alex", "Likes: coffee"}},
		{"bullets", "• Likes tea\n- Plays piano", []string{"Likes tea", "Plays piano"}},
		{"short lines dropped", "ok\nno\nLikes: long walks", []string{"Likes: long walks"}},
		{"unicode length counts runes", "город\nab", []string{"город"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := memory.SplitFacts(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitFacts(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitFactsCap(t *testing.T) {
	lines := make([]string, 15)
	for i := range lines {
		lines[i] = "Fact number here"
	}
	got := memory.SplitFacts(strings.Join(lines, "\n"))
	if len(got) != 10 {
		t.Errorf("SplitFacts returned %d facts, want cap of 10", len(got))
	}
}

func TestProcessExtractsFactsAndMergesProfile(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()

	llm := &scriptedLLM{
		facts: []string{"Likes cats"},
		merge: func(prompt string) string {
			// Keep the newest fact, the top bullet.
			for _, line := range strings.Split(prompt, "\n") {
				if f, ok := strings.CutPrefix(line, "- "); ok {
					return f
				}
			}
			return ""
		},
	}
	cons := memory.NewConsolidator(store, llm)

	transcript := []core.Message{
		core.UserMessage("hi, I have two cats"),
		core.AssistantMessage("that sounds lovely"),
		core.UserMessage("they are called Miso and Mochi"),
	}
	cons.Process(ctx, "c1", "h1", transcript, 3)

	facts, err := store.GetAllFacts(ctx, "h1", "c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(facts, []string{"Likes cats"}) {
		t.Fatalf("facts = %v, want [Likes cats]", facts)
	}
	if p, _ := store.GetUserProfile(ctx, "h1", "c1"); p != "Likes cats" {
		t.Errorf("profile = %q, want %q", p, "Likes cats")
	}
}

func TestProcessNewerFactWinsInMerge(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()

	llm := &scriptedLLM{
		facts:   []string{"Likes cats", "Dislikes cats"},
		summary: "The user changed their mind about cats.",
		merge: func(prompt string) string {
			for _, line := range strings.Split(prompt, "\n") {
				if f, ok := strings.CutPrefix(line, "- "); ok {
					return f
				}
			}
			return ""
		},
	}
	cons := memory.NewConsolidator(store, llm)

	transcript := []core.Message{
		core.UserMessage("I love cats"),
		core.AssistantMessage("noted"),
		core.UserMessage("actually they make me sneeze"),
	}
	cons.Process(ctx, "c1", "h1", transcript, 3)
	cons.Process(ctx, "c1", "h1", transcript, 6)

	if len(llm.mergeSeen) != 2 {
		t.Fatalf("merge ran %d times, want 2", len(llm.mergeSeen))
	}
	// Second merge sees both facts, newest on top.
	second := llm.mergeSeen[1]
	di := strings.Index(second, "Dislikes cats")
	li := strings.Index(second, "Likes cats")
	if di == -1 || li == -1 || di > li {
		t.Errorf("merge prompt does not list newest fact first:\n%s", second)
	}

	if p, _ := store.GetUserProfile(ctx, "h1", "c1"); p != "Dislikes cats" {
		t.Errorf("profile = %q, want the newer fact to win", p)
	}

	// count=6 also triggered a summary write.
	items, err := store.ListItems(ctx, "c1", "h1", memory.RoleSummary, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("got %d summaries after count=6, want 1", len(items))
	}
}

func TestProcessOffCadenceWritesNothing(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	llm := &scriptedLLM{facts: []string{"Name: Alex"}}
	cons := memory.NewConsolidator(store, llm)

	transcript := []core.Message{core.UserMessage("hello there")}
	for _, count := range []int{1, 2, 4, 5, 7} {
		cons.Process(ctx, "c1", "h1", transcript, count)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Count = %d after off-cadence turns, want 0", n)
	}
}

func TestProcessGuardsEmptyScope(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	llm := &scriptedLLM{facts: []string{"Name: Alex"}}
	cons := memory.NewConsolidator(store, llm)

	transcript := []core.Message{core.UserMessage("hello there")}
	cons.Process(ctx, "", "h1", transcript, 3)
	cons.Process(ctx, "c1", "", transcript, 3)
	cons.Process(ctx, "c1", "h1", nil, 3)

	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("Count = %d after guarded calls, want 0", n)
	}
}

func TestProcessSwallowsLLMFailure(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore()
	llm := &scriptedLLM{err: errors.New("model overloaded")}
	cons := memory.NewConsolidator(store, llm)

	transcript := []core.Message{
		core.UserMessage("hi"),
		core.AssistantMessage("hello"),
		core.UserMessage("how are you"),
	}
	// Must not panic or write anything.
	cons.Process(ctx, "c1", "h1", transcript, 6)

	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("Count = %d after failed consolidation, want 0", n)
	}
}

type panickyLLM struct{}

func (panickyLLM) Complete(context.Context, []core.Message, string) (string, error) {
	panic("boom")
}

func TestProcessRecoversPanic(t *testing.T) {
	store, _, _ := newTestStore()
	cons := memory.NewConsolidator(store, panickyLLM{})

	transcript := []core.Message{core.UserMessage("hello there")}
	// The deferred recover must contain this.
	cons.Process(context.Background(), "c1", "h1", transcript, 3)
}
