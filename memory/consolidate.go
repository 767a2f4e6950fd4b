package memory

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kotori-ai/kotori-go-sdk/core"
)

// Consolidation cadence, in messages per thread. Both can fire on the same
// turn (counts 6, 12, 18, ...).
const (
	FactExtractEvery = 3
	SummaryEvery     = 6
)

// Caps applied during fact extraction.
const (
	recentTurnWindow  = 10 // turns of context handed to the LLM
	maxFactsPerBatch  = 10 // facts written per extraction
	maxFactsForMerge  = 30 // newest facts fed to the profile merge
	minFactLineLength = 3  // shorter trimmed lines are discarded
)

// Instructions for the LLM collaborator. The merge instruction carries the
// recency contract: facts arrive newest first, and on conflict the newer one
// wins.
const (
	factExtractionSystem = `You are an assistant that extracts important facts from a dialogue.
Keep ONLY things worth remembering about the user that must not be forgotten.

Keep: name, age, city, profession, hobbies, preferences, important events.
Do NOT keep: greetings, filler phrases, conversation topics (those go into summaries).

Return a list of facts, one per line, without numbering.
Format: "Name: X", "Likes: Y" and so on. If there are no substantive facts, return an empty string.`

	summarySystem = `You are an assistant that summarizes a dialogue.
Write a short summary (2-4 sentences): what was discussed, which topics came up.
This is a record of past conversations. Pick out the essentials. Skip greetings.`

	profileMergeSystem = `You are an assistant that merges facts into a single user profile.
The profile is one comprehensive record: everything the AI remembers about the user.
Facts are listed newest to oldest (top is newer).

IMPORTANT: when facts conflict, use the NEWER one. Example: "Likes cakes" then "Dislikes cakes" resolves to "Dislikes cakes".
Produce a single profile without contradictions. Keep it short (5-15 points).
Format: one point per line, for example "Name: X", "Likes: Y".`
)

// FactExtractionDue reports whether fact extraction runs at this message
// count. Fires at 3, 6, 9, ...
func FactExtractionDue(messageCount int) bool {
	return messageCount >= FactExtractEvery && (messageCount-FactExtractEvery)%FactExtractEvery == 0
}

// SummaryDue reports whether summarization runs at this message count.
// Fires at 6, 12, 18, ...
func SummaryDue(messageCount int) bool {
	return messageCount >= SummaryEvery && (messageCount-SummaryEvery)%SummaryEvery == 0
}

// Consolidator distills raw dialogue into durable memory: facts, summaries,
// and a contradiction-free user profile.
//
// It is stateless between calls. Cadence derives purely from the running
// message count, so a crashed process resumes correctly on the next turn.
// Re-running the same count writes duplicate fact/summary items; duplicates
// are superseded by recency and swept by retention, never corrupting state.
type Consolidator struct {
	store *Store
	llm   LLM
}

// NewConsolidator creates a Consolidator writing through store and calling
// llm for extraction, summarization, and merge.
func NewConsolidator(store *Store, llm LLM) *Consolidator {
	return &Consolidator{store: store, llm: llm}
}

// Process runs one consolidation pass for a completed conversation turn.
// transcript is the full thread history; messageCount its running length.
//
// Process never returns an error: every failure is caught and logged with
// thread and stage context, because nothing here may abort a conversation
// turn. Callers dispatch it as a fire-and-forget background task.
func (c *Consolidator) Process(ctx context.Context, confUID, historyUID string, transcript []core.Message, messageCount int) {
	if c == nil || historyUID == "" || confUID == "" || len(transcript) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[MEMORY] Consolidation panic for history=%s: %v", historyUID, r)
		}
	}()

	dialog := formatRecentTurns(transcript, recentTurnWindow)
	if dialog == "" {
		return
	}

	if FactExtractionDue(messageCount) {
		if err := c.extractFacts(ctx, confUID, historyUID, dialog); err != nil {
			log.Printf("[MEMORY] Fact extraction failed for history=%s: %v", historyUID, err)
		}
	}
	if SummaryDue(messageCount) {
		if err := c.summarize(ctx, confUID, historyUID, dialog); err != nil {
			log.Printf("[MEMORY] Summarization failed for history=%s: %v", historyUID, err)
		}
	}
}

// extractFacts asks the LLM for facts in the recent window, stores them, and
// re-merges the accumulated facts into a fresh profile.
func (c *Consolidator) extractFacts(ctx context.Context, confUID, historyUID, dialog string) error {
	resp, err := c.llm.Complete(ctx,
		[]core.Message{core.UserMessage("Dialogue:\n" + dialog)},
		factExtractionSystem,
	)
	if err != nil {
		return fmt.Errorf("extraction call: %w", err)
	}

	facts := SplitFacts(resp)
	for _, fact := range facts {
		if _, err := c.store.AddItem(ctx, RoleFact, fact, historyUID, confUID); err != nil {
			return fmt.Errorf("store fact: %w", err)
		}
	}
	log.Printf("[MEMORY] Extracted %d facts for history=%s", len(facts), historyUID)

	// Merge even when this batch was empty only if there is prior evidence.
	if err := c.mergeProfile(ctx, confUID, historyUID); err != nil {
		// The facts themselves are already durable; the merge retries on
		// the next cadence trigger.
		log.Printf("[MEMORY] Profile merge failed for history=%s: %v", historyUID, err)
	}
	return nil
}

// mergeProfile rebuilds the user profile from the newest facts. The fact list
// is handed to the LLM newest first so the recency rule resolves conflicts.
func (c *Consolidator) mergeProfile(ctx context.Context, confUID, historyUID string) error {
	facts, err := c.store.GetAllFacts(ctx, historyUID, confUID, maxFactsForMerge)
	if err != nil {
		return fmt.Errorf("load facts: %w", err)
	}
	if len(facts) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Facts (top is newer):\n")
	for _, f := range facts {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}

	merged, err := c.llm.Complete(ctx, []core.Message{core.UserMessage(b.String())}, profileMergeSystem)
	if err != nil {
		return fmt.Errorf("merge call: %w", err)
	}
	if strings.TrimSpace(merged) == "" {
		return nil
	}
	if err := c.store.SetUserProfile(ctx, historyUID, confUID, merged); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	log.Printf("[MEMORY] Profile updated for history=%s (contradictions resolved)", historyUID)
	return nil
}

// summarize writes a summary item for the recent window.
func (c *Consolidator) summarize(ctx context.Context, confUID, historyUID, dialog string) error {
	resp, err := c.llm.Complete(ctx,
		[]core.Message{core.UserMessage("Dialogue:\n" + dialog)},
		summarySystem,
	)
	if err != nil {
		return fmt.Errorf("summary call: %w", err)
	}
	if strings.TrimSpace(resp) == "" {
		return nil
	}
	if _, err := c.store.AddItem(ctx, RoleSummary, resp, historyUID, confUID); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	log.Printf("[MEMORY] Saved summary for history=%s: %q", historyUID, preview(resp))
	return nil
}

var factDelimiter = regexp.MustCompile(`[\n•-]`)

// SplitFacts splits an LLM fact-extraction response on newline and bullet
// delimiters, discards lines of three characters or fewer after trimming, and
// caps the result at ten facts.
func SplitFacts(text string) []string {
	var facts []string
	for _, part := range factDelimiter.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > minFactLineLength {
			facts = append(facts, part)
		}
		if len(facts) == maxFactsPerBatch {
			break
		}
	}
	return facts
}

// formatRecentTurns renders the last n transcript messages as labelled lines
// for the LLM context window.
func formatRecentTurns(transcript []core.Message, n int) string {
	if len(transcript) > n {
		transcript = transcript[len(transcript)-n:]
	}
	var lines []string
	for _, m := range transcript {
		label := "User"
		if m.Role == "assistant" {
			label = "Assistant"
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		lines = append(lines, label+": "+m.Content)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
