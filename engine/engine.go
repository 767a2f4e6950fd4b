// Package engine runs conversation turns: it assembles memory and knowledge
// context before calling the language model, and dispatches consolidation and
// retention cleanup as background work after the reply.
package engine

import (
	"context"
	"log"
	"strings"

	"github.com/kotori-ai/kotori-go-sdk/core"
	"github.com/kotori-ai/kotori-go-sdk/knowledge"
	"github.com/kotori-ai/kotori-go-sdk/memory"
)

// Engine drives a single character's conversation pipeline.
type Engine struct {
	llm          memory.LLM
	store        *memory.Store
	consolidator *memory.Consolidator
	knowledge    *knowledge.Base
	config       *Config
}

// Config holds engine tuning knobs.
type Config struct {
	// SystemPrompt is the base character instruction.
	SystemPrompt string

	// KnowledgeResults is the number of knowledge chunks retrieved per turn.
	// Default 5.
	KnowledgeResults int

	// MemoryResults is the number of fact/summary items retrieved per turn.
	// Default 5.
	MemoryResults int

	// RetentionDays is the age after which non-persistent memory items are
	// swept. Default 30.
	RetentionDays int
}

// DefaultConfig returns the default engine configuration.
var DefaultConfig = &Config{
	KnowledgeResults: 5,
	MemoryResults:    5,
	RetentionDays:    30,
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory attaches dialogue memory: the store for retrieval and cleanup,
// the consolidator for background distillation.
func WithMemory(store *memory.Store, consolidator *memory.Consolidator) Option {
	return func(e *Engine) {
		e.store = store
		e.consolidator = consolidator
	}
}

// WithKnowledge attaches a static knowledge collection.
func WithKnowledge(b *knowledge.Base) Option {
	return func(e *Engine) {
		e.knowledge = b
	}
}

// New creates an engine generating replies through llm.
func New(llm memory.LLM, config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig
	}
	cfg := *config
	if cfg.KnowledgeResults <= 0 {
		cfg.KnowledgeResults = DefaultConfig.KnowledgeResults
	}
	if cfg.MemoryResults <= 0 {
		cfg.MemoryResults = DefaultConfig.MemoryResults
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig.RetentionDays
	}
	e := &Engine{llm: llm, config: &cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is one conversation turn.
type Input struct {
	// ConfUID identifies the character whose memory is in play.
	ConfUID string

	// HistoryUID identifies the conversation thread.
	HistoryUID string

	// UserMessage is the user's message for this turn.
	UserMessage string

	// History is the prior transcript of the thread, oldest first.
	History []core.Message
}

// Output is the result of a completed turn.
type Output struct {
	// Text is the assistant's reply.
	Text string

	// Transcript is History plus this turn's user and assistant messages.
	Transcript []core.Message
}

// Run executes one turn: sweep stale memory in the background, gather
// context, generate the reply, then dispatch consolidation without blocking
// the caller. Memory failures degrade the turn, they never fail it.
func (e *Engine) Run(ctx context.Context, input Input) (*Output, error) {
	e.dispatchCleanup(ctx)

	enrichment := e.retrieveContext(ctx, input)

	system := e.config.SystemPrompt
	if enrichment != "" {
		if system != "" {
			system += "\n\n"
		}
		system += enrichment
	}

	messages := append(append([]core.Message{}, input.History...), core.UserMessage(input.UserMessage))
	reply, err := e.llm.Complete(ctx, messages, system)
	if err != nil {
		return nil, err
	}

	transcript := append(messages, core.AssistantMessage(reply))
	e.dispatchConsolidation(ctx, input, transcript)

	return &Output{Text: reply, Transcript: transcript}, nil
}

// retrieveContext gathers knowledge chunks, the user profile, and similar
// facts/summaries. Every failure is logged and skipped: a turn without
// context is better than no turn.
func (e *Engine) retrieveContext(ctx context.Context, input Input) string {
	query := strings.TrimSpace(input.UserMessage)
	if query == "" {
		return ""
	}
	var sections []string

	if e.knowledge != nil {
		chunks, err := e.knowledge.Query(ctx, query, e.config.KnowledgeResults)
		if err != nil {
			log.Printf("[ENGINE] Knowledge query failed: %v", err)
		} else if len(chunks) > 0 {
			sections = append(sections, "Reference material:\n"+strings.Join(chunks, "\n---\n"))
			log.Printf("[ENGINE] Retrieved %d knowledge chunks", len(chunks))
		}
	}

	if e.store != nil && input.HistoryUID != "" {
		profile, err := e.store.GetUserProfile(ctx, input.HistoryUID, input.ConfUID)
		if err != nil {
			log.Printf("[ENGINE] Profile fetch failed: %v", err)
		} else if profile != "" {
			sections = append(sections, "User profile (use this when replying):\n"+profile)
		}

		items, err := e.store.Query(ctx, query, e.config.MemoryResults, memory.QueryFilter{
			HistoryUID: input.HistoryUID,
			ConfUID:    input.ConfUID,
			Roles:      []memory.Role{memory.RoleFact, memory.RoleSummary},
		})
		if err != nil {
			log.Printf("[ENGINE] Memory query failed: %v", err)
		} else if len(items) > 0 {
			lines := make([]string, 0, len(items))
			for _, it := range items {
				switch it.Role {
				case memory.RoleFact:
					lines = append(lines, "Fact: "+it.Content)
				case memory.RoleSummary:
					lines = append(lines, "Summary: "+it.Content)
				default:
					lines = append(lines, it.Content)
				}
			}
			sections = append(sections, "From memory:\n"+strings.Join(lines, "\n"))
		}
	}

	return strings.Join(sections, "\n\n")
}

// dispatchCleanup sweeps stale items in the background. The turn never waits
// for it; a failed sweep retries on the next turn. The sweep is global: every
// character benefits from any turn triggering it.
func (e *Engine) dispatchCleanup(ctx context.Context) {
	if e.store == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[ENGINE] Cleanup panic: %v", r)
			}
		}()
		if _, err := e.store.DeleteOlderThanDays(bg, e.config.RetentionDays, "", nil); err != nil {
			log.Printf("[ENGINE] Cleanup failed: %v", err)
		}
	}()
}

// dispatchConsolidation runs the consolidator for this turn in the
// background. The context is detached so an interrupted conversation still
// finishes writing its memory.
func (e *Engine) dispatchConsolidation(ctx context.Context, input Input, transcript []core.Message) {
	if e.consolidator == nil || input.HistoryUID == "" {
		return
	}
	bg := context.WithoutCancel(ctx)
	count := len(transcript)
	go e.consolidator.Process(bg, input.ConfUID, input.HistoryUID, transcript, count)
}
