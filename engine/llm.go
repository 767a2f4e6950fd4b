package engine

import (
	"context"
	"fmt"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kotori-ai/kotori-go-sdk/core"
)

// AnthropicLLM implements the memory.LLM collaborator over Anthropic's
// Messages API. The same instance serves both reply generation and the
// consolidator's background prompts.
type AnthropicLLM struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicLLM constructs a client for the given model, reading
// ANTHROPIC_API_KEY from the environment.
func NewAnthropicLLM(model string, maxTokens int64) *AnthropicLLM {
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicLLM{
		client:    &cl,
		model:     model, // e.g. "claude-3-5-sonnet-latest"
		maxTokens: maxTokens,
	}
}

// Complete sends the transcript and system instruction and returns the
// concatenated text blocks of the reply.
func (a *AnthropicLLM) Complete(ctx context.Context, messages []core.Message, system string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  toMessageParams(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func toMessageParams(messages []core.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return out
}
