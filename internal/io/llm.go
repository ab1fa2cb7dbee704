package io

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/swarmguard/agentmind/internal/core/resilience"
)

// LLMClient wraps the Anthropic chat API (system-prompt extraction, error
// translation).
type LLMClient struct {
	apiKey  string
	model   string
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
}

// NewLLMClient builds a client for the given API key and model (falling back to
// a current Claude model name when model is empty).
func NewLLMClient(apiKey, model string) *LLMClient {
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	return &LLMClient{
		apiKey:  apiKey,
		model:   model,
		limiter: resilience.NewRateLimiter(3, 0.5, time.Second, 3),
		breaker: resilience.NewCircuitBreakerAdaptive("llm", 30*time.Second, 6, 5, 0.5, 15*time.Second, 1),
	}
}

// Complete sends a single user-role prompt with no system prompt and returns the
// model's text reply. Used by the THINK action and by scoring/expansion policies.
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "", prompt)
}

// Chat sends systemPrompt (optional) and a single user message, returning the
// model's concatenated text blocks.
func (c *LLMClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.breaker.Allow() {
		return "", fmt.Errorf("io: llm circuit open")
	}
	if !c.limiter.Allow() {
		return "", fmt.Errorf("io: llm rate limited")
	}
	if c.apiKey == "" {
		c.breaker.RecordResult(true)
		return "", fmt.Errorf("%w: anthropic API key is required", ErrPermanent)
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		c.breaker.RecordResult(false)
		return "", fmt.Errorf("io: anthropic call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if text != "" {
				text += "\n"
			}
			text += tb.Text
		}
	}

	c.breaker.RecordResult(true)
	return text, nil
}

// JSONComplete asks the model to emit a JSON object for the given prompt, used by
// the engine's final synthesis step.
func (c *LLMClient) JSONComplete(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, "Reply with a single JSON object and nothing else.", prompt)
}
