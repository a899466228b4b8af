// Package anthropic adapts Anthropic's Claude API to the agent.Agent
// interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hensuflow/hensu/agent"
)

// Agent implements agent.Agent backed by the Anthropic Messages API.
type Agent struct {
	cfg    agent.Config
	client anthropicClient
}

// anthropicClient abstracts the SDK call for testability.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error)
}

// New constructs an Agent from cfg. apiKey is read from the caller's
// environment, not from Config, to keep credentials out of Workflow
// definitions.
func New(cfg agent.Config, apiKey string) (*Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	return &Agent{
		cfg:    cfg,
		client: &defaultClient{apiKey: apiKey, model: cfg.Model, maxTokens: cfg.MaxTokens},
	}, nil
}

// Execute implements agent.Agent.
func (a *Agent) Execute(ctx context.Context, prompt string, _ map[string]any) (agent.Response, error) {
	if ctx.Err() != nil {
		return agent.Response{}, ctx.Err()
	}
	return a.client.createMessage(ctx, a.cfg.SystemPrompt, prompt)
}

type defaultClient struct {
	apiKey    string
	model     string
	maxTokens int
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("anthropic: API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(userPrompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return agent.Response{}, fmt.Errorf("anthropic: %w", err)
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

	return agent.Response{Kind: agent.KindText, Text: text}, nil
}
