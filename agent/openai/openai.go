// Package openai adapts OpenAI's Chat Completions API to the agent.Agent
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hensuflow/hensu/agent"
)

// Agent implements agent.Agent backed by the OpenAI Chat Completions API.
type Agent struct {
	cfg        agent.Config
	client     openaiClient
	maxRetries int
	retryDelay time.Duration
}

// openaiClient abstracts the SDK call for testability.
type openaiClient interface {
	createChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error)
}

// New constructs an Agent from cfg. apiKey is read from the caller's
// environment, not from Config, to keep credentials out of Workflow
// definitions.
func New(cfg agent.Config, apiKey string) (*Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	return &Agent{
		cfg:        cfg,
		client:     &defaultClient{apiKey: apiKey, model: cfg.Model, maxTokens: cfg.MaxTokens},
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Execute implements agent.Agent, retrying transient provider failures with
// backoff before giving up.
func (a *Agent) Execute(ctx context.Context, prompt string, _ map[string]any) (agent.Response, error) {
	if ctx.Err() != nil {
		return agent.Response{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		resp, err := a.client.createChatCompletion(ctx, a.cfg.SystemPrompt, prompt)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isTransientError(err) {
			return agent.Response{}, err
		}
		if attempt >= a.maxRetries {
			break
		}

		delay := a.retryDelay
		if isRateLimitError(err) {
			delay = a.retryDelay * time.Duration(attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return agent.Response{}, ctx.Err()
		}
	}

	return agent.Response{}, fmt.Errorf("openai: failed after %d retries: %w", a.maxRetries, lastErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string {
	return e.message
}

type defaultClient struct {
	apiKey    string
	model     string
	maxTokens int
}

func (c *defaultClient) createChatCompletion(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("openai: API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(userPrompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: messages,
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(c.maxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		if isRateLimitStatus(err) {
			return agent.Response{}, &rateLimitError{message: err.Error()}
		}
		return agent.Response{}, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return agent.Response{}, errors.New("openai: empty response")
	}

	return agent.Response{Kind: agent.KindText, Text: resp.Choices[0].Message.Content}, nil
}

func isRateLimitStatus(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "429")
}
