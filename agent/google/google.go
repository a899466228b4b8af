// Package google adapts Google's Gemini API to the agent.Agent interface.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hensuflow/hensu/agent"
)

// Agent implements agent.Agent backed by the Gemini API.
type Agent struct {
	cfg    agent.Config
	client googleClient
}

// googleClient abstracts the SDK call for testability.
type googleClient interface {
	generateContent(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error)
}

// New constructs an Agent from cfg. apiKey is read from the caller's
// environment, not from Config, to keep credentials out of Workflow
// definitions.
func New(cfg agent.Config, apiKey string) (*Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &Agent{
		cfg:    cfg,
		client: &defaultClient{apiKey: apiKey, model: cfg.Model},
	}, nil
}

// Execute implements agent.Agent. Safety-filter blocks surface as a
// KindError response rather than a Go error, since they are an expected
// provider outcome the caller may want to route through a review gate.
func (a *Agent) Execute(ctx context.Context, prompt string, _ map[string]any) (agent.Response, error) {
	if ctx.Err() != nil {
		return agent.Response{}, ctx.Err()
	}

	resp, err := a.client.generateContent(ctx, a.cfg.SystemPrompt, prompt)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return agent.Response{Kind: agent.KindError, ErrorMessage: safetyErr.Error()}, nil
		}
		return agent.Response{}, err
	}
	return resp, nil
}

type defaultClient struct {
	apiKey string
	model  string
}

func (c *defaultClient) generateContent(ctx context.Context, systemPrompt, userPrompt string) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("google: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return agent.Response{}, fmt.Errorf("google: creating client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.model)
	if systemPrompt != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}

	resp, err := genModel.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		if isSafetyBlock(err) {
			return agent.Response{}, &SafetyFilterError{reason: "blocked", category: err.Error()}
		}
		return agent.Response{}, fmt.Errorf("google: %w", err)
	}

	return convertResponse(resp), nil
}

func isSafetyBlock(err error) bool {
	return err != nil && len(err.Error()) > 0 &&
		(contains(err.Error(), "SAFETY") || contains(err.Error(), "blocked"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func convertResponse(resp *genai.GenerateContentResponse) agent.Response {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return agent.Response{Kind: agent.KindText}
	}

	candidate := resp.Candidates[0]
	var text string
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if text != "" {
				text += "\n"
			}
			text += string(p)
		case genai.FunctionCall:
			return agent.Response{
				Kind:          agent.KindToolRequest,
				ToolName:      p.Name,
				ToolArguments: p.Args,
			}
		}
	}
	return agent.Response{Kind: agent.KindText, Text: text}
}

// SafetyFilterError represents a Gemini safety filter block.
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}
