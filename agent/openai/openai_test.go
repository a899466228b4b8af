package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hensuflow/hensu/agent"
)

func TestNew(t *testing.T) {
	a, err := New(agent.Config{}, "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.cfg.Model != "gpt-4o" {
		t.Errorf("expected default model, got %q", a.cfg.Model)
	}
}

func TestAgent_Execute(t *testing.T) {
	t.Run("returns the client's response", func(t *testing.T) {
		client := &mockClient{resp: agent.Response{Kind: agent.KindText, Text: "hello"}}
		a := &Agent{client: client, retryDelay: time.Millisecond}

		resp, err := a.Execute(context.Background(), "hi", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Text != "hello" {
			t.Errorf("expected text %q, got %q", "hello", resp.Text)
		}
	})

	t.Run("does not retry non-transient errors", func(t *testing.T) {
		client := &mockClient{err: errors.New("invalid request")}
		a := &Agent{client: client, maxRetries: 3, retryDelay: time.Millisecond}

		_, err := a.Execute(context.Background(), "hi", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if client.calls != 1 {
			t.Errorf("expected exactly 1 call for non-transient error, got %d", client.calls)
		}
	})

	t.Run("retries transient errors up to maxRetries", func(t *testing.T) {
		client := &mockClient{err: errors.New("connection reset: timeout")}
		a := &Agent{client: client, maxRetries: 2, retryDelay: time.Millisecond}

		_, err := a.Execute(context.Background(), "hi", nil)
		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if client.calls != 3 {
			t.Errorf("expected 1 initial + 2 retries = 3 calls, got %d", client.calls)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		a := &Agent{client: &mockClient{}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.Execute(ctx, "hi", nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

type mockClient struct {
	resp  agent.Response
	err   error
	calls int
}

func (m *mockClient) createChatCompletion(_ context.Context, _, _ string) (agent.Response, error) {
	m.calls++
	if m.err != nil {
		return agent.Response{}, m.err
	}
	return m.resp, nil
}
