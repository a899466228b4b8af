package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/hensuflow/hensu/agent"
)

func TestAgent_Execute(t *testing.T) {
	t.Run("returns responses in sequence then repeats the last", func(t *testing.T) {
		a := &Agent{Responses: []agent.Response{
			{Kind: agent.KindText, Text: "first"},
			{Kind: agent.KindText, Text: "second"},
		}}

		for _, want := range []string{"first", "second", "second", "second"} {
			resp, err := a.Execute(context.Background(), "prompt", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Text != want {
				t.Errorf("expected %q, got %q", want, resp.Text)
			}
		}

		if a.CallCount() != 4 {
			t.Errorf("expected 4 recorded calls, got %d", a.CallCount())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		a := &Agent{Err: errors.New("boom")}

		_, err := a.Execute(context.Background(), "prompt", nil)
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("records call context", func(t *testing.T) {
		a := &Agent{}
		ctxArg := map[string]any{"step": 1}

		_, _ = a.Execute(context.Background(), "do the thing", ctxArg)

		if len(a.Calls) != 1 || a.Calls[0].Prompt != "do the thing" {
			t.Fatalf("expected call recorded with prompt, got %+v", a.Calls)
		}
	})

	t.Run("reset clears history", func(t *testing.T) {
		a := &Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "x"}}}
		_, _ = a.Execute(context.Background(), "p", nil)
		a.Reset()

		if a.CallCount() != 0 {
			t.Errorf("expected call count reset to 0, got %d", a.CallCount())
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		a := &Agent{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.Execute(ctx, "p", nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
