package action

import (
	"context"
	"errors"
	"testing"
)

func TestMock_Execute(t *testing.T) {
	t.Run("returns results in sequence then repeats the last", func(t *testing.T) {
		m := &Mock{Results: []Result{
			{Success: true, Message: "first"},
			{Success: false, Message: "second"},
		}}

		for _, want := range []string{"first", "second", "second"} {
			result, err := m.Execute(context.Background(), Action{Kind: KindSend}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Message != want {
				t.Errorf("expected %q, got %q", want, result.Message)
			}
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := &Mock{Err: errors.New("boom")}
		_, err := m.Execute(context.Background(), Action{Kind: KindExecute}, nil)
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("records calls and supports reset", func(t *testing.T) {
		m := &Mock{}
		_, _ = m.Execute(context.Background(), Action{Kind: KindNotify, Channel: "ops"}, map[string]any{"x": 1})
		if m.CallCount() != 1 {
			t.Fatalf("expected 1 call, got %d", m.CallCount())
		}
		m.Reset()
		if m.CallCount() != 0 {
			t.Errorf("expected call count reset to 0, got %d", m.CallCount())
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		m := &Mock{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Execute(ctx, Action{}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
