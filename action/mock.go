package action

import (
	"context"
	"sync"
)

// Mock is a test implementation of Executor. Use it to verify Action-node
// and ToolCallStepHandler behavior without dispatching real side effects.
type Mock struct {
	// Results is the sequence of outcomes to return. Each call to Execute
	// returns the next entry in order; once exhausted, the last entry
	// repeats.
	Results []Result

	// Err, if set, is returned by Execute instead of a Result.
	Err error

	// Calls records every Execute invocation.
	Calls []Call

	mu        sync.Mutex
	callIndex int
}

// Call records a single invocation of Execute.
type Call struct {
	Action  Action
	Context map[string]any
}

// Execute implements Executor.
func (m *Mock) Execute(ctx context.Context, act Action, execContext map[string]any) (Result, error) {
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{Action: act, Context: execContext})

	if m.Err != nil {
		return Result{}, m.Err
	}
	if len(m.Results) == 0 {
		return Result{Success: true}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	} else {
		m.callIndex++
	}
	return m.Results[idx], nil
}

// Reset clears call history and rewinds the result cursor.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Execute has been called.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
