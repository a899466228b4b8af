// Package mock provides a scriptable agent.Agent for tests.
package mock

import (
	"context"
	"sync"

	"github.com/hensuflow/hensu/agent"
)

// Agent is a test implementation of agent.Agent. Use it to verify workflow
// behavior without making actual LLM API calls.
type Agent struct {
	// Responses is the sequence of responses to return. Each call to
	// Execute returns the next response in order; once exhausted, the
	// last response repeats.
	Responses []agent.Response

	// Err, if set, is returned by Execute instead of a response.
	Err error

	// Calls records every Execute invocation, for assertions on what the
	// workflow passed to the agent.
	Calls []Call

	mu        sync.Mutex
	callIndex int
}

// Call records a single invocation of Execute.
type Call struct {
	Prompt  string
	Context map[string]any
}

// Execute implements agent.Agent.
func (a *Agent) Execute(ctx context.Context, prompt string, context map[string]any) (agent.Response, error) {
	if ctx.Err() != nil {
		return agent.Response{}, ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.Calls = append(a.Calls, Call{Prompt: prompt, Context: context})

	if a.Err != nil {
		return agent.Response{}, a.Err
	}
	if len(a.Responses) == 0 {
		return agent.Response{Kind: agent.KindText}, nil
	}

	idx := a.callIndex
	if idx >= len(a.Responses) {
		idx = len(a.Responses) - 1
	} else {
		a.callIndex++
	}
	return a.Responses[idx], nil
}

// Reset clears call history and rewinds the response cursor.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = nil
	a.callIndex = 0
}

// CallCount returns the number of times Execute has been called.
func (a *Agent) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Calls)
}
