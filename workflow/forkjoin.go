package workflow

import "sync"

// ForkStatus is one fork target's outcome as recorded by executeFork.
type ForkStatus string

const (
	ForkCompleted ForkStatus = "completed"
	ForkFailed    ForkStatus = "failed"
)

// ForkResult is one fork target's recorded outcome.
type ForkResult struct {
	Status    ForkStatus
	ElapsedMs int64
	Result    any
	Error     string
}

// forkJoinEntry tracks one in-flight fork's target goroutines so a later
// Join node can await completion without re-dispatching them. Keyed by
// executionID + "/" + forkNodeID on Engine.forkJoins.
type forkJoinEntry struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	order   []string
	results map[string]ForkResult
}

func (entry *forkJoinEntry) record(target string, r ForkResult) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.results[target] = r
}

func (entry *forkJoinEntry) snapshot() map[string]ForkResult {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make(map[string]ForkResult, len(entry.results))
	for k, v := range entry.results {
		out[k] = v
	}
	return out
}

func forkJoinKey(executionID, forkNodeID string) string {
	return executionID + "/" + forkNodeID
}
