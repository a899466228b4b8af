package workflow

import "context"

// taskSlot bounds the number of concurrently running Parallel branches and
// Fork targets to ThreadPoolSize, mirroring the teacher's MaxConcurrentNodes
// worker cap. WithVirtualThreads(true) disables the bound entirely (one
// goroutine per branch/target, uncapped), trading backpressure for latency
// on workloads the caller already knows are small.
type taskSlot struct {
	sem chan struct{}
}

func newTaskSlot(poolSize int, virtual bool) *taskSlot {
	if virtual || poolSize <= 0 {
		return &taskSlot{}
	}
	return &taskSlot{sem: make(chan struct{}, poolSize)}
}

// acquire blocks until a slot is free (or ctx is done) and returns a release
// func. An unbounded taskSlot returns immediately.
func (t *taskSlot) acquire(ctx context.Context) func() {
	if t.sem == nil {
		return func() {}
	}
	select {
	case t.sem <- struct{}{}:
		return func() { <-t.sem }
	case <-ctx.Done():
		return func() {}
	}
}
