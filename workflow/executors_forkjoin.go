package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// executeFork dispatches each Target concurrently through runSubNode,
// recording a ForkResult per target into a forkJoinEntry keyed by this
// fork node. When WaitForAll is set, the fork node itself blocks until
// every target completes; otherwise it returns immediately and a later
// Join node blocks on its behalf.
func (e *Engine) executeFork(ctx context.Context, workflow *Workflow, node Node, state *HensuState) (NodeResult, error) {
	fn := node.Fork
	entry := &forkJoinEntry{order: append([]string(nil), fn.Targets...), results: make(map[string]ForkResult, len(fn.Targets))}

	for _, target := range fn.Targets {
		entry.wg.Add(1)
		go func(target string) {
			defer entry.wg.Done()
			release := e.slots.acquire(ctx)
			defer release()
			start := time.Now()
			targetNode, ok := workflow.Nodes[target]
			if !ok {
				entry.record(target, ForkResult{Status: ForkFailed, Error: "fork target not found: " + target})
				return
			}
			for k, v := range fn.TargetConfigs[target] {
				state.Context.Set(k, v)
			}
			result, err := e.runSubNode(ctx, workflow, targetNode, state)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				entry.record(target, ForkResult{Status: ForkFailed, ElapsedMs: elapsed, Error: err.Error()})
				return
			}
			if result.Status == StatusFailure {
				entry.record(target, ForkResult{Status: ForkFailed, ElapsedMs: elapsed, Result: result.Output, Error: fmt.Sprint(result.Metadata["error"])})
				return
			}
			entry.record(target, ForkResult{Status: ForkCompleted, ElapsedMs: elapsed, Result: result.Output})
		}(target)
	}

	e.forkJoins.Store(forkJoinKey(state.ExecutionID, node.ID), entry)

	if fn.WaitForAll {
		entry.wg.Wait()
		return summarizeFork(entry.snapshot()), nil
	}
	return NodeResult{Status: StatusSuccess, Metadata: map[string]any{"fork_node_id": node.ID, "awaited": false}}, nil
}

func summarizeFork(results map[string]ForkResult) NodeResult {
	failed := 0
	for _, r := range results {
		if r.Status == ForkFailed {
			failed++
		}
	}
	status := StatusSuccess
	if len(results) > 0 && failed == len(results) {
		status = StatusFailure
	}
	return NodeResult{Status: status, Output: results}
}

// executeJoin awaits one or more fork contexts by fork node id and merges
// their recorded ForkResults per MergeStrategy.
func (e *Engine) executeJoin(ctx context.Context, node Node, state *HensuState) (NodeResult, error) {
	jn := node.Join
	timeout := time.Duration(jn.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = e.cfg.parallelBranchTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	merged := make(map[string]ForkResult)
	var order []string
	for _, forkID := range jn.AwaitTargets {
		v, ok := e.forkJoins.Load(forkJoinKey(state.ExecutionID, forkID))
		if !ok {
			return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "no fork context for " + forkID}}, nil
		}
		entry := v.(*forkJoinEntry)

		done := make(chan struct{})
		go func() {
			entry.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-deadline.C:
			return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "join timed out awaiting " + forkID}}, nil
		case <-ctx.Done():
			return NodeResult{Status: StatusCancelled}, ctx.Err()
		}

		snapshot := entry.snapshot()
		for _, target := range entry.order {
			if r, ok := snapshot[target]; ok {
				merged[target] = r
				order = append(order, target)
			}
		}
	}

	if jn.FailOnAnyError {
		for target, r := range merged {
			if r.Status == ForkFailed {
				return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": "fork target failed: " + target}}, nil
			}
		}
	}

	output, err := e.mergeJoin(jn, merged, order)
	if err != nil {
		return NodeResult{Status: StatusFailure, Metadata: map[string]any{"error": err.Error()}}, nil
	}
	if jn.OutputField != "" {
		state.Context.Set(jn.OutputField, output)
	}
	return NodeResult{Status: StatusSuccess, Output: output}, nil
}

// mergeJoin combines the recorded ForkResults per MergeStrategy. order gives
// the fork targets in declaration order; when order is empty, the targets
// are taken in sortedForkKeys order instead.
func (e *Engine) mergeJoin(jn *JoinNode, results map[string]ForkResult, order []string) (any, error) {
	if len(order) == 0 {
		order = sortedForkKeys(results)
	}

	switch jn.MergeStrategy {
	case MergeCollectAll:
		out := make([]any, 0, len(order))
		for _, k := range order {
			out = append(out, results[k].Result)
		}
		return out, nil

	case MergeFirstCompleted:
		var earliest ForkResult
		found := false
		for _, r := range results {
			if r.Status != ForkCompleted {
				continue
			}
			if !found || r.ElapsedMs < earliest.ElapsedMs {
				earliest, found = r, true
			}
		}
		if !found {
			return nil, ErrEmptyPipelineResult
		}
		return earliest.Result, nil

	case MergeConcatenate:
		var sb strings.Builder
		for _, k := range order {
			if s, ok := results[k].Result.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String(), nil

	case MergeMaps:
		out := make(map[string]any)
		for _, k := range order {
			if m, ok := results[k].Result.(map[string]any); ok {
				for mk, mv := range m {
					out[mk] = mv
				}
			}
		}
		return out, nil

	case MergeCustom:
		merger, ok := e.reg.merger(jn.MergerName)
		if !ok {
			return nil, fmt.Errorf("workflow: no merger registered as %q", jn.MergerName)
		}
		outputs := make(map[string]any, len(order))
		for _, k := range order {
			outputs[k] = results[k].Result
		}
		return merger.Merge(outputs, order)

	default:
		return nil, fmt.Errorf("workflow: unknown merge strategy %q", jn.MergeStrategy)
	}
}

func sortedForkKeys(m map[string]ForkResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
