package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/hensuflow/hensu/agent"
)

// executeParallel runs every Branch concurrently against its own agent,
// bounded by the engine's configured parallel branch timeout, then
// reconciles results through ConsensusConfig if one is declared.
func (e *Engine) executeParallel(ctx context.Context, node Node, state *HensuState) (NodeResult, error) {
	pn := node.Parallel

	branchCtx := ctx
	if e.cfg.parallelBranchTimeout > 0 {
		var cancel context.CancelFunc
		branchCtx, cancel = context.WithTimeout(ctx, e.cfg.parallelBranchTimeout)
		defer cancel()
	}

	results := make([]BranchResult, len(pn.Branches))
	var wg sync.WaitGroup
	for i, br := range pn.Branches {
		wg.Add(1)
		go func(i int, br Branch) {
			defer wg.Done()
			release := e.slots.acquire(branchCtx)
			defer release()
			results[i] = e.runBranch(branchCtx, br, state)
		}(i, br)
	}
	wg.Wait()

	outputs := make(map[string]any, len(results))
	var failedBranches []string
	for _, r := range results {
		outputs[r.BranchID] = r.Output
		if r.Err != nil {
			failedBranches = append(failedBranches, r.BranchID)
		}
	}
	state.Context.Set("_parallel_"+node.ID, outputs)
	if len(failedBranches) > 0 {
		state.Context.Set("failed_branches", failedBranches)
	}

	if pn.ConsensusConfig != nil {
		consensus, err := e.evaluateConsensus(ctx, *pn.ConsensusConfig, results)
		if err != nil {
			return NodeResult{Status: StatusFailure, Output: outputs, Metadata: map[string]any{"error": err.Error()}}, nil
		}
		state.Context.Set("consensus_reached", consensus.Reached)
		state.Context.Set("consensus_result", consensus.Result)
		state.Context.Set("consensus_votes", consensus.Votes)
		state.Context.Set("consensus_winning_branch", consensus.WinningBranch)
		if !consensus.Reached {
			return NodeResult{Status: StatusFailure, Output: outputs, Metadata: map[string]any{"consensus_reached": false}}, nil
		}
		return NodeResult{Status: StatusSuccess, Output: consensus.Result, Metadata: map[string]any{"consensus_reached": true}}, nil
	}

	if len(failedBranches) > 0 {
		return NodeResult{Status: StatusFailure, Output: outputs, Metadata: map[string]any{"failed_branches": failedBranches}}, nil
	}
	return NodeResult{Status: StatusSuccess, Output: outputs}, nil
}

func (e *Engine) runBranch(ctx context.Context, br Branch, state *HensuState) BranchResult {
	ag, ok := e.cfg.agents.GetAgent(br.AgentID)
	if !ok {
		return BranchResult{BranchID: br.ID, Err: ErrUnresolvedAgent}
	}
	prompt := e.cfg.templates.Resolve(br.Prompt, state.Context.Snapshot())
	resp, err := ag.Execute(ctx, prompt, state.Context.Snapshot())
	if err != nil {
		return BranchResult{BranchID: br.ID, Err: err}
	}
	if resp.Kind == agent.KindError {
		return BranchResult{BranchID: br.ID, Err: errors.New(resp.ErrorMessage)}
	}

	score := br.Weight
	if br.RubricID != "" {
		if ev, err := e.cfg.rubrics.Evaluate(br.RubricID, resp.Text, state.Context.Snapshot()); err == nil {
			score = ev.Score
		}
	}
	return BranchResult{BranchID: br.ID, Output: resp.Text, Score: score}
}
