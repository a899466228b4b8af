package workflow

import (
	"context"
	"fmt"
	"strings"
)

// BranchResult is one Parallel branch's completed (or failed) invocation.
type BranchResult struct {
	BranchID string
	Output   string
	Score    float64
	Err      error
}

// ConsensusResult is the outcome of reconciling a Parallel node's branch
// results, populated into context under the consensus_* keys.
type ConsensusResult struct {
	Reached       bool
	Result        string
	Votes         map[string]int
	WinningBranch string
}

func (e *Engine) evaluateConsensus(ctx context.Context, cfg ConsensusConfig, results []BranchResult) (ConsensusResult, error) {
	switch cfg.Strategy {
	case MajorityVote:
		return majorityVote(results), nil
	case UnanimousVote:
		return unanimousVote(results), nil
	case WeightedVote:
		return weightedVote(results, cfg.Threshold), nil
	case JudgeDecides:
		return e.judgeDecides(ctx, cfg.JudgeID, results)
	default:
		return ConsensusResult{}, fmt.Errorf("workflow: unknown consensus strategy %q", cfg.Strategy)
	}
}

func groupByOutput(results []BranchResult) map[string][]string {
	groups := make(map[string][]string)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		groups[r.Output] = append(groups[r.Output], r.BranchID)
	}
	return groups
}

func majorityVote(results []BranchResult) ConsensusResult {
	groups := groupByOutput(results)
	votes := make(map[string]int, len(groups))
	var winningOutput string
	winningCount := 0
	for output, branches := range groups {
		votes[output] = len(branches)
		if len(branches) > winningCount {
			winningCount = len(branches)
			winningOutput = output
		}
	}
	total := 0
	for _, r := range results {
		if r.Err == nil {
			total++
		}
	}
	reached := total > 0 && winningCount*2 > total
	return ConsensusResult{Reached: reached, Result: winningOutput, Votes: votes, WinningBranch: firstBranchFor(groups, winningOutput)}
}

func unanimousVote(results []BranchResult) ConsensusResult {
	groups := groupByOutput(results)
	votes := make(map[string]int, len(groups))
	for output, branches := range groups {
		votes[output] = len(branches)
	}
	var result string
	for output := range groups {
		result = output
	}
	reached := len(groups) == 1 && len(results) > 0
	return ConsensusResult{Reached: reached, Result: result, Votes: votes, WinningBranch: firstBranchFor(groups, result)}
}

func weightedVote(results []BranchResult, threshold float64) ConsensusResult {
	totals := make(map[string]float64)
	groups := groupByOutput(results)
	totalWeight := 0.0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		totals[r.Output] += r.Score
		totalWeight += r.Score
	}
	var winningOutput string
	winningWeight := 0.0
	for output, w := range totals {
		if w > winningWeight {
			winningWeight = w
			winningOutput = output
		}
	}
	votes := make(map[string]int, len(groups))
	for output, branches := range groups {
		votes[output] = len(branches)
	}
	reached := totalWeight > 0 && winningWeight/totalWeight >= threshold
	return ConsensusResult{Reached: reached, Result: winningOutput, Votes: votes, WinningBranch: firstBranchFor(groups, winningOutput)}
}

func firstBranchFor(groups map[string][]string, output string) string {
	if branches, ok := groups[output]; ok && len(branches) > 0 {
		return branches[0]
	}
	return ""
}

func (e *Engine) judgeDecides(ctx context.Context, judgeID string, results []BranchResult) (ConsensusResult, error) {
	ag, ok := e.cfg.agents.GetAgent(judgeID)
	if !ok {
		return ConsensusResult{}, ErrUnresolvedAgent
	}
	var sb strings.Builder
	sb.WriteString("Select the best candidate answer among the following branch outputs. Respond with only the winning branch id.\n")
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		sb.WriteString("branch ")
		sb.WriteString(r.BranchID)
		sb.WriteString(": ")
		sb.WriteString(r.Output)
		sb.WriteString("\n")
	}
	resp, err := ag.Execute(ctx, sb.String(), nil)
	if err != nil {
		return ConsensusResult{}, err
	}
	winning := strings.TrimSpace(resp.Text)
	for _, r := range results {
		if r.BranchID == winning {
			return ConsensusResult{Reached: true, Result: r.Output, WinningBranch: r.BranchID, Votes: map[string]int{r.BranchID: 1}}, nil
		}
	}
	return ConsensusResult{Reached: false}, nil
}
