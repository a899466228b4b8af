package workflow_test

import (
	"context"
	"testing"

	"github.com/hensuflow/hensu/agent"
	"github.com/hensuflow/hensu/agent/mock"
	"github.com/hensuflow/hensu/workflow"
)

func TestParallel_AnyBranchFailureFailsWithoutConsensus(t *testing.T) {
	reg, agents := newMockAgentRegistry()
	registerMockAgent(t, reg, agents, "a", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "ok from a"}}})
	registerMockAgent(t, reg, agents, "b", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindError, ErrorMessage: "refused"}}})

	wf, err := workflow.NewWorkflow("parallel-wf", 1, map[string]workflow.Node{
		"fan": {
			ID:   "fan",
			Kind: workflow.KindParallel,
			Parallel: &workflow.ParallelNode{
				Branches: []workflow.Branch{
					{ID: "a", AgentID: "a", Prompt: "go"},
					{ID: "b", AgentID: "b", Prompt: "go"},
				},
			},
			TransitionRules: []workflow.TransitionRule{
				{Kind: workflow.TransitionSuccess, Target: "end"},
				{Kind: workflow.TransitionFailure, Target: "fail_end"},
			},
		},
		"end":      {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
		"fail_end": {ID: "fail_end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitFailure}},
	}, "fan", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf, workflow.WithAgentRegistry(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if result.Err != nil {
		t.Fatalf("Execute error: %v", result.Err)
	}
	if result.Exit != workflow.ExitFailure {
		t.Fatalf("Exit = %q, want FAILURE (one branch failing fails the node)", result.Exit)
	}
	outputs, ok := result.State.Context.Get("_parallel_fan")
	if !ok {
		t.Fatal("context[_parallel_fan] missing")
	}
	m := outputs.(map[string]any)
	if m["a"] != "ok from a" {
		t.Errorf(`outputs["a"] = %v, want "ok from a"`, m["a"])
	}
	failed, ok := result.State.Context.Get("failed_branches")
	if !ok {
		t.Fatal("context[failed_branches] missing")
	}
	if fb := failed.([]string); len(fb) != 1 || fb[0] != "b" {
		t.Errorf("failed_branches = %v, want [b]", fb)
	}
}

func TestParallel_MajorityConsensusNotReachedFails(t *testing.T) {
	reg, agents := newMockAgentRegistry()
	registerMockAgent(t, reg, agents, "a", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "red"}}})
	registerMockAgent(t, reg, agents, "b", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "blue"}}})

	wf, err := workflow.NewWorkflow("consensus-wf", 1, map[string]workflow.Node{
		"fan": {
			ID:   "fan",
			Kind: workflow.KindParallel,
			Parallel: &workflow.ParallelNode{
				Branches: []workflow.Branch{
					{ID: "a", AgentID: "a", Prompt: "pick"},
					{ID: "b", AgentID: "b", Prompt: "pick"},
				},
				ConsensusConfig: &workflow.ConsensusConfig{Strategy: workflow.MajorityVote},
			},
			TransitionRules: []workflow.TransitionRule{
				{Kind: workflow.TransitionSuccess, Target: "end"},
				{Kind: workflow.TransitionFailure, Target: "fail_end"},
			},
		},
		"end":      {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
		"fail_end": {ID: "fail_end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitFailure}},
	}, "fan", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf, workflow.WithAgentRegistry(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if result.Err != nil {
		t.Fatalf("Execute error: %v", result.Err)
	}
	if result.Exit != workflow.ExitFailure {
		t.Fatalf("Exit = %q, want FAILURE (2-way split has no majority)", result.Exit)
	}
	if reached, _ := result.State.Context.Get("consensus_reached"); reached != false {
		t.Errorf("consensus_reached = %v, want false", reached)
	}
}

func TestParallel_WeightedVoteReachesConsensus(t *testing.T) {
	reg, agents := newMockAgentRegistry()
	registerMockAgent(t, reg, agents, "a", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "red"}}})
	registerMockAgent(t, reg, agents, "b", &mock.Agent{Responses: []agent.Response{{Kind: agent.KindText, Text: "blue"}}})

	wf, err := workflow.NewWorkflow("weighted-wf", 1, map[string]workflow.Node{
		"fan": {
			ID:   "fan",
			Kind: workflow.KindParallel,
			Parallel: &workflow.ParallelNode{
				Branches: []workflow.Branch{
					{ID: "a", AgentID: "a", Prompt: "pick", Weight: 9},
					{ID: "b", AgentID: "b", Prompt: "pick", Weight: 1},
				},
				ConsensusConfig: &workflow.ConsensusConfig{Strategy: workflow.WeightedVote, Threshold: 0.6},
			},
			TransitionRules: []workflow.TransitionRule{{Kind: workflow.TransitionSuccess, Target: "end"}},
		},
		"end": {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
	}, "fan", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf, workflow.WithAgentRegistry(reg))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if result.Err != nil || result.Exit != workflow.ExitSuccess {
		t.Fatalf("result = %+v", result)
	}
	if winner, _ := result.State.Context.Get("consensus_result"); winner != "red" {
		t.Errorf("consensus_result = %v, want red", winner)
	}
}
