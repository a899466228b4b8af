package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hensuflow/hensu/action"
	"github.com/hensuflow/hensu/workflow"
)

// fakePlanner returns a fixed one-step plan and, on RevisePlan, a second
// fixed one-step plan, recording how many times each method was called.
type fakePlanner struct {
	createCalls int
	reviseCalls int
}

func (p *fakePlanner) CreatePlan(context.Context, workflow.PlanRequest) (*workflow.Plan, error) {
	p.createCalls++
	return &workflow.Plan{
		Source: workflow.PlanStatic,
		Steps: []workflow.PlannedStep{
			{Index: 0, ActionKind: workflow.ActionToolCall, ToolName: "do-x", Status: workflow.StepPending},
		},
		Constraints: workflow.PlanConstraints{AllowReplan: true, MaxReplans: 1},
	}, nil
}

func (p *fakePlanner) RevisePlan(context.Context, workflow.RevisionContext) (*workflow.Plan, error) {
	p.reviseCalls++
	return &workflow.Plan{
		Source: workflow.PlanStatic,
		Steps: []workflow.PlannedStep{
			{Index: 0, ActionKind: workflow.ActionToolCall, ToolName: "do-x-retry", Status: workflow.StepPending},
		},
	}, nil
}

func TestPlan_OneRevisionThenSucceeds(t *testing.T) {
	am := &action.Mock{Results: []action.Result{
		{Success: false, Err: errors.New("boom")},
		{Success: true, Output: map[string]any{"done": "true"}},
	}}
	planner := &fakePlanner{}

	wf, err := workflow.NewWorkflow("plan-wf", 1, map[string]workflow.Node{
		"plan": {
			ID:   "plan",
			Kind: workflow.KindStandard,
			Standard: &workflow.StandardNode{
				Prompt:         "achieve the goal",
				PlanningConfig: &workflow.PlanningConfig{Enabled: true},
			},
			TransitionRules: []workflow.TransitionRule{
				{Kind: workflow.TransitionSuccess, Target: "end"},
				{Kind: workflow.TransitionFailure, Target: "fail_end"},
			},
		},
		"end":      {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
		"fail_end": {ID: "fail_end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitFailure}},
	}, "plan", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf, workflow.WithActionExecutor(am), workflow.WithPlanner(planner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if result.Err != nil {
		t.Fatalf("Execute error: %v", result.Err)
	}
	if result.Exit != workflow.ExitSuccess {
		t.Fatalf("Exit = %q, want SUCCESS", result.Exit)
	}
	if planner.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", planner.createCalls)
	}
	if planner.reviseCalls != 1 {
		t.Errorf("reviseCalls = %d, want 1", planner.reviseCalls)
	}
	if am.CallCount() != 2 {
		t.Errorf("action CallCount = %d, want 2 (original failing attempt + revised retry)", am.CallCount())
	}
}

func TestPlan_ExhaustedReplanBudgetFails(t *testing.T) {
	am := &action.Mock{Err: errors.New("always fails")}
	planner := &fakePlanner{}

	wf, err := workflow.NewWorkflow("plan-wf", 1, map[string]workflow.Node{
		"plan": {
			ID:   "plan",
			Kind: workflow.KindStandard,
			Standard: &workflow.StandardNode{
				Prompt:         "achieve the goal",
				PlanningConfig: &workflow.PlanningConfig{Enabled: true},
			},
			TransitionRules: []workflow.TransitionRule{
				{Kind: workflow.TransitionSuccess, Target: "end"},
				{Kind: workflow.TransitionFailure, Target: "fail_end"},
			},
		},
		"end":      {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
		"fail_end": {ID: "fail_end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitFailure}},
	}, "plan", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf, workflow.WithActionExecutor(am), workflow.WithPlanner(planner))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if result.Err != nil {
		t.Fatalf("Execute error: %v", result.Err)
	}
	if result.Exit != workflow.ExitFailure {
		t.Fatalf("Exit = %q, want FAILURE", result.Exit)
	}
	if planner.reviseCalls != 1 {
		t.Errorf("reviseCalls = %d, want 1 (budget is MaxReplans=1)", planner.reviseCalls)
	}
}
