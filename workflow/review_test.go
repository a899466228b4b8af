package workflow_test

import (
	"context"
	"testing"

	"github.com/hensuflow/hensu/agent"
	"github.com/hensuflow/hensu/agent/mock"
	"github.com/hensuflow/hensu/workflow"
)

// pendingOnceExecutor is a GenericExecutor standing in for an external
// approval gate: the first call reports the node pending human review via
// the _plan_review_required metadata convention, the second (post-resume)
// call reports success.
type pendingOnceExecutor struct {
	calls int
}

func (e *pendingOnceExecutor) Execute(_ context.Context, _ workflow.GenericNode, _ map[string]any) (workflow.NodeResult, error) {
	e.calls++
	if e.calls == 1 {
		return workflow.NodeResult{Status: workflow.StatusPending, Metadata: map[string]any{"_plan_review_required": true}}, nil
	}
	return workflow.NodeResult{Status: workflow.StatusSuccess, Output: "approved"}, nil
}

func TestReview_PendingShortCircuitThenResume(t *testing.T) {
	wf, err := workflow.NewWorkflow("review-wf", 1, map[string]workflow.Node{
		"approve": {
			ID:              "approve",
			Kind:            workflow.KindGeneric,
			Generic:         &workflow.GenericNode{ExecutorType: "approval_gate"},
			TransitionRules: []workflow.TransitionRule{{Kind: workflow.TransitionSuccess, Target: "end"}},
		},
		"end": {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
	}, "approve", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	e, err := workflow.New(wf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gate := &pendingOnceExecutor{}
	e.RegisterGenericExecutor("approval_gate", gate)

	first := e.Execute(context.Background(), wf, "exec-1", nil)
	if first.Err != nil {
		t.Fatalf("first Execute error: %v", first.Err)
	}
	if first.ShortCircuit != workflow.ShortCircuitPending {
		t.Fatalf("ShortCircuit = %q, want PENDING", first.ShortCircuit)
	}
	if first.State.CurrentNodeID != "approve" {
		t.Errorf("CurrentNodeID = %q, want approve (unchanged pending a decision)", first.State.CurrentNodeID)
	}
	if len(first.State.History) != 0 {
		t.Errorf("History = %+v, want empty (the pre-PENDING attempt is not appended)", first.State.History)
	}

	snapshot := first.State.Snapshot("paused for review")

	second := e.Resume(context.Background(), wf, snapshot)
	if second.Err != nil {
		t.Fatalf("Resume error: %v", second.Err)
	}
	if second.Exit != workflow.ExitSuccess {
		t.Fatalf("Exit = %q, want SUCCESS", second.Exit)
	}
	if gate.calls != 2 {
		t.Errorf("gate.calls = %d, want 2", gate.calls)
	}
	if v, _ := second.State.Context.Get("approve"); v != "approved" {
		t.Errorf("context[approve] = %v, want approved", v)
	}
	if len(second.State.History) != 2 {
		t.Errorf("History = %+v, want exactly one final execution step for approve followed by end", second.State.History)
	}
}

func TestReview_BacktrackDecisionRedirectsAndEditsPrompt(t *testing.T) {
	reg, agents := newMockAgentRegistry()
	registerMockAgent(t, reg, agents, "writer", &mock.Agent{
		Responses: []agent.Response{{Kind: agent.KindText, Text: "first pass"}},
	})

	wf, err := workflow.NewWorkflow("review-backtrack-wf", 1, map[string]workflow.Node{
		"intro": {
			ID:              "intro",
			Kind:            workflow.KindStandard,
			Standard:        &workflow.StandardNode{AgentID: "writer", Prompt: "write intro"},
			TransitionRules: []workflow.TransitionRule{{Kind: workflow.TransitionSuccess, Target: "draft"}},
		},
		"draft": {
			ID:   "draft",
			Kind: workflow.KindStandard,
			Standard: &workflow.StandardNode{
				AgentID: "writer",
				Prompt:  "write draft from {intro}",
				ReviewConfig: &workflow.ReviewConfig{
					Mode:           workflow.ReviewRequired,
					AllowBacktrack: true,
					AllowStateEdit: true,
				},
			},
			TransitionRules: []workflow.TransitionRule{{Kind: workflow.TransitionSuccess, Target: "end"}},
		},
		"end": {ID: "end", Kind: workflow.KindEnd, End: &workflow.EndNode{Status: workflow.ExitSuccess}},
	}, "intro", nil, nil)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	decisions := workflow.NewChannelReviewHandler(1)
	decisions.Decisions <- workflow.ReviewDecision{
		Kind:         workflow.DecisionBacktrack,
		TargetNode:   "intro",
		EditedPrompt: "write a punchier intro",
		Reason:       "too dry",
	}

	// maxSteps caps the loop at exactly (intro, draft) so it halts right
	// after the backtrack redirect lands, before a second draft dispatch
	// would block the review handler's single buffered decision.
	e, err := workflow.New(wf, workflow.WithAgentRegistry(reg), workflow.WithReviewHandler(decisions), workflow.WithMaxSteps(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := e.Execute(context.Background(), wf, "exec-1", nil)
	if _, ok := result.Err.(*workflow.FatalError); !ok {
		t.Fatalf("Execute error = %v, want max-steps FatalError (loop halted after the backtrack redirect)", result.Err)
	}
	if result.State.CurrentNodeID != "intro" {
		t.Fatalf("CurrentNodeID = %q, want intro (awaiting redirected retry)", result.State.CurrentNodeID)
	}
	if len(result.State.BacktrackLog) != 1 || result.State.BacktrackLog[0].Reason != "too dry" {
		t.Fatalf("BacktrackLog = %+v", result.State.BacktrackLog)
	}
	if v, _ := result.State.Context.Get("_prompt_override_intro"); v != "write a punchier intro" {
		t.Errorf("_prompt_override_intro = %v, want the edited prompt", v)
	}
}
