package workflow

import "time"

// PlanSource records whether a Plan came from a predefined template or an
// LLM's proposal.
type PlanSource string

const (
	PlanStatic       PlanSource = "STATIC"
	PlanLlmGenerated PlanSource = "LLM_GENERATED"
)

// PlanConstraints bounds a plan's size, revision budget, and duration.
type PlanConstraints struct {
	MaxSteps       int
	MaxReplans     int
	MaxDuration    time.Duration
	MaxTokenBudget int
	AllowReplan    bool
}

// Plan is an immutable, ordered sequence of PlannedSteps produced by a
// Planner for one planning-enabled Standard node invocation.
type Plan struct {
	ID          string
	NodeID      string
	Source      PlanSource
	Steps       []PlannedStep
	Constraints PlanConstraints
}

// Snapshot projects Plan + its in-flight progress into a PlanSnapshot.
// CurrentStepIndex is the first step still pending or executing, derived
// from the step statuses the plan executor updates as it advances; a
// freshly created Plan snapshots at index 0. CompletedResults is always
// left nil.
func (p *Plan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		NodeID:            p.NodeID,
		Steps:             append([]PlannedStep(nil), p.Steps...),
		CurrentStepIndex:  p.currentStepIndex(),
		CompletedResults:  nil,
	}
}

func (p *Plan) currentStepIndex() int {
	for i, s := range p.Steps {
		if s.Status == StepPending || s.Status == StepExecuting {
			return i
		}
	}
	return len(p.Steps)
}

// StepActionKind tags which PlannedStep.Action variant applies.
type StepActionKind string

const (
	ActionToolCall   StepActionKind = "tool_call"
	ActionSynthesize StepActionKind = "synthesize"
)

// StepStatus is a PlannedStep's lifecycle state.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepExecuting StepStatus = "EXECUTING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
	StepSkipped   StepStatus = "SKIPPED"
)

// PlannedStep is one entry of a Plan.
type PlannedStep struct {
	Index       int
	ActionKind  StepActionKind
	ToolName    string
	Arguments   map[string]any
	AgentID     string // Synthesize only; may be empty until enriched
	Prompt      string // Synthesize only
	Description string
	Status      StepStatus
}

// StepResult is produced by a StepHandler for one PlannedStep.
type StepResult struct {
	StepIndex int
	ToolName  string
	Success   bool
	Output    any
	Err       error
	Duration  time.Duration
	Metadata  map[string]any
}

// PlanRunStatus is the aggregate outcome of one PlanExecutor pass.
type PlanRunStatus string

const (
	PlanCompletedStatus PlanRunStatus = "COMPLETED"
	PlanFailedStatus    PlanRunStatus = "FAILED"
	PlanCancelledStatus PlanRunStatus = "CANCELLED"
	PlanTimeoutStatus   PlanRunStatus = "TIMEOUT"
	PlanInProgress      PlanRunStatus = "IN_PROGRESS"
)

// PlanResult is the outcome of one PlanExecutor.Execute call.
type PlanResult struct {
	Status        PlanRunStatus
	StepResults   []StepResult
	FailedAtStep  int // -1 if none
	TotalDuration time.Duration
	Output        any
	Err           error
}

// Success reports whether the plan run completed without failure.
func (r PlanResult) Success() bool {
	return r.Status == PlanCompletedStatus
}

// PlanSnapshot projects a Plan's in-flight progress for persistence.
type PlanSnapshot struct {
	NodeID           string
	Steps            []PlannedStep
	CurrentStepIndex int
	CompletedResults []StepResult
}

// IsComplete reports whether every step has been attempted.
func (s PlanSnapshot) IsComplete() bool {
	return s.CurrentStepIndex >= len(s.Steps)
}

// PlanRequest is passed to Planner.CreatePlan.
type PlanRequest struct {
	Goal           string
	AvailableTools []ToolDescriptor
	Context        map[string]any
	Constraints    PlanConstraints
}

// ToolDescriptor describes one tool available to a planner, shaped for
// inclusion in an LLM planning prompt.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []ParamDescriptor
}

// ParamDescriptor describes one parameter of a ToolDescriptor.
type ParamDescriptor struct {
	Name     string
	Type     string
	Required bool
}

// RevisionContext is passed to Planner.RevisePlan after a failed step.
type RevisionContext struct {
	FailedStep     PlannedStep
	FailedResult   StepResult
	Prompt         string
	AvailableTools []ToolDescriptor
}

// RevisionContextFromFailure builds a RevisionContext for the step that
// failed in result, matching the plan-step-loop pseudocode's
// RevisionContext.fromFailure.
func RevisionContextFromFailure(plan *Plan, result PlanResult, prompt string, tools []ToolDescriptor) RevisionContext {
	var failedStep PlannedStep
	if result.FailedAtStep >= 0 && result.FailedAtStep < len(plan.Steps) {
		failedStep = plan.Steps[result.FailedAtStep]
	}
	var failedResult StepResult
	if result.FailedAtStep >= 0 && result.FailedAtStep < len(result.StepResults) {
		failedResult = result.StepResults[result.FailedAtStep]
	} else {
		failedResult = StepResult{StepIndex: result.FailedAtStep, Success: false}
	}
	return RevisionContext{
		FailedStep:     failedStep,
		FailedResult:   failedResult,
		Prompt:         prompt,
		AvailableTools: tools,
	}
}
