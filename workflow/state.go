package workflow

import "time"

// Status is the outcome of a single node execution.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailure   Status = "FAILURE"
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
)

// NodeResult is the outcome of dispatching one Node through its Executor.
type NodeResult struct {
	Status   Status
	Output   any
	Metadata map[string]any
}

// ExecutionStep is an immutable history record: one node's result, with
// the state snapshot taken immediately after it was appended.
type ExecutionStep struct {
	NodeID        string
	StateSnapshot HensuSnapshot
	NodeResult    NodeResult
	Timestamp     time.Time
}

// BacktrackKind distinguishes a human-initiated backtrack from an
// automatic rubric-driven one.
type BacktrackKind string

const (
	BacktrackManual    BacktrackKind = "MANUAL"
	BacktrackAutomatic BacktrackKind = "AUTOMATIC"
)

// BacktrackEvent records one redirect of currentNodeId away from its
// natural transition target.
type BacktrackEvent struct {
	Kind        BacktrackKind
	From        string
	To          string
	Reason      string
	RubricScore float64
	Timestamp   time.Time
}

// RubricEvaluation is the last rubric score recorded against a node's
// output.
type RubricEvaluation struct {
	RubricID string
	Score    float64
	Passed   bool
}

// HensuState is the mutable execution state threaded through the
// Workflow Loop for a single execution. It is exclusively owned by that
// loop; the Context field is the sole exception, since Parallel branches
// and Fork targets write to it concurrently.
type HensuState struct {
	ExecutionID   string
	WorkflowID    string
	CurrentNodeID string // empty means terminal
	Context       *Context
	History       []ExecutionStep

	RubricEvaluation *RubricEvaluation
	LoopBreakTarget  string
	BacktrackLog     []BacktrackEvent

	// ActivePlan holds the in-flight Plan for a planning-enabled Standard
	// node currently executing; nil outside the planning pipeline.
	ActivePlan *Plan
}

// NewHensuState allocates state at workflow.StartNodeID with initialContext.
func NewHensuState(executionID, workflowID, startNodeID string, initialContext map[string]any) *HensuState {
	return &HensuState{
		ExecutionID:   executionID,
		WorkflowID:    workflowID,
		CurrentNodeID: startNodeID,
		Context:       NewContext(initialContext),
	}
}

// IsTerminal reports whether the execution has reached a node-less state.
func (s *HensuState) IsTerminal() bool {
	return s.CurrentNodeID == ""
}

// AppendStep appends an ExecutionStep to History, snapshotting current
// state. Satisfies the testable property that every appended step's
// NodeID is a key in the workflow's node map — callers must pass a valid
// nodeID, which the Workflow Loop guarantees since it is always the node
// just dispatched.
func (s *HensuState) AppendStep(nodeID string, result NodeResult, reason string) {
	step := ExecutionStep{
		NodeID:        nodeID,
		StateSnapshot: s.Snapshot(reason),
		NodeResult:    result,
		Timestamp:     time.Now(),
	}
	s.History = append(s.History, step)
}

// Snapshot extracts a persistable, consistent projection of state. The
// HensuSnapshot invariant CurrentNodeID == "" iff the execution is
// terminal holds by construction here.
func (s *HensuState) Snapshot(checkpointReason string) HensuSnapshot {
	var planSnap *PlanSnapshot
	if s.ActivePlan != nil {
		ps := s.ActivePlan.Snapshot()
		planSnap = &ps
	}
	return HensuSnapshot{
		WorkflowID:       s.WorkflowID,
		ExecutionID:      s.ExecutionID,
		CurrentNodeID:    s.CurrentNodeID,
		Context:          s.Context.Snapshot(),
		History:          append([]ExecutionStep(nil), s.History...),
		PlanSnapshot:     planSnap,
		CreatedAt:        time.Now(),
		CheckpointReason: checkpointReason,
	}
}
