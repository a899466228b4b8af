package workflow

import (
	"time"

	"github.com/google/uuid"
)

// HensuSnapshot is the persistable projection of HensuState. Invariant:
// CurrentNodeID == "" iff the execution it describes has completed.
type HensuSnapshot struct {
	WorkflowID       string
	ExecutionID      string
	CurrentNodeID    string
	Context          map[string]any
	History          []ExecutionStep
	PlanSnapshot     *PlanSnapshot
	CreatedAt        time.Time
	CheckpointReason string

	// Lease fields, populated by WorkflowStateRepository, not by the
	// kernel itself.
	ServerNodeID    string
	LastHeartbeatAt time.Time
}

// ToState reconstructs a HensuState from a snapshot, for execution
// resumption. Satisfies the round-trip property:
// snapshot(state).toState() preserves (executionId, workflowId,
// currentNodeId, context, history).
func (s HensuSnapshot) ToState() *HensuState {
	st := &HensuState{
		ExecutionID:   s.ExecutionID,
		WorkflowID:    s.WorkflowID,
		CurrentNodeID: s.CurrentNodeID,
		Context:       NewContext(s.Context),
		History:       append([]ExecutionStep(nil), s.History...),
	}
	if s.PlanSnapshot != nil {
		// PlanSnapshot carries no plan id or constraints, so a resumed plan
		// gets a fresh id and a zeroed replan budget; step statuses (and
		// therefore currentStepIndex) are preserved from the snapshot.
		st.ActivePlan = &Plan{
			ID:     uuid.NewString(),
			NodeID: s.PlanSnapshot.NodeID,
			Source: PlanStatic,
			Steps:  append([]PlannedStep(nil), s.PlanSnapshot.Steps...),
		}
	}
	return st
}
