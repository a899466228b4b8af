// Package emit provides lifecycle event emission and observability for
// workflow execution.
package emit

import "time"

// Kind identifies the lifecycle moment an Event describes.
type Kind string

// Lifecycle event kinds fired by the workflow loop, the planning pipeline,
// and the concurrency primitives.
const (
	KindNodeStart       Kind = "node_start"
	KindNodeComplete    Kind = "node_complete"
	KindAgentStart      Kind = "agent_start"
	KindAgentComplete   Kind = "agent_complete"
	KindCheckpoint      Kind = "checkpoint"
	KindBacktrack       Kind = "backtrack"
	KindPlanCreated     Kind = "plan_created"
	KindPlanRevised     Kind = "plan_revised"
	KindPlanCompleted   Kind = "plan_completed"
	KindStepStarted     Kind = "step_started"
	KindStepCompleted   Kind = "step_completed"
	KindReviewRequested Kind = "review_requested"
	KindReviewDecided   Kind = "review_decided"
)

// Event is a single observability event emitted during execution.
//
// Events carry enough identifying information for a Listener to correlate
// them across a run without consulting the workflow engine directly.
type Event struct {
	// Kind identifies what happened.
	Kind Kind

	// ExecutionID identifies the HensuState this event belongs to.
	ExecutionID string

	// WorkflowID identifies the workflow definition being executed.
	WorkflowID string

	// NodeID identifies the node involved, empty for run-level events.
	NodeID string

	// Msg is a short human-readable description.
	Msg string

	// Meta carries event-specific structured data, e.g. "duration_ms",
	// "rubric_score", "plan_id", "error".
	Meta map[string]any

	// Timestamp records when the event was produced.
	Timestamp time.Time
}
