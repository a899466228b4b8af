// Package store provides persistence for workflow definitions and
// in-flight execution state, including the lease protocol a fleet of
// engine processes uses to claim and resume paused executions without
// two processes racing the same execution.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hensuflow/hensu/workflow"
)

// ErrNotFound is returned when a requested workflow id or execution id
// does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrLeaseHeld is returned by ClaimLease when the execution's lease has
// not yet expired and is held by a different server node.
var ErrLeaseHeld = errors.New("store: lease held by another node")

// WorkflowRepository persists workflow definitions, keyed by (tenant, id).
// Tenants are fully isolated: the same workflow id may exist under two
// different tenants as unrelated definitions. A workflow's Version field
// distinguishes definition revisions within a tenant; callers that need
// historical versions should encode that into the id.
type WorkflowRepository interface {
	SaveWorkflow(ctx context.Context, tenant string, wf *workflow.Workflow) error
	LoadWorkflow(ctx context.Context, tenant, workflowID string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context, tenant string) ([]string, error)
	DeleteWorkflow(ctx context.Context, tenant, workflowID string) error
}

// WorkflowStateRepository persists HensuSnapshot for execution resumption,
// keyed by (tenant, executionID), and implements the lease protocol: an
// execution is paused when its ServerNodeID is empty and CurrentNodeID is
// non-empty (findPaused); a server node claims a paused execution by
// writing its own id and a fresh heartbeat, and must keep heartbeating or
// another node's ClaimLease call will steal it once LastHeartbeatAt is
// older than leaseDuration. Lease claims never cross tenants.
type WorkflowStateRepository interface {
	SaveSnapshot(ctx context.Context, tenant string, snap workflow.HensuSnapshot) error
	LoadSnapshot(ctx context.Context, tenant, executionID string) (workflow.HensuSnapshot, error)
	DeleteSnapshot(ctx context.Context, tenant, executionID string) error

	// FindPaused returns up to limit snapshots for tenant with no lease
	// holder and an unfinished execution (CurrentNodeID != ""), oldest
	// first.
	FindPaused(ctx context.Context, tenant string, limit int) ([]workflow.HensuSnapshot, error)

	// FindByWorkflowID returns up to limit snapshots for (tenant,
	// workflowID), most recently checkpointed first.
	FindByWorkflowID(ctx context.Context, tenant, workflowID string, limit int) ([]workflow.HensuSnapshot, error)

	// ClaimLease atomically assigns serverNodeID as the lease holder for
	// (tenant, executionID), succeeding only if the execution is unleased,
	// already leased to serverNodeID, or its existing lease's
	// LastHeartbeatAt is older than leaseDuration.
	// Returns ErrLeaseHeld if a live lease blocks the claim and
	// ErrNotFound if (tenant, executionID) has no snapshot.
	ClaimLease(ctx context.Context, tenant, executionID, serverNodeID string, leaseDuration time.Duration) (workflow.HensuSnapshot, error)

	// Heartbeat refreshes LastHeartbeatAt for a lease serverNodeID still
	// holds. Returns ErrLeaseHeld if serverNodeID no longer holds it.
	Heartbeat(ctx context.Context, tenant, executionID, serverNodeID string) error

	// ReleaseLease clears the lease fields, e.g. after an execution
	// reaches a terminal state or pauses again cleanly.
	ReleaseLease(ctx context.Context, tenant, executionID, serverNodeID string) error
}
