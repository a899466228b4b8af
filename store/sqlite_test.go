package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hensuflow/hensu/workflow"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_WorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	wf := &workflow.Workflow{ID: "wf-1", Version: 2, StartNodeID: "start"}
	if err := s.SaveWorkflow(ctx, testTenant, wf); err != nil {
		t.Fatalf("SaveWorkflow: %v", err)
	}
	loaded, err := s.LoadWorkflow(ctx, testTenant, "wf-1")
	if err != nil {
		t.Fatalf("LoadWorkflow: %v", err)
	}
	if loaded.Version != 2 || loaded.StartNodeID != "start" {
		t.Errorf("loaded = %+v", loaded)
	}

	wf.Version = 3
	if err := s.SaveWorkflow(ctx, testTenant, wf); err != nil {
		t.Fatalf("SaveWorkflow (update): %v", err)
	}
	loaded, _ = s.LoadWorkflow(ctx, testTenant, "wf-1")
	if loaded.Version != 3 {
		t.Errorf("Version after update = %d, want 3", loaded.Version)
	}
}

func TestSQLiteStore_TenantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	if err := s.SaveWorkflow(ctx, "tenant-a", &workflow.Workflow{ID: "wf-1", Version: 1, StartNodeID: "a-start"}); err != nil {
		t.Fatalf("SaveWorkflow(tenant-a): %v", err)
	}
	if err := s.SaveWorkflow(ctx, "tenant-b", &workflow.Workflow{ID: "wf-1", Version: 7, StartNodeID: "b-start"}); err != nil {
		t.Fatalf("SaveWorkflow(tenant-b): %v", err)
	}

	a, err := s.LoadWorkflow(ctx, "tenant-a", "wf-1")
	if err != nil || a.StartNodeID != "a-start" || a.Version != 1 {
		t.Fatalf("LoadWorkflow(tenant-a) = %+v, %v", a, err)
	}
	b, err := s.LoadWorkflow(ctx, "tenant-b", "wf-1")
	if err != nil || b.StartNodeID != "b-start" || b.Version != 7 {
		t.Fatalf("LoadWorkflow(tenant-b) = %+v, %v", b, err)
	}
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	snap := workflow.HensuSnapshot{
		ExecutionID:   "exec-1",
		WorkflowID:    "wf-1",
		CurrentNodeID: "n1",
		Context:       map[string]any{"k": "v"},
		History:       []workflow.ExecutionStep{{NodeID: "n0"}},
		CreatedAt:     time.Now().Truncate(time.Second),
	}
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := s.LoadSnapshot(ctx, testTenant, "exec-1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.CurrentNodeID != "n1" || loaded.Context["k"] != "v" || len(loaded.History) != 1 {
		t.Errorf("loaded = %+v", loaded)
	}

	snap.CurrentNodeID = "n2"
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot (checkpoint update): %v", err)
	}
	loaded, _ = s.LoadSnapshot(ctx, testTenant, "exec-1")
	if loaded.CurrentNodeID != "n2" {
		t.Errorf("CurrentNodeID after checkpoint = %q, want n2", loaded.CurrentNodeID)
	}
}

func TestSQLiteStore_FindPaused(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	snaps := []workflow.HensuSnapshot{
		{ExecutionID: "exec-running", WorkflowID: "wf-1", CurrentNodeID: "n1", CreatedAt: time.Now()},
		{ExecutionID: "exec-done", WorkflowID: "wf-1", CurrentNodeID: "", CreatedAt: time.Now()},
	}
	for _, snap := range snaps {
		if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if _, err := s.ClaimLease(ctx, testTenant, "exec-running", "node-a", time.Minute); err != nil {
		t.Fatalf("ClaimLease: %v", err)
	}

	if err := s.SaveSnapshot(ctx, testTenant, workflow.HensuSnapshot{ExecutionID: "exec-paused", WorkflowID: "wf-1", CurrentNodeID: "n2", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	found, err := s.FindPaused(ctx, testTenant, 10)
	if err != nil {
		t.Fatalf("FindPaused: %v", err)
	}
	if len(found) != 1 || found[0].ExecutionID != "exec-paused" {
		t.Fatalf("FindPaused = %+v, want only exec-paused", found)
	}
}

func TestSQLiteStore_ClaimLease(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	snap := workflow.HensuSnapshot{ExecutionID: "exec-1", WorkflowID: "wf-1", CurrentNodeID: "n1", CreatedAt: time.Now()}
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	if _, err := s.ClaimLease(ctx, testTenant, "exec-1", "node-a", time.Minute); err != nil {
		t.Fatalf("ClaimLease(node-a): %v", err)
	}
	if _, err := s.ClaimLease(ctx, testTenant, "exec-1", "node-b", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Errorf("ClaimLease(node-b) = %v, want ErrLeaseHeld", err)
	}
	if err := s.ReleaseLease(ctx, testTenant, "exec-1", "node-a"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}
	if _, err := s.ClaimLease(ctx, testTenant, "exec-1", "node-b", time.Minute); err != nil {
		t.Fatalf("ClaimLease(node-b) after release: %v", err)
	}
}

func TestSQLiteStore_ClaimLease_StealsExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	snap := workflow.HensuSnapshot{ExecutionID: "exec-1", WorkflowID: "wf-1", CurrentNodeID: "n1", CreatedAt: time.Now()}
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if _, err := s.ClaimLease(ctx, testTenant, "exec-1", "node-a", time.Millisecond); err != nil {
		t.Fatalf("ClaimLease(node-a): %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	stolen, err := s.ClaimLease(ctx, testTenant, "exec-1", "node-b", time.Millisecond)
	if err != nil {
		t.Fatalf("ClaimLease should steal an expired lease: %v", err)
	}
	if stolen.ServerNodeID != "node-b" {
		t.Errorf("ServerNodeID after steal = %q, want node-b", stolen.ServerNodeID)
	}
}

func TestSQLiteStore_ClaimLease_CrossTenantNeverCollides(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		snap := workflow.HensuSnapshot{ExecutionID: "exec-1", WorkflowID: "wf-1", CurrentNodeID: "n1", CreatedAt: time.Now()}
		if err := s.SaveSnapshot(ctx, tenant, snap); err != nil {
			t.Fatalf("SaveSnapshot(%s): %v", tenant, err)
		}
	}
	if _, err := s.ClaimLease(ctx, "tenant-a", "exec-1", "node-a", time.Minute); err != nil {
		t.Fatalf("ClaimLease(tenant-a): %v", err)
	}
	if _, err := s.ClaimLease(ctx, "tenant-b", "exec-1", "node-b", time.Minute); err != nil {
		t.Fatalf("ClaimLease(tenant-b) should not see tenant-a's lease on the same execution id: %v", err)
	}
}
