package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hensuflow/hensu/workflow"
)

// TestMySQLIntegration exercises MySQLStore against a real MySQL/MariaDB
// instance. Requires TEST_MYSQL_DSN, e.g.
// "user:password@tcp(localhost:3306)/test_db?parseTime=true".
//
// go test -v -run TestMySQLIntegration ./store
func TestMySQLIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("set TEST_MYSQL_DSN to run the MySQL integration test")
	}

	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	executionID := fmt.Sprintf("integration-test-%d", time.Now().UnixNano())

	snap := workflow.HensuSnapshot{
		ExecutionID:   executionID,
		WorkflowID:    "wf-integration",
		CurrentNodeID: "n1",
		Context:       map[string]any{"step": float64(1)},
		History:       []workflow.ExecutionStep{{NodeID: "start"}},
		CreatedAt:     time.Now(),
	}
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	defer func() { _ = s.DeleteSnapshot(ctx, testTenant, executionID) }()

	claimed, err := s.ClaimLease(ctx, testTenant, executionID, "node-a", time.Minute)
	if err != nil {
		t.Fatalf("ClaimLease: %v", err)
	}
	if claimed.ServerNodeID != "node-a" {
		t.Fatalf("ServerNodeID = %q, want node-a", claimed.ServerNodeID)
	}

	if _, err := s.ClaimLease(ctx, testTenant, executionID, "node-b", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("ClaimLease(node-b) = %v, want ErrLeaseHeld", err)
	}

	snap.CurrentNodeID = "n2"
	snap.Context["step"] = float64(2)
	if err := s.SaveSnapshot(ctx, testTenant, snap); err != nil {
		t.Fatalf("SaveSnapshot (checkpoint 2): %v", err)
	}

	if err := s.ReleaseLease(ctx, testTenant, executionID, "node-a"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}

	loaded, err := s.LoadSnapshot(ctx, testTenant, executionID)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.CurrentNodeID != "n2" || loaded.Context["step"] != float64(2) {
		t.Fatalf("final snapshot = %+v", loaded)
	}
}
