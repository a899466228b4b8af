package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hensuflow/hensu/workflow"
)

// SQLiteStore is a single-file SQLite-backed WorkflowRepository and
// WorkflowStateRepository. Intended for single-node deployments and
// local development; uses WAL mode so readers never block on writers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// runs its migrations. path may be ":memory:" for a process-local store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			tenant_id TEXT NOT NULL,
			id TEXT NOT NULL,
			version INTEGER NOT NULL,
			definition TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (tenant_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS workflow_executions (
			tenant_id TEXT NOT NULL,
			execution_id TEXT NOT NULL,
			workflow_id TEXT NOT NULL,
			current_node_id TEXT NOT NULL,
			context TEXT NOT NULL,
			history TEXT NOT NULL,
			plan_snapshot TEXT,
			checkpoint_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			server_node_id TEXT NOT NULL DEFAULT '',
			last_heartbeat_at TIMESTAMP,
			PRIMARY KEY (tenant_id, execution_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON workflow_executions(tenant_id, workflow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_paused ON workflow_executions(tenant_id, server_node_id, current_node_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveWorkflow(ctx context.Context, tenant string, wf *workflow.Workflow) error {
	body, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("store: marshal workflow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (tenant_id, id, version, definition, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET version = excluded.version, definition = excluded.definition, updated_at = excluded.updated_at
	`, tenant, wf.ID, wf.Version, string(body), time.Now())
	if err != nil {
		return fmt.Errorf("store: save workflow: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadWorkflow(ctx context.Context, tenant, workflowID string) (*workflow.Workflow, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM workflows WHERE tenant_id = ? AND id = ?`, tenant, workflowID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load workflow: %w", err)
	}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(body), &wf); err != nil {
		return nil, fmt.Errorf("store: unmarshal workflow: %w", err)
	}
	return &wf, nil
}

func (s *SQLiteStore) ListWorkflows(ctx context.Context, tenant string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workflows WHERE tenant_id = ? ORDER BY id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("store: list workflows: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, tenant, workflowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE tenant_id = ? AND id = ?`, tenant, workflowID)
	if err != nil {
		return fmt.Errorf("store: delete workflow: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, tenant string, snap workflow.HensuSnapshot) error {
	contextJSON, err := json.Marshal(snap.Context)
	if err != nil {
		return fmt.Errorf("store: marshal context: %w", err)
	}
	historyJSON, err := json.Marshal(snap.History)
	if err != nil {
		return fmt.Errorf("store: marshal history: %w", err)
	}
	var planJSON sql.NullString
	if snap.PlanSnapshot != nil {
		b, err := json.Marshal(snap.PlanSnapshot)
		if err != nil {
			return fmt.Errorf("store: marshal plan snapshot: %w", err)
		}
		planJSON = sql.NullString{String: string(b), Valid: true}
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_executions
			(tenant_id, execution_id, workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT server_node_id FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?), ''),
			(SELECT last_heartbeat_at FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?))
		ON CONFLICT(tenant_id, execution_id) DO UPDATE SET
			current_node_id = excluded.current_node_id,
			context = excluded.context,
			history = excluded.history,
			plan_snapshot = excluded.plan_snapshot,
			checkpoint_reason = excluded.checkpoint_reason
	`, tenant, snap.ExecutionID, snap.WorkflowID, snap.CurrentNodeID, string(contextJSON), string(historyJSON),
		planJSON, snap.CheckpointReason, createdAt, tenant, snap.ExecutionID, tenant, snap.ExecutionID)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, tenant, executionID string) (workflow.HensuSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?`, tenant, executionID)
	snap, err := scanSnapshot(executionID, row)
	if err == sql.ErrNoRows {
		return workflow.HensuSnapshot{}, ErrNotFound
	}
	return snap, err
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, tenant, executionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?`, tenant, executionID)
	if err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindPaused(ctx context.Context, tenant string, limit int) ([]workflow.HensuSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions
		WHERE tenant_id = ? AND server_node_id = '' AND current_node_id != ''
		ORDER BY created_at ASC
		LIMIT ?`, tenant, nullIfUnbounded(limit))
	if err != nil {
		return nil, fmt.Errorf("store: find paused: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *SQLiteStore) FindByWorkflowID(ctx context.Context, tenant, workflowID string, limit int) ([]workflow.HensuSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions
		WHERE tenant_id = ? AND workflow_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, tenant, workflowID, nullIfUnbounded(limit))
	if err != nil {
		return nil, fmt.Errorf("store: find by workflow id: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *SQLiteStore) ClaimLease(ctx context.Context, tenant, executionID, serverNodeID string, leaseDuration time.Duration) (workflow.HensuSnapshot, error) {
	now := time.Now()
	staleBefore := now.Add(-leaseDuration)
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET server_node_id = ?, last_heartbeat_at = ?
		WHERE tenant_id = ? AND execution_id = ?
		  AND (server_node_id = '' OR server_node_id = ? OR last_heartbeat_at < ?)
	`, serverNodeID, now, tenant, executionID, serverNodeID, staleBefore)
	if err != nil {
		return workflow.HensuSnapshot{}, fmt.Errorf("store: claim lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return workflow.HensuSnapshot{}, err
	}
	if n == 0 {
		if _, loadErr := s.LoadSnapshot(ctx, tenant, executionID); loadErr == ErrNotFound {
			return workflow.HensuSnapshot{}, ErrNotFound
		}
		return workflow.HensuSnapshot{}, ErrLeaseHeld
	}
	return s.LoadSnapshot(ctx, tenant, executionID)
}

func (s *SQLiteStore) Heartbeat(ctx context.Context, tenant, executionID, serverNodeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions SET last_heartbeat_at = ?
		WHERE tenant_id = ? AND execution_id = ? AND server_node_id = ?
	`, time.Now(), tenant, executionID, serverNodeID)
	if err != nil {
		return fmt.Errorf("store: heartbeat: %w", err)
	}
	return rowsAffectedOrLeaseHeld(res, ctx, s, tenant, executionID)
}

func (s *SQLiteStore) ReleaseLease(ctx context.Context, tenant, executionID, serverNodeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions SET server_node_id = '', last_heartbeat_at = NULL
		WHERE tenant_id = ? AND execution_id = ? AND server_node_id = ?
	`, tenant, executionID, serverNodeID)
	if err != nil {
		return fmt.Errorf("store: release lease: %w", err)
	}
	return rowsAffectedOrLeaseHeld(res, ctx, s, tenant, executionID)
}

func rowsAffectedOrLeaseHeld(res sql.Result, ctx context.Context, s *SQLiteStore, tenant, executionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.LoadSnapshot(ctx, tenant, executionID); err == ErrNotFound {
		return ErrNotFound
	}
	return ErrLeaseHeld
}

func nullIfUnbounded(limit int) int64 {
	if limit <= 0 {
		return -1 // SQLite treats a negative LIMIT as unbounded.
	}
	return int64(limit)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(executionID string, row rowScanner) (workflow.HensuSnapshot, error) {
	var (
		workflowID, currentNodeID, contextJSON, historyJSON, checkpointReason, serverNodeID string
		planJSON                                                                            sql.NullString
		createdAt                                                                           time.Time
		lastHeartbeat                                                                       sql.NullTime
	)
	if err := row.Scan(&workflowID, &currentNodeID, &contextJSON, &historyJSON, &planJSON, &checkpointReason, &createdAt, &serverNodeID, &lastHeartbeat); err != nil {
		return workflow.HensuSnapshot{}, err
	}
	return rowToSnapshot(executionID, workflowID, currentNodeID, contextJSON, historyJSON, planJSON, checkpointReason, createdAt, serverNodeID, lastHeartbeat)
}

func scanSnapshots(rows *sql.Rows) ([]workflow.HensuSnapshot, error) {
	defer rows.Close()
	var out []workflow.HensuSnapshot
	for rows.Next() {
		var (
			executionID, workflowID, currentNodeID, contextJSON, historyJSON, checkpointReason, serverNodeID string
			planJSON                                                                                         sql.NullString
			createdAt                                                                                        time.Time
			lastHeartbeat                                                                                    sql.NullTime
		)
		if err := rows.Scan(&executionID, &workflowID, &currentNodeID, &contextJSON, &historyJSON, &planJSON, &checkpointReason, &createdAt, &serverNodeID, &lastHeartbeat); err != nil {
			return nil, err
		}
		snap, err := rowToSnapshot(executionID, workflowID, currentNodeID, contextJSON, historyJSON, planJSON, checkpointReason, createdAt, serverNodeID, lastHeartbeat)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func rowToSnapshot(executionID, workflowID, currentNodeID, contextJSON, historyJSON string, planJSON sql.NullString, checkpointReason string, createdAt time.Time, serverNodeID string, lastHeartbeat sql.NullTime) (workflow.HensuSnapshot, error) {
	snap := workflow.HensuSnapshot{
		ExecutionID:      executionID,
		WorkflowID:       workflowID,
		CurrentNodeID:    currentNodeID,
		CheckpointReason: checkpointReason,
		CreatedAt:        createdAt,
		ServerNodeID:     serverNodeID,
	}
	if lastHeartbeat.Valid {
		snap.LastHeartbeatAt = lastHeartbeat.Time
	}
	if err := json.Unmarshal([]byte(contextJSON), &snap.Context); err != nil {
		return workflow.HensuSnapshot{}, fmt.Errorf("store: unmarshal context: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &snap.History); err != nil {
		return workflow.HensuSnapshot{}, fmt.Errorf("store: unmarshal history: %w", err)
	}
	if planJSON.Valid {
		var plan workflow.PlanSnapshot
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return workflow.HensuSnapshot{}, fmt.Errorf("store: unmarshal plan snapshot: %w", err)
		}
		snap.PlanSnapshot = &plan
	}
	return snap, nil
}
