package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/hensuflow/hensu/workflow"
)

// MySQLStore is a MySQL/MariaDB-backed WorkflowRepository and
// WorkflowStateRepository, intended for multi-process deployments where
// several engine nodes share one execution backlog via the lease
// protocol. DSN format: user:pass@tcp(host:port)/dbname?parseTime=true.
// parseTime=true is required so *time.Time columns scan correctly.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection pool and runs migrations.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			tenant_id VARCHAR(255) NOT NULL,
			id VARCHAR(255) NOT NULL,
			version INT NOT NULL,
			definition LONGTEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (tenant_id, id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS workflow_executions (
			tenant_id VARCHAR(255) NOT NULL,
			execution_id VARCHAR(255) NOT NULL,
			workflow_id VARCHAR(255) NOT NULL,
			current_node_id VARCHAR(255) NOT NULL,
			context LONGTEXT NOT NULL,
			history LONGTEXT NOT NULL,
			plan_snapshot LONGTEXT NULL,
			checkpoint_reason VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			server_node_id VARCHAR(255) NOT NULL DEFAULT '',
			last_heartbeat_at DATETIME NULL,
			PRIMARY KEY (tenant_id, execution_id),
			INDEX idx_executions_workflow_id (tenant_id, workflow_id),
			INDEX idx_executions_paused (tenant_id, server_node_id, current_node_id(1))
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) SaveWorkflow(ctx context.Context, tenant string, wf *workflow.Workflow) error {
	body, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("store: marshal workflow: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (tenant_id, id, version, definition, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE version = VALUES(version), definition = VALUES(definition), updated_at = VALUES(updated_at)
	`, tenant, wf.ID, wf.Version, string(body), time.Now())
	if err != nil {
		return fmt.Errorf("store: save workflow: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadWorkflow(ctx context.Context, tenant, workflowID string) (*workflow.Workflow, error) {
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

func (s *MySQLStore) ListWorkflows(ctx context.Context, tenant string) ([]string, error) {
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

func (s *MySQLStore) DeleteWorkflow(ctx context.Context, tenant, workflowID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE tenant_id = ? AND id = ?`, tenant, workflowID); err != nil {
		return fmt.Errorf("store: delete workflow: %w", err)
	}
	return nil
}

func (s *MySQLStore) SaveSnapshot(ctx context.Context, tenant string, snap workflow.HensuSnapshot) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', NULL)
		ON DUPLICATE KEY UPDATE
			current_node_id = VALUES(current_node_id),
			context = VALUES(context),
			history = VALUES(history),
			plan_snapshot = VALUES(plan_snapshot),
			checkpoint_reason = VALUES(checkpoint_reason)
	`, tenant, snap.ExecutionID, snap.WorkflowID, snap.CurrentNodeID, string(contextJSON), string(historyJSON), planJSON, snap.CheckpointReason, createdAt)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadSnapshot(ctx context.Context, tenant, executionID string) (workflow.HensuSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?`, tenant, executionID)
	snap, err := scanSnapshot(executionID, row)
	if err == sql.ErrNoRows {
		return workflow.HensuSnapshot{}, ErrNotFound
	}
	return snap, err
}

func (s *MySQLStore) DeleteSnapshot(ctx context.Context, tenant, executionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_executions WHERE tenant_id = ? AND execution_id = ?`, tenant, executionID); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

func (s *MySQLStore) FindPaused(ctx context.Context, tenant string, limit int) ([]workflow.HensuSnapshot, error) {
	query := `
		SELECT execution_id, workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions
		WHERE tenant_id = ? AND server_node_id = '' AND current_node_id != ''
		ORDER BY created_at ASC`
	args := []any{tenant}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find paused: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *MySQLStore) FindByWorkflowID(ctx context.Context, tenant, workflowID string, limit int) ([]workflow.HensuSnapshot, error) {
	query := `
		SELECT execution_id, workflow_id, current_node_id, context, history, plan_snapshot, checkpoint_reason, created_at, server_node_id, last_heartbeat_at
		FROM workflow_executions
		WHERE tenant_id = ? AND workflow_id = ?
		ORDER BY created_at DESC`
	args := []any{tenant, workflowID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find by workflow id: %w", err)
	}
	return scanSnapshots(rows)
}

func (s *MySQLStore) ClaimLease(ctx context.Context, tenant, executionID, serverNodeID string, leaseDuration time.Duration) (workflow.HensuSnapshot, error) {
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

func (s *MySQLStore) Heartbeat(ctx context.Context, tenant, executionID, serverNodeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions SET last_heartbeat_at = ?
		WHERE tenant_id = ? AND execution_id = ? AND server_node_id = ?
	`, time.Now(), tenant, executionID, serverNodeID)
	if err != nil {
		return fmt.Errorf("store: heartbeat: %w", err)
	}
	return s.rowsAffectedOrLeaseHeld(ctx, res, tenant, executionID)
}

func (s *MySQLStore) ReleaseLease(ctx context.Context, tenant, executionID, serverNodeID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_executions SET server_node_id = '', last_heartbeat_at = NULL
		WHERE tenant_id = ? AND execution_id = ? AND server_node_id = ?
	`, tenant, executionID, serverNodeID)
	if err != nil {
		return fmt.Errorf("store: release lease: %w", err)
	}
	return s.rowsAffectedOrLeaseHeld(ctx, res, tenant, executionID)
}

func (s *MySQLStore) rowsAffectedOrLeaseHeld(ctx context.Context, res sql.Result, tenant, executionID string) error {
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
