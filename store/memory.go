package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hensuflow/hensu/workflow"
)

// MemoryStore is an in-process, mutex-guarded WorkflowRepository and
// WorkflowStateRepository. Intended for tests and single-process
// deployments; state does not survive process restart. Tenants are
// isolated by composing the tenant into every map key; a workflow or
// execution id may exist independently under two different tenants.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	snapshots map[string]workflow.HensuSnapshot
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*workflow.Workflow),
		snapshots: make(map[string]workflow.HensuSnapshot),
	}
}

const tenantKeySep = "\x00"

func tenantKey(tenant, id string) string {
	return tenant + tenantKeySep + id
}

func splitTenantKey(key string) (tenant, id string) {
	i := strings.Index(key, tenantKeySep)
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+len(tenantKeySep):]
}

func (m *MemoryStore) SaveWorkflow(_ context.Context, tenant string, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *wf
	m.workflows[tenantKey(tenant, wf.ID)] = &cp
	return nil
}

func (m *MemoryStore) LoadWorkflow(_ context.Context, tenant, workflowID string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[tenantKey(tenant, workflowID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wf
	return &cp, nil
}

func (m *MemoryStore) ListWorkflows(_ context.Context, tenant string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	prefix := tenant + tenantKeySep
	for key := range m.workflows {
		if strings.HasPrefix(key, prefix) {
			_, id := splitTenantKey(key)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) DeleteWorkflow(_ context.Context, tenant, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, tenantKey(tenant, workflowID))
	return nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, tenant string, snap workflow.HensuSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantKey(tenant, snap.ExecutionID)
	existing, ok := m.snapshots[key]
	if ok {
		// SaveSnapshot never touches lease fields; only ClaimLease,
		// Heartbeat and ReleaseLease do.
		snap.ServerNodeID = existing.ServerNodeID
		snap.LastHeartbeatAt = existing.LastHeartbeatAt
	}
	m.snapshots[key] = snap
	return nil
}

func (m *MemoryStore) LoadSnapshot(_ context.Context, tenant, executionID string) (workflow.HensuSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[tenantKey(tenant, executionID)]
	if !ok {
		return workflow.HensuSnapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryStore) DeleteSnapshot(_ context.Context, tenant, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, tenantKey(tenant, executionID))
	return nil
}

func (m *MemoryStore) FindPaused(_ context.Context, tenant string, limit int) ([]workflow.HensuSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := tenant + tenantKeySep
	var out []workflow.HensuSnapshot
	for key, snap := range m.snapshots {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if snap.ServerNodeID == "" && snap.CurrentNodeID != "" {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return capSnapshots(out, limit), nil
}

func (m *MemoryStore) FindByWorkflowID(_ context.Context, tenant, workflowID string, limit int) ([]workflow.HensuSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := tenant + tenantKeySep
	var out []workflow.HensuSnapshot
	for key, snap := range m.snapshots {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if snap.WorkflowID == workflowID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return capSnapshots(out, limit), nil
}

func (m *MemoryStore) ClaimLease(_ context.Context, tenant, executionID, serverNodeID string, leaseDuration time.Duration) (workflow.HensuSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantKey(tenant, executionID)
	snap, ok := m.snapshots[key]
	if !ok {
		return workflow.HensuSnapshot{}, ErrNotFound
	}
	if snap.ServerNodeID != "" && snap.ServerNodeID != serverNodeID && time.Since(snap.LastHeartbeatAt) < leaseDuration {
		return workflow.HensuSnapshot{}, ErrLeaseHeld
	}
	snap.ServerNodeID = serverNodeID
	snap.LastHeartbeatAt = nowFunc()
	m.snapshots[key] = snap
	return snap, nil
}

func (m *MemoryStore) Heartbeat(_ context.Context, tenant, executionID, serverNodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantKey(tenant, executionID)
	snap, ok := m.snapshots[key]
	if !ok {
		return ErrNotFound
	}
	if snap.ServerNodeID != serverNodeID {
		return ErrLeaseHeld
	}
	snap.LastHeartbeatAt = nowFunc()
	m.snapshots[key] = snap
	return nil
}

func (m *MemoryStore) ReleaseLease(_ context.Context, tenant, executionID, serverNodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantKey(tenant, executionID)
	snap, ok := m.snapshots[key]
	if !ok {
		return ErrNotFound
	}
	if snap.ServerNodeID != serverNodeID {
		return ErrLeaseHeld
	}
	snap.ServerNodeID = ""
	snap.LastHeartbeatAt = time.Time{}
	m.snapshots[key] = snap
	return nil
}

func capSnapshots(snaps []workflow.HensuSnapshot, limit int) []workflow.HensuSnapshot {
	if limit > 0 && len(snaps) > limit {
		return snaps[:limit]
	}
	return snaps
}

// nowFunc is a seam for lease tests that need to simulate heartbeat
// staleness deterministically.
var nowFunc = time.Now
