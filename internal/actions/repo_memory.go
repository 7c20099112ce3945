package actions

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[string]Action
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[string]Action)}
}

func (r *MemoryRepo) Insert(ctx context.Context, a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[a.ID] = a
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[a.ID]; !ok {
		return ErrNotFound
	}
	r.rows[a.ID] = a
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, workspaceID, id string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.rows[id]
	if !ok || a.WorkspaceID != workspaceID {
		return Action{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) FindPending(ctx context.Context, workspaceID, personID string, t ActionType) (Action, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.rows {
		if a.WorkspaceID == workspaceID && a.Person.ID == personID && a.Type == t && a.Status == StatusPending {
			return a, true, nil
		}
	}
	return Action{}, false, nil
}

func (r *MemoryRepo) List(ctx context.Context, workspaceID string, f Filter) ([]Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Action
	for _, a := range r.rows {
		if a.WorkspaceID != workspaceID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.PersonID != "" && a.Person.ID != f.PersonID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *MemoryRepo) ListPendingCreatedBefore(ctx context.Context, workspaceID string, t ActionType, cutoff time.Time) ([]Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Action
	for _, a := range r.rows {
		if a.WorkspaceID == workspaceID && a.Type == t && a.Status == StatusPending && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}
