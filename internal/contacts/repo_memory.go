package contacts

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory contact book useful for tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows []Contact
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Add(c Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, c)
}

func (r *MemoryRepo) FindByPhone(ctx context.Context, workspaceID, phone string) (Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rows {
		if c.WorkspaceID == workspaceID && c.Phone == phone {
			return c, nil
		}
	}
	return Contact{}, ErrNotFound
}
