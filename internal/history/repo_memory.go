package history

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.

type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, workspaceID string, q Query) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	// Newest first.
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.WorkspaceID != workspaceID {
			continue
		}
		if q.PersonID != "" && e.PersonID != q.PersonID {
			continue
		}
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if !q.From.IsZero() && e.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.CreatedAt.Before(q.To) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Entries returns everything appended so far, in insertion order.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
