package contacts

import (
	"context"
	"testing"

	"github.com/lshmam/neucler-inbox-sub002/internal/history"
)

func TestLookupByPhoneReturningCustomer(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(Contact{ID: "p-1", WorkspaceID: "w", Name: "Dana Reeves", Phone: "+15551230001", Tags: []string{"vip"}})

	hist := history.NewMemoryRepo()
	if err := hist.Append(context.Background(), history.Entry{
		ID: "e-1", WorkspaceID: "w", Kind: history.EntryKindCall,
		PersonID: "p-1", Summary: "booked for thursday",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewService(repo, hist)
	caller, err := svc.LookupByPhone(context.Background(), "w", "+15551230001")
	if err != nil {
		t.Fatalf("LookupByPhone: %v", err)
	}
	if caller.Name != "Dana Reeves" || !caller.ReturningCustomer {
		t.Fatalf("caller = %+v", caller)
	}
	if caller.LastInteraction != "booked for thursday" {
		t.Errorf("last interaction = %q", caller.LastInteraction)
	}
}

func TestLookupByPhoneFirstTimeCaller(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(Contact{ID: "p-2", WorkspaceID: "w", Name: "Sam Ortiz", Phone: "+15551230002"})

	svc := NewService(repo, history.NewMemoryRepo())
	caller, err := svc.LookupByPhone(context.Background(), "w", "+15551230002")
	if err != nil {
		t.Fatalf("LookupByPhone: %v", err)
	}
	if caller.ReturningCustomer || caller.LastInteraction != "" {
		t.Fatalf("caller = %+v", caller)
	}
}

func TestResolveByPhone(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Add(Contact{ID: "p-1", WorkspaceID: "w", Name: "Dana", Phone: "+15551230001"})
	svc := NewService(repo, nil)

	c, ok, err := svc.ResolveByPhone(context.Background(), "w", "+15551230001")
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if c.ID != "p-1" {
		t.Fatalf("contact = %+v", c)
	}

	_, ok, err = svc.ResolveByPhone(context.Background(), "w", "+19990000000")
	if err != nil {
		t.Fatalf("unknown number should not error: %v", err)
	}
	if ok {
		t.Fatal("unknown number resolved")
	}

	// Workspace isolation.
	_, ok, _ = svc.ResolveByPhone(context.Background(), "other", "+15551230001")
	if ok {
		t.Fatal("contact leaked across workspaces")
	}
}
