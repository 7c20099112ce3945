package history

import (
	"context"
	"testing"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/routing"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
)

func TestService_AppendRequiresWorkspaceAndKind(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Entry{Kind: EntryKindCall}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Entry{WorkspaceID: "w"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_RecordDisposition(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.RecordDisposition(context.Background(), session.DispositionRecord{
		SessionID:    "CA100",
		OperatorID:   "op-1",
		WorkspaceID:  "w",
		Direction:    telephony.DirectionOutbound,
		Counterparty: "+15551230001",
		Outcome:      session.DispositionBooked,
		Reason:       "booked for thursday",
		StartedAt:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		EndedAt:      time.Date(2026, 3, 10, 9, 7, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Entries()
	if len(evs) != 1 {
		t.Fatalf("expected 1 entry")
	}
	e := evs[0]
	if e.Kind != EntryKindCall {
		t.Fatalf("expected call entry")
	}
	if e.Outcome != string(session.DispositionBooked) {
		t.Fatalf("expected outcome captured, got %q", e.Outcome)
	}
	if e.Summary != "booked for thursday" {
		t.Fatalf("expected operator reason as summary, got %q", e.Summary)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at assigned")
	}
}

func TestService_RecordDispositionFallbackSummary(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.RecordDisposition(context.Background(), session.DispositionRecord{
		SessionID:   "CA101",
		WorkspaceID: "w",
		Outcome:     session.DispositionVoicemail,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := repo.Entries()[0].Summary; got != "call ended: voicemail" {
		t.Fatalf("summary = %q", got)
	}
}

func TestService_RecordMessage(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.RecordMessage(context.Background(), routing.Decision{
		WorkspaceID: "w",
		Destination: routing.DestinationNone,
		AutoReply:   "We open at 9am.",
		Intent:      "simple_inquiry",
	}, routing.Contact{ID: "p-1", Phone: "+15551230001"}, "what time do you open?")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	e := repo.Entries()[0]
	if e.Kind != EntryKindMessage {
		t.Fatalf("expected message entry")
	}
	if !e.AutoReplied {
		t.Fatalf("expected auto_replied flag")
	}
	if e.PersonID != "p-1" {
		t.Fatalf("expected contact linked")
	}
}

func TestService_ListFilters(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Append(ctx, Entry{WorkspaceID: "w", Kind: EntryKindCall, PersonID: "p-1"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := svc.Append(ctx, Entry{WorkspaceID: "w", Kind: EntryKindMessage, PersonID: "p-2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := svc.Append(ctx, Entry{WorkspaceID: "other", Kind: EntryKindCall, PersonID: "p-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	all, err := svc.List(ctx, "w", Query{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all = %d, want 4", len(all))
	}

	calls, _ := svc.List(ctx, "w", Query{Kind: EntryKindCall, PersonID: "p-1"})
	if len(calls) != 3 {
		t.Fatalf("person calls = %d, want 3", len(calls))
	}

	capped, _ := svc.List(ctx, "w", Query{Limit: 2})
	if len(capped) != 2 {
		t.Fatalf("capped = %d, want 2", len(capped))
	}

	if _, err := svc.List(ctx, "", Query{}); err == nil {
		t.Fatalf("expected error for empty workspace")
	}
}
