package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/actions"
	"github.com/lshmam/neucler-inbox-sub002/internal/history"
)

func seedCall(t *testing.T, repo *history.MemoryRepo, outcome string, systemClosed bool, at time.Time, dur time.Duration) {
	t.Helper()
	err := repo.Append(context.Background(), history.Entry{
		ID: "e-" + outcome + at.String(), WorkspaceID: "w",
		Kind: history.EntryKindCall, Outcome: outcome, SystemClosed: systemClosed,
		StartedAt: at, EndedAt: at.Add(dur), CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestCallsSummary(t *testing.T) {
	repo := history.NewMemoryRepo()
	svc := NewService(repo, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seedCall(t, repo, "booked", false, base, 10*time.Minute)
	seedCall(t, repo, "booked", false, base.Add(time.Hour), 6*time.Minute)
	seedCall(t, repo, "voicemail", false, base.Add(2*time.Hour), 0)
	seedCall(t, repo, "not_booked", true, base.Add(3*time.Hour), time.Minute)
	// outside the range
	seedCall(t, repo, "booked", false, base.Add(48*time.Hour), 5*time.Minute)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		WorkspaceID: "w",
		Range:       TimeRange{From: base.Add(-time.Hour), To: base.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("CallsSummary: %v", err)
	}

	if out.TotalCalls != 4 {
		t.Fatalf("total = %d, want 4", out.TotalCalls)
	}
	if out.BookedCalls != 2 || out.VoicemailCalls != 1 || out.DroppedCalls != 1 {
		t.Fatalf("breakdown = %+v", out)
	}
	if out.TotalDurationSeconds != 17*60 {
		t.Fatalf("duration = %d", out.TotalDurationSeconds)
	}
	if out.BookingRate != 0.5 {
		t.Fatalf("booking rate = %v", out.BookingRate)
	}
}

func TestCallsSummaryRejectsBadRange(t *testing.T) {
	svc := NewService(history.NewMemoryRepo(), nil)
	base := time.Now()

	cases := []CallsSummaryRequest{
		{Range: TimeRange{From: base, To: base.Add(time.Hour)}}, // no workspace
		{WorkspaceID: "w"}, // zero range
		{WorkspaceID: "w", Range: TimeRange{From: base.Add(time.Hour), To: base}}, // inverted
	}
	for i, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestMessagesSummary(t *testing.T) {
	repo := history.NewMemoryRepo()
	svc := NewService(repo, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := []history.Entry{
		{Intent: "sales_opportunity"},
		{Intent: "support_issue"},
		{Intent: "simple_inquiry", AutoReplied: true},
		{Intent: "simple_inquiry"},
		{Intent: "unclassifiable"},
	}
	for i, e := range seed {
		e.ID = string(rune('a' + i))
		e.WorkspaceID = "w"
		e.Kind = history.EntryKindMessage
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Append(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	out, err := svc.MessagesSummary(context.Background(), MessagesSummaryRequest{
		WorkspaceID: "w",
		Range:       TimeRange{From: base, To: base.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("MessagesSummary: %v", err)
	}
	if out.TotalMessages != 5 || out.SalesMessages != 1 || out.SupportTickets != 1 || out.Inquiries != 2 || out.Unclassified != 1 {
		t.Fatalf("breakdown = %+v", out)
	}
	if out.AutoReplyRate != 0.2 {
		t.Fatalf("auto reply rate = %v", out.AutoReplyRate)
	}
}

func TestActionsSummary(t *testing.T) {
	repo := actions.NewMemoryRepo()
	svc := NewService(nil, repo)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	seed := []actions.Action{
		{ID: "1", Type: actions.TypeMissedCall, Priority: actions.PriorityHigh, Status: actions.StatusPending, DueAt: now.Add(-time.Hour)},
		{ID: "2", Type: actions.TypeMissedCall, Priority: actions.PriorityHigh, Status: actions.StatusPending, DueAt: now.Add(time.Hour)},
		{ID: "3", Type: actions.TypeLead, Priority: actions.PriorityMedium, Status: actions.StatusPending, DueAt: now.Add(time.Hour)},
		{ID: "4", Type: actions.TypeLead, Priority: actions.PriorityMedium, Status: actions.StatusCompleted, DueAt: now.Add(-time.Hour)},
	}
	for _, a := range seed {
		a.WorkspaceID = "w"
		if err := repo.Insert(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	out, err := svc.ActionsSummary(context.Background(), "w")
	if err != nil {
		t.Fatalf("ActionsSummary: %v", err)
	}
	if out.PendingTotal != 3 {
		t.Fatalf("pending = %d, want 3", out.PendingTotal)
	}
	if out.PendingByType["missed_call"] != 2 || out.PendingByType["lead"] != 1 {
		t.Fatalf("by type = %+v", out.PendingByType)
	}
	if out.HighPriority != 2 {
		t.Fatalf("high = %d", out.HighPriority)
	}
	if out.Overdue != 1 {
		t.Fatalf("overdue = %d", out.Overdue)
	}
}
