package actions

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/config"
)

var testPerson = Person{ID: "p-1", Name: "Dana Reeves", Phone: "+15551230001"}

func newTestEngine(t *testing.T) (*Engine, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	cfg := config.ActionsConfig{
		RebookGraceWindow: 24 * time.Hour,
		LeadStaleWindow:   48 * time.Hour,
	}
	eng := NewEngine(repo, cfg, slog.New(slog.NewTextHandler(discard{}, nil)))
	return eng, repo
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestIngestDerivationRules(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		event        Event
		wantType     ActionType
		wantPriority Priority
		wantDueAt    time.Time
	}{
		{
			name:         "voicemail disposition creates missed call",
			event:        Event{Kind: EventDisposition, Outcome: "voicemail", OccurredAt: base},
			wantType:     TypeMissedCall,
			wantPriority: PriorityHigh,
			wantDueAt:    base,
		},
		{
			name:         "system closed call creates missed call",
			event:        Event{Kind: EventDisposition, Outcome: "not_booked", SystemClosed: true, OccurredAt: base},
			wantType:     TypeMissedCall,
			wantPriority: PriorityHigh,
			wantDueAt:    base,
		},
		{
			name:         "callback disposition creates recall",
			event:        Event{Kind: EventDisposition, Outcome: "callback", OccurredAt: base},
			wantType:     TypeRecall,
			wantPriority: PriorityMedium,
			wantDueAt:    base,
		},
		{
			name:         "pipeline routed message creates lead",
			event:        Event{Kind: EventRoutedMessage, Destination: "pipeline", OccurredAt: base},
			wantType:     TypeLead,
			wantPriority: PriorityMedium,
			wantDueAt:    base,
		},
		{
			name:         "unanswered inquiry creates info pending",
			event:        Event{Kind: EventRoutedMessage, Destination: "none", AutoReplied: false, OccurredAt: base},
			wantType:     TypeInfoPending,
			wantPriority: PriorityLow,
			wantDueAt:    base,
		},
		{
			name:         "cancellation waits out the rebook grace window",
			event:        Event{Kind: EventAppointment, Change: AppointmentCanceled, OccurredAt: base},
			wantType:     TypeCancellation,
			wantPriority: PriorityMedium,
			wantDueAt:    base.Add(24 * time.Hour),
		},
		{
			name:         "no-show creates follow-up",
			event:        Event{Kind: EventAppointment, Change: AppointmentNoShow, OccurredAt: base},
			wantType:     TypeNoShow,
			wantPriority: PriorityMedium,
			wantDueAt:    base,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, repo := newTestEngine(t)
			ev := tt.event
			ev.WorkspaceID = "ws-1"
			ev.Person = testPerson

			res, err := eng.Ingest(context.Background(), ev)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if !res.Created {
				t.Fatalf("expected a created action, got %+v", res)
			}

			a, err := repo.Get(context.Background(), "ws-1", res.ActionID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if a.Type != tt.wantType {
				t.Errorf("type = %s, want %s", a.Type, tt.wantType)
			}
			if a.Priority != tt.wantPriority {
				t.Errorf("priority = %d, want %d", a.Priority, tt.wantPriority)
			}
			if !a.DueAt.Equal(tt.wantDueAt) {
				t.Errorf("due at = %v, want %v", a.DueAt, tt.wantDueAt)
			}
			if a.Status != StatusPending {
				t.Errorf("status = %s, want pending", a.Status)
			}
		})
	}
}

func TestIngestNonProducingEvents(t *testing.T) {
	tests := []struct {
		name  string
		event Event
	}{
		{"booked disposition", Event{Kind: EventDisposition, Outcome: "booked"}},
		{"supported message", Event{Kind: EventRoutedMessage, Destination: "support"}},
		{"auto-replied inquiry", Event{Kind: EventRoutedMessage, Destination: "none", AutoReplied: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, repo := newTestEngine(t)
			ev := tt.event
			ev.WorkspaceID = "ws-1"
			ev.Person = testPerson

			res, err := eng.Ingest(context.Background(), ev)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if res.Matched {
				t.Errorf("expected no match, got %+v", res)
			}
			rows, _ := repo.List(context.Background(), "ws-1", Filter{})
			if len(rows) != 0 {
				t.Errorf("expected empty action set, got %d rows", len(rows))
			}
		})
	}
}

func TestIngestRejectsIncompleteEvents(t *testing.T) {
	eng, _ := newTestEngine(t)

	events := []Event{
		{Kind: EventDisposition, Person: testPerson},  // no workspace
		{Kind: EventDisposition, WorkspaceID: "ws-1"}, // no person
		{WorkspaceID: "ws-1", Person: testPerson},     // no kind
	}
	for i, ev := range events {
		if _, err := eng.Ingest(context.Background(), ev); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("event %d: err = %v, want ErrInvalidEvent", i, err)
		}
	}
}

func TestSecondVoicemailFoldsIntoPendingAction(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	res1, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventDisposition, Outcome: "voicemail",
		OccurredAt: first, Note: "left a message about the quote",
	})
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	res2, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventDisposition, Outcome: "voicemail",
		OccurredAt: first.Add(2 * time.Hour), Note: "second voicemail, sounds urgent",
	})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if !res2.DuplicateSuppressed {
		t.Fatal("second voicemail should fold into the pending action")
	}
	if res2.ActionID != res1.ActionID {
		t.Fatalf("fold targeted %s, want %s", res2.ActionID, res1.ActionID)
	}

	rows, _ := repo.List(ctx, "ws-1", Filter{Status: StatusPending})
	if len(rows) != 1 {
		t.Fatalf("pending actions = %d, want 1", len(rows))
	}
	if rows[0].LastInteraction != "second voicemail, sounds urgent" {
		t.Errorf("last interaction = %q", rows[0].LastInteraction)
	}
	if !rows[0].DueAt.Equal(first) {
		t.Errorf("due at = %v, want the earlier %v", rows[0].DueAt, first)
	}
}

func TestDedupInvariantUnderConcurrentIngest(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Ingest(ctx, Event{
				WorkspaceID: "ws-1", Person: testPerson,
				Kind: EventDisposition, Outcome: "voicemail",
			})
			if err != nil {
				t.Errorf("Ingest: %v", err)
			}
		}()
	}
	wg.Wait()

	rows, _ := repo.List(ctx, "ws-1", Filter{Status: StatusPending, Type: TypeMissedCall})
	if len(rows) != 1 {
		t.Fatalf("pending missed-call actions = %d, want exactly 1", len(rows))
	}
}

func TestDedupAllowsNewActionAfterResolution(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()

	res1, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventDisposition, Outcome: "voicemail",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := eng.Transition(ctx, "ws-1", res1.ActionID, StatusCompleted); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	res2, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventDisposition, Outcome: "voicemail",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res2.Created {
		t.Fatal("a fresh action should be created once the old one is resolved")
	}
	if res2.ActionID == res1.ActionID {
		t.Fatal("resolved action was reopened instead of a new one created")
	}

	rows, _ := repo.List(ctx, "ws-1", Filter{Type: TypeMissedCall})
	if len(rows) != 2 {
		t.Fatalf("total missed-call actions = %d, want 2", len(rows))
	}
}

func TestRebookingResolvesCancellationAndNoShow(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()

	for _, change := range []string{AppointmentCanceled, AppointmentNoShow} {
		if _, err := eng.Ingest(ctx, Event{
			WorkspaceID: "ws-1", Person: testPerson,
			Kind: EventAppointment, Change: change,
		}); err != nil {
			t.Fatalf("Ingest %s: %v", change, err)
		}
	}

	res, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventAppointment, Change: AppointmentRebooked,
	})
	if err != nil {
		t.Fatalf("Ingest rebooked: %v", err)
	}
	if !res.Matched {
		t.Fatal("rebooking should resolve at least one pending action")
	}

	pending, _ := repo.List(ctx, "ws-1", Filter{Status: StatusPending})
	if len(pending) != 0 {
		t.Fatalf("pending actions after rebooking = %d, want 0", len(pending))
	}
	done, _ := repo.List(ctx, "ws-1", Filter{Status: StatusCompleted})
	if len(done) != 2 {
		t.Fatalf("completed actions = %d, want 2", len(done))
	}
}

func TestPipelineMovementResolvesLead(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventRoutedMessage, Destination: "pipeline",
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	res, err := eng.Ingest(ctx, Event{
		WorkspaceID: "ws-1", Person: testPerson,
		Kind: EventPipelineMovement,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !res.Matched {
		t.Fatal("pipeline movement should resolve the lead")
	}

	pending, _ := repo.List(ctx, "ws-1", Filter{Status: StatusPending})
	if len(pending) != 0 {
		t.Fatalf("pending actions = %d, want 0", len(pending))
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusSnoozed, true},
		{StatusPending, StatusDismissed, true},
		{StatusSnoozed, StatusPending, true},
		{StatusSnoozed, StatusCompleted, false},
		{StatusSnoozed, StatusDismissed, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusSnoozed, false},
		{StatusDismissed, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			eng, repo := newTestEngine(t)
			ctx := context.Background()

			res, err := eng.Ingest(ctx, Event{
				WorkspaceID: "ws-1", Person: testPerson,
				Kind: EventDisposition, Outcome: "voicemail",
			})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			// Force the starting status directly; not all of them are
			// reachable through the engine from pending.
			a, _ := repo.Get(ctx, "ws-1", res.ActionID)
			a.Status = tt.from
			if err := repo.Update(ctx, a); err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := eng.Transition(ctx, "ws-1", res.ActionID, tt.to)
			if tt.allowed {
				if err != nil {
					t.Fatalf("Transition: %v", err)
				}
				if got.Status != tt.to {
					t.Errorf("status = %s, want %s", got.Status, tt.to)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			after, _ := repo.Get(ctx, "ws-1", res.ActionID)
			if after.Status != tt.from {
				t.Errorf("rejected transition mutated status: %s", after.Status)
			}
		})
	}
}

func TestTransitionUnknownStatusAndMissingAction(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Transition(ctx, "ws-1", "a-1", Status("archived")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown status: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := eng.Transition(ctx, "ws-1", "missing", StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing action: err = %v, want ErrNotFound", err)
	}
}

func TestListOrdersByPriorityThenDueAt(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seed := []Action{
		{ID: "a", Priority: PriorityLow, DueAt: base},
		{ID: "b", Priority: PriorityHigh, DueAt: base.Add(3 * time.Hour)},
		{ID: "c", Priority: PriorityMedium, DueAt: base.Add(time.Hour)},
		{ID: "d", Priority: PriorityHigh, DueAt: base.Add(time.Hour)},
		{ID: "e", Priority: PriorityMedium, DueAt: base},
		{ID: "f", Priority: PriorityLow, DueAt: base.Add(-time.Hour)},
	}
	rand.New(rand.NewSource(7)).Shuffle(len(seed), func(i, j int) {
		seed[i], seed[j] = seed[j], seed[i]
	})
	for _, a := range seed {
		a.WorkspaceID = "ws-1"
		a.Person = testPerson
		a.Type = TypeMissedCall
		a.Status = StatusPending
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	rows, err := eng.List(ctx, "ws-1", Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"d", "b", "e", "c", "f", "a"}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("rows[%d].ID = %s, want %s", i, rows[i].ID, id)
		}
	}
}

func TestEscalateStaleLeads(t *testing.T) {
	eng, repo := newTestEngine(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	eng.SetClock(func() time.Time { return now })

	seed := []Action{
		{ID: "stale", Type: TypeLead, Priority: PriorityMedium, Status: StatusPending, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "fresh", Type: TypeLead, Priority: PriorityMedium, Status: StatusPending, CreatedAt: now.Add(-time.Hour)},
		{ID: "done", Type: TypeLead, Priority: PriorityMedium, Status: StatusCompleted, CreatedAt: now.Add(-72 * time.Hour)},
		{ID: "call", Type: TypeMissedCall, Priority: PriorityMedium, Status: StatusPending, CreatedAt: now.Add(-72 * time.Hour)},
	}
	for _, a := range seed {
		a.WorkspaceID = "ws-1"
		a.Person = testPerson
		if err := repo.Insert(ctx, a); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := eng.EscalateStaleLeads(ctx, "ws-1")
	if err != nil {
		t.Fatalf("EscalateStaleLeads: %v", err)
	}
	if n != 1 {
		t.Fatalf("escalated = %d, want 1", n)
	}

	a, _ := repo.Get(ctx, "ws-1", "stale")
	if a.Priority != PriorityHigh {
		t.Errorf("stale lead priority = %d, want high", a.Priority)
	}
	for _, id := range []string{"fresh", "done", "call"} {
		a, _ := repo.Get(ctx, "ws-1", id)
		if a.Priority != PriorityMedium {
			t.Errorf("%s priority = %d, want untouched medium", id, a.Priority)
		}
	}

	// A second sweep finds nothing left to raise.
	n, err = eng.EscalateStaleLeads(ctx, "ws-1")
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep escalated = %d, want 0", n)
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for _, ws := range []string{"ws-1", "ws-2"} {
		if _, err := eng.Ingest(ctx, Event{
			WorkspaceID: ws, Person: testPerson,
			Kind: EventDisposition, Outcome: "voicemail",
		}); err != nil {
			t.Fatalf("Ingest %s: %v", ws, err)
		}
	}

	for _, ws := range []string{"ws-1", "ws-2"} {
		rows, err := eng.List(ctx, ws, Filter{})
		if err != nil {
			t.Fatalf("List %s: %v", ws, err)
		}
		if len(rows) != 1 {
			t.Errorf("%s rows = %d, want 1", ws, len(rows))
		}
		if rows[0].WorkspaceID != ws {
			t.Errorf("leaked action from %s into %s", rows[0].WorkspaceID, ws)
		}
	}
}
