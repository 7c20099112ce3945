package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lshmam/neucler-inbox-sub002/internal/config"
)

// Repository is the persistence contract for the action set.
//
// Actions are soft-lifecycle rows; there is no Delete.
type Repository interface {
	Insert(ctx context.Context, a Action) error
	Update(ctx context.Context, a Action) error
	Get(ctx context.Context, workspaceID, id string) (Action, error)

	// FindPending returns the single pending action for (person, type), if any.
	FindPending(ctx context.Context, workspaceID, personID string, t ActionType) (Action, bool, error)

	List(ctx context.Context, workspaceID string, f Filter) ([]Action, error)

	// ListPendingCreatedBefore supports the staleness sweep.
	ListPendingCreatedBefore(ctx context.Context, workspaceID string, t ActionType, cutoff time.Time) ([]Action, error)
}

var (
	ErrNotFound = errors.New("actions: not found")
	// ErrInvalidTransition is a usage error: the requested status change is
	// not in the transition table. State is never mutated on this error.
	ErrInvalidTransition = errors.New("actions: invalid status transition")
	ErrInvalidEvent      = errors.New("actions: invalid event")
)

// Engine derives, deduplicates and ranks follow-up work from interaction
// events.
//
// Concurrency: ingestion events may arrive from several sources at once (a
// call disposition and a routed message for the same person, nearly
// simultaneously). Mutation of a (person, type) slot is serialized through a
// keyed mutex so the dedup invariant holds; List reads a snapshot and never
// blocks writers for long.
type Engine struct {
	repo  Repository
	cfg   config.ActionsConfig
	log   *slog.Logger
	clock func() time.Time

	mu    sync.Mutex
	slots map[string]*sync.Mutex
}

func NewEngine(repo Repository, cfg config.ActionsConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		repo:  repo,
		cfg:   cfg,
		log:   log,
		clock: time.Now,
		slots: make(map[string]*sync.Mutex),
	}
}

// SetClock overrides the time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.clock = now }

func (e *Engine) slot(workspaceID, personID string, t ActionType) *sync.Mutex {
	key := workspaceID + "|" + personID + "|" + string(t)
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.slots[key]
	if !ok {
		m = &sync.Mutex{}
		e.slots[key] = m
	}
	return m
}

// actionDraft is what one derivation rule produces.
type actionDraft struct {
	Type     ActionType
	Priority Priority
	DueAt    time.Time
	Reason   string
}

// derive maps an event onto at most one action rule. The second return is
// false when the event produces no follow-up; resolves lists action types the
// event closes out instead.
func (e *Engine) derive(ev Event) (draft actionDraft, create bool, resolves []ActionType) {
	switch ev.Kind {
	case EventDisposition:
		switch {
		case ev.Outcome == "voicemail":
			return actionDraft{
				Type:     TypeMissedCall,
				Priority: PriorityHigh,
				DueAt:    ev.OccurredAt,
				Reason:   "call went to voicemail",
			}, true, nil
		case ev.SystemClosed:
			return actionDraft{
				Type:     TypeMissedCall,
				Priority: PriorityHigh,
				DueAt:    ev.OccurredAt,
				Reason:   "call failed before completion",
			}, true, nil
		case ev.Outcome == "callback":
			return actionDraft{
				Type:     TypeRecall,
				Priority: PriorityMedium,
				DueAt:    ev.OccurredAt,
				Reason:   "customer asked for a callback",
			}, true, nil
		}
		return actionDraft{}, false, nil

	case EventRoutedMessage:
		switch {
		case ev.Destination == "pipeline":
			return actionDraft{
				Type:     TypeLead,
				Priority: PriorityMedium,
				DueAt:    ev.OccurredAt,
				Reason:   "new sales opportunity from inbound message",
			}, true, nil
		case ev.Destination == "none" && !ev.AutoReplied:
			return actionDraft{
				Type:     TypeInfoPending,
				Priority: PriorityLow,
				DueAt:    ev.OccurredAt,
				Reason:   "inquiry still waiting on an answer",
			}, true, nil
		}
		return actionDraft{}, false, nil

	case EventAppointment:
		switch ev.Change {
		case AppointmentCanceled:
			return actionDraft{
				Type:     TypeCancellation,
				Priority: PriorityMedium,
				DueAt:    ev.OccurredAt.Add(e.cfg.RebookGraceWindow),
				Reason:   "appointment canceled without a rebooking",
			}, true, nil
		case AppointmentNoShow:
			return actionDraft{
				Type:     TypeNoShow,
				Priority: PriorityMedium,
				DueAt:    ev.OccurredAt,
				Reason:   "missed a scheduled appointment",
			}, true, nil
		case AppointmentRebooked:
			return actionDraft{}, false, []ActionType{TypeCancellation, TypeNoShow}
		}
		return actionDraft{}, false, nil

	case EventPipelineMovement:
		return actionDraft{}, false, []ActionType{TypeLead}

	default:
		return actionDraft{}, false, nil
	}
}

// Ingest applies one interaction event to the action set.
func (e *Engine) Ingest(ctx context.Context, ev Event) (IngestResult, error) {
	if ev.WorkspaceID == "" || ev.Person.ID == "" || ev.Kind == "" {
		return IngestResult{}, ErrInvalidEvent
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.clock().UTC()
	}

	draft, create, resolves := e.derive(ev)
	if !create && len(resolves) == 0 {
		return IngestResult{}, nil
	}

	if len(resolves) > 0 {
		return e.resolve(ctx, ev, resolves)
	}
	return e.upsert(ctx, ev, draft)
}

// upsert folds the event into the existing pending (person, type) action or
// creates a new one, under the slot lock.
func (e *Engine) upsert(ctx context.Context, ev Event, draft actionDraft) (IngestResult, error) {
	lock := e.slot(ev.WorkspaceID, ev.Person.ID, draft.Type)
	lock.Lock()
	defer lock.Unlock()

	now := e.clock().UTC()

	existing, found, err := e.repo.FindPending(ctx, ev.WorkspaceID, ev.Person.ID, draft.Type)
	if err != nil {
		return IngestResult{}, fmt.Errorf("actions: find pending: %w", err)
	}

	if found {
		existing.Reason = draft.Reason
		existing.DueAt = earlier(existing.DueAt, draft.DueAt)
		if draft.Priority < existing.Priority {
			existing.Priority = draft.Priority
		}
		if ev.Note != "" {
			existing.LastInteraction = ev.Note
		}
		existing.UpdatedAt = now
		if err := e.repo.Update(ctx, existing); err != nil {
			return IngestResult{}, fmt.Errorf("actions: fold into pending action: %w", err)
		}
		e.log.Debug("duplicate action suppressed",
			"workspace_id", ev.WorkspaceID,
			"person_id", ev.Person.ID,
			"type", draft.Type,
			"action_id", existing.ID,
		)
		return IngestResult{Matched: true, DuplicateSuppressed: true, ActionID: existing.ID}, nil
	}

	a := Action{
		ID:              uuid.NewString(),
		WorkspaceID:     ev.WorkspaceID,
		Person:          ev.Person,
		Type:            draft.Type,
		Priority:        draft.Priority,
		Status:          StatusPending,
		Reason:          draft.Reason,
		LastInteraction: ev.Note,
		DueAt:           draft.DueAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.repo.Insert(ctx, a); err != nil {
		return IngestResult{}, fmt.Errorf("actions: insert action: %w", err)
	}
	return IngestResult{Matched: true, Created: true, ActionID: a.ID}, nil
}

// resolve completes pending actions that the event supersedes (a rebooking
// clears a cancellation follow-up, pipeline movement clears a lead).
func (e *Engine) resolve(ctx context.Context, ev Event, types []ActionType) (IngestResult, error) {
	res := IngestResult{}
	now := e.clock().UTC()

	for _, t := range types {
		lock := e.slot(ev.WorkspaceID, ev.Person.ID, t)
		lock.Lock()

		a, found, err := e.repo.FindPending(ctx, ev.WorkspaceID, ev.Person.ID, t)
		if err != nil {
			lock.Unlock()
			return IngestResult{}, fmt.Errorf("actions: find pending: %w", err)
		}
		if found {
			a.Status = StatusCompleted
			a.UpdatedAt = now
			if err := e.repo.Update(ctx, a); err != nil {
				lock.Unlock()
				return IngestResult{}, fmt.Errorf("actions: resolve action: %w", err)
			}
			res.Matched = true
			res.ActionID = a.ID
		}
		lock.Unlock()
	}
	return res, nil
}

func earlier(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

// List returns a snapshot of matching actions ordered by priority ascending,
// tie-broken by due timestamp ascending.
func (e *Engine) List(ctx context.Context, workspaceID string, f Filter) ([]Action, error) {
	if workspaceID == "" {
		return nil, ErrInvalidEvent
	}
	rows, err := e.repo.List(ctx, workspaceID, f)
	if err != nil {
		return nil, fmt.Errorf("actions: list: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Priority != rows[j].Priority {
			return rows[i].Priority < rows[j].Priority
		}
		return rows[i].DueAt.Before(rows[j].DueAt)
	})
	return rows, nil
}

// allowedTransitions is the full status transition table. Anything absent is
// rejected without mutating the action.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusCompleted, StatusSnoozed, StatusDismissed},
	StatusSnoozed: {StatusPending},
}

func transitionAllowed(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies an operator status change.
func (e *Engine) Transition(ctx context.Context, workspaceID, actionID string, to Status) (Action, error) {
	if !ValidStatus(to) {
		return Action{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	a, err := e.repo.Get(ctx, workspaceID, actionID)
	if err != nil {
		return Action{}, err
	}

	lock := e.slot(workspaceID, a.Person.ID, a.Type)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; an ingest may have folded into it meanwhile.
	a, err = e.repo.Get(ctx, workspaceID, actionID)
	if err != nil {
		return Action{}, err
	}
	if !transitionAllowed(a.Status, to) {
		return Action{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}

	a.Status = to
	a.UpdatedAt = e.clock().UTC()
	if err := e.repo.Update(ctx, a); err != nil {
		return Action{}, fmt.Errorf("actions: update status: %w", err)
	}
	return a, nil
}

// EscalateStaleLeads raises pending lead actions with no pipeline movement
// inside the configured window from medium to high priority.
func (e *Engine) EscalateStaleLeads(ctx context.Context, workspaceID string) (int, error) {
	now := e.clock().UTC()
	cutoff := now.Add(-e.cfg.LeadStaleWindow)

	stale, err := e.repo.ListPendingCreatedBefore(ctx, workspaceID, TypeLead, cutoff)
	if err != nil {
		return 0, fmt.Errorf("actions: list stale leads: %w", err)
	}

	escalated := 0
	for _, a := range stale {
		if a.Priority <= PriorityHigh {
			continue
		}

		lock := e.slot(workspaceID, a.Person.ID, a.Type)
		lock.Lock()
		fresh, err := e.repo.Get(ctx, workspaceID, a.ID)
		if err == nil && fresh.Status == StatusPending && fresh.Priority > PriorityHigh {
			fresh.Priority = PriorityHigh
			fresh.Reason = "sales opportunity going stale without pipeline movement"
			fresh.UpdatedAt = now
			if err := e.repo.Update(ctx, fresh); err == nil {
				escalated++
			} else {
				e.log.Error("lead escalation failed", "action_id", a.ID, "err", err)
			}
		}
		lock.Unlock()
	}
	return escalated, nil
}
