package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lshmam/neucler-inbox-sub002/internal/routing"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
)

// Repository is the persistence contract for history entries.
//
// Append-only: the repository exposes no Update or Delete.

type Repository interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, workspaceID string, q Query) ([]Entry, error)
}

// Service records every customer touchpoint into the interaction timeline.
//
// Callers should treat history writes as best-effort: log a failure and move
// on rather than failing the interaction itself.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEntry = errors.New("history: invalid entry")

func (s *Service) Append(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if e.WorkspaceID == "" {
		return ErrInvalidEntry
	}
	if e.Kind == "" {
		return ErrInvalidEntry
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// RecordDisposition stores the terminal outcome of a call session. It
// satisfies the session manager's disposition sink.
func (s *Service) RecordDisposition(ctx context.Context, rec session.DispositionRecord) error {
	summary := rec.Reason
	if summary == "" {
		summary = fmt.Sprintf("call ended: %s", rec.Outcome)
	}
	return s.Append(ctx, Entry{
		WorkspaceID:  rec.WorkspaceID,
		Kind:         EntryKindCall,
		Counterparty: rec.Counterparty,
		OperatorID:   rec.OperatorID,
		SessionID:    rec.SessionID,
		Direction:    string(rec.Direction),
		Outcome:      string(rec.Outcome),
		SystemClosed: rec.SystemClosed,
		Summary:      summary,
		StartedAt:    rec.StartedAt,
		EndedAt:      rec.EndedAt,
	})
}

// RecordMessage stores a classified and routed inbound message.
func (s *Service) RecordMessage(ctx context.Context, d routing.Decision, contact routing.Contact, text string) error {
	return s.Append(ctx, Entry{
		WorkspaceID:  d.WorkspaceID,
		Kind:         EntryKindMessage,
		PersonID:     contact.ID,
		Counterparty: contact.Phone,
		Intent:       string(d.Intent),
		Destination:  string(d.Destination),
		AutoReplied:  d.AutoReply != "",
		Summary:      text,
	})
}

// List returns timeline entries for a workspace, newest first.
func (s *Service) List(ctx context.Context, workspaceID string, q Query) ([]Entry, error) {
	if workspaceID == "" {
		return nil, ErrInvalidEntry
	}
	return s.repo.List(ctx, workspaceID, q)
}
