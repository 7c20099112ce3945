package contacts

import (
	"context"
	"errors"

	"github.com/lshmam/neucler-inbox-sub002/internal/history"
	"github.com/lshmam/neucler-inbox-sub002/internal/routing"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
)

// Contact is a known customer record.
type Contact struct {
	ID          string   `json:"id" db:"id"`
	WorkspaceID string   `json:"workspace_id" db:"workspace_id"`
	Name        string   `json:"name" db:"name"`
	Phone       string   `json:"phone" db:"phone"`
	Tags        []string `json:"tags,omitempty"`
}

var ErrNotFound = errors.New("contacts: not found")

// Repository is the persistence contract for the contact book.
type Repository interface {
	FindByPhone(ctx context.Context, workspaceID, phone string) (Contact, error)
}

// HistorySource surfaces the contact's most recent touchpoint for the
// pre-call screen.
type HistorySource interface {
	List(ctx context.Context, workspaceID string, q history.Query) ([]history.Entry, error)
}

// Service answers "who is this number" for both the call screen and the
// message pipeline.
type Service struct {
	repo Repository
	hist HistorySource
}

func NewService(repo Repository, hist HistorySource) *Service {
	return &Service{repo: repo, hist: hist}
}

// LookupByPhone builds the caller context shown to the operator when a call
// rings. Satisfies the session manager's directory dependency.
func (s *Service) LookupByPhone(ctx context.Context, workspaceID, phone string) (session.CallerContext, error) {
	c, err := s.repo.FindByPhone(ctx, workspaceID, phone)
	if err != nil {
		return session.CallerContext{}, err
	}

	out := session.CallerContext{
		Name: c.Name,
		Tags: c.Tags,
	}
	if s.hist != nil {
		entries, err := s.hist.List(ctx, workspaceID, history.Query{PersonID: c.ID, Limit: 1})
		if err == nil && len(entries) > 0 {
			out.ReturningCustomer = true
			out.LastInteraction = entries[0].Summary
		}
	}
	return out, nil
}

// ResolveByPhone matches a raw sender number to a routing contact. Satisfies
// the message pipeline's resolver dependency.
func (s *Service) ResolveByPhone(ctx context.Context, workspaceID, phone string) (routing.Contact, bool, error) {
	c, err := s.repo.FindByPhone(ctx, workspaceID, phone)
	if errors.Is(err, ErrNotFound) {
		return routing.Contact{}, false, nil
	}
	if err != nil {
		return routing.Contact{}, false, err
	}
	return routing.Contact{ID: c.ID, Name: c.Name, Phone: c.Phone, Tags: c.Tags}, true, nil
}
