package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/actions"
	"github.com/lshmam/neucler-inbox-sub002/internal/classify"
	"github.com/lshmam/neucler-inbox-sub002/internal/history"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// HistorySource provides the interaction timeline rows.
//
// IMPORTANT: implementations must enforce workspace filtering. Reporting reads
// only immutable sources (interaction history, the append-only action set).

type HistorySource interface {
	List(ctx context.Context, workspaceID string, q history.Query) ([]history.Entry, error)
}

// ActionsSource provides the current action backlog.
type ActionsSource interface {
	List(ctx context.Context, workspaceID string, f actions.Filter) ([]actions.Action, error)
}

type Service struct {
	hist    HistorySource
	actions ActionsSource
	clock   func() time.Time
}

func NewService(hist HistorySource, acts ActionsSource) *Service {
	return &Service{hist: hist, actions: acts, clock: time.Now}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.WorkspaceID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.hist == nil {
		return CallsSummary{}, errors.New("reporting: history source not configured")
	}

	rows, err := s.hist.List(ctx, req.WorkspaceID, history.Query{
		Kind: history.EntryKindCall,
		From: req.Range.From,
		To:   req.Range.To,
	})
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{WorkspaceID: req.WorkspaceID, OperatorID: req.OperatorID}
	for _, e := range rows {
		if req.OperatorID != "" && e.OperatorID != req.OperatorID {
			continue
		}
		out.TotalCalls++
		if !e.StartedAt.IsZero() && e.EndedAt.After(e.StartedAt) {
			out.TotalDurationSeconds += int(e.EndedAt.Sub(e.StartedAt) / time.Second)
		}
		if e.SystemClosed {
			out.DroppedCalls++
			continue
		}
		switch session.Disposition(e.Outcome) {
		case session.DispositionBooked:
			out.BookedCalls++
		case session.DispositionNotBooked:
			out.NotBookedCalls++
		case session.DispositionCallback:
			out.CallbackCalls++
		case session.DispositionNotAFit:
			out.NotAFitCalls++
		case session.DispositionVoicemail:
			out.VoicemailCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.BookingRate = float64(out.BookedCalls) / float64(out.TotalCalls)
	}
	return out, nil
}

func (s *Service) MessagesSummary(ctx context.Context, req MessagesSummaryRequest) (MessagesSummary, error) {
	if req.WorkspaceID == "" {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if s.hist == nil {
		return MessagesSummary{}, errors.New("reporting: history source not configured")
	}

	rows, err := s.hist.List(ctx, req.WorkspaceID, history.Query{
		Kind: history.EntryKindMessage,
		From: req.Range.From,
		To:   req.Range.To,
	})
	if err != nil {
		return MessagesSummary{}, err
	}

	out := MessagesSummary{WorkspaceID: req.WorkspaceID}
	for _, e := range rows {
		out.TotalMessages++
		if e.AutoReplied {
			out.AutoReplied++
		}
		switch classify.Intent(e.Intent) {
		case classify.IntentSalesOpportunity:
			out.SalesMessages++
		case classify.IntentSupportIssue:
			out.SupportTickets++
		case classify.IntentSimpleInquiry:
			out.Inquiries++
		default:
			out.Unclassified++
		}
	}
	if out.TotalMessages > 0 {
		out.AutoReplyRate = float64(out.AutoReplied) / float64(out.TotalMessages)
	}
	return out, nil
}

func (s *Service) ActionsSummary(ctx context.Context, workspaceID string) (ActionsSummary, error) {
	if workspaceID == "" {
		return ActionsSummary{}, ErrInvalidRequest
	}
	if s.actions == nil {
		return ActionsSummary{}, errors.New("reporting: actions source not configured")
	}

	rows, err := s.actions.List(ctx, workspaceID, actions.Filter{Status: actions.StatusPending})
	if err != nil {
		return ActionsSummary{}, err
	}

	now := s.clock().UTC()
	out := ActionsSummary{WorkspaceID: workspaceID, PendingByType: make(map[string]int)}
	for _, a := range rows {
		out.PendingTotal++
		out.PendingByType[string(a.Type)]++
		if a.Priority == actions.PriorityHigh {
			out.HighPriority++
		}
		if !a.DueAt.IsZero() && a.DueAt.Before(now) {
			out.Overdue++
		}
	}
	return out, nil
}
