package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lshmam/neucler-inbox-sub002/internal/classify"
)

// Destination is where a classified interaction lands.
type Destination string

const (
	DestinationPipeline Destination = "pipeline"
	DestinationSupport  Destination = "support"
	DestinationNone     Destination = "none"
)

// Contact is the person reference handed to downstream sinks.
type Contact struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Phone string   `json:"phone"`
	Tags  []string `json:"tags,omitempty"`
}

// Decision is the routing outcome for one classified interaction.
type Decision struct {
	WorkspaceID string      `json:"workspace_id"`
	Destination Destination `json:"destination"`

	// AutoReply is set only for simple inquiries that produced reply text.
	AutoReply string `json:"auto_reply,omitempty"`

	Intent     classify.Intent `json:"intent"`
	Confidence float64         `json:"confidence"`

	// Reason is for internal logs only.
	Reason string `json:"reason,omitempty"`
}

// PipelineSink receives sales opportunities. Retries, if any, are the sink's
// own policy; the router never retries.
type PipelineSink interface {
	AddOpportunity(ctx context.Context, workspaceID string, contact Contact, note string) error
}

// SupportSink receives support issues and anything that could not be
// classified.
type SupportSink interface {
	OpenTicket(ctx context.Context, workspaceID string, contact Contact, message string) error
}

// ReplySink delivers an automated reply back to the contact.
type ReplySink interface {
	SendReply(ctx context.Context, workspaceID string, contact Contact, text string) error
}

// Router maps classification results onto downstream destinations.
//
// Route is pure; Dispatch performs the single side effect of handing the
// decision to the matching sink.
type Router struct {
	pipeline PipelineSink
	support  SupportSink
	reply    ReplySink
	log      *slog.Logger
}

func NewRouter(pipeline PipelineSink, support SupportSink, reply ReplySink, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{pipeline: pipeline, support: support, reply: reply, log: log}
}

// Route applies the intent policy table:
//
//	sales_opportunity -> pipeline
//	support_issue     -> support
//	simple_inquiry    -> none (+ auto-reply when text is present)
//	unclassifiable    -> support
//
// The unclassifiable fallback is deliberate: an unresolved inbound message
// must always reach a human queue rather than being dropped.
func (r *Router) Route(workspaceID string, res classify.Result, contact Contact) Decision {
	d := Decision{
		WorkspaceID: workspaceID,
		Intent:      res.Intent,
		Confidence:  res.Confidence,
	}

	switch res.Intent {
	case classify.IntentSalesOpportunity:
		d.Destination = DestinationPipeline
		d.Reason = "sales opportunity"
	case classify.IntentSupportIssue:
		d.Destination = DestinationSupport
		d.Reason = "support issue"
	case classify.IntentSimpleInquiry:
		// Auto-reply only when the service generated text; otherwise the
		// inquiry needs no queue entry at all.
		d.Destination = DestinationNone
		d.AutoReply = res.AutoReply
		d.Reason = "simple inquiry"
	default:
		d.Destination = DestinationSupport
		d.Reason = "unclassifiable fallback"
	}
	return d
}

// ErrSinkUnavailable means the destination sink was not wired.
var ErrSinkUnavailable = errors.New("routing: destination sink not configured")

// Dispatch hands the decision to its destination sink. Sink faults are
// returned to the caller for logging; the router performs no retries.
func (r *Router) Dispatch(ctx context.Context, d Decision, contact Contact, message string) error {
	switch d.Destination {
	case DestinationPipeline:
		if r.pipeline == nil {
			return ErrSinkUnavailable
		}
		if err := r.pipeline.AddOpportunity(ctx, d.WorkspaceID, contact, message); err != nil {
			return fmt.Errorf("routing: pipeline handoff: %w", err)
		}
	case DestinationSupport:
		if r.support == nil {
			return ErrSinkUnavailable
		}
		if err := r.support.OpenTicket(ctx, d.WorkspaceID, contact, message); err != nil {
			return fmt.Errorf("routing: support handoff: %w", err)
		}
	case DestinationNone:
		if d.AutoReply == "" {
			return nil
		}
		if r.reply == nil {
			return ErrSinkUnavailable
		}
		if err := r.reply.SendReply(ctx, d.WorkspaceID, contact, d.AutoReply); err != nil {
			return fmt.Errorf("routing: auto-reply handoff: %w", err)
		}
	default:
		return fmt.Errorf("routing: unknown destination %q", d.Destination)
	}

	r.log.Info("interaction routed",
		"workspace_id", d.WorkspaceID,
		"destination", d.Destination,
		"intent", d.Intent,
		"client_ip", ClientIPFromContext(ctx),
	)
	return nil
}
