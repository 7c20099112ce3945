package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Workspace isolation: WorkspaceID is required.

type CallsSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
	OperatorID  string    `json:"operator_id,omitempty"`
}

type CallsSummary struct {
	WorkspaceID string `json:"workspace_id"`
	OperatorID  string `json:"operator_id,omitempty"`

	TotalCalls     int `json:"total_calls"`
	BookedCalls    int `json:"booked_calls"`
	NotBookedCalls int `json:"not_booked_calls"`
	CallbackCalls  int `json:"callback_calls"`
	NotAFitCalls   int `json:"not_a_fit_calls"`
	VoicemailCalls int `json:"voicemail_calls"`
	DroppedCalls   int `json:"dropped_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	BookingRate float64 `json:"booking_rate"`
}

// MessagesSummaryRequest requests aggregated inbound-message metrics.

type MessagesSummaryRequest struct {
	WorkspaceID string    `json:"workspace_id"`
	Range       TimeRange `json:"range"`
}

type MessagesSummary struct {
	WorkspaceID string `json:"workspace_id"`

	TotalMessages  int `json:"total_messages"`
	SalesMessages  int `json:"sales_messages"`
	SupportTickets int `json:"support_tickets"`
	Inquiries      int `json:"inquiries"`
	Unclassified   int `json:"unclassified"`
	AutoReplied    int `json:"auto_replied"`

	AutoReplyRate float64 `json:"auto_reply_rate"`
}

// ActionsSummary describes the current follow-up backlog. It is a point-in-time
// snapshot, not a ranged query.

type ActionsSummary struct {
	WorkspaceID string `json:"workspace_id"`

	PendingTotal  int            `json:"pending_total"`
	PendingByType map[string]int `json:"pending_by_type"`
	HighPriority  int            `json:"high_priority"`
	Overdue       int            `json:"overdue"`
}
