package actions

import "time"

// EventKind discriminates the interaction events the engine derives
// follow-ups from.
type EventKind string

const (
	// EventDisposition is a terminal call session outcome.
	EventDisposition EventKind = "disposition"
	// EventRoutedMessage is an inbound message after classification/routing.
	EventRoutedMessage EventKind = "routed_message"
	// EventAppointment is a scheduled-appointment change.
	EventAppointment EventKind = "appointment"
	// EventPipelineMovement signals that a lead moved in the sales pipeline,
	// resolving any pending lead follow-up.
	EventPipelineMovement EventKind = "pipeline_movement"
)

// Appointment change values for EventAppointment.
const (
	AppointmentCanceled = "canceled"
	AppointmentRebooked = "rebooked"
	AppointmentNoShow   = "no_show"
)

// Event is one interaction the engine ingests. Only the fields matching Kind
// are meaningful.
type Event struct {
	WorkspaceID string    `json:"workspace_id"`
	Person      Person    `json:"person"`
	Kind        EventKind `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`

	// EventDisposition fields.
	Outcome      string `json:"outcome,omitempty"`
	SystemClosed bool   `json:"system_closed,omitempty"`

	// EventRoutedMessage fields.
	Destination string `json:"destination,omitempty"`
	AutoReplied bool   `json:"auto_replied,omitempty"`

	// EventAppointment fields.
	Change string `json:"change,omitempty"`

	// Note is free text carried into the action's last-interaction summary.
	Note string `json:"note,omitempty"`
}

// IngestResult reports what an event did to the action set.
//
// DuplicateSuppressed is informational, not an error: the event qualified for
// an action, but an existing pending Action of the same (person, type) pair
// absorbed it.
type IngestResult struct {
	Matched             bool   `json:"matched"`
	Created             bool   `json:"created"`
	DuplicateSuppressed bool   `json:"duplicate_suppressed"`
	ActionID            string `json:"action_id,omitempty"`
}
