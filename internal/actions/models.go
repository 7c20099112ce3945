package actions

import "time"

// Action is a derived, prioritized unit of follow-up work surfaced to an
// operator.
//
// Invariants:
//   - At most one pending Action exists per (person, type) pair; newer
//     qualifying events fold into the existing pending Action.
//   - Actions are never deleted, only status-transitioned, so the follow-up
//     history stays auditable.
type Action struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	Person Person `json:"person"`

	Type     ActionType `json:"type" db:"type"`
	Priority Priority   `json:"priority" db:"priority"`
	Status   Status     `json:"status" db:"status"`

	// Reason is machine-generated text explaining why the action exists.
	Reason string `json:"reason" db:"reason"`

	// LastInteraction is an optional summary of the most recent touchpoint.
	LastInteraction string `json:"last_interaction,omitempty" db:"last_interaction"`

	DueAt     time.Time `json:"due_at" db:"due_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Person is the subject reference carried on an Action.
type Person struct {
	ID    string   `json:"id" db:"person_id"`
	Name  string   `json:"name,omitempty" db:"person_name"`
	Phone string   `json:"phone,omitempty" db:"person_phone"`
	Tags  []string `json:"tags,omitempty"`
}

type ActionType string

const (
	TypeMissedCall   ActionType = "missed_call"
	TypeCancellation ActionType = "cancellation"
	TypeNoShow       ActionType = "no_show"
	TypeLead         ActionType = "lead"
	TypeRecall       ActionType = "recall"
	TypeInfoPending  ActionType = "info_pending"
)

// Priority sorts ascending: high work floats to the top of the queue.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityMedium Priority = 1
	PriorityLow    Priority = 2
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSnoozed   Status = "snoozed"
	StatusDismissed Status = "dismissed"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusSnoozed, StatusDismissed:
		return true
	default:
		return false
	}
}

// Filter narrows a List query. Zero values mean no constraint.
type Filter struct {
	Status   Status     `json:"status,omitempty"`
	Type     ActionType `json:"type,omitempty"`
	PersonID string     `json:"person_id,omitempty"`
}
