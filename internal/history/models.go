package history

import "time"

// Entry is an immutable, append-only interaction history record.
//
// Invariants:
// - Entries are never updated or deleted.
// - workspace_id is required for tenancy isolation.
// - History writes are best-effort; callers must not block interaction flows
//   on a history failure.
//
// Storage recommendation (Postgres):
// - Table interaction_history with an INSERT-only policy.
// - Optional: partition by time for retention.

type Entry struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// Kind indicates the interaction channel the entry records.
	Kind EntryKind `json:"kind" db:"kind"`

	// PersonID links the entry to a known contact when one matched.
	PersonID string `json:"person_id,omitempty" db:"person_id"`
	// Counterparty is the raw remote endpoint (phone number or client name).
	Counterparty string `json:"counterparty,omitempty" db:"counterparty"`
	// OperatorID is the authenticated operator on the interaction, if any.
	OperatorID string `json:"operator_id,omitempty" db:"operator_id"`

	// Call fields.
	SessionID    string `json:"session_id,omitempty" db:"session_id"`
	Direction    string `json:"direction,omitempty" db:"direction"`
	Outcome      string `json:"outcome,omitempty" db:"outcome"`
	SystemClosed bool   `json:"system_closed,omitempty" db:"system_closed"`

	// Message fields.
	Intent      string `json:"intent,omitempty" db:"intent"`
	Destination string `json:"destination,omitempty" db:"destination"`
	AutoReplied bool   `json:"auto_replied,omitempty" db:"auto_replied"`

	// Summary is a short human-readable description of the touchpoint.
	Summary string `json:"summary,omitempty" db:"summary"`

	StartedAt time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryKind string

const (
	EntryKindCall    EntryKind = "call"
	EntryKindMessage EntryKind = "message"
)

// Query narrows a List call. Zero values mean no constraint.
type Query struct {
	PersonID string    `json:"person_id,omitempty"`
	Kind     EntryKind `json:"kind,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}
