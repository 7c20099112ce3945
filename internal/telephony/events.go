package telephony

import "time"

// CallEventType is the provider event vocabulary.
// Every provider adapter must normalize its own status wire values into
// exactly these four; nothing downstream understands anything else.
type CallEventType string

const (
	EventRinging      CallEventType = "ringing"
	EventConnected    CallEventType = "connected"
	EventDisconnected CallEventType = "disconnected"
	EventFailed       CallEventType = "failed"
)

// CallEvent is an asynchronous lifecycle notification tagged with the session
// handle it belongs to. Events are forwarded unmodified to the call session
// machine; the bridge carries no business logic.
//
// Ordering: arrival order is preserved per session handle. No ordering is
// guaranteed across different sessions.
type CallEvent struct {
	SessionID string        `json:"session_id"`
	Type      CallEventType `json:"type"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Cause carries the provider failure reason when Type == failed.
	Cause string `json:"cause,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// SessionHandle identifies a media session at the provider boundary.
type SessionHandle struct {
	ID          string    `json:"id"`
	Direction   Direction `json:"direction"`
	Destination string    `json:"destination,omitempty"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)
