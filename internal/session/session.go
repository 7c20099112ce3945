package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
)

// State is the call session lifecycle state.
//
// Transitions are monotonic: Idle -> Ringing -> Active -> Wrapping -> Completed,
// with Ringing|Active -> Failed on provider error. A session never revisits an
// earlier state, and Completed/Failed are terminal.
type State string

const (
	StateIdle      State = "idle"
	StateRinging   State = "ringing"
	StateActive    State = "active"
	StateWrapping  State = "wrapping"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Disposition is the operator-recorded outcome of a completed call.
type Disposition string

const (
	DispositionBooked    Disposition = "booked"
	DispositionNotBooked Disposition = "not_booked"
	DispositionCallback  Disposition = "callback"
	DispositionNotAFit   Disposition = "not_a_fit"
	DispositionVoicemail Disposition = "voicemail"
)

func ValidDisposition(d Disposition) bool {
	switch d {
	case DispositionBooked, DispositionNotBooked, DispositionCallback, DispositionNotAFit, DispositionVoicemail:
		return true
	default:
		return false
	}
}

// ErrInvalidTransition is returned for any transition the lifecycle does not
// permit, including every transition attempted on a terminal session. The
// session state is never mutated on this error.
var ErrInvalidTransition = errors.New("session: invalid transition")

// ErrNotActive is returned when a checklist item is toggled outside the Active
// state. The toggle is a reported no-op so the operator UI can surface it.
var ErrNotActive = errors.New("session: call is not active")

// CallerContext is a read-only projection of the counterparty's customer
// record, fetched once at session start and never mutated by the session.
type CallerContext struct {
	Name              string   `json:"name"`
	ReturningCustomer bool     `json:"returning_customer"`
	LastInteraction   string   `json:"last_interaction,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

// ChecklistItem is one intake item the operator works through on a live call.
type ChecklistItem struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Done     bool   `json:"done"`
}

// DispositionRecord is emitted exactly once, when a session reaches a terminal
// state. It feeds the action engine and the interaction history store.
type DispositionRecord struct {
	SessionID    string              `json:"session_id"`
	OperatorID   string              `json:"operator_id"`
	WorkspaceID  string              `json:"workspace_id"`
	Direction    telephony.Direction `json:"direction"`
	Counterparty string              `json:"counterparty"`
	CallerName   string              `json:"caller_name,omitempty"`

	Outcome Disposition `json:"outcome"`
	// Reason is operator-entered for Completed sessions and system-generated
	// for Failed ones.
	Reason       string `json:"reason,omitempty"`
	SystemClosed bool   `json:"system_closed"`

	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at"`
}

// CallSession owns the lifecycle of one live call for one operator.
//
// It is safe for concurrent use: provider events arrive on a dispatch
// goroutine while mute/hold/checklist/disposition calls come from HTTP
// handlers.
type CallSession struct {
	mu sync.Mutex

	id           string
	operatorID   string
	workspaceID  string
	direction    telephony.Direction
	counterparty string
	caller       CallerContext
	checklist    []ChecklistItem

	state  State
	muted  bool
	onHold bool

	startedAt time.Time
	endedAt   time.Time

	disposition       Disposition
	dispositionReason string

	clock func() time.Time
}

// Params carries everything needed to open a session.
type Params struct {
	ID           string
	OperatorID   string
	WorkspaceID  string
	Direction    telephony.Direction
	Counterparty string
	Caller       CallerContext
	Checklist    []ChecklistItem

	Clock func() time.Time
}

// New opens a session in Idle. Call Ring to start the lifecycle.
func New(p Params) *CallSession {
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	items := make([]ChecklistItem, len(p.Checklist))
	copy(items, p.Checklist)
	return &CallSession{
		id:           p.ID,
		operatorID:   p.OperatorID,
		workspaceID:  p.WorkspaceID,
		direction:    p.Direction,
		counterparty: p.Counterparty,
		caller:       p.Caller,
		checklist:    items,
		state:        StateIdle,
		clock:        clock,
	}
}

func (s *CallSession) ID() string         { return s.id }
func (s *CallSession) OperatorID() string { return s.operatorID }

// State returns the current lifecycle state.
func (s *CallSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Caller returns the read-only caller context snapshot.
func (s *CallSession) Caller() CallerContext {
	// Immutable after New; no lock required.
	return s.caller
}

// Ring moves Idle -> Ringing when the call is placed or received.
func (s *CallSession) Ring() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: %s -> ringing", ErrInvalidTransition, s.state)
	}
	s.state = StateRinging
	return nil
}

// Connect moves Ringing -> Active and records the start timestamp.
func (s *CallSession) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRinging {
		return fmt.Errorf("%w: %s -> active", ErrInvalidTransition, s.state)
	}
	s.state = StateActive
	s.startedAt = s.clock().UTC()
	return nil
}

// Wrap moves Active -> Wrapping after local or remote hangup. Media is torn
// down; the disposition form is presented.
func (s *CallSession) Wrap() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return fmt.Errorf("%w: %s -> wrapping", ErrInvalidTransition, s.state)
	}
	s.state = StateWrapping
	return nil
}

// SubmitDisposition moves Wrapping -> Completed with the operator's outcome
// and returns the emitted disposition record.
func (s *CallSession) SubmitDisposition(outcome Disposition, reason string) (DispositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWrapping {
		return DispositionRecord{}, fmt.Errorf("%w: %s -> completed", ErrInvalidTransition, s.state)
	}
	if !ValidDisposition(outcome) {
		return DispositionRecord{}, fmt.Errorf("%w: unknown disposition %q", ErrInvalidTransition, outcome)
	}
	s.state = StateCompleted
	s.endedAt = s.clock().UTC()
	s.disposition = outcome
	s.dispositionReason = reason
	return s.recordLocked(false), nil
}

// Fail moves any non-terminal state -> Failed on a provider error. The
// disposition is forced to not_booked with a system-generated reason, and the
// forced record is returned.
func (s *CallSession) Fail(cause string) (DispositionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return DispositionRecord{}, fmt.Errorf("%w: %s -> failed", ErrInvalidTransition, s.state)
	}
	s.state = StateFailed
	s.endedAt = s.clock().UTC()
	s.disposition = DispositionNotBooked
	if cause == "" {
		cause = "provider error"
	}
	s.dispositionReason = "call failed: " + cause
	return s.recordLocked(true), nil
}

func (s *CallSession) recordLocked(systemClosed bool) DispositionRecord {
	return DispositionRecord{
		SessionID:    s.id,
		OperatorID:   s.operatorID,
		WorkspaceID:  s.workspaceID,
		Direction:    s.direction,
		Counterparty: s.counterparty,
		CallerName:   s.caller.Name,
		Outcome:      s.disposition,
		Reason:       s.dispositionReason,
		SystemClosed: systemClosed,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
	}
}

// ToggleChecklist flips item i. Only permitted while Active; outside Active
// the state is untouched and ErrNotActive is returned so the UI can warn.
func (s *CallSession) ToggleChecklist(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	if i < 0 || i >= len(s.checklist) {
		return fmt.Errorf("session: checklist index %d out of range", i)
	}
	s.checklist[i].Done = !s.checklist[i].Done
	return nil
}

// SetMute flips the local mute flag. Mute is orthogonal to the lifecycle and
// may change in any non-terminal state.
func (s *CallSession) SetMute(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return fmt.Errorf("%w: mute on terminal session", ErrInvalidTransition)
	}
	s.muted = muted
	return nil
}

// SetHold flips the local hold flag; same rules as SetMute.
func (s *CallSession) SetHold(onHold bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return fmt.Errorf("%w: hold on terminal session", ErrInvalidTransition)
	}
	s.onHold = onHold
	return nil
}

// Snapshot is a point-in-time copy of the session for the operator UI.
type Snapshot struct {
	ID           string              `json:"id"`
	OperatorID   string              `json:"operator_id"`
	WorkspaceID  string              `json:"workspace_id"`
	Direction    telephony.Direction `json:"direction"`
	Counterparty string              `json:"counterparty"`
	Caller       CallerContext       `json:"caller"`
	Checklist    []ChecklistItem     `json:"checklist"`
	State        State               `json:"state"`
	Muted        bool                `json:"muted"`
	OnHold       bool                `json:"on_hold"`
	StartedAt    time.Time           `json:"started_at,omitempty"`
	EndedAt      time.Time           `json:"ended_at,omitempty"`
	Disposition  Disposition         `json:"disposition,omitempty"`
}

func (s *CallSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]ChecklistItem, len(s.checklist))
	copy(items, s.checklist)
	return Snapshot{
		ID:           s.id,
		OperatorID:   s.operatorID,
		WorkspaceID:  s.workspaceID,
		Direction:    s.direction,
		Counterparty: s.counterparty,
		Caller:       s.caller,
		Checklist:    items,
		State:        s.state,
		Muted:        s.muted,
		OnHold:       s.onHold,
		StartedAt:    s.startedAt,
		EndedAt:      s.endedAt,
		Disposition:  s.disposition,
	}
}
