package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
)

// ContactDirectory resolves the caller-context snapshot for a counterparty
// phone number. Lookup happens once, at session start.
type ContactDirectory interface {
	LookupByPhone(ctx context.Context, workspaceID, phone string) (CallerContext, error)
}

// DispositionSink consumes the record emitted when a session terminates.
// Implementations: interaction history store, action engine ingestion.
type DispositionSink interface {
	RecordDisposition(ctx context.Context, rec DispositionRecord) error
}

// MultiSink fans a disposition record out to several sinks. Sink failures are
// independent; the first error is returned after all sinks have been tried.
type MultiSink []DispositionSink

func (m MultiSink) RecordDisposition(ctx context.Context, rec DispositionRecord) error {
	var first error
	for _, s := range m {
		if err := s.RecordDisposition(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	// ErrNoSession means the operator has no live session.
	ErrNoSession = errors.New("session: no live session for operator")
	// ErrSessionExists means the operator already owns a live session.
	ErrSessionExists = errors.New("session: operator already has a live session")
)

// Manager owns all live sessions for this process, one per operator.
//
// Sessions for different operators are fully independent; the manager's maps
// are the only shared state, guarded by mu. Bridge events are consumed by a
// single dispatch loop (Run), which preserves per-session arrival order.
type Manager struct {
	bridge    telephony.Bridge
	directory ContactDirectory
	sink      DispositionSink
	log       *slog.Logger
	clock     func() time.Time

	mu         sync.Mutex
	bySession  map[string]*CallSession
	byOperator map[string]*CallSession
	// dialing holds operators whose outbound call is in flight at the
	// provider but whose session is not open yet. Entries here count as a
	// live session for the one-session-per-operator rule.
	dialing map[string]struct{}
}

func NewManager(bridge telephony.Bridge, directory ContactDirectory, sink DispositionSink, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		bridge:     bridge,
		directory:  directory,
		sink:       sink,
		log:        log,
		clock:      time.Now,
		bySession:  make(map[string]*CallSession),
		byOperator: make(map[string]*CallSession),
		dialing:    make(map[string]struct{}),
	}
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) { m.clock = now }

// StartOutbound places a call and opens a Ringing session owned by operatorID.
// The operator slot is reserved before the provider is dialed, so a second
// concurrent start cannot place a call that no session would ever track.
func (m *Manager) StartOutbound(ctx context.Context, operatorID, workspaceID, destination string, checklist []ChecklistItem) (Snapshot, error) {
	if err := m.reserve(operatorID); err != nil {
		return Snapshot{}, err
	}

	caller := m.lookup(ctx, workspaceID, destination)

	handle, err := m.bridge.PlaceOutboundCall(ctx, destination)
	if err != nil {
		m.release(operatorID)
		return Snapshot{}, fmt.Errorf("session: place outbound call: %w", err)
	}

	return m.open(Params{
		ID:           handle.ID,
		OperatorID:   operatorID,
		WorkspaceID:  workspaceID,
		Direction:    telephony.DirectionOutbound,
		Counterparty: destination,
		Caller:       caller,
		Checklist:    checklist,
	})
}

// AcceptInbound opens a Ringing session for an inbound call already signaled
// by the provider. sessionID is the provider call id carried on its events.
func (m *Manager) AcceptInbound(ctx context.Context, operatorID, workspaceID, sessionID, from string, checklist []ChecklistItem) (Snapshot, error) {
	if err := m.reserve(operatorID); err != nil {
		return Snapshot{}, err
	}

	caller := m.lookup(ctx, workspaceID, from)

	return m.open(Params{
		ID:           sessionID,
		OperatorID:   operatorID,
		WorkspaceID:  workspaceID,
		Direction:    telephony.DirectionInbound,
		Counterparty: from,
		Caller:       caller,
		Checklist:    checklist,
	})
}

// reserve claims the operator slot ahead of session open. Both a live session
// and an in-flight dial occupy the slot.
func (m *Manager) reserve(operatorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOperator[operatorID]; ok {
		return ErrSessionExists
	}
	if _, ok := m.dialing[operatorID]; ok {
		return ErrSessionExists
	}
	m.dialing[operatorID] = struct{}{}
	return nil
}

// release frees a reservation that never became a session.
func (m *Manager) release(operatorID string) {
	m.mu.Lock()
	delete(m.dialing, operatorID)
	m.mu.Unlock()
}

func (m *Manager) lookup(ctx context.Context, workspaceID, phone string) CallerContext {
	if m.directory == nil {
		return CallerContext{}
	}
	caller, err := m.directory.LookupByPhone(ctx, workspaceID, phone)
	if err != nil {
		// Unknown callers are normal; the session proceeds with an empty
		// context snapshot.
		m.log.Debug("caller lookup failed", "err", err)
		return CallerContext{}
	}
	return caller
}

// open converts the caller's reservation into a live session.
func (m *Manager) open(p Params) (Snapshot, error) {
	p.Clock = m.clock
	s := New(p)
	if err := s.Ring(); err != nil {
		m.release(p.OperatorID)
		return Snapshot{}, err
	}

	m.mu.Lock()
	delete(m.dialing, p.OperatorID)
	m.bySession[p.ID] = s
	m.byOperator[p.OperatorID] = s
	m.mu.Unlock()

	m.log.Info("session opened",
		"session_id", p.ID,
		"operator_id", p.OperatorID,
		"direction", p.Direction,
	)
	return s.Snapshot(), nil
}

// Run consumes the bridge event stream until ctx is canceled or the stream
// closes. Events for unknown sessions are logged and dropped.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.bridge.Events():
			if !ok {
				return
			}
			m.Dispatch(ctx, ev)
		}
	}
}

// Dispatch applies one provider event to its session.
func (m *Manager) Dispatch(ctx context.Context, ev telephony.CallEvent) {
	m.mu.Lock()
	s, ok := m.bySession[ev.SessionID]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("event for unknown session", "session_id", ev.SessionID, "type", ev.Type)
		return
	}

	switch ev.Type {
	case telephony.EventRinging:
		// Session already opened in Ringing; nothing to apply.
	case telephony.EventConnected:
		if err := s.Connect(); err != nil {
			m.log.Warn("connect rejected", "session_id", s.ID(), "err", err)
		}
	case telephony.EventDisconnected:
		switch s.State() {
		case StateActive:
			if err := s.Wrap(); err != nil {
				m.log.Warn("wrap rejected", "session_id", s.ID(), "err", err)
			}
		case StateRinging:
			// Hung up before answer; nothing to disposition manually.
			m.failSession(ctx, s, "disconnected before answer")
		default:
			// Already wrapping or terminal; replayed teardown is a no-op.
		}
	case telephony.EventFailed:
		m.failSession(ctx, s, ev.Cause)
	default:
		m.log.Warn("unknown call event type", "type", ev.Type)
	}
}

func (m *Manager) failSession(ctx context.Context, s *CallSession, cause string) {
	rec, err := s.Fail(cause)
	if err != nil {
		// Terminal already; the provider retried a final event.
		m.log.Debug("fail rejected", "session_id", s.ID(), "err", err)
		return
	}
	m.finalize(ctx, s, rec)
}

// SubmitDisposition completes the operator's live session and archives it.
func (m *Manager) SubmitDisposition(ctx context.Context, operatorID string, outcome Disposition, reason string) (DispositionRecord, error) {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return DispositionRecord{}, err
	}
	rec, err := s.SubmitDisposition(outcome, reason)
	if err != nil {
		return DispositionRecord{}, err
	}
	m.finalize(ctx, s, rec)
	return rec, nil
}

// finalize hands the record to the sink and archives the session. Sink faults
// are logged, never propagated: a history outage must not wedge call wrap-up.
func (m *Manager) finalize(ctx context.Context, s *CallSession, rec DispositionRecord) {
	if m.sink != nil {
		if err := m.sink.RecordDisposition(ctx, rec); err != nil {
			m.log.Error("disposition sink failed", "session_id", rec.SessionID, "err", err)
		}
	}

	m.mu.Lock()
	delete(m.bySession, s.ID())
	delete(m.byOperator, s.OperatorID())
	m.mu.Unlock()

	m.log.Info("session archived",
		"session_id", rec.SessionID,
		"outcome", rec.Outcome,
		"system_closed", rec.SystemClosed,
	)
}

// Hangup tears down the operator's live call locally, moving it to Wrapping.
func (m *Manager) Hangup(ctx context.Context, operatorID string) error {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return err
	}
	return s.Wrap()
}

// ToggleChecklist flips a checklist item on the operator's live session.
func (m *Manager) ToggleChecklist(operatorID string, index int) error {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return err
	}
	return s.ToggleChecklist(index)
}

// SetMute flips the mute flag on the operator's live session.
func (m *Manager) SetMute(operatorID string, muted bool) error {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return err
	}
	return s.SetMute(muted)
}

// SetHold flips the hold flag on the operator's live session.
func (m *Manager) SetHold(operatorID string, onHold bool) error {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return err
	}
	return s.SetHold(onHold)
}

// Current returns a snapshot of the operator's live session.
func (m *Manager) Current(operatorID string) (Snapshot, error) {
	s, err := m.sessionFor(operatorID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (m *Manager) sessionFor(operatorID string) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byOperator[operatorID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}
