// Package call tracks the lifecycle of call sessions between pairs of users:
// at most one live session per unordered pair, a ringing deadline, and a
// single end notification to both parties.
package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/events"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/util"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("call")

const (
	DefaultRingTimeout = 45 * time.Second
	historySize        = 256
)

type Notifier interface {
	Send(userID, event string, data any) bool
}

// Manager owns every live call session.
type Manager struct {
	notify Notifier
	audit  *events.Publisher

	mu          sync.Mutex
	sessions    map[string]*Session
	byPair      map[pairKey]*Session
	ringTimeout time.Duration
	closed      bool

	history *util.RingBuffer[Info]
	now     func() time.Time
}

func NewManager(notify Notifier, audit *events.Publisher, ringTimeout time.Duration) *Manager {
	if ringTimeout <= 0 {
		ringTimeout = DefaultRingTimeout
	}
	return &Manager{
		notify:      notify,
		audit:       audit,
		sessions:    make(map[string]*Session),
		byPair:      make(map[pairKey]*Session),
		ringTimeout: ringTimeout,
		history:     util.NewRingBuffer[Info](historySize),
		now:         time.Now,
	}
}

// SetRingTimeout changes the deadline for sessions that start ringing later.
func (m *Manager) SetRingTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.ringTimeout = d
	m.mu.Unlock()
}

// StartOffer opens a session in offering state. It fails with
// ErrAlreadyInCall while the pair has a session that has not ended.
func (m *Manager) StartOffer(callerID, calleeID string) (Info, error) {
	if callerID == "" || calleeID == "" || callerID == calleeID {
		return Info{}, fmt.Errorf("%w: invalid call target", model.ErrBadRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Info{}, fmt.Errorf("call manager closed: %w", model.ErrPeerUnreachable)
	}

	key := newPairKey(callerID, calleeID)
	if cur, ok := m.byPair[key]; ok {
		return cur.info(), fmt.Errorf("%s <-> %s (session %s, %s): %w",
			callerID, calleeID, cur.id, cur.state, model.ErrAlreadyInCall)
	}

	s := &Session{
		id:        uuid.NewString(),
		callerID:  callerID,
		calleeID:  calleeID,
		state:     StateOffering,
		startedAt: m.now(),
	}
	m.sessions[s.id] = s
	m.byPair[key] = s

	log.Infof("session %s: %s -> %s offering", s.id, callerID, calleeID)
	m.audit.Emit(events.Event{Kind: events.KindCallStarted, SessionID: s.id, ActorID: callerID, PeerID: calleeID})
	return s.info(), nil
}

// MarkRinging records that the offer reached the callee and arms the ring
// deadline.
func (m *Manager) MarkRinging(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.state != StateOffering {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrStaleSignal)
	}
	s.state = StateRinging
	s.timer = time.AfterFunc(m.ringTimeout, func() { m.expire(sessionID) })
	log.Debugf("session %s: ringing (timeout %s)", sessionID, m.ringTimeout)
	return nil
}

// OnAnswerForwarded marks the session connected. It also accepts offering,
// since a fast answer can arrive before MarkRinging runs. A repeated answer
// on a connected session is a no-op.
func (m *Manager) OnAnswerForwarded(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, model.ErrStaleSignal)
	}
	switch s.state {
	case StateOffering, StateRinging:
		s.stopTimer()
		s.state = StateConnected
		s.connectedAt = m.now()
		log.Infof("session %s: connected", sessionID)
		m.audit.Emit(events.Event{Kind: events.KindCallConnected, SessionID: s.id, ActorID: s.calleeID, PeerID: s.callerID})
		return nil
	case StateConnected:
		return nil
	}
	return fmt.Errorf("session %s in %s: %w", sessionID, s.state, model.ErrStaleSignal)
}

// OnEnd ends the session and notifies both parties once. Ending an ended or
// unknown session is a no-op that returns false.
func (m *Manager) OnEnd(sessionID string, reason Reason) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	info := m.finishLocked(s, reason)
	m.mu.Unlock()

	m.announce(info)
	return true
}

// Abort discards a session whose offer could not be delivered. Nobody is
// notified; the caller gets peer-unreachable from the relay instead.
func (m *Manager) Abort(sessionID string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		m.finishLocked(s, ReasonUnreachable)
	}
	m.mu.Unlock()
}

// EndAllFor ends every live session of userID and returns how many ended.
func (m *Manager) EndAllFor(userID string, reason Reason) int {
	m.mu.Lock()
	var ended []Info
	for _, s := range m.sessions {
		if s.involves(userID) {
			ended = append(ended, m.finishLocked(s, reason))
		}
	}
	m.mu.Unlock()

	for _, info := range ended {
		m.announce(info)
	}
	return len(ended)
}

// HandlePresence ends the sessions of a user whose last connection went
// away. The remaining participant is told right away.
func (m *Manager) HandlePresence(userID string, online bool) {
	if online {
		return
	}
	if n := m.EndAllFor(userID, ReasonPeerDisconnected); n > 0 {
		log.Infof("user %s disconnected: ended %d session(s)", userID, n)
	}
}

func (m *Manager) expire(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || (s.state != StateRinging && s.state != StateOffering) {
		m.mu.Unlock()
		return
	}
	info := m.finishLocked(s, ReasonTimeout)
	m.mu.Unlock()

	log.Infof("session %s: no answer within ring timeout", sessionID)
	m.announce(info)
}

// finishLocked moves s to ended and forgets it. Callers hold m.mu.
func (m *Manager) finishLocked(s *Session, reason Reason) Info {
	s.stopTimer()
	s.state = StateEnded
	s.reason = reason
	s.endedAt = m.now()
	delete(m.sessions, s.id)
	if cur := m.byPair[newPairKey(s.callerID, s.calleeID)]; cur == s {
		delete(m.byPair, newPairKey(s.callerID, s.calleeID))
	}

	info := s.info()
	m.history.Push(info)
	m.audit.Emit(events.Event{
		Kind:      events.KindCallEnded,
		SessionID: s.id,
		ActorID:   s.callerID,
		PeerID:    s.calleeID,
		Reason:    string(reason),
	})
	return info
}

// announce sends the end notice to both parties, outside the lock.
func (m *Manager) announce(info Info) {
	if info.Reason == ReasonUnreachable || info.Reason == ReasonShutdown {
		return
	}
	event := proto.EventEnd
	if info.Reason == ReasonRejected {
		event = proto.EventReject
	}
	for _, party := range []string{info.CallerID, info.CalleeID} {
		other := info.CalleeID
		if party == info.CalleeID {
			other = info.CallerID
		}
		m.notify.Send(party, event, proto.SignalPayload{
			To:        party,
			From:      other,
			SessionID: info.ID,
			Reason:    string(info.Reason),
		})
	}
	log.Infof("session %s: ended (%s) after %s connected", info.ID, info.Reason, info.Duration().Round(time.Second))
}

// Active returns the live session between a and b, if any.
func (m *Manager) Active(a, b string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPair[newPairKey(a, b)]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// Get returns a live session by id.
func (m *Manager) Get(sessionID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return s.info(), true
}

// SessionsOf returns the live sessions userID takes part in.
func (m *Manager) SessionsOf(userID string) []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Info
	for _, s := range m.sessions {
		if s.involves(userID) {
			out = append(out, s.info())
		}
	}
	return out
}

// Sessions returns every live session.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.info())
	}
	return out
}

// History returns recently ended sessions, oldest first.
func (m *Manager) History() []Info { return m.history.Snapshot() }

// Close stops all ring timers and drops live sessions without notifying.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, s := range m.sessions {
		m.finishLocked(s, ReasonShutdown)
	}
}
