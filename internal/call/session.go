package call

import "time"

type State string

const (
	StateIdle      State = "idle"
	StateOffering  State = "offering"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

// Reason says why a session ended. Only the first four are sent to clients.
type Reason string

const (
	ReasonHangup           Reason = "hangup"
	ReasonRejected         Reason = "rejected"
	ReasonTimeout          Reason = "timeout"
	ReasonPeerDisconnected Reason = "peer-disconnected"

	// ReasonUnreachable marks an offer that never reached the callee.
	ReasonUnreachable Reason = "unreachable"
	// ReasonShutdown marks sessions torn down by Close.
	ReasonShutdown Reason = "shutdown"
)

func ParseReason(s string) Reason {
	switch r := Reason(s); r {
	case ReasonHangup, ReasonRejected, ReasonTimeout, ReasonPeerDisconnected:
		return r
	}
	return ReasonHangup
}

// Session is one call attempt between two users. All fields are guarded by
// the owning Manager's lock.
type Session struct {
	id       string
	callerID string
	calleeID string

	state       State
	reason      Reason
	startedAt   time.Time
	connectedAt time.Time
	endedAt     time.Time

	timer *time.Timer
}

func (s *Session) involves(userID string) bool {
	return s.callerID == userID || s.calleeID == userID
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Info is an immutable snapshot of a session.
type Info struct {
	ID          string    `json:"id"`
	CallerID    string    `json:"callerId"`
	CalleeID    string    `json:"calleeId"`
	State       State     `json:"state"`
	Reason      Reason    `json:"reason,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	ConnectedAt time.Time `json:"connectedAt,omitzero"`
	EndedAt     time.Time `json:"endedAt,omitzero"`
}

func (s *Session) info() Info {
	return Info{
		ID:          s.id,
		CallerID:    s.callerID,
		CalleeID:    s.calleeID,
		State:       s.state,
		Reason:      s.reason,
		StartedAt:   s.startedAt,
		ConnectedAt: s.connectedAt,
		EndedAt:     s.endedAt,
	}
}

// Duration is the connected time of an ended call.
func (i Info) Duration() time.Duration {
	if i.ConnectedAt.IsZero() || i.EndedAt.IsZero() {
		return 0
	}
	return i.EndedAt.Sub(i.ConnectedAt)
}

type pairKey struct{ a, b string }

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{x, y}
}
