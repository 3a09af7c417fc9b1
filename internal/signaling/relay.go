// Package signaling forwards WebRTC offers, answers, ICE candidates and
// end/reject signals between two users, keeping the call session manager in
// step with what was actually delivered.
package signaling

import (
	"errors"
	"fmt"

	"github.com/neuropath/rtcore/internal/call"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("signaling")

type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
	KindICE    Kind = "ice"
	KindEnd    Kind = "end"
	KindReject Kind = "reject"
)

// KindFromEvent maps a webrtc:* event name to a signal kind.
func KindFromEvent(event string) (Kind, bool) {
	switch event {
	case proto.EventOffer:
		return KindOffer, true
	case proto.EventAnswer:
		return KindAnswer, true
	case proto.EventICE:
		return KindICE, true
	case proto.EventEnd:
		return KindEnd, true
	case proto.EventReject:
		return KindReject, true
	}
	return "", false
}

type Sender interface {
	Send(userID, event string, data any) bool
}

// Sessions is the call manager surface the relay drives.
type Sessions interface {
	StartOffer(callerID, calleeID string) (call.Info, error)
	MarkRinging(sessionID string) error
	OnAnswerForwarded(sessionID string) error
	OnEnd(sessionID string, reason call.Reason) bool
	EndAllFor(userID string, reason call.Reason) int
	Abort(sessionID string)
	Active(a, b string) (call.Info, bool)
}

type Relay struct {
	send     Sender
	sessions Sessions
}

func NewRelay(send Sender, sessions Sessions) *Relay {
	return &Relay{send: send, sessions: sessions}
}

// Relay handles one signal from an authenticated user. The payload's From is
// always overwritten with from. Undeliverable and stale signals are reported
// back to the sender with a notice event as well as the returned error.
func (r *Relay) Relay(kind Kind, from string, p proto.SignalPayload) error {
	p.From = from

	var err error
	switch kind {
	case KindOffer:
		err = r.offer(p)
	case KindAnswer:
		err = r.answer(p)
	case KindICE:
		err = r.ice(p)
	case KindEnd:
		err = r.end(p, call.ReasonHangup)
	case KindReject:
		err = r.end(p, call.ReasonRejected)
	default:
		return fmt.Errorf("%w: unknown signal %q", model.ErrBadRequest, kind)
	}

	switch {
	case errors.Is(err, model.ErrPeerUnreachable):
		r.send.Send(from, proto.EventPeerUnreachable, proto.NoticePayload{Kind: string(kind), To: p.To})
	case errors.Is(err, model.ErrStaleSignal):
		r.send.Send(from, proto.EventStaleSignal, proto.NoticePayload{Kind: string(kind), To: p.To})
	}
	if err != nil {
		log.Debugf("%s %s -> %s: %v", kind, from, p.To, err)
	}
	return err
}

func requireTarget(p proto.SignalPayload) error {
	if p.To == "" {
		return fmt.Errorf("%w: missing target", model.ErrBadRequest)
	}
	if p.To == p.From {
		return fmt.Errorf("%w: cannot signal yourself", model.ErrBadRequest)
	}
	return nil
}

func (r *Relay) offer(p proto.SignalPayload) error {
	if err := requireTarget(p); err != nil {
		return err
	}
	if p.SDP == nil {
		return fmt.Errorf("%w: offer without sdp", model.ErrBadRequest)
	}

	// Any live session of the pair, connected included, refuses the offer.
	s, err := r.sessions.StartOffer(p.From, p.To)
	if err != nil {
		return err
	}
	p.SessionID = s.ID
	if !r.send.Send(p.To, proto.EventOffer, p) {
		r.sessions.Abort(s.ID)
		return fmt.Errorf("offer to %s: %w", p.To, model.ErrPeerUnreachable)
	}
	// The session may already have ended or been answered once the offer is
	// out; both parties have heard about that from the session manager.
	if err := r.sessions.MarkRinging(s.ID); err != nil {
		log.Debugf("session %s: not ringing: %v", s.ID, err)
	}
	return nil
}

func (r *Relay) answer(p proto.SignalPayload) error {
	if err := requireTarget(p); err != nil {
		return err
	}
	if p.SDP == nil {
		return fmt.Errorf("%w: answer without sdp", model.ErrBadRequest)
	}
	cur, ok := r.sessions.Active(p.From, p.To)
	if !ok {
		return fmt.Errorf("answer to %s: no session: %w", p.To, model.ErrStaleSignal)
	}
	if cur.CalleeID != p.From {
		return fmt.Errorf("answer from caller in %s: %w", cur.State, model.ErrStaleSignal)
	}
	p.SessionID = cur.ID
	if !r.send.Send(p.To, proto.EventAnswer, p) {
		return fmt.Errorf("answer to %s: %w", p.To, model.ErrPeerUnreachable)
	}
	return r.sessions.OnAnswerForwarded(cur.ID)
}

func (r *Relay) ice(p proto.SignalPayload) error {
	if err := requireTarget(p); err != nil {
		return err
	}
	if p.Candidate == nil {
		return fmt.Errorf("%w: ice without candidate", model.ErrBadRequest)
	}
	cur, ok := r.sessions.Active(p.From, p.To)
	if !ok {
		return fmt.Errorf("ice to %s: no session: %w", p.To, model.ErrStaleSignal)
	}
	p.SessionID = cur.ID
	if !r.send.Send(p.To, proto.EventICE, p) {
		return fmt.Errorf("ice to %s: %w", p.To, model.ErrPeerUnreachable)
	}
	return nil
}

// end terminates the pair's session, or every session of the sender when no
// target is given. Both parties hear about it from the session manager.
func (r *Relay) end(p proto.SignalPayload, reason call.Reason) error {
	if p.To == "" {
		if n := r.sessions.EndAllFor(p.From, reason); n == 0 {
			log.Debugf("%s from %s with no live session", reason, p.From)
		}
		return nil
	}
	cur, ok := r.sessions.Active(p.From, p.To)
	if !ok || !r.sessions.OnEnd(cur.ID, reason) {
		return fmt.Errorf("%s to %s: no session: %w", reason, p.To, model.ErrStaleSignal)
	}
	return nil
}
