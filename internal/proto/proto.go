// Package proto defines the event envelope and payloads exchanged with
// clients over the WebSocket gateway.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/pion/webrtc/v4"
)

// Client <-> server event names.
const (
	EventHello = "hello"
	EventAck   = "ack"
	EventError = "error"

	EventAppointmentRequest  = "appointment:request"  // server -> neurologist
	EventAppointmentRespond  = "appointment:respond"  // client -> server
	EventAppointmentCancel   = "appointment:cancel"   // client -> server
	EventAppointmentComplete = "appointment:complete" // client -> server
	EventAppointmentUpdated  = "appointment:updated"  // server -> both participants

	EventChatMessage = "chat:message" // bidirectional

	EventOffer  = "webrtc:offer"
	EventAnswer = "webrtc:answer"
	EventICE    = "webrtc:ice"
	EventEnd    = "webrtc:end"
	EventReject = "webrtc:reject"

	EventPeerUnreachable = "peer-unreachable" // server -> sender only
	EventStaleSignal     = "stale-signal"     // server -> sender only

	EventPresenceWatch   = "presence:watch"   // client -> server
	EventPresenceUnwatch = "presence:unwatch" // client -> server
	EventPresenceUpdate  = "presence:update"  // server -> watcher
)

// Envelope is the frame for every WebSocket message. Ref is an optional
// client-chosen correlation id echoed in the ack/error reply.
type Envelope struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound frame.
func Encode(event, ref string, data any) ([]byte, error) {
	env := Envelope{Event: event, Ref: ref}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses an inbound frame.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed frame: %v", model.ErrBadRequest, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", model.ErrBadRequest)
	}
	return env, nil
}

// Bind decodes the envelope payload into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s: missing data", model.ErrBadRequest, e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrBadRequest, e.Event, err)
	}
	return nil
}

// HelloPayload is sent once after the connection is registered.
type HelloPayload struct {
	ConnectionID string             `json:"connectionId"`
	UserID       string             `json:"userId"`
	Role         model.Role         `json:"role"`
	ICEServers   []webrtc.ICEServer `json:"iceServers,omitempty"`
}

// AppointmentPayload carries a full appointment (request/updated events).
type AppointmentPayload struct {
	Appointment *model.Appointment `json:"appointment"`
}

// RespondPayload is the client's answer to a pending appointment.
type RespondPayload struct {
	AppointmentID string `json:"appointmentId"`
	Accept        bool   `json:"accept"`
}

// AppointmentActionPayload names the target of cancel/complete.
type AppointmentActionPayload struct {
	AppointmentID string `json:"appointmentId"`
}

// ChatPayload is the chat:message body a client sends. The server delivers
// and acks the stored record, a flat model.ChatMessage.
type ChatPayload struct {
	AppointmentID string `json:"appointmentId"`
	Content       string `json:"content"`
}

// SignalPayload is shared by all webrtc:* events. SDP is set for offer and
// answer, Candidate for ice, Reason for end/reject.
type SignalPayload struct {
	To        string                     `json:"to,omitempty"`
	From      string                     `json:"from,omitempty"`
	SessionID string                     `json:"sessionId,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Reason    string                     `json:"reason,omitempty"`
}

// NoticePayload is sent back to a signal sender (peer-unreachable,
// stale-signal).
type NoticePayload struct {
	Kind string `json:"kind"`
	To   string `json:"to,omitempty"`
}

// ErrorPayload is the body of an error reply.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorFrom builds an ErrorPayload for err.
func ErrorFrom(err error) ErrorPayload {
	return ErrorPayload{
		Code:      model.Code(err),
		Message:   err.Error(),
		Retryable: model.Retryable(err),
	}
}

// PresenceWatchPayload lists users whose presence the client wants to follow.
type PresenceWatchPayload struct {
	UserIDs []string `json:"userIds"`
}

// PresencePayload reports one user's presence.
type PresencePayload struct {
	UserID       string `json:"userId"`
	Online       bool   `json:"online"`
	LastSeen     int64  `json:"lastSeen,omitempty"`
	OfflineSince int64  `json:"offlineSince,omitempty"`
}
