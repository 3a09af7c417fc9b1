package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/signaling"
)

// handle decodes one client frame, runs it and answers. Failures are
// reported to this connection and never close it.
func (s *session) handle(ctx context.Context, data []byte) {
	env, err := proto.Decode(data)
	if err != nil {
		s.fail("", err)
		return
	}

	if !s.g.limiter.Allow(s.identity.UserID) {
		s.fail(env.Ref, fmt.Errorf("%w: slow down", model.ErrRateLimited))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.g.opts.RequestTimeout)
	defer cancel()

	result, err := s.dispatch(ctx, env)
	switch {
	case err == nil:
		if env.Ref != "" {
			s.reply(proto.EventAck, env.Ref, result)
		}
	case env.Ref != "":
		s.fail(env.Ref, err)
	case errors.Is(err, model.ErrPeerUnreachable), errors.Is(err, model.ErrStaleSignal):
		// Already reported with a notice event.
	default:
		s.fail("", err)
	}
}

func (s *session) fail(ref string, err error) {
	if model.Code(err) == model.CodeInternal {
		log.Errorf("user %s: %v", s.identity.UserID, err)
	}
	s.reply(proto.EventError, ref, proto.ErrorFrom(err))
}

func (s *session) dispatch(ctx context.Context, env proto.Envelope) (any, error) {
	user := s.identity.UserID
	d := s.g.deps

	if kind, ok := signaling.KindFromEvent(env.Event); ok {
		var p proto.SignalPayload
		// end and reject may come without a body.
		if len(env.Data) > 0 {
			if err := env.Bind(&p); err != nil {
				return nil, err
			}
		}
		return nil, d.Signals.Relay(kind, user, p)
	}

	switch env.Event {
	case proto.EventAppointmentRespond:
		var p proto.RespondPayload
		if err := env.Bind(&p); err != nil {
			return nil, err
		}
		a, err := d.Appointments.Respond(ctx, p.AppointmentID, user, p.Accept)
		if err != nil {
			return nil, err
		}
		return proto.AppointmentPayload{Appointment: a}, nil

	case proto.EventAppointmentCancel, proto.EventAppointmentComplete:
		var p proto.AppointmentActionPayload
		if err := env.Bind(&p); err != nil {
			return nil, err
		}
		op := d.Appointments.Cancel
		if env.Event == proto.EventAppointmentComplete {
			op = d.Appointments.Complete
		}
		a, err := op(ctx, p.AppointmentID, user)
		if err != nil {
			return nil, err
		}
		return proto.AppointmentPayload{Appointment: a}, nil

	case proto.EventChatMessage:
		var p proto.ChatPayload
		if err := env.Bind(&p); err != nil {
			return nil, err
		}
		msg, err := d.Chat.Send(ctx, p.AppointmentID, user, p.Content)
		if err != nil {
			return nil, err
		}
		return msg, nil

	case proto.EventPresenceWatch:
		var p proto.PresenceWatchPayload
		if err := env.Bind(&p); err != nil {
			return nil, err
		}
		statuses := d.Presence.Watch(user, p.UserIDs)
		out := make([]proto.PresencePayload, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, st.Payload())
			s.reply(proto.EventPresenceUpdate, "", st.Payload())
		}
		return out, nil

	case proto.EventPresenceUnwatch:
		d.Presence.Unwatch(user)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: unknown event %q", model.ErrBadRequest, env.Event)
}
