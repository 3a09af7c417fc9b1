// Package chat relays appointment-scoped text messages between the two
// participants of an appointment.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/neuropath/rtcore/internal/events"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/util"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("chat")

type Store interface {
	FetchAppointment(ctx context.Context, id string) (*model.Appointment, error)
	SaveChatMessage(ctx context.Context, m *model.ChatMessage) error
	FetchMessages(ctx context.Context, appointmentID string, limit int) ([]*model.ChatMessage, error)
}

type Notifier interface {
	Send(userID, event string, data any) bool
}

type Relay struct {
	store      Store
	notify     Notifier
	audit      *events.Publisher
	locks      *util.KeyedMutex
	maxContent int
	now        func() time.Time
}

func NewRelay(store Store, notify Notifier, audit *events.Publisher, maxContent int) *Relay {
	if maxContent <= 0 {
		maxContent = DefaultMaxContent
	}
	return &Relay{
		store:      store,
		notify:     notify,
		audit:      audit,
		locks:      util.NewKeyedMutex(),
		maxContent: maxContent,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send stores a message and forwards it to the other participant. Messages
// of one appointment are stored and forwarded in the order Send accepted
// them. If the other participant is offline the message is only stored.
func (r *Relay) Send(ctx context.Context, appointmentID, senderID, content string) (*model.ChatMessage, error) {
	content = normalizeContent(content)
	switch {
	case appointmentID == "":
		return nil, fmt.Errorf("%w: appointment id is required", model.ErrBadRequest)
	case content == "":
		return nil, fmt.Errorf("%w: empty message", model.ErrBadRequest)
	case contentLen(content) > r.maxContent:
		return nil, fmt.Errorf("%w: message longer than %d characters", model.ErrBadRequest, r.maxContent)
	}

	a, err := r.store.FetchAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	other := a.Counterpart(senderID)
	if other == "" {
		return nil, fmt.Errorf("%s in appointment %s: %w", senderID, appointmentID, model.ErrNotParticipant)
	}

	unlock := r.locks.Lock(appointmentID)
	defer unlock()

	msg := NewMessage(appointmentID, senderID, content, r.now())
	if err := r.store.SaveChatMessage(ctx, msg); err != nil {
		log.Warnf("appointment %s: save message from %s failed: %v", appointmentID, senderID, err)
		return nil, err
	}

	delivered := r.notify.Send(other, proto.EventChatMessage, msg)
	log.Debugf("appointment %s: message %s from %s (delivered=%v)", appointmentID, msg.ID, senderID, delivered)

	r.audit.Emit(events.Event{
		Kind:          events.KindChatMessage,
		AppointmentID: appointmentID,
		MessageID:     msg.ID,
		ActorID:       senderID,
		At:            msg.CreatedAt,
	})
	return msg, nil
}

// History returns stored messages in acceptance order. Only participants
// may read it.
func (r *Relay) History(ctx context.Context, appointmentID, userID string, limit int) ([]*model.ChatMessage, error) {
	a, err := r.store.FetchAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsParticipant(userID) {
		return nil, fmt.Errorf("%s in appointment %s: %w", userID, appointmentID, model.ErrNotParticipant)
	}
	return r.store.FetchMessages(ctx, appointmentID, limit)
}
