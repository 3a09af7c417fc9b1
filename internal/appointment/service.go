// Package appointment owns appointment status transitions and tells both
// participants about every change.
package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neuropath/rtcore/internal/events"
	"github.com/neuropath/rtcore/internal/model"
	"github.com/neuropath/rtcore/internal/proto"
	"github.com/neuropath/rtcore/internal/util"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("appointment")

// Store is the persistence the state machine needs.
type Store interface {
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	FetchAppointment(ctx context.Context, id string) (*model.Appointment, error)
	SaveAppointmentStatus(ctx context.Context, id string, from, to model.AppointmentStatus, at time.Time) error
	ListAppointments(ctx context.Context, userID string) ([]*model.Appointment, error)
}

// Notifier delivers events to every connection of a user.
type Notifier interface {
	Send(userID, event string, data any) bool
}

var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusRejected},
	model.StatusConfirmed: {model.StatusCancelled, model.StatusCompleted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Service struct {
	store  Store
	notify Notifier
	audit  *events.Publisher
	locks  *util.KeyedMutex
	now    func() time.Time
}

func NewService(store Store, notify Notifier, audit *events.Publisher) *Service {
	return &Service{
		store:  store,
		notify: notify,
		audit:  audit,
		locks:  util.NewKeyedMutex(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Request books a pending appointment and notifies the neurologist if they
// are connected. An offline neurologist sees it on their next fetch.
func (s *Service) Request(ctx context.Context, patientID, neurologistID string, slot model.Slot) (*model.Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	neurologistID = strings.TrimSpace(neurologistID)
	switch {
	case patientID == "" || neurologistID == "":
		return nil, fmt.Errorf("%w: patient and neurologist are required", model.ErrBadRequest)
	case patientID == neurologistID:
		return nil, fmt.Errorf("%w: patient and neurologist must differ", model.ErrBadRequest)
	case strings.TrimSpace(slot.Date) == "" || strings.TrimSpace(slot.Time) == "":
		return nil, fmt.Errorf("%w: date and time are required", model.ErrBadRequest)
	}

	now := s.now()
	a := &model.Appointment{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		NeurologistID: neurologistID,
		Date:          strings.TrimSpace(slot.Date),
		Time:          strings.TrimSpace(slot.Time),
		Type:          strings.TrimSpace(slot.Type),
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}

	delivered := s.notify.Send(neurologistID, proto.EventAppointmentRequest, proto.AppointmentPayload{Appointment: a})
	log.Infof("appointment %s requested by %s for %s (delivered=%v)", a.ID, patientID, neurologistID, delivered)
	s.audit.Emit(events.Event{
		Kind:          events.KindAppointmentRequested,
		AppointmentID: a.ID,
		ActorID:       patientID,
		To:            string(a.Status),
		At:            now,
	})
	return a, nil
}

// Respond accepts or rejects a pending appointment. Only the assigned
// neurologist may respond.
func (s *Service) Respond(ctx context.Context, appointmentID, responderID string, accept bool) (*model.Appointment, error) {
	to := model.StatusRejected
	if accept {
		to = model.StatusConfirmed
	}
	return s.transition(ctx, appointmentID, responderID, to, func(a *model.Appointment) error {
		if responderID != a.NeurologistID {
			return fmt.Errorf("%s is not the assigned neurologist: %w", responderID, model.ErrInvalidTransition)
		}
		return nil
	})
}

// Cancel moves a confirmed appointment to cancelled. Either participant may
// cancel.
func (s *Service) Cancel(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, actorID, model.StatusCancelled, requireParticipant(actorID))
}

// Complete moves a confirmed appointment to completed.
func (s *Service) Complete(ctx context.Context, appointmentID, actorID string) (*model.Appointment, error) {
	return s.transition(ctx, appointmentID, actorID, model.StatusCompleted, requireParticipant(actorID))
}

func requireParticipant(actorID string) func(*model.Appointment) error {
	return func(a *model.Appointment) error {
		if !a.IsParticipant(actorID) {
			return fmt.Errorf("%s: %w", actorID, model.ErrNotParticipant)
		}
		return nil
	}
}

// transition serializes per appointment: load, authorize, check the move,
// persist, then notify. A failed save skips the notification.
func (s *Service) transition(ctx context.Context, id, actorID string, to model.AppointmentStatus, authorize func(*model.Appointment) error) (*model.Appointment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: appointment id is required", model.ErrBadRequest)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.FetchAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(a); err != nil {
		return nil, err
	}

	from := a.Status
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("appointment %s: %s -> %s: %w", id, from, to, model.ErrInvalidTransition)
	}

	now := s.now()
	if err := s.store.SaveAppointmentStatus(ctx, id, from, to, now); err != nil {
		log.Warnf("appointment %s: save %s -> %s failed: %v", id, from, to, err)
		return nil, err
	}
	a.Status = to
	a.UpdatedAt = now

	payload := proto.AppointmentPayload{Appointment: a}
	s.notify.Send(a.PatientID, proto.EventAppointmentUpdated, payload)
	s.notify.Send(a.NeurologistID, proto.EventAppointmentUpdated, payload)

	log.Infof("appointment %s: %s -> %s by %s", id, from, to, actorID)
	s.audit.Emit(events.Event{
		Kind:          events.KindAppointmentTransition,
		AppointmentID: id,
		ActorID:       actorID,
		From:          string(from),
		To:            string(to),
		At:            now,
	})
	return a, nil
}

// Get returns an appointment visible to userID.
func (s *Service) Get(ctx context.Context, appointmentID, userID string) (*model.Appointment, error) {
	a, err := s.store.FetchAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsParticipant(userID) {
		return nil, fmt.Errorf("%s: %w", userID, model.ErrNotParticipant)
	}
	return a, nil
}

// List returns the appointments userID takes part in.
func (s *Service) List(ctx context.Context, userID string) ([]*model.Appointment, error) {
	return s.store.ListAppointments(ctx, userID)
}
