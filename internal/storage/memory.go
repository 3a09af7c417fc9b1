package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neuropath/rtcore/internal/model"
)

// DriverMemory keeps everything in process. Data is lost on restart.
const DriverMemory = "memory"

// Memory implements the same operations as Store without a database.
type Memory struct {
	mu           sync.Mutex
	appointments map[string]model.Appointment
	messages     map[string][]model.ChatMessage
}

func NewMemory() *Memory {
	return &Memory{
		appointments: make(map[string]model.Appointment),
		messages:     make(map[string][]model.ChatMessage),
	}
}

func (m *Memory) CreateAppointment(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.appointments[a.ID]; dup {
		return persistErr("create appointment", fmt.Errorf("duplicate id %s", a.ID))
	}
	m.appointments[a.ID] = *a
	return nil
}

func (m *Memory) FetchAppointment(_ context.Context, id string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) SaveAppointmentStatus(_ context.Context, id string, from, to model.AppointmentStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return fmt.Errorf("appointment %s no longer %s: %w", id, from, model.ErrInvalidTransition)
	}
	a.Status = to
	a.UpdatedAt = at
	m.appointments[id] = a
	return nil
}

func (m *Memory) ListAppointments(_ context.Context, userID string) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, a := range m.appointments {
		if a.IsParticipant(userID) {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) SaveChatMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[msg.AppointmentID]; !ok {
		return persistErr("save chat message", fmt.Errorf("unknown appointment %s", msg.AppointmentID))
	}
	m.messages[msg.AppointmentID] = append(m.messages[msg.AppointmentID], *msg)
	return nil
}

func (m *Memory) FetchMessages(_ context.Context, appointmentID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[appointmentID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*model.ChatMessage, 0, len(all))
	for i := range all {
		msg := all[i]
		out = append(out, &msg)
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
