package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neuropath/rtcore/internal/model"
)

const appointmentCols = `id, patient_id, neurologist_id, date, time, type, status, created_at, updated_at`

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO appointments (`+appointmentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.PatientID, a.NeurologistID, a.Date, a.Time, a.Type, string(a.Status),
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt))
	if err != nil {
		return persistErr("create appointment", err)
	}
	return nil
}

func (s *Store) FetchAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+appointmentCols+` FROM appointments WHERE id = ?`), id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("fetch appointment", err)
	}
	return a, nil
}

// SaveAppointmentStatus moves the appointment from one status to another.
// The update is conditional on the stored status still being from, so a
// concurrent writer elsewhere yields ErrInvalidTransition instead of a lost
// update.
func (s *Store) SaveAppointmentStatus(ctx context.Context, id string, from, to model.AppointmentStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE appointments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`), string(to), toMillis(at), id, string(from))
	if err != nil {
		return persistErr("save appointment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("save appointment status", err)
	}
	if n == 0 {
		return fmt.Errorf("appointment %s no longer %s: %w", id, from, model.ErrInvalidTransition)
	}
	return nil
}

// ListAppointments returns the appointments userID takes part in, newest first.
func (s *Store) ListAppointments(ctx context.Context, userID string) ([]*model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+appointmentCols+` FROM appointments
		WHERE patient_id = ? OR neurologist_id = ?
		ORDER BY created_at DESC, id`), userID, userID)
	if err != nil {
		return nil, persistErr("list appointments", err)
	}
	defer rows.Close()

	var out []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, persistErr("list appointments", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list appointments", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(sc scanner) (*model.Appointment, error) {
	var (
		a                model.Appointment
		status           string
		created, updated int64
	)
	if err := sc.Scan(&a.ID, &a.PatientID, &a.NeurologistID, &a.Date, &a.Time, &a.Type,
		&status, &created, &updated); err != nil {
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}
