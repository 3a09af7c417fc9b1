package storage

import (
	"context"

	"github.com/neuropath/rtcore/internal/model"
)

// DefaultHistoryLimit caps FetchMessages when no limit is given.
const DefaultHistoryLimit = 500

func (s *Store) SaveChatMessage(ctx context.Context, m *model.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO chat_messages (id, appointment_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		m.ID, m.AppointmentID, m.SenderID, m.Content, toMillis(m.CreatedAt))
	if err != nil {
		return persistErr("save chat message", err)
	}
	return nil
}

// FetchMessages returns the newest limit messages of an appointment in the
// order they were stored.
func (s *Store) FetchMessages(ctx context.Context, appointmentID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, appointment_id, sender_id, content, created_at FROM (
			SELECT seq, id, appointment_id, sender_id, content, created_at FROM chat_messages
			WHERE appointment_id = ? ORDER BY seq DESC LIMIT ?
		) recent ORDER BY seq ASC`), appointmentID, limit)
	if err != nil {
		return nil, persistErr("fetch messages", err)
	}
	defer rows.Close()

	out := make([]*model.ChatMessage, 0)
	for rows.Next() {
		var (
			m       model.ChatMessage
			created int64
		)
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.SenderID, &m.Content, &created); err != nil {
			return nil, persistErr("fetch messages", err)
		}
		m.CreatedAt = fromMillis(created)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("fetch messages", err)
	}
	return out, nil
}
