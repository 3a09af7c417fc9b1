package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/google/uuid"
)

// DefaultMaxContent bounds a single message in characters.
const DefaultMaxContent = 4096

// NewMessage stamps a message with a fresh id and the acceptance time.
func NewMessage(appointmentID, senderID, content string, at time.Time) *model.ChatMessage {
	return &model.ChatMessage{
		ID:            uuid.NewString(),
		AppointmentID: appointmentID,
		SenderID:      senderID,
		Content:       content,
		CreatedAt:     at,
	}
}

func normalizeContent(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, "�"))
}

func contentLen(s string) int { return utf8.RuneCountInString(s) }
