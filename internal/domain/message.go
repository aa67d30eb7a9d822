package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is immutable once stored. Seq is assigned by the database and
// breaks ties between messages sharing a CreatedAt.
type Message struct {
	ID             uuid.UUID `json:"id"`
	Seq            int64     `json:"seq"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Before reports whether m sorts ahead of other in display order.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Seq < other.Seq
}
