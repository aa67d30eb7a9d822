package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation pairs exactly two users. UserOne < UserTwo always holds for
// stored rows; see NormalizePair.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserOne   uuid.UUID `json:"user_one"`
	UserTwo   uuid.UUID `json:"user_two"`
	CreatedAt time.Time `json:"created_at"`
	// Resolved for the requesting user
	OtherUserID   uuid.UUID `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserOne == userID || c.UserTwo == userID
}

// Other returns the participant that is not userID. The stored order says
// nothing about who started the conversation, so callers must never pick a
// side by position.
func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.UserOne == userID {
		return c.UserTwo
	}
	return c.UserOne
}

// NormalizePair orders two user ids the way they are stored.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
