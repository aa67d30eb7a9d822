package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePairIsSymmetric(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	one1, two1 := NormalizePair(a, b)
	one2, two2 := NormalizePair(b, a)

	assert.Equal(t, one1, one2)
	assert.Equal(t, two1, two2)
	assert.Less(t, one1.String(), two1.String())
}

func TestConversationOther(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	one, two := NormalizePair(a, b)
	conv := &Conversation{UserOne: one, UserTwo: two}

	assert.Equal(t, b, conv.Other(a))
	assert.Equal(t, a, conv.Other(b))
	assert.True(t, conv.HasParticipant(a))
	assert.False(t, conv.HasParticipant(uuid.New()))
}

func TestMessageBeforeBreaksTiesWithSeq(t *testing.T) {
	now := time.Now()
	first := &Message{Seq: 1, CreatedAt: now}
	second := &Message{Seq: 2, CreatedAt: now}
	later := &Message{Seq: 0, CreatedAt: now.Add(time.Millisecond)}

	assert.True(t, first.Before(second))
	assert.False(t, second.Before(first))
	assert.True(t, second.Before(later))
}
