package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendToCreatesConversationAndNotifies(t *testing.T) {
	alice, bob := newUser("Alice", "alice@example.com"), newUser("Bob", "bob@example.com")
	users := newMemUsers(alice, bob)
	convs := NewConversationService(newMemConversations(), users, NewNamer(users))
	msgs := NewMessageService(&memMessages{}, convs)
	notifier := &recordingNotifier{}
	msgs.SetNotifier(notifier)
	ctx := context.Background()

	first, err := msgs.SendTo(ctx, alice.ID, bob.ID, "  is the gearbox still available?  ")
	require.NoError(t, err)
	assert.Equal(t, "is the gearbox still available?", first.Content)
	assert.Equal(t, alice.ID, first.SenderID)

	reply, err := msgs.SendTo(ctx, bob.ID, alice.ID, "yes")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, reply.ConversationID)

	history, err := msgs.History(ctx, alice.ID, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, reply.ID, history[1].ID)
	assert.Less(t, history[0].Seq, history[1].Seq)

	assert.Len(t, notifier.msgs, 2)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	alice, bob := newUser("Alice", "alice@example.com"), newUser("Bob", "bob@example.com")
	users := newMemUsers(alice, bob)
	convRepo := newMemConversations()
	convs := NewConversationService(convRepo, users, NewNamer(users))
	store := &memMessages{}
	msgs := NewMessageService(store, convs)
	ctx := context.Background()

	_, err := msgs.SendTo(ctx, alice.ID, bob.ID, "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, convRepo.inserts)
	assert.Empty(t, store.msgs)
}

func TestSendByOutsiderIsRejected(t *testing.T) {
	alice, bob, eve := newUser("Alice", "a@example.com"), newUser("Bob", "b@example.com"), newUser("Eve", "e@example.com")
	users := newMemUsers(alice, bob, eve)
	convs := NewConversationService(newMemConversations(), users, NewNamer(users))
	msgs := NewMessageService(&memMessages{}, convs)
	ctx := context.Background()

	conv, err := convs.Resolve(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = msgs.Send(ctx, eve.ID, conv.ID, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = msgs.History(ctx, eve.ID, conv.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestHistoryOfNewConversationIsEmptyNotNil(t *testing.T) {
	alice, bob := newUser("Alice", "alice@example.com"), newUser("Bob", "bob@example.com")
	users := newMemUsers(alice, bob)
	convs := NewConversationService(newMemConversations(), users, NewNamer(users))
	msgs := NewMessageService(&memMessages{}, convs)
	ctx := context.Background()

	conv, err := convs.Resolve(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	history, err := msgs.History(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
