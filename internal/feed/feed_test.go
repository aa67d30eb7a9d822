package feed

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/partsmarket/internal/domain"
)

type session uuid.UUID

func (s session) UserID() uuid.UUID { return uuid.UUID(s) }

// backend is an in-memory stand-in for the API and the realtime hub.
type backend struct {
	mu      sync.Mutex
	convs   map[[2]uuid.UUID]uuid.UUID
	inserts int
	msgs    []domain.Message
	seq     int64
	clock   time.Time
	subs    map[uuid.UUID]map[int]Listener
	nextSub int

	historyCalls int

	failSend    bool
	failHistory bool
}

func newBackend() *backend {
	return &backend{
		convs: map[[2]uuid.UUID]uuid.UUID{},
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		subs:  map[uuid.UUID]map[int]Listener{},
	}
}

func (b *backend) store(user uuid.UUID) *userStore { return &userStore{b: b, user: user} }

// publish delivers to subscribers outside the lock, like a network hop.
func (b *backend) publish(msg domain.Message) {
	b.mu.Lock()
	var ls []Listener
	for _, l := range b.subs[msg.ConversationID] {
		ls = append(ls, l)
	}
	b.mu.Unlock()
	for _, l := range ls {
		l.OnRealtimeInsert(msg)
	}
}

// reconnect tells every listener of convID that its subscription is live
// again after a gap.
func (b *backend) reconnect(convID uuid.UUID) {
	b.mu.Lock()
	var ls []Listener
	for _, l := range b.subs[convID] {
		ls = append(ls, l)
	}
	b.mu.Unlock()
	for _, l := range ls {
		l.OnResubscribed()
	}
}

func (b *backend) historyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.historyCalls
}

func (b *backend) insert(convID, sender uuid.UUID, content string, at time.Time) domain.Message {
	b.mu.Lock()
	b.seq++
	msg := domain.Message{ID: uuid.New(), Seq: b.seq, ConversationID: convID, SenderID: sender, Content: content, CreatedAt: at}
	b.msgs = append(b.msgs, msg)
	b.mu.Unlock()
	return msg
}

func (b *backend) subscriberCount(convID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[convID])
}

type userStore struct {
	b    *backend
	user uuid.UUID
}

func (s *userStore) ResolveConversation(_ context.Context, recipientID uuid.UUID) (*domain.Conversation, error) {
	one, two := domain.NormalizePair(s.user, recipientID)
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	key := [2]uuid.UUID{one, two}
	id, ok := s.b.convs[key]
	if !ok {
		id = uuid.New()
		s.b.convs[key] = id
		s.b.inserts++
	}
	return &domain.Conversation{ID: id, UserOne: one, UserTwo: two}, nil
}

func (s *userStore) LoadHistory(_ context.Context, convID uuid.UUID) ([]domain.Message, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.historyCalls++
	if s.b.failHistory {
		return nil, errors.New("history unavailable")
	}
	var out []domain.Message
	for _, m := range s.b.msgs {
		if m.ConversationID == convID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *userStore) SendMessage(_ context.Context, convID uuid.UUID, content string) (*domain.Message, error) {
	s.b.mu.Lock()
	if s.b.failSend {
		s.b.mu.Unlock()
		return nil, errors.New("network down")
	}
	s.b.clock = s.b.clock.Add(time.Second)
	at := s.b.clock
	s.b.mu.Unlock()

	msg := s.b.insert(convID, s.user, content, at)
	s.b.publish(msg)
	return &msg, nil
}

type backendChannel struct{ b *backend }

type backendSub struct {
	b      *backend
	convID uuid.UUID
	id     int
	calls  int
}

func (s *backendSub) Unsubscribe() error {
	s.calls++
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.subs[s.convID], s.id)
	return nil
}

func (c backendChannel) Subscribe(_ context.Context, convID uuid.UUID, l Listener) (Subscription, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.b.subs[convID] == nil {
		c.b.subs[convID] = map[int]Listener{}
	}
	c.b.nextSub++
	c.b.subs[convID][c.b.nextSub] = l
	return &backendSub{b: c.b, convID: convID, id: c.b.nextSub}, nil
}

func TestEndToEndConversation(t *testing.T) {
	b := newBackend()
	x, y := uuid.New(), uuid.New()
	ctx := context.Background()

	fx := New(session(x), y, b.store(x), backendChannel{b})
	require.NoError(t, fx.Open(ctx))
	defer fx.Close()
	assert.True(t, fx.Empty())
	assert.Equal(t, 1, b.inserts)

	fy := New(session(y), x, b.store(y), backendChannel{b})
	require.NoError(t, fy.Open(ctx))
	defer fy.Close()
	assert.Equal(t, fx.ConversationID(), fy.ConversationID())
	assert.Equal(t, 1, b.inserts)

	fx.SetDraft("hello")
	sent, err := fx.Send(ctx)
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "", fx.Draft())

	// The sender's own feed got the message twice (send + realtime echo).
	xs := fx.Messages()
	require.Len(t, xs, 1)
	assert.Equal(t, "hello", xs[0].Content)
	assert.True(t, fx.IsMine(xs[0]))

	ys := fy.Messages()
	require.Len(t, ys, 1)
	assert.Equal(t, sent.ID, ys[0].ID)
	assert.Equal(t, x, ys[0].SenderID)
	assert.False(t, fy.IsMine(ys[0]))
}

func TestHistoryIsOrderedByCreation(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	conv, err := b.store(me).ResolveConversation(context.Background(), other)
	require.NoError(t, err)

	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	b.insert(conv.ID, me, "third", t1.Add(2*time.Minute))
	b.insert(conv.ID, other, "first", t1)
	b.insert(conv.ID, me, "second", t1.Add(time.Minute))

	f := New(session(me), other, b.store(me), backendChannel{b})
	require.NoError(t, f.Open(context.Background()))
	defer f.Close()

	var got []string
	for _, m := range f.Messages() {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestEqualTimestampsFallBackToSeq(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), nil)
	require.NoError(t, f.Open(context.Background()))

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	first := b.insert(f.ConversationID(), me, "a", at)
	second := b.insert(f.ConversationID(), me, "b", at)

	// Deliver out of order; the sequence must not change.
	f.OnRealtimeInsert(second)
	f.OnRealtimeInsert(first)
	msgs := f.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
}

func TestEmptySendIsIgnored(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), backendChannel{b})
	defer f.Close()

	f.SetDraft("   \t\n")
	msg, err := f.Send(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, 0, b.inserts)
	assert.Equal(t, "   \t\n", f.Draft())
}

func TestSendFailureKeepsDraft(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), backendChannel{b})
	require.NoError(t, f.Open(context.Background()))
	defer f.Close()

	b.failSend = true
	f.SetDraft("is it still available?")
	msg, err := f.Send(context.Background())
	assert.Error(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, "is it still available?", f.Draft())
	assert.True(t, f.Empty())

	b.failSend = false
	msg, err = f.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "is it still available?", msg.Content)
	assert.Equal(t, "", f.Draft())
}

func TestSendResolvesConversationWhenUnset(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), backendChannel{b})
	defer f.Close()

	assert.Equal(t, uuid.Nil, f.ConversationID())
	f.SetDraft("hi")
	msg, err := f.Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, msg.ConversationID, f.ConversationID())
	assert.Equal(t, 1, b.subscriberCount(msg.ConversationID))
	assert.Len(t, f.Messages(), 1)
}

func TestRealtimeIgnoresOtherConversations(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), nil)
	require.NoError(t, f.Open(context.Background()))

	f.OnRealtimeInsert(domain.Message{ID: uuid.New(), ConversationID: uuid.New(), Content: "elsewhere"})
	assert.True(t, f.Empty())

	m := domain.Message{ID: uuid.New(), ConversationID: f.ConversationID(), Content: "here", CreatedAt: time.Now()}
	f.OnRealtimeInsert(m)
	f.OnRealtimeInsert(m)
	assert.Len(t, f.Messages(), 1)
}

func TestHistoryFailureLeavesFeedEmpty(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	conv, _ := b.store(me).ResolveConversation(context.Background(), other)
	b.insert(conv.ID, other, "hey", time.Now())
	b.mu.Lock()
	b.failHistory = true
	b.mu.Unlock()

	f := New(session(me), other, b.store(me), backendChannel{b})
	defer f.Close()
	assert.Error(t, f.Open(context.Background()))
	assert.True(t, f.Empty())

	b.mu.Lock()
	b.failHistory = false
	b.mu.Unlock()
	require.NoError(t, f.LoadHistory(context.Background()))
	assert.Len(t, f.Messages(), 1)
}

func TestLatestSignalsNewTail(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), nil)
	require.NoError(t, f.Open(context.Background()))

	f.SetDraft("one")
	_, err := f.Send(context.Background())
	require.NoError(t, err)
	f.SetDraft("two")
	second, err := f.Send(context.Background())
	require.NoError(t, err)

	// Coalesced: only the most recent tail is pending.
	select {
	case id := <-f.Latest():
		assert.Equal(t, second.ID, id)
	default:
		t.Fatal("expected a latest signal")
	}
	select {
	case <-f.Latest():
		t.Fatal("signals should coalesce")
	default:
	}

	require.NoError(t, f.Close())
	_, open := <-f.Latest()
	assert.False(t, open)
}

func TestCloseUnsubscribesOnce(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), backendChannel{b})
	require.NoError(t, f.Open(context.Background()))

	convID := f.ConversationID()
	sub := f.sub.(*backendSub)
	assert.Equal(t, 1, b.subscriberCount(convID))

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, 0, b.subscriberCount(convID))

	f.SetDraft("late")
	_, err := f.Send(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCannotOpenWithSelf(t *testing.T) {
	me := uuid.New()
	f := New(session(me), me, newBackend().store(me), nil)
	assert.ErrorIs(t, f.Open(context.Background()), ErrSelfMessage)
}

func TestWithTimeoutAppliesToStoreCalls(t *testing.T) {
	f := New(session(uuid.New()), uuid.New(), slowStore{}, nil, WithTimeout(20*time.Millisecond))
	err := f.Open(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowStore struct{}

func (slowStore) ResolveConversation(ctx context.Context, _ uuid.UUID) (*domain.Conversation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowStore) LoadHistory(context.Context, uuid.UUID) ([]domain.Message, error) { return nil, nil }

func (slowStore) SendMessage(context.Context, uuid.UUID, string) (*domain.Message, error) {
	return nil, nil
}

func TestResubscribeRecoversMissedInserts(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	f := New(session(me), other, b.store(me), backendChannel{b})
	defer f.Close()
	require.NoError(t, f.Open(context.Background()))
	require.True(t, f.Empty())

	// Stored while the socket was down, so never delivered live.
	missed := b.insert(f.ConversationID(), other, "sent during the outage", time.Now())
	b.reconnect(f.ConversationID())

	assert.Eventually(t, func() bool {
		msgs := f.Messages()
		return len(msgs) == 1 && msgs[0].ID == missed.ID
	}, 2*time.Second, 10*time.Millisecond)

	// A live copy of the same message is not shown twice.
	f.OnRealtimeInsert(missed)
	assert.Len(t, f.Messages(), 1)
}

func TestResubscribeFailureKeepsMessages(t *testing.T) {
	b := newBackend()
	me, other := uuid.New(), uuid.New()
	conv, _ := b.store(me).ResolveConversation(context.Background(), other)
	b.insert(conv.ID, other, "hey", time.Now())

	f := New(session(me), other, b.store(me), backendChannel{b})
	defer f.Close()
	require.NoError(t, f.Open(context.Background()))
	require.Len(t, f.Messages(), 1)

	b.mu.Lock()
	b.failHistory = true
	b.mu.Unlock()
	b.reconnect(conv.ID)

	assert.Eventually(t, func() bool { return b.historyCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.Messages(), 1)
}

// closingChannel closes the feed while the subscribe is in flight.
type closingChannel struct {
	feed *Feed
	sub  *failingSub
}

type failingSub struct{ calls int }

func (s *failingSub) Unsubscribe() error {
	s.calls++
	return errors.New("socket gone")
}

func (c *closingChannel) Subscribe(context.Context, uuid.UUID, Listener) (Subscription, error) {
	c.feed.Close()
	return c.sub, nil
}

func TestCloseDuringOpenReleasesSubscription(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	b := newBackend()
	me, other := uuid.New(), uuid.New()
	ch := &closingChannel{sub: &failingSub{}}
	f := New(session(me), other, b.store(me), ch)
	ch.feed = f

	assert.ErrorIs(t, f.Open(context.Background()), ErrClosed)
	assert.Equal(t, 1, ch.sub.calls)
	assert.Contains(t, buf.String(), "socket gone")
	assert.Contains(t, buf.String(), "realtime unsubscribe failed")
}
