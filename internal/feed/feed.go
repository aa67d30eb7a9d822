// Package feed keeps the client-side view of one conversation: the ordered
// message history plus whatever arrives over the realtime channel, without
// duplicates.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
)

// DefaultTimeout bounds every store call made by a Feed.
const DefaultTimeout = 10 * time.Second

var (
	ErrClosed      = errors.New("feed is closed")
	ErrSelfMessage = errors.New("cannot open a conversation with yourself")
)

// Session identifies the signed-in user.
type Session interface {
	UserID() uuid.UUID
}

// Store is the remote message store, authenticated as the session user.
type Store interface {
	ResolveConversation(ctx context.Context, recipientID uuid.UUID) (*domain.Conversation, error)
	LoadHistory(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*domain.Message, error)
}

// Subscription is a live realtime registration.
type Subscription interface {
	Unsubscribe() error
}

// Listener receives realtime events for one conversation. Calls may come from
// any goroutine.
type Listener interface {
	OnRealtimeInsert(msg domain.Message)
	// OnResubscribed runs when an interrupted or unconfirmed subscription
	// becomes live again. Inserts made in the meantime were not delivered.
	OnResubscribed()
}

// Channel delivers message inserts for a conversation as they happen.
type Channel interface {
	// Subscribe returns once the subscription is live, so every insert made
	// after it returns reaches l. When confirmation takes longer than ctx
	// allows, Subscribe may return early and report the gap later through
	// l.OnResubscribed.
	Subscribe(ctx context.Context, conversationID uuid.UUID, l Listener) (Subscription, error)
}

type Option func(*Feed)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// Feed is the ordered, deduplicated message list for the conversation between
// the session user and one recipient. A different recipient needs a new Feed.
type Feed struct {
	session     Session
	recipientID uuid.UUID
	store       Store
	channel     Channel
	timeout     time.Duration

	// op serialises Open, LoadHistory and Send so the conversation is
	// resolved at most once.
	op sync.Mutex

	mu             sync.Mutex
	conversationID uuid.UUID
	messages       []domain.Message
	seen           map[uuid.UUID]struct{}
	draft          string
	sub            Subscription
	closed         bool
	latest         chan uuid.UUID
}

func New(session Session, recipientID uuid.UUID, store Store, channel Channel, opts ...Option) *Feed {
	f := &Feed{
		session:     session,
		recipientID: recipientID,
		store:       store,
		channel:     channel,
		timeout:     DefaultTimeout,
		seen:        make(map[uuid.UUID]struct{}),
		latest:      make(chan uuid.UUID, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open resolves the conversation, subscribes to its inserts and loads the
// history. History is read only after the channel confirmed the
// subscription, and the channel reports later gaps through OnResubscribed,
// so no insert is lost. A history failure leaves the feed empty but
// subscribed; call LoadHistory to retry.
func (f *Feed) Open(ctx context.Context) error {
	f.op.Lock()
	defer f.op.Unlock()

	if _, err := f.ensureConversation(ctx); err != nil {
		return err
	}
	return f.loadHistory(ctx)
}

// LoadHistory reloads the full history and merges it with anything already
// received.
func (f *Feed) LoadHistory(ctx context.Context) error {
	f.op.Lock()
	defer f.op.Unlock()

	if f.ConversationID() == uuid.Nil {
		return nil
	}
	return f.loadHistory(ctx)
}

// OnResubscribed re-syncs the history in the background after the realtime
// channel recovered from a gap. Messages already shown are kept when the
// reload fails.
func (f *Feed) OnResubscribed() {
	go func() {
		f.op.Lock()
		defer f.op.Unlock()

		if f.ConversationID() == uuid.Nil {
			return
		}
		if err := f.mergeHistory(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			log.Warn().Err(err).Str("conversation_id", f.ConversationID().String()).Msg("feed: history re-sync failed")
		}
	}()
}

func (f *Feed) loadHistory(ctx context.Context) error {
	err := f.mergeHistory(ctx)
	if err != nil && !errors.Is(err, ErrClosed) {
		f.mu.Lock()
		f.messages = nil
		f.seen = make(map[uuid.UUID]struct{})
		f.mu.Unlock()
	}
	return err
}

// mergeHistory fetches the full history and merges it into the feed.
// Callers hold f.op.
func (f *Feed) mergeHistory(ctx context.Context) error {
	convID := f.ConversationID()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	history, err := f.store.LoadHistory(ctx, convID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	before := f.tailLocked()
	merged := make([]domain.Message, 0, len(history)+len(f.messages))
	seen := make(map[uuid.UUID]struct{}, cap(merged))
	for _, m := range append(history, f.messages...) {
		if m.ConversationID != convID {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Before(&merged[j]) })

	f.messages = merged
	f.seen = seen
	if tail := f.tailLocked(); tail != before && tail != uuid.Nil {
		f.signalLocked(tail)
	}
	return nil
}

// ensureConversation resolves the conversation once and subscribes to it.
// Callers hold f.op.
func (f *Feed) ensureConversation(ctx context.Context) (uuid.UUID, error) {
	if id := f.ConversationID(); id != uuid.Nil {
		return id, nil
	}
	if f.session != nil && f.session.UserID() == f.recipientID {
		return uuid.Nil, ErrSelfMessage
	}

	rctx, cancel := context.WithTimeout(ctx, f.timeout)
	conv, err := f.store.ResolveConversation(rctx, f.recipientID)
	cancel()
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolving conversation: %w", err)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	f.conversationID = conv.ID
	f.mu.Unlock()

	if f.channel == nil {
		return conv.ID, nil
	}

	sctx, cancel := context.WithTimeout(ctx, f.timeout)
	sub, err := f.channel.Subscribe(sctx, conv.ID, f)
	cancel()
	if err != nil {
		// Sending and history still work; only live updates are lost.
		log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("feed: realtime subscribe failed")
		return conv.ID, nil
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("conversation_id", conv.ID.String()).Msg("feed: realtime unsubscribe failed")
		}
		return uuid.Nil, ErrClosed
	}
	f.sub = sub
	f.mu.Unlock()

	return conv.ID, nil
}

func (f *Feed) SetDraft(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = text
}

func (f *Feed) Draft() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Send posts the current draft. A blank draft is ignored and returns nil, nil.
// The draft is cleared only after the store accepted the message.
func (f *Feed) Send(ctx context.Context) (*domain.Message, error) {
	f.op.Lock()
	defer f.op.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	draft := f.draft
	f.mu.Unlock()

	body := strings.TrimSpace(draft)
	if body == "" {
		return nil, nil
	}

	convID, err := f.ensureConversation(ctx)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg, err := f.store.SendMessage(sctx, convID, body)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Keep anything typed while the send was in flight.
	if f.draft == draft {
		f.draft = ""
	}
	f.insertLocked(*msg)
	return msg, nil
}

// OnRealtimeInsert merges a message delivered by the realtime channel. Events
// for other conversations and already-known ids are ignored.
func (f *Feed) OnRealtimeInsert(msg domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.conversationID == uuid.Nil || msg.ConversationID != f.conversationID {
		return
	}
	f.insertLocked(msg)
}

func (f *Feed) insertLocked(msg domain.Message) {
	if _, dup := f.seen[msg.ID]; dup {
		return
	}
	f.seen[msg.ID] = struct{}{}

	// New messages nearly always belong at the tail.
	i := sort.Search(len(f.messages), func(i int) bool { return msg.Before(&f.messages[i]) })
	f.messages = append(f.messages, domain.Message{})
	copy(f.messages[i+1:], f.messages[i:])
	f.messages[i] = msg

	if i == len(f.messages)-1 {
		f.signalLocked(msg.ID)
	}
}

func (f *Feed) tailLocked() uuid.UUID {
	if len(f.messages) == 0 {
		return uuid.Nil
	}
	return f.messages[len(f.messages)-1].ID
}

// signalLocked publishes the tail id, replacing an unread older signal.
func (f *Feed) signalLocked(id uuid.UUID) {
	if f.closed {
		return
	}
	select {
	case <-f.latest:
	default:
	}
	f.latest <- id
}

// Latest fires with the id of the new tail message whenever one is
// appended. Signals coalesce; only the most recent is kept. The channel is
// closed by Close.
func (f *Feed) Latest() <-chan uuid.UUID {
	return f.latest
}

// Messages returns a snapshot of the ordered sequence.
func (f *Feed) Messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *Feed) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages) == 0
}

// ConversationID is uuid.Nil until the conversation has been resolved.
func (f *Feed) ConversationID() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversationID
}

func (f *Feed) RecipientID() uuid.UUID {
	return f.recipientID
}

// IsMine reports whether the session user wrote msg.
func (f *Feed) IsMine(msg domain.Message) bool {
	return f.session != nil && msg.SenderID == f.session.UserID()
}

// Close releases the realtime subscription. It is safe to call more than once.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	sub := f.sub
	f.sub = nil
	close(f.latest)
	f.mu.Unlock()

	if sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}
