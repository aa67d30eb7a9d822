package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/feed"
	"github.com/vedran77/partsmarket/internal/transport/ws"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	ErrSignedOut    = errors.New("realtime: not signed in")
	ErrUnauthorized = errors.New("realtime: token rejected")
)

// Realtime keeps one WebSocket open to the server and fans message.new
// events out to per-conversation listeners. It implements feed.Channel.
// Subscriptions survive reconnects; listeners hear about each re-established
// subscription through OnResubscribed.
type Realtime struct {
	url     string
	session *Session

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[uuid.UUID]map[uint64]*listenerEntry
	nextID   uint64
}

type listenerEntry struct {
	listener feed.Listener
	// ready is closed by the first server confirmation while Subscribe is
	// still waiting for it. Later confirmations mean a gap was bridged.
	ready   chan struct{}
	waiting bool
}

func NewRealtime(baseURL string, session *Session) *Realtime {
	r := &Realtime{
		url:      wsURL(baseURL),
		session:  session,
		handlers: make(map[uuid.UUID]map[uint64]*listenerEntry),
	}
	session.OnChange(func(user *domain.User) {
		if user == nil {
			r.disconnect()
		}
	})
	return r
}

func wsURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// Run connects and reconnects with exponential backoff until ctx is done or
// the session is signed out or rejected.
func (r *Realtime) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		err := r.connect(ctx, b)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("realtime: connection lost")
	})
}

func (r *Realtime) connect(ctx context.Context, b backoff.BackOff) error {
	token := r.session.Token()
	if token == "" {
		return backoff.Permanent(ErrSignedOut)
	}

	conn, resp, err := websocket.Dial(ctx, r.url+"/ws?token="+url.QueryEscape(token), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return backoff.Permanent(ErrUnauthorized)
		}
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)
	b.Reset()

	r.mu.Lock()
	r.conn = conn
	active := make([]uuid.UUID, 0, len(r.handlers))
	for id := range r.handlers {
		active = append(active, id)
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
	}()

	for _, id := range active {
		if err := send(ctx, conn, ws.EventTypeConversationSubscribe, id); err != nil {
			return err
		}
	}
	log.Debug().Int("conversations", len(active)).Msg("realtime: connected")

	for {
		var ev ws.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		r.dispatch(ev)
	}
}

func (r *Realtime) dispatch(ev ws.Event) {
	switch ev.Type {
	case ws.EventTypeMessageNew:
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			log.Warn().Err(err).Msg("realtime: bad message payload")
			return
		}
		for _, l := range r.listeners(msg.ConversationID) {
			l.OnRealtimeInsert(msg)
		}
	case ws.EventTypeSubscribed:
		var p ws.ConversationPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			log.Warn().Err(err).Msg("realtime: bad subscribed payload")
			return
		}
		r.confirm(p.ConversationID)
	case ws.EventTypeError:
		var p ws.ErrorPayload
		_ = json.Unmarshal(ev.Payload, &p)
		log.Warn().Str("code", p.Code).Str("message", p.Message).Msg("realtime: server error")
	}
}

func (r *Realtime) listeners(conversationID uuid.UUID) []feed.Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]feed.Listener, 0, len(r.handlers[conversationID]))
	for _, e := range r.handlers[conversationID] {
		out = append(out, e.listener)
	}
	return out
}

// confirm handles the server's subscribe acknowledgement. Waiting Subscribe
// calls are released; every other listener missed whatever was sent while
// the subscription was down and is told to re-sync.
func (r *Realtime) confirm(conversationID uuid.UUID) {
	r.mu.Lock()
	var resync []feed.Listener
	for _, e := range r.handlers[conversationID] {
		if e.waiting {
			e.waiting = false
			close(e.ready)
			continue
		}
		resync = append(resync, e.listener)
	}
	r.mu.Unlock()

	for _, l := range resync {
		l.OnResubscribed()
	}
}

// Subscribe registers l for conversationID and waits until the server has
// confirmed the subscription. When the socket is down the subscribe is sent
// on the next connect. If ctx ends first the subscription stays registered
// and l.OnResubscribed runs once the server confirms it.
func (r *Realtime) Subscribe(ctx context.Context, conversationID uuid.UUID, l feed.Listener) (feed.Subscription, error) {
	entry := &listenerEntry{listener: l, ready: make(chan struct{}), waiting: true}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.handlers[conversationID] == nil {
		r.handlers[conversationID] = make(map[uint64]*listenerEntry)
	}
	r.handlers[conversationID][id] = entry
	conn := r.conn
	r.mu.Unlock()

	sub := &subscription{realtime: r, conversationID: conversationID, id: id}

	// Sent even when another listener already follows the conversation so
	// that this one gets its own confirmation.
	if conn != nil {
		if err := send(ctx, conn, ws.EventTypeConversationSubscribe, conversationID); err != nil {
			log.Debug().Err(err).Str("conversation_id", conversationID.String()).Msg("realtime: subscribe deferred to reconnect")
		}
	}

	select {
	case <-entry.ready:
		return sub, nil
	case <-ctx.Done():
	}

	r.mu.Lock()
	confirmed := !entry.waiting
	entry.waiting = false
	r.mu.Unlock()
	if !confirmed {
		log.Warn().Str("conversation_id", conversationID.String()).Msg("realtime: subscribe not confirmed yet, listener will re-sync")
	}
	return sub, nil
}

func (r *Realtime) remove(conversationID uuid.UUID, id uint64) error {
	r.mu.Lock()
	delete(r.handlers[conversationID], id)
	last := len(r.handlers[conversationID]) == 0
	if last {
		delete(r.handlers, conversationID)
	}
	conn := r.conn
	r.mu.Unlock()

	if !last || conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return send(ctx, conn, ws.EventTypeConversationUnsubscribe, conversationID)
}

func (r *Realtime) disconnect() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "signed out")
	}
}

func send(ctx context.Context, conn *websocket.Conn, eventType string, conversationID uuid.UUID) error {
	ev, err := ws.NewEvent(eventType, nil, ws.ConversationPayload{ConversationID: conversationID})
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, ev)
}

type subscription struct {
	realtime       *Realtime
	conversationID uuid.UUID
	id             uint64
	once           sync.Once
}

func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.realtime.remove(s.conversationID, s.id)
	})
	return err
}
