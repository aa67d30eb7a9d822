package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type stubAuthz struct {
	allowed map[uuid.UUID]uuid.UUID // conversation -> participant
}

func (s stubAuthz) Get(_ context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	participant, ok := s.allowed[conversationID]
	if !ok {
		return nil, service.ErrConversationNotFound
	}
	if participant != userID {
		return nil, service.ErrNotParticipant
	}
	return &domain.Conversation{ID: conversationID}, nil
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func readEvent(t *testing.T, ch <-chan []byte) Event {
	t.Helper()
	select {
	case data := <-ch:
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubRoutesOnlyToSubscribers(t *testing.T) {
	hub := startHub(t)
	convA, convB := uuid.New(), uuid.New()

	a := NewClient(hub, nil, uuid.New(), nil)
	b := NewClient(hub, nil, uuid.New(), nil)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	assert.Equal(t, 2, hub.ClientCount())

	a.Subscribe(convA)
	b.Subscribe(convB)

	hub.Broadcast(convA, []byte(`{"type":"message.new","payload":"a"}`))
	hub.Broadcast(convB, []byte(`{"type":"message.new","payload":"b"}`))

	assert.JSONEq(t, `"a"`, string(readEvent(t, a.send).Payload))
	assert.JSONEq(t, `"b"`, string(readEvent(t, b.send).Payload))

	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())
	select {
	case <-a.done:
	default:
		t.Fatal("unregistered client should be stopped")
	}
}

func TestSubscribeRequiresParticipant(t *testing.T) {
	userID := uuid.New()
	mine, theirs := uuid.New(), uuid.New()
	authz := stubAuthz{allowed: map[uuid.UUID]uuid.UUID{mine: userID, theirs: uuid.New()}}
	c := NewClient(NewHub(), nil, userID, authz)
	ctx := context.Background()

	subscribe := func(id uuid.UUID) Event {
		payload, _ := json.Marshal(ConversationPayload{ConversationID: id})
		c.handleEvent(ctx, &Event{Type: EventTypeConversationSubscribe, Payload: payload})
		return readEvent(t, c.send)
	}

	evt := subscribe(theirs)
	assert.Equal(t, EventTypeError, evt.Type)
	assert.Contains(t, string(evt.Payload), "FORBIDDEN")
	assert.False(t, c.IsSubscribed(theirs))

	evt = subscribe(uuid.New())
	assert.Contains(t, string(evt.Payload), "NOT_FOUND")

	evt = subscribe(mine)
	assert.Equal(t, EventTypeSubscribed, evt.Type)
	assert.True(t, c.IsSubscribed(mine))

	payload, _ := json.Marshal(ConversationPayload{ConversationID: mine})
	c.handleEvent(ctx, &Event{Type: EventTypeConversationUnsubscribe, Payload: payload})
	assert.Equal(t, EventTypeUnsubscribed, readEvent(t, c.send).Type)
	assert.False(t, c.IsSubscribed(mine))

	c.handleEvent(ctx, &Event{Type: EventTypePing})
	assert.Equal(t, EventTypePong, readEvent(t, c.send).Type)

	c.handleEvent(ctx, &Event{Type: "typing.start"})
	assert.Equal(t, EventTypeError, readEvent(t, c.send).Type)
}

func TestConversationFromChannel(t *testing.T) {
	id := uuid.New()
	got, ok := conversationFromChannel(conversationChannelPrefix + id.String())
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = conversationFromChannel("other:" + id.String())
	assert.False(t, ok)
	_, ok = conversationFromChannel(conversationChannelPrefix + "nope")
	assert.False(t, ok)
}

func TestAcceptOptions(t *testing.T) {
	opts := acceptOptions([]string{"http://localhost:3000", "https://parts.example.com"})
	assert.Equal(t, []string{"localhost:3000", "parts.example.com"}, opts.OriginPatterns)
	assert.False(t, opts.InsecureSkipVerify)

	assert.True(t, acceptOptions([]string{"*"}).InsecureSkipVerify)
}

func TestServeWSDeliversNewMessages(t *testing.T) {
	const secret = "ws-secret"
	hub := startHub(t)
	userID := uuid.New()
	convID := uuid.New()
	authz := stubAuthz{allowed: map[uuid.UUID]uuid.UUID{convID: userID}}

	srv := httptest.NewServer(ServeWS(hub, secret, authz, []string{"*"}))
	defer srv.Close()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	payload, _ := json.Marshal(ConversationPayload{ConversationID: convID})
	require.NoError(t, wsjson.Write(ctx, conn, Event{Type: EventTypeConversationSubscribe, Payload: payload}))

	var ack Event
	require.NoError(t, wsjson.Read(ctx, conn, &ack))
	require.Equal(t, EventTypeSubscribed, ack.Type)

	msg := &domain.Message{ID: uuid.New(), ConversationID: convID, SenderID: uuid.New(), Content: "still for sale?"}
	NewNotifier(NewLocalBroker(hub)).NotifyNewMessage(msg)

	var evt Event
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	assert.Equal(t, EventTypeMessageNew, evt.Type)
	require.NotNil(t, evt.ConversationID)
	assert.Equal(t, convID, *evt.ConversationID)

	var got domain.Message
	require.NoError(t, json.Unmarshal(evt.Payload, &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "still for sale?", got.Content)
}

func TestServeWSRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(ServeWS(startHub(t), "secret", nil, []string{"*"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?token=garbage", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 401, resp.StatusCode)
	}
}

func TestSubscriberBackOffIsCapped(t *testing.T) {
	bo := newSubscriberBackOff()

	first := bo.NextBackOff()
	assert.GreaterOrEqual(t, first, 500*time.Millisecond)
	assert.LessOrEqual(t, first, 1500*time.Millisecond)

	var last time.Duration
	for i := 0; i < 30; i++ {
		last = bo.NextBackOff()
	}
	// Never gives up; jitter stays within half the cap.
	assert.NotEqual(t, backoff.Stop, last)
	assert.LessOrEqual(t, last, maxSubscriberBackoff*3/2)

	bo.Reset()
	assert.LessOrEqual(t, bo.NextBackOff(), 1500*time.Millisecond)
}

func TestRedisBrokerSubscribeStopsWithContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	broker := NewRedisBroker(client, startHub(t))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		broker.Subscribe(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber kept retrying after its context ended")
	}
}
