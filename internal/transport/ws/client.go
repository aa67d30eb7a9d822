package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	authzTimeout   = 5 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Authorizer decides whether a user may follow a conversation.
type Authorizer interface {
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error)
}

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	authz  Authorizer

	// subscriptions tracks which conversations this client listens to.
	subscriptions map[uuid.UUID]struct{}
	mu            sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authz Authorizer) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		userID:        userID,
		authz:         authz,
		subscriptions: make(map[uuid.UUID]struct{}),
		send:          make(chan []byte, sendBufSize),
		done:          make(chan struct{}),
	}
}

// IsSubscribed checks if this client is subscribed to a conversation.
func (c *Client) IsSubscribed(conversationID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[conversationID]
	return ok
}

func (c *Client) Subscribe(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[conversationID] = struct{}{}
}

func (c *Client) Unsubscribe(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, conversationID)
}

// ReadPump reads events from the WebSocket until the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug().Str("user_id", c.userID.String()).Msg("ws: client disconnected")
			} else {
				log.Debug().Err(err).Str("user_id", c.userID.String()).Msg("ws: read error")
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued events to the WebSocket and keeps it alive.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("user_id", c.userID.String()).Msg("ws: write error")
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("user_id", c.userID.String()).Msg("ws: ping error")
				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeConversationSubscribe:
		var p ConversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ConversationID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "invalid conversation.subscribe payload")
			return
		}
		if !c.authorize(ctx, p.ConversationID) {
			return
		}
		c.Subscribe(p.ConversationID)
		c.sendEvent(EventTypeSubscribed, &p.ConversationID, p)

	case EventTypeConversationUnsubscribe:
		var p ConversationPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid conversation.unsubscribe payload")
			return
		}
		c.Unsubscribe(p.ConversationID)
		c.sendEvent(EventTypeUnsubscribed, &p.ConversationID, p)

	case EventTypePing:
		c.sendEvent(EventTypePong, nil, struct{}{})

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) authorize(ctx context.Context, conversationID uuid.UUID) bool {
	if c.authz == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, authzTimeout)
	defer cancel()

	_, err := c.authz.Get(ctx, c.userID, conversationID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrConversationNotFound):
		c.sendError("NOT_FOUND", "conversation not found")
	case errors.Is(err, service.ErrNotParticipant):
		c.sendError("FORBIDDEN", "you are not a participant of this conversation")
	default:
		log.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("ws: authorize subscribe")
		c.sendError("INTERNAL", "could not subscribe")
	}
	return false
}

func (c *Client) sendEvent(eventType string, conversationID *uuid.UUID, payload any) {
	evt, err := NewEvent(eventType, conversationID, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
}
