package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub manages all active WebSocket clients and routes messages. A user may
// hold several connections at once.
type Hub struct {
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	count      chan chan int
	stopped    chan struct{}
}

type broadcastMsg struct {
	conversationID uuid.UUID
	data           []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		count:      make(chan chan int),
		stopped:    make(chan struct{}),
	}
}

// Run starts the Hub's main event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			log.Debug().Str("user_id", client.userID.String()).Int("clients", len(h.clients)).Msg("ws hub: connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Debug().Str("user_id", client.userID.String()).Int("clients", len(h.clients)).Msg("ws hub: disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				// Only clients subscribed to this conversation
				if !client.IsSubscribed(msg.conversationID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					log.Warn().Str("user_id", client.userID.String()).Msg("ws hub: slow client dropped")
					h.drop(client)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// drop removes a client and stops its write pump. send is left open so a
// late write from the read side cannot panic.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.done)
}

// Broadcast sends an encoded event to every subscriber of a conversation on
// this instance.
func (h *Hub) Broadcast(conversationID uuid.UUID, data []byte) {
	select {
	case h.broadcast <- &broadcastMsg{conversationID: conversationID, data: data}:
	case <-h.stopped:
	}
}

// Register adds a client to the hub. It reports false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.stopped:
		return 0
	}
}
