// Package realtime pushes new conversation messages to connected websocket
// clients, either from this process or, with Valkey, from any instance.
package realtime

import (
	"context"
	"sync"
)

// Client is one websocket connection subscribed to a conversation.
type Client struct {
	UserID         string
	ConversationID string
	Send           chan []byte
}

type Broadcast struct {
	ConversationID string
	Data           []byte
}

// Hub tracks clients per conversation. Register, Unregister and Broadcast are
// only served while Run is active.
type Hub struct {
	clients    map[string]map[*Client]bool // conversationID -> clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Broadcast
	mu         sync.RWMutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Broadcast, 64),
		done:       make(chan struct{}),
	}
}

// Run serves the hub channels until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.ConversationID] == nil {
				h.clients[client.ConversationID] = make(map[*Client]bool)
			}
			h.clients[client.ConversationID][client] = true
			h.mu.Unlock()
		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.ConversationID] {
				select {
				case client.Send <- msg.Data:
				default:
					// Slow consumer; drop it rather than block the hub.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Join registers client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client; it is a no-op once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Deliver queues data for the clients of conversationID.
func (h *Hub) Deliver(ctx context.Context, conversationID string, data []byte) error {
	select {
	case h.Broadcast <- Broadcast{ConversationID: conversationID, Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return nil
	}
}

// ClientCount is the number of clients connected to conversationID.
func (h *Hub) ClientCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[conversationID])
}

// remove drops client. Caller holds the write lock.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.ConversationID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
	}
	if len(clients) == 0 {
		delete(h.clients, client.ConversationID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
}
