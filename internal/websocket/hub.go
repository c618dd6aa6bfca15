package websocket

import (
	"context"
	"log/slog"

	"shadownet-chat/internal/observability"
)

// BroadcastMessage is a payload addressed to one group topic. An empty
// GroupID fans out to every connected client.
type BroadcastMessage struct {
	GroupID string
	Message []byte
}

type subscription struct {
	client  *Client
	groupID string
}

// Hub maintains active clients and routes payloads to group topics. A client
// may subscribe to any number of groups over a single connection.
type Hub struct {
	// All connected clients
	clients map[*Client]bool

	// Registered clients by group topic
	topics map[string]map[*Client]bool

	broadcast chan *BroadcastMessage

	register   chan *Client
	unregister chan *Client

	subscribe   chan subscription
	unsubscribe chan subscription

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		topics:      make(map[string]map[*Client]bool),
		broadcast:   make(chan *BroadcastMessage, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			h.clients[client] = true
			slog.Info("client registered",
				slog.String("user", client.identity.DisplayName),
				slog.String("conn_id", client.id))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case sub := <-h.subscribe:
			if h.topics[sub.groupID] == nil {
				h.topics[sub.groupID] = make(map[*Client]bool)
			}
			h.topics[sub.groupID][sub.client] = true
			observability.WebSocketConnectionsActive.WithLabelValues(sub.groupID).Inc()

		case sub := <-h.unsubscribe:
			h.dropSubscription(sub.client, sub.groupID)

		case message := <-h.broadcast:
			if message.GroupID == "" {
				for client := range h.clients {
					h.deliver(client, message.Message, "all")
				}
				continue
			}
			for client := range h.topics[message.GroupID] {
				h.deliver(client, message.Message, message.GroupID)
			}
		}
	}
}

// deliver pushes a payload to one client, dropping the connection when its
// send buffer is full.
func (h *Hub) deliver(client *Client, message []byte, topic string) {
	select {
	case client.send <- message:
		observability.WebSocketMessagesSent.WithLabelValues(topic).Inc()
	default:
		h.unregisterClient(client)
	}
}

// unregisterClient removes a client from every topic and the hub.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	for groupID, clients := range h.topics {
		if clients[client] {
			h.dropSubscription(client, groupID)
		}
	}
	delete(h.clients, client)
	h.closeClientSend(client)
	slog.Info("client unregistered",
		slog.String("user", client.identity.DisplayName),
		slog.String("conn_id", client.id))
}

func (h *Hub) dropSubscription(client *Client, groupID string) {
	clients, ok := h.topics[groupID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	observability.WebSocketConnectionsActive.WithLabelValues(groupID).Dec()
	if len(clients) == 0 {
		delete(h.topics, groupID)
	}
}

// closeClientSend safely closes a client's send channel.
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections.
func (h *Hub) shutdown() {
	close(h.done)

	for client := range h.clients {
		h.closeClientSend(client)
		slog.Info("closed client connection",
			slog.String("user", client.identity.DisplayName))
	}

	slog.Info("hub shutdown complete")
}

// Broadcast sends a payload to every client subscribed to a group.
func (h *Hub) Broadcast(groupID string, message []byte) {
	h.broadcast <- &BroadcastMessage{
		GroupID: groupID,
		Message: message,
	}
}

// BroadcastAll sends a payload to every connected client regardless of
// subscriptions. Used for platform-wide alerts.
func (h *Hub) BroadcastAll(message []byte) {
	h.broadcast <- &BroadcastMessage{Message: message}
}

// Register registers a client with the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe attaches a client to a group topic.
func (h *Hub) Subscribe(client *Client, groupID string) {
	h.subscribe <- subscription{client: client, groupID: groupID}
}

// Unsubscribe detaches a client from a group topic.
func (h *Hub) Unsubscribe(client *Client, groupID string) {
	h.unsubscribe <- subscription{client: client, groupID: groupID}
}
