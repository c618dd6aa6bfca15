package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/presence"
	"shadownet-chat/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 8192
)

type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          string
	identity    *domain.Identity
	chatService *service.ChatService
	groupRepo   domain.GroupRepository
	presence    *presence.Registry

	// groups this connection has joined; touched only by ReadPump
	joined map[string]bool

	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// ClientFrame is one inbound websocket frame.
type ClientFrame struct {
	Type             string   `json:"type"`
	Destination      string   `json:"destination,omitempty"`
	Body             string   `json:"body,omitempty"`
	Kind             string   `json:"kind,omitempty"`
	ReplyToID        string   `json:"reply_to_id,omitempty"`
	ExpiresInMinutes int      `json:"expires_in_minutes,omitempty"`
	PollQuestion     string   `json:"poll_question,omitempty"`
	PollOptions      []string `json:"poll_options,omitempty"`
}

// ServerFrame is one outbound websocket frame.
type ServerFrame struct {
	Type        string              `json:"type"`
	Destination string              `json:"destination,omitempty"`
	Message     *domain.ChatMessage `json:"message,omitempty"`
	Members     []string            `json:"members,omitempty"`
	From        string              `json:"from,omitempty"`
	Text        string              `json:"text,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, identity *domain.Identity,
	chatService *service.ChatService, groupRepo domain.GroupRepository, registry *presence.Registry) *Client {
	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          uuid.New().String(),
		identity:    identity,
		chatService: chatService,
		groupRepo:   groupRepo,
		presence:    registry,
		joined:      make(map[string]bool),
		ctx:         clientCtx,
		ctxCancel:   cancel,
	}
}

// parseDestination extracts the group ID from a "group/<uuid>" destination.
// Anything else is malformed and must be ignored.
func parseDestination(dest string) (string, bool) {
	prefix, id, found := strings.Cut(dest, "/")
	if !found || prefix != "group" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func (c *Client) ReadPump() {
	defer func() {
		c.ctxCancel()

		// Sweep presence for every group this connection was in and let the
		// survivors know.
		for groupID, roster := range c.presence.Disconnect(c.id, c.identity.DisplayName) {
			c.broadcastPresence(groupID, roster)
		}

		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("user", c.identity.DisplayName))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("user", c.identity.DisplayName))
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid frame format",
				slog.String("error", err.Error()),
				slog.String("user", c.identity.DisplayName))
			continue
		}

		switch frame.Type {
		case "subscribe":
			c.handleSubscribe(frame)
		case "unsubscribe":
			c.handleUnsubscribe(frame)
		case "message":
			c.handleMessage(frame)
		case "typing":
			c.handleTyping(frame)
		default:
			slog.Warn("unknown frame type",
				slog.String("type", frame.Type),
				slog.String("user", c.identity.DisplayName))
		}
	}
}

func (c *Client) handleSubscribe(frame ClientFrame) {
	groupID, ok := parseDestination(frame.Destination)
	if !ok {
		slog.Warn("malformed destination ignored",
			slog.String("destination", frame.Destination),
			slog.String("user", c.identity.DisplayName))
		return
	}
	if c.joined[groupID] {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	_, err := c.groupRepo.GetByID(ctx, groupID)
	cancel()
	if err != nil {
		c.sendError("group not found")
		return
	}

	c.joined[groupID] = true
	c.hub.Subscribe(c, groupID)
	roster := c.presence.Join(c.id, groupID, c.identity.DisplayName)
	c.broadcastPresence(groupID, roster)
}

func (c *Client) handleUnsubscribe(frame ClientFrame) {
	groupID, ok := parseDestination(frame.Destination)
	if !ok || !c.joined[groupID] {
		return
	}

	delete(c.joined, groupID)
	c.hub.Unsubscribe(c, groupID)
	roster := c.presence.Leave(c.id, groupID, c.identity.DisplayName)
	c.broadcastPresence(groupID, roster)
}

func (c *Client) handleMessage(frame ClientFrame) {
	groupID, ok := parseDestination(frame.Destination)
	if !ok {
		slog.Warn("malformed destination ignored",
			slog.String("destination", frame.Destination),
			slog.String("user", c.identity.DisplayName))
		return
	}
	if !c.joined[groupID] {
		c.sendError("not subscribed to this group")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	msg, err := c.chatService.Submit(ctx, c.identity.UserID, service.SubmitInput{
		GroupID:          groupID,
		Body:             frame.Body,
		Kind:             domain.ParseMessageKind(frame.Kind),
		ReplyToID:        frame.ReplyToID,
		ExpiresInMinutes: frame.ExpiresInMinutes,
		PollQuestion:     frame.PollQuestion,
		PollOptions:      frame.PollOptions,
	})
	cancel()
	if err != nil {
		c.sendError(submitErrorText(err))
		return
	}

	c.broadcastFrame(groupID, ServerFrame{
		Type:        "chat_message",
		Destination: frame.Destination,
		Message:     msg,
	})
}

func (c *Client) handleTyping(frame ClientFrame) {
	groupID, ok := parseDestination(frame.Destination)
	if !ok || !c.joined[groupID] {
		return
	}

	c.broadcastFrame(groupID, ServerFrame{
		Type:        "typing",
		Destination: frame.Destination,
		From:        c.identity.DisplayName,
	})
}

// submitErrorText maps pipeline failures to user-facing frame text without
// leaking internals.
func submitErrorText(err error) string {
	var muted *domain.MutedError
	var rejected *domain.ContentRejectedError
	switch {
	case errors.As(err, &muted):
		return muted.Error()
	case errors.As(err, &rejected):
		return rejected.Error()
	case errors.Is(err, domain.ErrGroupNotFound):
		return "group not found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid message"
	default:
		return "failed to send message"
	}
}

func (c *Client) broadcastPresence(groupID string, roster []string) {
	c.broadcastFrame(groupID, ServerFrame{
		Type:        "presence",
		Destination: "group/" + groupID,
		Members:     roster,
	})
}

func (c *Client) broadcastFrame(groupID string, frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to marshal frame",
			slog.String("error", err.Error()),
			slog.String("type", frame.Type))
		return
	}
	c.hub.Broadcast(groupID, data)
}

func (c *Client) sendError(text string) {
	data, err := json.Marshal(ServerFrame{Type: "error", Error: text})
	if err != nil {
		slog.Error("failed to marshal error frame", slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes to the connection in a thread-safe manner.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline",
			slog.String("error", err.Error()),
			slog.String("user", c.identity.DisplayName))
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the websocket connection.
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
