package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/presence"
	"shadownet-chat/internal/service"
	ws "shadownet-chat/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering happens in the CORS middleware; the upgrade
		// itself accepts any origin that got this far.
		return true
	},
}

// WebSocketHandler handles websocket upgrades. One connection serves all of
// a user's group subscriptions.
type WebSocketHandler struct {
	hub         *ws.Hub
	chatService *service.ChatService
	groupRepo   domain.GroupRepository
	registry    *presence.Registry
}

func NewWebSocketHandler(hub *ws.Hub, chatService *service.ChatService,
	groupRepo domain.GroupRepository, registry *presence.Registry) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatService: chatService,
		groupRepo:   groupRepo,
		registry:    registry,
	}
}

// HandleConnection upgrades the request and starts the client pumps
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("user", identity.DisplayName))
		return
	}

	// The request context dies when this handler returns; the hijacked
	// connection outlives it, so the client gets its own.
	client := ws.NewClient(context.Background(), h.hub, conn, identity, h.chatService, h.groupRepo, h.registry)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
