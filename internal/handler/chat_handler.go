package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/service"
)

// Broadcaster pushes a payload to every websocket subscriber of a group.
type Broadcaster interface {
	Broadcast(groupID string, message []byte)
}

// ChatHandler handles message history and the REST mutations (edit, vote,
// react). Every successful mutation is also broadcast to the message's group
// so websocket clients converge without polling.
type ChatHandler struct {
	chatService *service.ChatService
	broadcaster Broadcaster
}

func NewChatHandler(chatService *service.ChatService, broadcaster Broadcaster) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		broadcaster: broadcaster,
	}
}

type EditRequest struct {
	Body string `json:"body"`
}

type VoteRequest struct {
	OptionIndex int `json:"option_index"`
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// GetMessages retrieves a group's message history
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), chi.URLParam(r, "id"), identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
	})
}

// Edit replaces a message body within the edit window
func (h *ChatHandler) Edit(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Edit(r.Context(), chi.URLParam(r, "id"), identity.UserID, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.broadcastUpdate("message_edited", msg)
	writeJSON(w, http.StatusOK, msg)
}

// History returns a message's append-only edit log
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.chatService.EditHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
	})
}

// Vote records the caller's poll ballot (last vote wins)
func (h *ChatHandler) Vote(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Vote(r.Context(), chi.URLParam(r, "id"), identity.UserID, req.OptionIndex)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.broadcastUpdate("poll_updated", msg)
	writeJSON(w, http.StatusOK, msg)
}

// React toggles or replaces the caller's emoji reaction
func (h *ChatHandler) React(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.React(r.Context(), chi.URLParam(r, "id"), identity.UserID, req.Emoji)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.broadcastUpdate("reaction_updated", msg)
	writeJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) broadcastUpdate(frameType string, msg *domain.ChatMessage) {
	data, err := json.Marshal(map[string]any{
		"type":        frameType,
		"destination": "group/" + msg.GroupID,
		"message":     msg,
	})
	if err != nil {
		slog.Error("failed to marshal update frame",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID))
		return
	}
	h.broadcaster.Broadcast(msg.GroupID, data)
}
