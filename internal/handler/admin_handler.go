package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/moderation"
	"shadownet-chat/internal/service"
)

// AlertPublisher fans a platform-wide announcement out through the broker.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, text, issuedBy string) error
}

// AdminHandler is the moderator surface: banned-term management, manual
// mutes, platform alerts and message inspection. All routes sit behind
// RequireAdmin.
type AdminHandler struct {
	filter      *moderation.Filter
	termRepo    domain.BannedTermRepository
	userRepo    domain.UserRepository
	chatService *service.ChatService
	publisher   AlertPublisher
}

func NewAdminHandler(filter *moderation.Filter, termRepo domain.BannedTermRepository,
	userRepo domain.UserRepository, chatService *service.ChatService, publisher AlertPublisher) *AdminHandler {
	return &AdminHandler{
		filter:      filter,
		termRepo:    termRepo,
		userRepo:    userRepo,
		chatService: chatService,
		publisher:   publisher,
	}
}

type AddTermRequest struct {
	Term        string `json:"term"`
	MuteMinutes int    `json:"mute_minutes"`
}

type MuteRequest struct {
	Minutes int `json:"minutes"`
}

type AlertRequest struct {
	Text string `json:"text"`
}

// ListTerms returns the stored banned terms
func (h *AdminHandler) ListTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.termRepo.List(r.Context())
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve terms"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"terms": terms,
	})
}

// AddTerm stores a banned term and applies it to the live filter at once;
// messages already in flight past the gate are not re-checked
func (h *AdminHandler) AddTerm(w http.ResponseWriter, r *http.Request) {
	var req AddTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.Term = strings.TrimSpace(req.Term)
	if req.Term == "" || req.MuteMinutes <= 0 {
		writeServiceError(w, domain.ErrInvalidInput)
		return
	}

	term := &domain.BannedTerm{Term: req.Term, MuteMinutes: req.MuteMinutes}
	if err := h.termRepo.Create(r.Context(), term); err != nil {
		http.Error(w, `{"error":"Failed to store term"}`, http.StatusInternalServerError)
		return
	}
	h.filter.AddTerm(term.Term, term.MuteMinutes)

	writeJSON(w, http.StatusCreated, term)
}

// DeleteTerm removes a banned term from storage and the live filter
func (h *AdminHandler) DeleteTerm(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	if err := h.termRepo.DeleteByTerm(r.Context(), term); err != nil {
		http.Error(w, `{"error":"Failed to delete term"}`, http.StatusInternalServerError)
		return
	}
	h.filter.RemoveTerm(term)

	w.WriteHeader(http.StatusNoContent)
}

// MuteUser applies a manual mute
func (h *AdminHandler) MuteUser(w http.ResponseWriter, r *http.Request) {
	var req MuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Minutes <= 0 {
		writeServiceError(w, domain.ErrInvalidInput)
		return
	}

	until := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	if err := h.userRepo.SetMutedUntil(r.Context(), chi.URLParam(r, "id"), until); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"muted_until": until,
	})
}

// UnmuteUser lifts a mute early by stamping a deadline in the past
func (h *AdminHandler) UnmuteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userRepo.SetMutedUntil(r.Context(), chi.URLParam(r, "id"), time.Now()); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers returns every account for the moderation console
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.List(r.Context())
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve users"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
	})
}

// RecentMessages returns the newest messages across all groups, unredacted
func (h *AdminHandler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.RecentMessages(r.Context(), limit)
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve messages"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
	})
}

// DeleteMessage removes a message outright
func (h *AdminHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.DeleteMessage(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Broadcast publishes a platform-wide alert through the broker so every
// server instance delivers it
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeServiceError(w, domain.ErrInvalidInput)
		return
	}

	if err := h.publisher.PublishAlert(r.Context(), req.Text, identity.DisplayName); err != nil {
		http.Error(w, `{"error":"Failed to publish alert"}`, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
