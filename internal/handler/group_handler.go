package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/presence"
)

// GroupHandler handles group CRUD and rosters
type GroupHandler struct {
	groupRepo domain.GroupRepository
	registry  *presence.Registry
}

func NewGroupHandler(groupRepo domain.GroupRepository, registry *presence.Registry) *GroupHandler {
	return &GroupHandler{
		groupRepo: groupRepo,
		registry:  registry,
	}
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List retrieves all groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupRepo.List(r.Context())
	if err != nil {
		http.Error(w, `{"error":"Failed to retrieve groups"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
	})
}

// Create creates a new group
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if len(req.Name) < 3 || len(req.Name) > 50 {
		writeServiceError(w, domain.ErrInvalidInput)
		return
	}

	group := &domain.Group{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   identity.UserID,
	}
	if err := h.groupRepo.Create(r.Context(), group); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

// Get retrieves one group
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groupRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// Delete removes a group; moderator-only, enforced by routing
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.groupRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members returns the live roster of a group from the presence registry
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	if _, err := h.groupRepo.GetByID(r.Context(), groupID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"members": h.registry.Roster(groupID),
	})
}
