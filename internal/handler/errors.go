package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"shadownet-chat/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeServiceError maps pipeline and subsystem failures to HTTP statuses.
// Moderation penalties carry their details so clients can show the deadline.
func writeServiceError(w http.ResponseWriter, err error) {
	var muted *domain.MutedError
	var rejected *domain.ContentRejectedError

	switch {
	case errors.As(err, &muted):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":       muted.Error(),
			"muted_until": muted.Until,
		})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":        rejected.Error(),
			"mute_minutes": rejected.MuteMinutes,
		})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotAPoll),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrEditWindowExpired),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNameExists),
		errors.Is(err, domain.ErrEmailExists):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
