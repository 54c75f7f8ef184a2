package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/workdeck/workdeck/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the directory error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrUserDoesNotExist):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, common.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrEmailValidationFailed):
		writeError(w, http.StatusBadRequest, "invalid email")
	case errors.Is(err, common.ErrGroupDoesNotExist):
		writeError(w, http.StatusBadRequest, "unknown group")
	case errors.Is(err, common.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, common.ErrNotificationNotSent):
		writeError(w, http.StatusBadGateway, "account notification could not be sent")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
