package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YanRho/alky-wallet/internal/core"
)

// Messages returned verbatim by the API. Clients match on these strings,
// so they are fixed.
const (
	msgInvalidForm      = "Invalid form data"
	msgInvalidAmount    = "Amount must be a number"
	msgInvalidDate      = "Invalid date"
	msgNotAuthenticated = "Not authenticated"
	msgUserNotFound     = "User not found"
	msgNotFound         = "Not found"
	msgCreateFailed     = "Failed to add transaction"
	msgDeleteFailed     = "Failed to delete"
	msgEmailTaken       = "Email is already registered"
	msgBadCredentials   = "Invalid email or password"
	msgServerError      = "Server error. Please try again."
)

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeLedgerError maps service sentinels to the fixed API messages.
// Anything unrecognized answers 500 with fallback.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, msgInvalidAmount)
	case errors.Is(err, core.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, msgInvalidDate)
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msgInvalidForm)
	case errors.Is(err, core.ErrUserNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
