package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YanRho/alky-wallet/internal/auth"
	"github.com/YanRho/alky-wallet/internal/core"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	err := s.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err == nil {
		writeJSON(w, http.StatusCreated, okResponse{OK: true})
		return
	}

	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, core.ErrEmailTaken):
		writeError(w, http.StatusConflict, msgEmailTaken)
	default:
		s.logger.ErrorContext(r.Context(), "register failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	token, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err == nil {
		writeJSON(w, http.StatusOK, loginResponse{Token: token})
		return
	}

	if errors.Is(err, core.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	s.logger.ErrorContext(r.Context(), "login failed", "error", err)
	writeError(w, http.StatusInternalServerError, msgServerError)
}
