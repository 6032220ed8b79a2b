package http

import (
	"net/http"

	"github.com/YanRho/alky-wallet/internal/core"
)

type dashboardResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	core.Dashboard
}

// handleDashboard always answers 200. Aggregation failures degrade to an
// empty dashboard with an advisory error string instead of a 5xx.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	email := principal(r)
	resp := dashboardResponse{
		Email:     email,
		Dashboard: s.ledger.Dashboard(r.Context(), email, s.now()),
	}
	if user, err := s.ledger.ResolveUser(r.Context(), email); err == nil {
		resp.Name = user.Name
		resp.Email = user.Email
	}
	writeJSON(w, http.StatusOK, resp)
}
