package http

import (
	"encoding/json"
	"net/http"

	"github.com/YanRho/alky-wallet/internal/core"
	"github.com/YanRho/alky-wallet/internal/ledger"
)

// createTransactionRequest uses pointer fields so missing keys can be
// told apart from zero values during schema validation.
type createTransactionRequest struct {
	Kind       *string `json:"kind"`
	Amount     *string `json:"amount"`
	Note       *string `json:"note"`
	OccurredAt *string `json:"occurredAt"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}
	if req.Amount == nil || req.OccurredAt == nil {
		writeError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	kind := core.Kind("")
	if req.Kind != nil {
		kind = core.Kind(*req.Kind)
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, msgInvalidForm)
		return
	}

	in := ledger.CreateInput{
		Kind:       kind,
		Amount:     *req.Amount,
		Note:       req.Note,
		OccurredAt: *req.OccurredAt,
	}
	if err := s.ledger.CreateTransaction(r.Context(), principal(r), in); err != nil {
		s.writeLedgerError(w, r, err, msgCreateFailed)
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), principal(r), id); err != nil {
		s.writeLedgerError(w, r, err, msgDeleteFailed)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
