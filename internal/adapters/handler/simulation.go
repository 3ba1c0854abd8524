package handler

import (
	"encoding/json"
	"net/http"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

type SimulationResponse struct {
	Lines         []domain.PaymentLine `json:"lines"`
	Discrepancies []domain.Discrepancy `json:"discrepancies"`
}

// HandleSimulate computes the payment lines a decision would produce without
// storing or dispatching anything.
func (h *SettlementHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req domain.DecisionApproved
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, &domain.DomainError{
			Code:    codeValidation,
			Message: "request body is not a valid decision",
			Err:     err,
		})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, &domain.DomainError{
			Code:    codeValidation,
			Message: err.Error(),
		})
		return
	}

	lines, discrepancies, err := h.simulation.Simulate(req)
	if err != nil {
		respondWithError(w, err)
		return
	}

	if discrepancies == nil {
		discrepancies = []domain.Discrepancy{}
	}
	respondWithJSON(w, http.StatusOK, SimulationResponse{
		Lines:         lines,
		Discrepancies: discrepancies,
	})
}
