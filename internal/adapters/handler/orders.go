package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/google/uuid"
)

type OrderResponse struct {
	ID                uuid.UUID                      `json:"id"`
	CaseID            int64                          `json:"caseId"`
	DecisionID        int64                          `json:"decisionId"`
	Attempt           int                            `json:"attempt"`
	CaseType          domain.CaseType                `json:"caseType"`
	Status            domain.Status                  `json:"status"`
	Lines             []domain.PaymentLine           `json:"lines"`
	CorrelationKey    *string                        `json:"correlationKey,omitempty"`
	ReconciliationKey *time.Time                     `json:"reconciliationKey,omitempty"`
	Receipt           *domain.AcknowledgementReceipt `json:"receipt,omitempty"`
	CreatedAt         time.Time                      `json:"createdAt"`
	SentAt            *time.Time                     `json:"sentAt,omitempty"`
	AcknowledgedAt    *time.Time                     `json:"acknowledgedAt,omitempty"`
}

func toOrderResponse(r *domain.PaymentRequest) OrderResponse {
	return OrderResponse{
		ID:                r.ID,
		CaseID:            r.CaseID,
		DecisionID:        r.DecisionID,
		Attempt:           r.Attempt,
		CaseType:          r.CaseType,
		Status:            r.Status,
		Lines:             r.Lines,
		CorrelationKey:    r.CorrelationKey,
		ReconciliationKey: r.ReconciliationKey,
		Receipt:           r.Receipt,
		CreatedAt:         r.CreatedAt,
		SentAt:            r.SentAt,
		AcknowledgedAt:    r.AcknowledgedAt,
	}
}

func decisionIDParam(r *http.Request) (int64, error) {
	raw := r.PathValue("decisionID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.DomainError{
			Code:    codeInvalidParam,
			Message: "decisionID must be a positive integer",
		}
	}
	return id, nil
}

// HandleGetOrderByDecision returns the latest attempt for a decision.
func (h *SettlementHandler) HandleGetOrderByDecision(w http.ResponseWriter, r *http.Request) {
	decisionID, err := decisionIDParam(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	req, err := h.orders.FindLatestByDecision(r.Context(), decisionID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(req))
}

// HandleReplay dispatches a fresh attempt for a decision whose latest attempt
// is terminal.
func (h *SettlementHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	decisionID, err := decisionIDParam(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	req, err := h.replay.Replay(r.Context(), decisionID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, toOrderResponse(req))
}
