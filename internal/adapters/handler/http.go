package handler

import (
	"context"
	"net/http"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/go-playground/validator"
)

type SimulationService interface {
	Simulate(decision domain.DecisionApproved) ([]domain.PaymentLine, []domain.Discrepancy, error)
}

type ReplayService interface {
	Replay(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error)
}

type OrderQueryService interface {
	FindLatestByDecision(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error)
}

type SettlementHandler struct {
	simulation SimulationService
	replay     ReplayService
	orders     OrderQueryService
	validate   *validator.Validate
}

func NewSettlementHandler(
	simulation SimulationService,
	replay ReplayService,
	orders OrderQueryService,
	validate *validator.Validate,
) *SettlementHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SettlementHandler{
		simulation: simulation,
		replay:     replay,
		orders:     orders,
		validate:   validate,
	}
}

func (h *SettlementHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/simulation", h.HandleSimulate)
	mux.HandleFunc("GET /api/v1/orders/decision/{decisionID}", h.HandleGetOrderByDecision)
	mux.HandleFunc("POST /api/v1/orders/decision/{decisionID}/replay", h.HandleReplay)
	mux.HandleFunc("GET /health", h.HandleHealth)
}

func (h *SettlementHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
