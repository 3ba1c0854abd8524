package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// VerificationSweep re-verifies recently sent orders against the schedule the
// vedtak service holds now, catching decisions changed after dispatch.
type VerificationSweep struct {
	store    ports.PaymentOrderStore
	source   ports.DecisionSource
	verifier *DecisionVerifier
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewVerificationSweep(
	store ports.PaymentOrderStore,
	source ports.DecisionSource,
	verifier *DecisionVerifier,
	window time.Duration,
	logger *slog.Logger,
) *VerificationSweep {
	return &VerificationSweep{
		store:    store,
		source:   source,
		verifier: verifier,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// Run returns every discrepancy found. A decision the vedtak service cannot
// serve is logged and skipped.
func (s *VerificationSweep) Run(ctx context.Context) ([]domain.Discrepancy, error) {
	to := s.now().UTC()
	period, err := domain.NewReconciliationPeriod(to.Add(-s.window), to)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrdersInWindow(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list orders in window: %w", err)
	}

	var found []domain.Discrepancy
	for _, req := range orders {
		schedule, err := s.source.FetchSchedule(ctx, req.DecisionID)
		if err != nil {
			s.logger.Error("failed to fetch decision schedule", "decision_id", req.DecisionID, "error", err)
			continue
		}
		for _, d := range s.verifier.Verify(req, schedule) {
			s.logger.Error("sent order differs from decision",
				"request_id", req.ID,
				"case_id", d.CaseID,
				"decision_id", d.DecisionID,
				"kind", d.Kind,
				"expected", d.Expected,
				"actual", d.Actual,
			)
			found = append(found, d)
		}
	}

	s.logger.Info("verification sweep completed", "orders", len(orders), "discrepancies", len(found))
	return found, nil
}
