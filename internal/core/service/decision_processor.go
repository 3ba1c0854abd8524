package service

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// DecisionProcessor turns approved decisions into dispatched payment orders.
type DecisionProcessor struct {
	store      ports.PaymentOrderStore
	builder    *PaymentLineBuilder
	verifier   *DecisionVerifier
	dispatcher *Dispatcher
	events     ports.StatusEventPublisher
	logger     *slog.Logger
}

func NewDecisionProcessor(
	store ports.PaymentOrderStore,
	builder *PaymentLineBuilder,
	verifier *DecisionVerifier,
	dispatcher *Dispatcher,
	events ports.StatusEventPublisher,
	logger *slog.Logger,
) *DecisionProcessor {
	return &DecisionProcessor{
		store:      store,
		builder:    builder,
		verifier:   verifier,
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// HandleDecision is idempotent on the decision id: a redelivered decision
// returns the stored request and publishes nothing.
func (p *DecisionProcessor) HandleDecision(ctx context.Context, decision domain.DecisionApproved) (*domain.PaymentRequest, error) {
	lines, err := p.builder.Build(decision)
	if err != nil {
		return nil, err
	}

	known, err := p.store.HasAcceptedOrderForCase(ctx, decision.CaseID)
	if err != nil {
		return nil, err
	}

	req, err := domain.NewPaymentRequest(
		decision.CaseID,
		decision.DecisionID,
		decision.CaseType,
		decision.BeneficiaryID,
		decision.Attestant,
		decision.Saksbehandler,
		lines,
	)
	if err != nil {
		return nil, err
	}
	req.FirstForCase = !known

	if found := p.verifier.Verify(req, decision.Schedule); len(found) > 0 {
		for _, d := range found {
			p.logger.Error("decision verification failed",
				"case_id", d.CaseID,
				"decision_id", d.DecisionID,
				"kind", d.Kind,
				"period_from", d.PeriodFrom,
				"expected", d.Expected,
				"actual", d.Actual,
			)
		}
		return nil, domain.NewDiscrepancyError(found)
	}

	stored, created, err := p.store.UpsertIfAbsent(ctx, req)
	if err != nil {
		return nil, err
	}
	if !created {
		p.logger.Info("decision already processed",
			"decision_id", decision.DecisionID,
			"request_id", stored.ID,
			"status", stored.Status,
		)
		return stored, nil
	}

	if _, err := p.dispatcher.Dispatch(ctx, stored); err != nil {
		return stored, err
	}
	p.emit(ctx, stored)
	return stored, nil
}

// Simulate builds and verifies the lines a decision would produce without storing
// or sending anything.
func (p *DecisionProcessor) Simulate(decision domain.DecisionApproved) ([]domain.PaymentLine, []domain.Discrepancy, error) {
	lines, err := p.builder.Build(decision)
	if err != nil {
		return nil, nil, err
	}
	req := &domain.PaymentRequest{CaseID: decision.CaseID, DecisionID: decision.DecisionID, Lines: lines}
	return lines, p.verifier.Verify(req, decision.Schedule), nil
}

// Replay dispatches a fresh attempt for a decision whose latest attempt ended
// without the ledger accepting it, or after an operator decided to resend.
func (p *DecisionProcessor) Replay(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error) {
	next, err := p.store.Replay(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("replaying decision", "decision_id", decisionID, "attempt", next.Attempt, "request_id", next.ID)

	if _, err := p.dispatcher.Dispatch(ctx, next); err != nil {
		return next, err
	}
	p.emit(ctx, next)
	return next, nil
}

func (p *DecisionProcessor) emit(ctx context.Context, req *domain.PaymentRequest) {
	if err := p.events.PublishStatusChanged(ctx, domain.NewStatusChanged(req)); err != nil {
		p.logger.Warn("failed to publish status event", "request_id", req.ID, "status", req.Status, "error", err)
	}
}
