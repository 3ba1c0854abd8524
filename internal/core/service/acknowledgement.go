package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
)

// AcknowledgementHandler applies kvitteringer from the ledger to their orders.
type AcknowledgementHandler struct {
	store  ports.PaymentOrderStore
	codec  ports.OrderCodec
	events ports.StatusEventPublisher
	logger *slog.Logger
}

func NewAcknowledgementHandler(
	store ports.PaymentOrderStore,
	codec ports.OrderCodec,
	events ports.StatusEventPublisher,
	logger *slog.Logger,
) *AcknowledgementHandler {
	return &AcknowledgementHandler{
		store:  store,
		codec:  codec,
		events: events,
		logger: logger,
	}
}

// Handle decodes one kvittering and records it. A redelivered kvittering with
// the outcome already stored is a no-op and returns nil.
func (h *AcknowledgementHandler) Handle(ctx context.Context, payload []byte) error {
	receipt, err := h.codec.Decode(payload)
	if err != nil {
		return err
	}
	if receipt.CorrelationKey == "" {
		return domain.NewUnknownCorrelationKeyError("")
	}

	req, err := h.store.FindByCorrelationKey(ctx, receipt.CorrelationKey)
	if err != nil {
		return err
	}
	if !receipt.MatchesRequest(req) {
		return &domain.ProtocolError{
			Payload: payload,
			Err: fmt.Errorf("kvittering for case %q decision %q does not belong to request %s",
				receipt.CaseRef, receipt.DecisionRef, req.ID),
		}
	}

	if _, known := domain.StatusForSeverity(receipt.Severity); !known {
		h.logger.Warn("unknown kvittering severity, recording as failed",
			"request_id", req.ID,
			"severity", receipt.Severity,
		)
	}

	status, changed, err := h.store.RecordAcknowledgement(ctx, req.ID, receipt)
	if err != nil {
		if domain.IsStateError(err) {
			h.logger.Error("kvittering conflicts with stored outcome",
				"request_id", req.ID,
				"correlation_key", receipt.CorrelationKey,
				"severity", receipt.Severity,
				"consistency_violation", true,
				"error", err,
			)
		}
		if errors.Is(err, domain.ErrAcknowledgedBeforeSent) {
			h.logger.Warn("kvittering arrived before dispatch was recorded", "request_id", req.ID)
		}
		return err
	}

	if !changed {
		h.logger.Info("duplicate kvittering ignored", "request_id", req.ID, "status", status)
		return nil
	}

	h.logger.Info("kvittering recorded",
		"request_id", req.ID,
		"case_id", req.CaseID,
		"decision_id", req.DecisionID,
		"status", status,
	)

	req.Status = status
	req.Receipt = &receipt
	req.UpdatedAt = time.Now().UTC()
	if err := h.events.PublishStatusChanged(ctx, domain.NewStatusChanged(req)); err != nil {
		h.logger.Warn("failed to publish status event", "request_id", req.ID, "status", status, "error", err)
	}
	return nil
}
