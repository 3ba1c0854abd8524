package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/go-playground/validator"
)

type DecisionProcessor interface {
	HandleDecision(ctx context.Context, decision domain.DecisionApproved) (*domain.PaymentRequest, error)
}

// NewDecisionHandler decodes and validates DecisionApproved events before
// passing them to the processor. Undecodable or invalid events are protocol errors.
func NewDecisionHandler(processor DecisionProcessor, validate *validator.Validate) Handler {
	return func(ctx context.Context, body []byte) error {
		var decision domain.DecisionApproved
		if err := json.Unmarshal(body, &decision); err != nil {
			return &domain.ProtocolError{Payload: body, Err: err}
		}
		if err := validate.Struct(decision); err != nil {
			return &domain.ProtocolError{Payload: body, Err: err}
		}
		_, err := processor.HandleDecision(ctx, decision)
		return err
	}
}

type AcknowledgementHandler interface {
	Handle(ctx context.Context, payload []byte) error
}

func NewReceiptHandler(h AcknowledgementHandler) Handler {
	return h.Handle
}
