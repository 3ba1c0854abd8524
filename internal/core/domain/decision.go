package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScheduleEntry is one period of the decision's own authoritative schedule.
type ScheduleEntry struct {
	PeriodFrom YearMonth           `json:"periodFrom" validate:"required"`
	PeriodTo   *YearMonth          `json:"periodTo,omitempty"`
	Amount     decimal.NullDecimal `json:"amount"`
	Kind       LineKind            `json:"kind" validate:"required"`
}

// DecisionApproved is the inbound event announcing an attested vedtak.
type DecisionApproved struct {
	CaseID        int64           `json:"caseId" validate:"required,gt=0"`
	DecisionID    int64           `json:"decisionId" validate:"required,gt=0"`
	CaseType      CaseType        `json:"caseType" validate:"required"`
	BeneficiaryID string          `json:"beneficiaryId" validate:"required"`
	Attestant     string          `json:"attestant" validate:"required"`
	Saksbehandler string          `json:"saksbehandler" validate:"required"`
	Schedule      []ScheduleEntry `json:"schedule" validate:"required,min=1,dive"`
}

// StatusChanged is the outbound event published after dispatch and after each
// acknowledgement that moved a request.
type StatusChanged struct {
	RequestID  uuid.UUID `json:"requestId"`
	CaseID     int64     `json:"caseId"`
	DecisionID int64     `json:"decisionId"`
	Status     Status    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

func NewStatusChanged(r *PaymentRequest) StatusChanged {
	ev := StatusChanged{
		RequestID:  r.ID,
		CaseID:     r.CaseID,
		DecisionID: r.DecisionID,
		Status:     r.Status,
		At:         r.UpdatedAt,
	}
	if r.Receipt != nil {
		ev.Detail = r.Receipt.Detail
	}
	return ev
}
