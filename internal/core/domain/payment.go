// Package domain defines the settlement model: payment requests, their lines,
// the status lifecycle and the reconciliation records built from them.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaseType identifies the benefit a case pays out.
type CaseType string

const (
	CaseTypeBarnepensjon      CaseType = "BARNEPENSJON"
	CaseTypeOmstillingsstonad CaseType = "OMSTILLINGSSTOENAD"
)

// KnownCaseTypes lists case types in the fixed order reports are grouped by.
var KnownCaseTypes = []CaseType{CaseTypeBarnepensjon, CaseTypeOmstillingsstonad}

// CaseTypeCodes are the legacy codes a case type is routed and classified under.
type CaseTypeCodes struct {
	RoutingCode            string
	ClassificationCode     string
	LineClassificationCode string
}

var caseTypeCodes = map[CaseType]CaseTypeCodes{
	CaseTypeBarnepensjon: {
		RoutingCode:            "BARNEPE",
		ClassificationCode:     "BP",
		LineClassificationCode: "BARNEPENSJON-OPTP",
	},
	CaseTypeOmstillingsstonad: {
		RoutingCode:            "OMSTILL",
		ClassificationCode:     "OMS",
		LineClassificationCode: "OMSTILLINGOR",
	},
}

func CodesFor(caseType CaseType) (CaseTypeCodes, error) {
	codes, ok := caseTypeCodes[caseType]
	if !ok {
		return CaseTypeCodes{}, NewUnknownCaseTypeError(caseType)
	}
	return codes, nil
}

// LineKind distinguishes a paying segment from one that stops payment.
type LineKind string

const (
	LineKindPayment     LineKind = "PAYMENT"
	LineKindTermination LineKind = "TERMINATION"
)

// PaymentLine is one segment of a payment schedule. PeriodTo nil means open-ended;
// Amount is null for termination lines.
type PaymentLine struct {
	ID                 int64               `json:"id"`
	PeriodFrom         YearMonth           `json:"periodFrom"`
	PeriodTo           *YearMonth          `json:"periodTo,omitempty"`
	Amount             decimal.NullDecimal `json:"amount"`
	Kind               LineKind            `json:"kind"`
	ClassificationCode string              `json:"classificationCode"`
}

// Covers reports whether the line's period includes month m.
func (l PaymentLine) Covers(m YearMonth) bool {
	if m.Before(l.PeriodFrom) {
		return false
	}
	return l.PeriodTo == nil || !m.After(*l.PeriodTo)
}

// ValidateLines checks that lines are ordered by PeriodFrom and do not overlap.
func ValidateLines(lines []PaymentLine) error {
	if len(lines) == 0 {
		return NewInvalidScheduleError("no lines")
	}
	for i, l := range lines {
		if l.Kind != LineKindPayment && l.Kind != LineKindTermination {
			return NewInvalidScheduleError(fmt.Sprintf("line %d has unknown kind %q", i, l.Kind))
		}
		if l.Kind == LineKindPayment && !l.Amount.Valid {
			return NewInvalidScheduleError(fmt.Sprintf("payment line %d from %s has no amount", i, l.PeriodFrom))
		}
		if l.Amount.Valid && l.Amount.Decimal.IsNegative() {
			return NewInvalidScheduleError(fmt.Sprintf("line %d from %s has negative amount", i, l.PeriodFrom))
		}
		if l.PeriodTo != nil && l.PeriodTo.Before(l.PeriodFrom) {
			return NewInvalidScheduleError(fmt.Sprintf("line %d ends %s before it starts %s", i, l.PeriodTo, l.PeriodFrom))
		}
		if i == 0 {
			continue
		}
		prev := lines[i-1]
		if !prev.PeriodFrom.Before(l.PeriodFrom) {
			return NewInvalidScheduleError(fmt.Sprintf("line %d is not ordered by period start", i))
		}
		if prev.PeriodTo == nil || !prev.PeriodTo.Before(l.PeriodFrom) {
			return NewInvalidScheduleError(fmt.Sprintf("line %d overlaps line %d", i, i-1))
		}
	}
	return nil
}

// PaymentRequest is the settlement view of one decision on one case. It is immutable
// once dispatched except for its status, receipt and timestamps.
type PaymentRequest struct {
	ID            uuid.UUID
	CaseID        int64
	DecisionID    int64
	Attempt       int
	CaseType      CaseType
	BeneficiaryID string
	Attestant     string
	Saksbehandler string
	Lines         []PaymentLine
	// FirstForCase marks the first order ever sent for the case; the ledger
	// creates the case on it and amends it on every later order.
	FirstForCase bool

	Status            Status
	ReconciliationKey *time.Time
	CorrelationKey    *string
	Receipt           *AcknowledgementReceipt

	CreatedAt      time.Time
	UpdatedAt      time.Time
	SentAt         *time.Time
	AcknowledgedAt *time.Time
}

func NewPaymentRequest(
	caseID int64,
	decisionID int64,
	caseType CaseType,
	beneficiaryID string,
	attestant string,
	saksbehandler string,
	lines []PaymentLine,
) (*PaymentRequest, error) {
	if caseID <= 0 {
		return nil, NewMissingRequiredFieldError("case id")
	}
	if decisionID <= 0 {
		return nil, NewMissingRequiredFieldError("decision id")
	}
	if _, err := CodesFor(caseType); err != nil {
		return nil, err
	}
	if beneficiaryID == "" {
		return nil, NewMissingRequiredFieldError("beneficiary id")
	}
	if attestant == "" {
		return nil, NewMissingRequiredFieldError("attestant")
	}
	if saksbehandler == "" {
		return nil, NewMissingRequiredFieldError("saksbehandler")
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &PaymentRequest{
		ID:            uuid.New(),
		CaseID:        caseID,
		DecisionID:    decisionID,
		Attempt:       1,
		CaseType:      caseType,
		BeneficiaryID: beneficiaryID,
		Attestant:     attestant,
		Saksbehandler: saksbehandler,
		Lines:         lines,
		Status:        StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NextAttempt derives the fresh request a manual replay dispatches. The lines are
// copied with the same ids so the ledger tracks them as the same segments. The
// case stays new to the ledger only if the previous attempt was never accepted.
func (r *PaymentRequest) NextAttempt() *PaymentRequest {
	now := time.Now().UTC()
	lines := make([]PaymentLine, len(r.Lines))
	copy(lines, r.Lines)
	return &PaymentRequest{
		ID:            uuid.New(),
		CaseID:        r.CaseID,
		DecisionID:    r.DecisionID,
		Attempt:       r.Attempt + 1,
		CaseType:      r.CaseType,
		BeneficiaryID: r.BeneficiaryID,
		Attestant:     r.Attestant,
		Saksbehandler: r.Saksbehandler,
		Lines:         lines,
		FirstForCase:  r.FirstForCase && !r.Status.IsAccepted(),
		Status:        StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TotalAmount sums the amounts of all payment lines.
func (r *PaymentRequest) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		if l.Amount.Valid {
			total = total.Add(l.Amount.Decimal)
		}
	}
	return total
}

const correlationKeyLength = 30

// CorrelationKey is the key a kvittering is matched back to its order by. It is
// derived from the request id, so every attempt has its own key, and fits the
// 30 character henvisning the ledger echoes on every line of the receipt.
func CorrelationKey(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:correlationKeyLength]
}

// PaymentOrder is the wire-level representation of a request at dispatch time.
type PaymentOrder struct {
	Request            *PaymentRequest
	RoutingCode        string
	ClassificationCode string
	ReconciliationKey  time.Time
	CorrelationKey     string
	CrossReference     string
	Payload            []byte
}

// AcknowledgementReceipt is a decoded kvittering.
// CaseRef and DecisionRef are the fagsystemId and vedtakId the ledger echoes
// next to the henvisning; empty when the receipt omits them.
type AcknowledgementReceipt struct {
	Severity       string `json:"severity"`
	Detail         string `json:"detail,omitempty"`
	CorrelationKey string `json:"correlationKey"`
	CaseRef        string `json:"-"`
	DecisionRef    string `json:"-"`
	Raw            []byte `json:"-"`
}

// MatchesRequest reports whether the case and decision echoed in the receipt,
// when present, belong to req.
func (a AcknowledgementReceipt) MatchesRequest(req *PaymentRequest) bool {
	if a.CaseRef != "" && a.CaseRef != strconv.FormatInt(req.CaseID, 10) {
		return false
	}
	if a.DecisionRef != "" && a.DecisionRef != strconv.FormatInt(req.DecisionID, 10) {
		return false
	}
	return true
}
