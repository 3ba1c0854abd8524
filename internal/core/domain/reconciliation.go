package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscrepancyKind classifies a mismatch found by verification or reconciliation.
type DiscrepancyKind string

const (
	DiscrepancyMissingLine     DiscrepancyKind = "MISSING_LINE"
	DiscrepancyAmountMismatch  DiscrepancyKind = "AMOUNT_MISMATCH"
	DiscrepancyPeriodMismatch  DiscrepancyKind = "PERIOD_MISMATCH"
	DiscrepancyKindMismatch    DiscrepancyKind = "KIND_MISMATCH"
	DiscrepancySuperseded      DiscrepancyKind = "SUPERSEDED_BY_UNACCEPTED"
	DiscrepancyStuckInSent     DiscrepancyKind = "STUCK_IN_SENT"
	DiscrepancyStuckInNew      DiscrepancyKind = "STUCK_IN_NEW"
)

// Discrepancy is returned as data for operators; it is never raised as an error
// by the component that finds it.
type Discrepancy struct {
	Kind       DiscrepancyKind `json:"kind"`
	CaseID     int64           `json:"caseId"`
	DecisionID int64           `json:"decisionId"`
	PeriodFrom *YearMonth      `json:"periodFrom,omitempty"`
	Expected   string          `json:"expected,omitempty"`
	Actual     string          `json:"actual,omitempty"`
	Detail     string          `json:"detail"`
}

// BatchKind separates the two reconciliation algorithms in the audit trail.
type BatchKind string

const (
	BatchKindGrensesnitt BatchKind = "GRENSESNITT"
	BatchKindKonsistens  BatchKind = "KONSISTENS"
)

// ReconciliationBatch is an append-only record of one reconciliation run.
type ReconciliationBatch struct {
	ID         uuid.UUID
	Kind       BatchKind
	CreatedAt  time.Time
	Period     ReconciliationPeriod
	OrderCount int
	Report     []byte
}

// LedgerSnapshot is the local ledger as of one instant.
type LedgerSnapshot struct {
	// AcceptedLatest holds, per case, the newest request the ledger accepted.
	AcceptedLatest []*PaymentRequest
	// Latest holds the newest attempt of every case's newest decision.
	Latest []*PaymentRequest
	// Stuck holds requests left NEW or SENT since before the cutoff.
	Stuck []*PaymentRequest
}

// OutcomeTotals counts orders in a segment by their ledger outcome.
type OutcomeTotals struct {
	Accepted int
	Warning  int
	Rejected int
	Failed   int
	Missing  int
}

func (t *OutcomeTotals) Add(status Status) {
	switch status {
	case StatusAccepted:
		t.Accepted++
	case StatusAcceptedWithWarning:
		t.Warning++
	case StatusRejected:
		t.Rejected++
	case StatusFailed:
		t.Failed++
	default:
		t.Missing++
	}
}

// ReportSegment is one bounded message of a grensesnittavstemming run.
type ReportSegment struct {
	CorrelationID string
	Index         int
	Total         int
	RoutingCode   string
	Period        ReconciliationPeriod
	Orders        []*PaymentRequest
	Totals        OutcomeTotals
	Amount        decimal.Decimal
}

func (s ReportSegment) OrderCount() int {
	return len(s.Orders)
}

// ActiveCase is a case that, per the local ledger, should currently be paying.
type ActiveCase struct {
	CaseID        int64
	DecisionID    int64
	CaseType      CaseType
	BeneficiaryID string
	Attestant     string
	Lines         []PaymentLine
}

// ConsistencyReport is the comparison input produced by a konsistensavstemming run.
type ConsistencyReport struct {
	CorrelationID string
	At            time.Time
	Active        []ActiveCase
	Discrepancies []Discrepancy
}

// ConsistencySegment is one bounded message of a konsistensavstemming run.
type ConsistencySegment struct {
	CorrelationID string
	Index         int
	Total         int
	RoutingCode   string
	At            time.Time
	Cases         []ActiveCase
}
