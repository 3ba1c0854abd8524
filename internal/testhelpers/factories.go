package testhelpers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var nextID atomic.Int64

func init() {
	nextID.Store(time.Now().UnixNano() % 1_000_000)
}

// NextID returns a process-unique positive id for cases, decisions and lines.
func NextID() int64 {
	return nextID.Add(1)
}

func Month(year int, m time.Month) *domain.YearMonth {
	ym := domain.NewYearMonth(year, m)
	return &ym
}

func Amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

// DefaultSchedule is a single open payment line of 10000 from February 2022 to January 2030.
func DefaultSchedule() []domain.ScheduleEntry {
	return []domain.ScheduleEntry{{
		PeriodFrom: domain.NewYearMonth(2022, time.February),
		PeriodTo:   Month(2030, time.January),
		Amount:     Amount(10000),
		Kind:       domain.LineKindPayment,
	}}
}

// DefaultDecision returns a valid barnepensjon decision with a fresh case and decision id.
func DefaultDecision() domain.DecisionApproved {
	return domain.DecisionApproved{
		CaseID:        NextID(),
		DecisionID:    NextID(),
		CaseType:      domain.CaseTypeBarnepensjon,
		BeneficiaryID: "12345678910",
		Attestant:     "Z111111",
		Saksbehandler: "Z222222",
		Schedule:      DefaultSchedule(),
	}
}

// NewRequest builds a NEW request for a fresh decision with one line per schedule entry.
func NewRequest(t *testing.T, caseType domain.CaseType, schedule ...domain.ScheduleEntry) *domain.PaymentRequest {
	t.Helper()
	if len(schedule) == 0 {
		schedule = DefaultSchedule()
	}
	codes, err := domain.CodesFor(caseType)
	require.NoError(t, err)

	lines := make([]domain.PaymentLine, len(schedule))
	for i, e := range schedule {
		lines[i] = domain.PaymentLine{
			ID:                 NextID(),
			PeriodFrom:         e.PeriodFrom,
			PeriodTo:           e.PeriodTo,
			Amount:             e.Amount,
			Kind:               e.Kind,
			ClassificationCode: codes.LineClassificationCode,
		}
	}

	req, err := domain.NewPaymentRequest(NextID(), NextID(), caseType, "12345678910", "Z111111", "Z222222", lines)
	require.NoError(t, err)
	return req
}
