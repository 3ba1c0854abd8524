package service

import (
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWith(t *testing.T, lines ...domain.PaymentLine) *domain.PaymentRequest {
	t.Helper()
	req, err := domain.NewPaymentRequest(1, 2, domain.CaseTypeBarnepensjon, "12345678910", "Z1", "Z2", lines)
	require.NoError(t, err)
	return req
}

func TestDecisionVerifier_AmountTolerance(t *testing.T) {
	schedule := []domain.ScheduleEntry{{
		PeriodFrom: domain.NewYearMonth(2024, time.January),
		Amount:     nok("10000.00"),
		Kind:       domain.LineKindPayment,
	}}

	tests := []struct {
		name   string
		amount string
		want   int
	}{
		{"exact", "10000.00", 0},
		{"just under one unit below", "9999.01", 0},
		{"just under one unit above", "10000.99", 0},
		{"exactly one unit", "10001.00", 1},
		{"more than one unit", "9998.50", 1},
	}

	v := NewDecisionVerifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestWith(t, domain.PaymentLine{
				PeriodFrom: domain.NewYearMonth(2024, time.January),
				Amount:     nok(tt.amount),
				Kind:       domain.LineKindPayment,
			})

			found := v.Verify(req, schedule)

			require.Len(t, found, tt.want)
			if tt.want > 0 {
				assert.Equal(t, domain.DiscrepancyAmountMismatch, found[0].Kind)
				assert.Equal(t, "10000", found[0].Expected)
			}
		})
	}
}

func TestDecisionVerifier_Discrepancies(t *testing.T) {
	v := NewDecisionVerifier()
	jan := domain.NewYearMonth(2024, time.January)
	mar := domain.NewYearMonth(2024, time.March)

	t.Run("missing line", func(t *testing.T) {
		req := requestWith(t, domain.PaymentLine{PeriodFrom: jan, PeriodTo: month(2024, time.February), Amount: nok("100"), Kind: domain.LineKindPayment})
		schedule := []domain.ScheduleEntry{
			{PeriodFrom: jan, PeriodTo: month(2024, time.February), Amount: nok("100"), Kind: domain.LineKindPayment},
			{PeriodFrom: mar, Kind: domain.LineKindTermination},
		}

		found := v.Verify(req, schedule)

		require.Len(t, found, 1)
		assert.Equal(t, domain.DiscrepancyMissingLine, found[0].Kind)
		assert.Equal(t, mar, *found[0].PeriodFrom)
	})

	t.Run("period end differs", func(t *testing.T) {
		req := requestWith(t, domain.PaymentLine{PeriodFrom: jan, PeriodTo: month(2024, time.June), Amount: nok("100"), Kind: domain.LineKindPayment})
		schedule := []domain.ScheduleEntry{{PeriodFrom: jan, Amount: nok("100"), Kind: domain.LineKindPayment}}

		found := v.Verify(req, schedule)

		require.Len(t, found, 1)
		assert.Equal(t, domain.DiscrepancyPeriodMismatch, found[0].Kind)
		assert.Equal(t, "open", found[0].Expected)
		assert.Equal(t, "2024-06", found[0].Actual)
	})

	t.Run("termination where decision pays", func(t *testing.T) {
		req := requestWith(t, domain.PaymentLine{PeriodFrom: jan, Kind: domain.LineKindTermination})
		schedule := []domain.ScheduleEntry{{PeriodFrom: jan, Amount: nok("100"), Kind: domain.LineKindPayment}}

		found := v.Verify(req, schedule)

		require.Len(t, found, 1)
		assert.Equal(t, domain.DiscrepancyKindMismatch, found[0].Kind)
	})

	t.Run("matching termination", func(t *testing.T) {
		req := requestWith(t,
			domain.PaymentLine{PeriodFrom: jan, PeriodTo: month(2024, time.February), Amount: nok("100"), Kind: domain.LineKindPayment},
			domain.PaymentLine{PeriodFrom: mar, Kind: domain.LineKindTermination},
		)
		schedule := []domain.ScheduleEntry{
			{PeriodFrom: jan, PeriodTo: month(2024, time.February), Amount: nok("100.40"), Kind: domain.LineKindPayment},
			{PeriodFrom: mar, Kind: domain.LineKindTermination},
		}

		assert.Empty(t, v.Verify(req, schedule))
	})
}

func TestPaymentLineBuilder_Build(t *testing.T) {
	b := NewPaymentLineBuilder(&sequenceIDs{})
	d := decision(1, 2,
		domain.ScheduleEntry{PeriodFrom: domain.NewYearMonth(2024, time.March), Kind: domain.LineKindTermination},
		domain.ScheduleEntry{PeriodFrom: domain.NewYearMonth(2024, time.January), PeriodTo: month(2024, time.February), Amount: nok("8000"), Kind: domain.LineKindPayment},
	)

	lines, err := b.Build(d)

	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, domain.LineKindPayment, lines[0].Kind)
	assert.Equal(t, "BARNEPENSJON-OPTP", lines[0].ClassificationCode)
	assert.Equal(t, domain.LineKindTermination, lines[1].Kind)
	assert.False(t, lines[1].Amount.Valid)
	assert.NotEqual(t, lines[0].ID, lines[1].ID)

	t.Run("overlapping schedule is rejected", func(t *testing.T) {
		d := decision(1, 2,
			domain.ScheduleEntry{PeriodFrom: domain.NewYearMonth(2024, time.January), Amount: nok("1"), Kind: domain.LineKindPayment},
			domain.ScheduleEntry{PeriodFrom: domain.NewYearMonth(2024, time.March), Amount: nok("2"), Kind: domain.LineKindPayment},
		)
		_, err := b.Build(d)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidSchedule))
	})

	t.Run("unknown case type is rejected", func(t *testing.T) {
		d := decision(1, 2)
		d.CaseType = "GJENLEVENDE"
		_, err := b.Build(d)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeUnknownCaseType))
	})
}
