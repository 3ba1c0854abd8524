package service

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationSweep_Run(t *testing.T) {
	store := NewMockOrderStore()
	sent := reconciledAt.Add(-time.Hour)
	store.Put(
		sentRequest(t, 1, 11, domain.CaseTypeBarnepensjon, domain.StatusAccepted, sent),
		sentRequest(t, 2, 12, domain.CaseTypeBarnepensjon, domain.StatusAccepted, sent),
		sentRequest(t, 3, 13, domain.CaseTypeBarnepensjon, domain.StatusSent, sent),
	)
	jan := domain.NewYearMonth(2024, time.January)
	source := &MockDecisionSource{Schedules: map[int64][]domain.ScheduleEntry{
		11: {{PeriodFrom: jan, Amount: nok("1000"), Kind: domain.LineKindPayment}},
		12: {{PeriodFrom: jan, Amount: nok("1200"), Kind: domain.LineKindPayment}},
	}}
	s := NewVerificationSweep(store, source, NewDecisionVerifier(), 24*time.Hour, discardLogger())
	s.now = func() time.Time { return reconciledAt }

	found, err := s.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, found, 1, "decision 13 is unknown to the vedtak service and is skipped")
	assert.Equal(t, domain.DiscrepancyAmountMismatch, found[0].Kind)
	assert.Equal(t, int64(12), found[0].DecisionID)
}
