package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/oppdrag"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reconciledAt = time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)

func sentRequest(t *testing.T, caseID, decisionID int64, caseType domain.CaseType, status domain.Status, sent time.Time) *domain.PaymentRequest {
	t.Helper()
	lines := []domain.PaymentLine{{
		ID:         decisionID,
		PeriodFrom: domain.NewYearMonth(2024, time.January),
		Amount:     nok("1000"),
		Kind:       domain.LineKindPayment,
	}}
	req, err := domain.NewPaymentRequest(caseID, decisionID, caseType, "12345678910", "Z1", "Z2", lines)
	require.NoError(t, err)
	req.Status = status
	if status != domain.StatusNew {
		key := domain.CorrelationKey(req.ID)
		req.CorrelationKey = &key
		req.SentAt = &sent
		req.ReconciliationKey = &sent
	}
	return req
}

func newGrensesnitt(store *MockOrderStore, batches *MockBatchStore, pub *MockPublisher, archive *MockArchive, chunkSize int) *GrensesnittAvstemming {
	g := NewGrensesnittAvstemming(store, batches, oppdrag.NewCodec(), pub, archive, chunkSize, 24*time.Hour, 0, time.Second, discardLogger())
	g.now = func() time.Time { return reconciledAt }
	return g
}

func TestGrensesnittAvstemming_BuildReport_Chunking(t *testing.T) {
	store := NewMockOrderStore()
	for i := range 7 {
		store.Put(sentRequest(t, int64(100+i), int64(200+i), domain.CaseTypeBarnepensjon, domain.StatusAccepted,
			reconciledAt.Add(-time.Duration(i+1)*time.Minute)))
	}
	g := newGrensesnitt(store, &MockBatchStore{}, &MockPublisher{}, &MockArchive{}, 3)
	period, err := domain.NewReconciliationPeriod(reconciledAt.Add(-time.Hour), reconciledAt)
	require.NoError(t, err)

	segments, err := g.BuildReport(context.Background(), period)

	require.NoError(t, err)
	require.Len(t, segments, 4, "three barnepensjon segments and one empty omstillingsstoenad segment")

	total := 0
	for i, seg := range segments {
		assert.Equal(t, i+1, seg.Index)
		assert.Equal(t, 4, seg.Total)
		assert.Equal(t, segments[0].CorrelationID, seg.CorrelationID)
		assert.LessOrEqual(t, seg.OrderCount(), 3)
		total += seg.OrderCount()
	}
	assert.Equal(t, 7, total)
	assert.Equal(t, "BARNEPE", segments[0].RoutingCode)
	assert.Equal(t, "OMSTILL", segments[3].RoutingCode)
	assert.Equal(t, 0, segments[3].OrderCount())

	t.Run("orders are sorted by send time", func(t *testing.T) {
		assert.True(t, segments[0].Orders[0].ReconciliationKey.Before(*segments[0].Orders[1].ReconciliationKey))
		assert.Equal(t, int64(106), segments[0].Orders[0].CaseID)
	})

	t.Run("same window yields same correlation id", func(t *testing.T) {
		again, err := g.BuildReport(context.Background(), period)
		require.NoError(t, err)
		assert.Equal(t, segments[0].CorrelationID, again[0].CorrelationID)
	})
}

func TestGrensesnittAvstemming_BuildReport_Totals(t *testing.T) {
	store := NewMockOrderStore()
	sent := reconciledAt.Add(-time.Minute)
	store.Put(
		sentRequest(t, 1, 11, domain.CaseTypeBarnepensjon, domain.StatusAccepted, sent),
		sentRequest(t, 2, 12, domain.CaseTypeBarnepensjon, domain.StatusAcceptedWithWarning, sent),
		sentRequest(t, 3, 13, domain.CaseTypeBarnepensjon, domain.StatusRejected, sent),
		sentRequest(t, 4, 14, domain.CaseTypeBarnepensjon, domain.StatusSent, sent),
		sentRequest(t, 5, 15, domain.CaseTypeOmstillingsstonad, domain.StatusFailed, sent),
	)
	g := newGrensesnitt(store, &MockBatchStore{}, &MockPublisher{}, &MockArchive{}, 100)
	period, err := domain.NewReconciliationPeriod(reconciledAt.Add(-time.Hour), reconciledAt)
	require.NoError(t, err)

	segments, err := g.BuildReport(context.Background(), period)

	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, domain.OutcomeTotals{Accepted: 1, Warning: 1, Rejected: 1, Missing: 1}, segments[0].Totals)
	assert.Equal(t, "4000", segments[0].Amount.String())
	assert.Equal(t, domain.OutcomeTotals{Failed: 1}, segments[1].Totals)
}

func TestGrensesnittAvstemming_Run(t *testing.T) {
	store := NewMockOrderStore()
	store.Put(sentRequest(t, 1, 11, domain.CaseTypeBarnepensjon, domain.StatusAccepted, reconciledAt.Add(-time.Hour)))
	batches := &MockBatchStore{}
	pub := &MockPublisher{}
	archive := &MockArchive{}
	g := newGrensesnitt(store, batches, pub, archive, 100)

	batch, err := g.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.BatchKindGrensesnitt, batch.Kind)
	assert.Equal(t, 1, batch.OrderCount)
	assert.Equal(t, reconciledAt.Add(-24*time.Hour), batch.Period.From)
	assert.Equal(t, reconciledAt, batch.Period.To)
	assert.Equal(t, 2, pub.Count())
	assert.Len(t, archive.Objects, 2)
	assert.Equal(t, 2, strings.Count(string(batch.Report), "<avstemmingType>GRSN</avstemmingType>"))
	require.Len(t, batches.Batches, 1)

	t.Run("next run continues from previous batch", func(t *testing.T) {
		g.now = func() time.Time { return reconciledAt.Add(time.Hour) }

		next, err := g.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, reconciledAt, next.Period.From)
		assert.Equal(t, 0, next.OrderCount)
	})
}

func TestGrensesnittAvstemming_Run_WindowFollowsReconciliationKey(t *testing.T) {
	store := NewMockOrderStore()
	// Keyed inside the first window but confirmed after it closed.
	early := sentRequest(t, 1, 11, domain.CaseTypeBarnepensjon, domain.StatusSent, reconciledAt.Add(-2*time.Minute))
	confirmed := reconciledAt.Add(5 * time.Millisecond)
	early.SentAt = &confirmed
	// Keyed within the settle delay: possibly still in flight.
	late := sentRequest(t, 2, 12, domain.CaseTypeBarnepensjon, domain.StatusSent, reconciledAt.Add(-time.Millisecond))
	store.Put(early, late)
	batches := &MockBatchStore{}
	g := NewGrensesnittAvstemming(store, batches, oppdrag.NewCodec(), &MockPublisher{}, &MockArchive{}, 100,
		24*time.Hour, time.Minute, time.Second, discardLogger())
	g.now = func() time.Time { return reconciledAt }

	first, err := g.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, reconciledAt.Add(-time.Minute), first.Period.To)
	assert.Equal(t, 1, first.OrderCount)
	assert.Contains(t, string(first.Report), oppdrag.Tidspunkt(*early.ReconciliationKey))

	g.now = func() time.Time { return reconciledAt.Add(time.Hour) }
	second, err := g.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, first.Period.To, second.Period.From)
	assert.Equal(t, 1, second.OrderCount)
	assert.False(t, late.ReconciliationKey.Before(second.Period.From), "nokkelFom never exceeds a reported key")
}

func TestGrensesnittAvstemming_Run_PublishFailureRecordsNothing(t *testing.T) {
	batches := &MockBatchStore{}
	calls := 0
	pub := &MockPublisher{PublishFn: func(ctx context.Context, body []byte, correlationID string) error {
		calls++
		if calls == 2 {
			return errors.New("nack")
		}
		return nil
	}}
	g := newGrensesnitt(NewMockOrderStore(), batches, pub, &MockArchive{}, 100)

	_, err := g.Run(context.Background())

	assert.ErrorIs(t, err, domain.ErrPublishFailed)
	assert.Empty(t, batches.Batches)
}

func TestGrensesnittAvstemming_Run_ArchiveFailureIsLogged(t *testing.T) {
	batches := &MockBatchStore{}
	archive := &MockArchive{StoreFn: func(ctx context.Context, name string, body []byte) error {
		return errors.New("bucket missing")
	}}
	g := newGrensesnitt(NewMockOrderStore(), batches, &MockPublisher{}, archive, 100)

	_, err := g.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, batches.Batches, 1)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{nil}, chunk[int](nil, 3))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {4}}, chunk([]int{1, 2, 3, 4}, 3))
	assert.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 3))
}
