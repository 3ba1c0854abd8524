package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// reportNamespace seeds the deterministic correlation ids of reconciliation runs,
// so rerunning the same window yields the same id.
var reportNamespace = uuid.MustParse("5b0c3e52-8d7a-4f4e-9a0e-6f1d0f3b2c11")

// GrensesnittAvstemming reports every order sent in a window, grouped by case
// type and cut into bounded segments, so the ledger can confirm it received them.
type GrensesnittAvstemming struct {
	store          ports.PaymentOrderStore
	batches        ports.BatchStore
	encoder        ports.ReportEncoder
	publisher      ports.Publisher
	archive        ports.ReportArchive
	chunkSize      int
	defaultWindow  time.Duration
	settleDelay    time.Duration
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewGrensesnittAvstemming(
	store ports.PaymentOrderStore,
	batches ports.BatchStore,
	encoder ports.ReportEncoder,
	publisher ports.Publisher,
	archive ports.ReportArchive,
	chunkSize int,
	defaultWindow time.Duration,
	settleDelay time.Duration,
	publishTimeout time.Duration,
	logger *slog.Logger,
) *GrensesnittAvstemming {
	return &GrensesnittAvstemming{
		store:          store,
		batches:        batches,
		encoder:        encoder,
		publisher:      publisher,
		archive:        archive,
		chunkSize:      chunkSize,
		defaultWindow:  defaultWindow,
		settleDelay:    settleDelay,
		publishTimeout: publishTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// BuildReport reads the window from one snapshot and returns the segments in
// publish order. Segment indices run 1..N across all case types, and every
// known case type yields at least one segment.
func (g *GrensesnittAvstemming) BuildReport(ctx context.Context, period domain.ReconciliationPeriod) ([]domain.ReportSegment, error) {
	orders, err := g.store.ListOrdersInWindow(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list orders in window: %w", err)
	}

	byType := make(map[domain.CaseType][]*domain.PaymentRequest, len(domain.KnownCaseTypes))
	for _, o := range orders {
		byType[o.CaseType] = append(byType[o.CaseType], o)
	}

	correlationID := runCorrelationID(domain.BatchKindGrensesnitt, period.From, period.To)

	var segments []domain.ReportSegment
	for _, caseType := range domain.KnownCaseTypes {
		codes, err := domain.CodesFor(caseType)
		if err != nil {
			return nil, err
		}

		group := byType[caseType]
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if !keyOf(a).Equal(keyOf(b)) {
				return keyOf(a).Before(keyOf(b))
			}
			return a.ID.String() < b.ID.String()
		})

		for _, part := range chunk(group, g.chunkSize) {
			seg := domain.ReportSegment{
				CorrelationID: correlationID,
				RoutingCode:   codes.RoutingCode,
				Period:        period,
				Orders:        part,
				Amount:        decimal.Zero,
			}
			for _, o := range part {
				seg.Totals.Add(o.Status)
				seg.Amount = seg.Amount.Add(o.TotalAmount())
			}
			segments = append(segments, seg)
		}
	}

	for i := range segments {
		segments[i].Index = i + 1
		segments[i].Total = len(segments)
	}
	return segments, nil
}

// Run reconciles every order keyed since the previous run and records the batch.
// The window closes settleDelay before now: an order is keyed before it is
// published and only becomes visible once its dispatch commits, so keys newer
// than that may still be in flight. Nothing is recorded unless every segment
// was confirmed by the broker, so a failed run is retried over the same window.
func (g *GrensesnittAvstemming) Run(ctx context.Context) (*domain.ReconciliationBatch, error) {
	at := g.now().UTC()
	to := at.Add(-g.settleDelay)
	from := to.Add(-g.defaultWindow)

	last, err := g.batches.LatestBatch(ctx, domain.BatchKindGrensesnitt)
	if err != nil {
		return nil, fmt.Errorf("load previous batch: %w", err)
	}
	if last != nil {
		from = last.Period.To
	}

	period, err := domain.NewReconciliationPeriod(from, to)
	if err != nil {
		return nil, err
	}

	segments, err := g.BuildReport(ctx, period)
	if err != nil {
		return nil, err
	}

	var report bytes.Buffer
	count := 0
	for _, seg := range segments {
		body, err := g.encoder.EncodeGrensesnitt(seg)
		if err != nil {
			return nil, err
		}
		if err := publishSegment(ctx, g.publisher, g.publishTimeout, body, seg.CorrelationID); err != nil {
			return nil, err
		}
		name := g.encoder.SegmentName(domain.BatchKindGrensesnitt, seg.CorrelationID, seg.Index, at)
		if err := g.archive.Store(ctx, name, body); err != nil {
			g.logger.Warn("failed to archive reconciliation segment", "name", name, "error", err)
		}
		report.Write(body)
		count += seg.OrderCount()
	}

	batch := &domain.ReconciliationBatch{
		ID:         uuid.New(),
		Kind:       domain.BatchKindGrensesnitt,
		CreatedAt:  at,
		Period:     period,
		OrderCount: count,
		Report:     report.Bytes(),
	}
	if err := g.batches.InsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("record reconciliation batch: %w", err)
	}

	g.logger.Info("grensesnittavstemming completed",
		"batch_id", batch.ID,
		"from", period.From,
		"to", period.To,
		"orders", count,
		"segments", len(segments),
	)
	return batch, nil
}

func runCorrelationID(kind domain.BatchKind, from, to time.Time) string {
	name := fmt.Sprintf("%s|%s|%s", kind, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(reportNamespace, []byte(name)).String()
}

func publishSegment(ctx context.Context, pub ports.Publisher, timeout time.Duration, body []byte, correlationID string) error {
	publishCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pub.Publish(publishCtx, body, correlationID); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
	}
	return nil
}

func keyOf(r *domain.PaymentRequest) time.Time {
	if r.ReconciliationKey == nil {
		return time.Time{}
	}
	return *r.ReconciliationKey
}

// chunk splits items into consecutive parts of at most size elements.
// An empty input yields a single empty part.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}
	parts := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		parts = append(parts, items[start:end])
	}
	return parts
}
