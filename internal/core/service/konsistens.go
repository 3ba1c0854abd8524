package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/google/uuid"
)

// KonsistensAvstemming reports the running state of every case as the local
// ledger sees it, so the settlement ledger can flag cases whose payments differ.
type KonsistensAvstemming struct {
	store          ports.PaymentOrderStore
	batches        ports.BatchStore
	encoder        ports.ReportEncoder
	publisher      ports.Publisher
	archive        ports.ReportArchive
	chunkSize      int
	stuckAfter     time.Duration
	publishTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

func NewKonsistensAvstemming(
	store ports.PaymentOrderStore,
	batches ports.BatchStore,
	encoder ports.ReportEncoder,
	publisher ports.Publisher,
	archive ports.ReportArchive,
	chunkSize int,
	stuckAfter time.Duration,
	publishTimeout time.Duration,
	logger *slog.Logger,
) *KonsistensAvstemming {
	return &KonsistensAvstemming{
		store:          store,
		batches:        batches,
		encoder:        encoder,
		publisher:      publisher,
		archive:        archive,
		chunkSize:      chunkSize,
		stuckAfter:     stuckAfter,
		publishTimeout: publishTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

// CheckConsistency lists the cases that should be paying in the month of at,
// each represented by its newest accepted request. Newer attempts the ledger
// never accepted, and requests left NEW or SENT past stuckAfter, come back as
// discrepancies.
func (k *KonsistensAvstemming) CheckConsistency(ctx context.Context, at time.Time) (*domain.ConsistencyReport, error) {
	at = at.UTC()
	month := domain.YearMonthOf(at)

	snap, err := k.store.LoadLedgerSnapshot(ctx, at.Add(-k.stuckAfter))
	if err != nil {
		return nil, fmt.Errorf("load ledger snapshot: %w", err)
	}

	report := &domain.ConsistencyReport{
		CorrelationID: runCorrelationID(domain.BatchKindKonsistens, at, at),
		At:            at,
	}

	acceptedByCase := make(map[int64]*domain.PaymentRequest, len(snap.AcceptedLatest))
	for _, req := range snap.AcceptedLatest {
		acceptedByCase[req.CaseID] = req
		if lines, ok := activeLines(req, month); ok {
			report.Active = append(report.Active, domain.ActiveCase{
				CaseID:        req.CaseID,
				DecisionID:    req.DecisionID,
				CaseType:      req.CaseType,
				BeneficiaryID: req.BeneficiaryID,
				Attestant:     req.Attestant,
				Lines:         lines,
			})
		}
	}

	for _, req := range snap.Latest {
		prev, ok := acceptedByCase[req.CaseID]
		if !ok || prev.ID == req.ID {
			continue
		}
		if req.Status != domain.StatusRejected && req.Status != domain.StatusFailed {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, domain.Discrepancy{
			Kind:       domain.DiscrepancySuperseded,
			CaseID:     req.CaseID,
			DecisionID: req.DecisionID,
			Expected:   string(prev.Status),
			Actual:     string(req.Status),
			Detail:     fmt.Sprintf("decision %d was not accepted; ledger still pays decision %d", req.DecisionID, prev.DecisionID),
		})
	}

	for _, req := range snap.Stuck {
		kind, since := domain.DiscrepancyStuckInNew, req.CreatedAt
		if req.Status == domain.StatusSent {
			kind, since = domain.DiscrepancyStuckInSent, req.UpdatedAt
			if req.SentAt != nil {
				since = *req.SentAt
			}
		}
		report.Discrepancies = append(report.Discrepancies, domain.Discrepancy{
			Kind:       kind,
			CaseID:     req.CaseID,
			DecisionID: req.DecisionID,
			Actual:     string(req.Status),
			Detail:     fmt.Sprintf("request %s attempt %d unchanged since %s", req.ID, req.Attempt, since.UTC().Format(time.RFC3339)),
		})
	}

	return report, nil
}

// Run checks consistency at the current time, publishes the segments and
// records the batch under the month the check covers.
func (k *KonsistensAvstemming) Run(ctx context.Context) (*domain.ReconciliationBatch, error) {
	at := k.now().UTC()
	month := domain.YearMonthOf(at)
	period, err := domain.NewReconciliationPeriod(month.FirstDay(), month.Next().FirstDay())
	if err != nil {
		return nil, err
	}

	report, err := k.CheckConsistency(ctx, at)
	if err != nil {
		return nil, err
	}
	for _, d := range report.Discrepancies {
		k.logger.Warn("consistency discrepancy",
			"kind", d.Kind,
			"case_id", d.CaseID,
			"decision_id", d.DecisionID,
			"detail", d.Detail,
		)
	}

	segments, err := k.segments(report)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	for _, seg := range segments {
		encoded, err := k.encoder.EncodeKonsistens(seg)
		if err != nil {
			return nil, err
		}
		if err := publishSegment(ctx, k.publisher, k.publishTimeout, encoded, seg.CorrelationID); err != nil {
			return nil, err
		}
		name := k.encoder.SegmentName(domain.BatchKindKonsistens, seg.CorrelationID, seg.Index, at)
		if err := k.archive.Store(ctx, name, encoded); err != nil {
			k.logger.Warn("failed to archive reconciliation segment", "name", name, "error", err)
		}
		body.Write(encoded)
	}

	batch := &domain.ReconciliationBatch{
		ID:         uuid.New(),
		Kind:       domain.BatchKindKonsistens,
		CreatedAt:  at,
		Period:     period,
		OrderCount: len(report.Active),
		Report:     body.Bytes(),
	}
	if err := k.batches.InsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("record reconciliation batch: %w", err)
	}

	k.logger.Info("konsistensavstemming completed",
		"batch_id", batch.ID,
		"at", at,
		"active_cases", len(report.Active),
		"discrepancies", len(report.Discrepancies),
		"segments", len(segments),
	)
	return batch, nil
}

func (k *KonsistensAvstemming) segments(report *domain.ConsistencyReport) ([]domain.ConsistencySegment, error) {
	byType := make(map[domain.CaseType][]domain.ActiveCase, len(domain.KnownCaseTypes))
	for _, c := range report.Active {
		byType[c.CaseType] = append(byType[c.CaseType], c)
	}

	var segments []domain.ConsistencySegment
	for _, caseType := range domain.KnownCaseTypes {
		codes, err := domain.CodesFor(caseType)
		if err != nil {
			return nil, err
		}
		for _, part := range chunk(byType[caseType], k.chunkSize) {
			segments = append(segments, domain.ConsistencySegment{
				CorrelationID: report.CorrelationID,
				RoutingCode:   codes.RoutingCode,
				At:            report.At,
				Cases:         part,
			})
		}
	}
	for i := range segments {
		segments[i].Index = i + 1
		segments[i].Total = len(segments)
	}
	return segments, nil
}

// activeLines returns the payment lines of req still running in month, cut at
// the first termination. ok is false when nothing is paid out in month.
func activeLines(req *domain.PaymentRequest, month domain.YearMonth) (lines []domain.PaymentLine, ok bool) {
	for _, l := range req.Lines {
		if l.Kind == domain.LineKindTermination {
			if !l.PeriodFrom.After(month) {
				return nil, false
			}
			break
		}
		if l.PeriodTo != nil && l.PeriodTo.Before(month) {
			continue
		}
		if l.Covers(month) {
			ok = true
		}
		lines = append(lines, l)
	}
	return lines, ok
}
