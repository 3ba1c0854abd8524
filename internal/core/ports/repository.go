package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/google/uuid"
)

// PaymentOrderStore owns the payment request lifecycle. Every mutation runs in
// a single transaction and validates the source status under a row lock.
type PaymentOrderStore interface {
	// UpsertIfAbsent stores req unless an attempt with the same decision id and
	// attempt number exists, in which case the stored record is returned with created=false.
	UpsertIfAbsent(ctx context.Context, req *domain.PaymentRequest) (stored *domain.PaymentRequest, created bool, err error)
	RecordDispatch(ctx context.Context, id uuid.UUID, order *domain.PaymentOrder) error
	RecordAcknowledgement(ctx context.Context, id uuid.UUID, receipt domain.AcknowledgementReceipt) (status domain.Status, changed bool, err error)
	ListOrdersInWindow(ctx context.Context, period domain.ReconciliationPeriod) ([]*domain.PaymentRequest, error)

	FindByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	FindLatestByDecision(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error)
	FindByCorrelationKey(ctx context.Context, key string) (*domain.PaymentRequest, error)
	// HasAcceptedOrderForCase reports whether the ledger already knows the case.
	HasAcceptedOrderForCase(ctx context.Context, caseID int64) (bool, error)
	// LoadLedgerSnapshot reads what konsistensavstemming compares from one
	// consistent view. Requests still NEW or SENT since before stuckCutoff are stuck.
	LoadLedgerSnapshot(ctx context.Context, stuckCutoff time.Time) (*domain.LedgerSnapshot, error)
	// ListUndispatched returns up to limit requests still NEW that were created
	// before cutoff, oldest first.
	ListUndispatched(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentRequest, error)
	// Replay inserts the next attempt for a decision whose latest attempt is terminal.
	Replay(ctx context.Context, decisionID int64) (*domain.PaymentRequest, error)
}

// BatchStore is the append-only reconciliation audit trail.
type BatchStore interface {
	InsertBatch(ctx context.Context, batch *domain.ReconciliationBatch) error
	LatestBatch(ctx context.Context, kind domain.BatchKind) (*domain.ReconciliationBatch, error)
}
