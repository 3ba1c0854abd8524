package ports

import (
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

// OrderCodec maps requests to the ledger's wire format and back.
type OrderCodec interface {
	Encode(req *domain.PaymentRequest, ts time.Time) (*domain.PaymentOrder, error)
	Decode(payload []byte) (domain.AcknowledgementReceipt, error)
}

// ReportEncoder serializes reconciliation segments.
type ReportEncoder interface {
	EncodeGrensesnitt(seg domain.ReportSegment) ([]byte, error)
	EncodeKonsistens(seg domain.ConsistencySegment) ([]byte, error)
	// SegmentName is the archive object name of one encoded segment.
	SegmentName(kind domain.BatchKind, correlationID string, index int, at time.Time) string
}
