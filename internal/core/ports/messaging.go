package ports

import (
	"context"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

// Publisher sends a payload on one logical channel and returns once the
// broker has confirmed it, or the context ends.
type Publisher interface {
	Publish(ctx context.Context, body []byte, correlationID string) error
}

// StatusEventPublisher emits status-changed events back to the event bus.
type StatusEventPublisher interface {
	PublishStatusChanged(ctx context.Context, event domain.StatusChanged) error
}

// LeaderElector reports whether this instance may run cluster-wide periodic jobs.
type LeaderElector interface {
	IsLeader(ctx context.Context) bool
}

// DecisionSource fetches a decision's authoritative schedule from the vedtak service.
type DecisionSource interface {
	FetchSchedule(ctx context.Context, decisionID int64) ([]domain.ScheduleEntry, error)
}

// ReportArchive keeps a copy of every serialized reconciliation segment.
type ReportArchive interface {
	Store(ctx context.Context, name string, body []byte) error
}
