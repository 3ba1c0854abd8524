package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
)

const (
	JobGrensesnitt = "grensesnittavstemming"
	JobKonsistens  = "konsistensavstemming"
	JobSweep       = "verification_sweep"
	JobRedispatch  = "redispatch"
)

type BatchRunner interface {
	Run(ctx context.Context) (*domain.ReconciliationBatch, error)
}

type SweepRunner interface {
	Run(ctx context.Context) ([]domain.Discrepancy, error)
}

type RedispatchRunner interface {
	Run(ctx context.Context) (int, error)
}

func GrensesnittJob(runner BatchRunner, interval time.Duration, logger *slog.Logger) Job {
	return batchJob(JobGrensesnitt, runner, interval, logger)
}

func KonsistensJob(runner BatchRunner, interval time.Duration, logger *slog.Logger) Job {
	return batchJob(JobKonsistens, runner, interval, logger)
}

func batchJob(name string, runner BatchRunner, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context) error {
			batch, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("reconciliation batch recorded",
				"job", name,
				"batch_id", batch.ID,
				"period_from", batch.Period.From,
				"period_to", batch.Period.To,
				"order_count", batch.OrderCount,
			)
			return nil
		},
	}
}

// SweepJob re-verifies recent orders. Discrepancies are data, not failures:
// each one is logged for operators and the job still succeeds.
func SweepJob(runner SweepRunner, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     JobSweep,
		Interval: interval,
		Run: func(ctx context.Context) error {
			discrepancies, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			for _, d := range discrepancies {
				logger.Warn("verification discrepancy",
					"kind", d.Kind,
					"case_id", d.CaseID,
					"decision_id", d.DecisionID,
					"expected", d.Expected,
					"actual", d.Actual,
					"detail", d.Detail,
				)
			}
			return nil
		},
	}
}

// RedispatchJob sends requests the broker never confirmed. A publish failure
// fails the run; the next tick tries again.
func RedispatchJob(runner RedispatchRunner, interval time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:     JobRedispatch,
		Interval: interval,
		Run: func(ctx context.Context) error {
			sent, err := runner.Run(ctx)
			if sent > 0 {
				logger.Info("stranded requests dispatched", "job", JobRedispatch, "count", sent)
			}
			return err
		},
	}
}
