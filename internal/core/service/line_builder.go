package service

import (
	"sort"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/bwmarrin/snowflake"
)

// LineIDGenerator hands out the delytelseId the ledger tracks each line by.
type LineIDGenerator interface {
	Generate() snowflake.ID
}

// PaymentLineBuilder turns a decision's schedule into ordered payment lines.
type PaymentLineBuilder struct {
	ids LineIDGenerator
}

func NewPaymentLineBuilder(ids LineIDGenerator) *PaymentLineBuilder {
	return &PaymentLineBuilder{ids: ids}
}

// Build maps every schedule entry to a line classified for the decision's case
// type. The result is sorted by period start and validated; it is also what
// the simulation endpoint returns.
func (b *PaymentLineBuilder) Build(decision domain.DecisionApproved) ([]domain.PaymentLine, error) {
	codes, err := domain.CodesFor(decision.CaseType)
	if err != nil {
		return nil, err
	}

	schedule := make([]domain.ScheduleEntry, len(decision.Schedule))
	copy(schedule, decision.Schedule)
	sort.SliceStable(schedule, func(i, j int) bool {
		return schedule[i].PeriodFrom.Before(schedule[j].PeriodFrom)
	})

	lines := make([]domain.PaymentLine, 0, len(schedule))
	for _, entry := range schedule {
		line := domain.PaymentLine{
			ID:                 b.ids.Generate().Int64(),
			PeriodFrom:         entry.PeriodFrom,
			PeriodTo:           entry.PeriodTo,
			Kind:               entry.Kind,
			ClassificationCode: codes.LineClassificationCode,
		}
		if entry.Kind == domain.LineKindPayment {
			line.Amount = entry.Amount
		}
		lines = append(lines, line)
	}

	if err := domain.ValidateLines(lines); err != nil {
		return nil, err
	}
	return lines, nil
}
