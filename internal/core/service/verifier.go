package service

import (
	"fmt"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/shopspring/decimal"
)

// amountTolerance absorbs the legacy ledger's rounding: amounts match when
// they differ by strictly less than one currency unit.
var amountTolerance = decimal.NewFromInt(1)

// DecisionVerifier cross-checks a built request against the decision's own schedule.
type DecisionVerifier struct{}

func NewDecisionVerifier() *DecisionVerifier {
	return &DecisionVerifier{}
}

// Verify returns one discrepancy per schedule entry the request does not honour.
// An empty result is the only outcome that allows the request to be paid.
func (v *DecisionVerifier) Verify(req *domain.PaymentRequest, schedule []domain.ScheduleEntry) []domain.Discrepancy {
	byStart := make(map[domain.YearMonth]domain.PaymentLine, len(req.Lines))
	for _, l := range req.Lines {
		byStart[l.PeriodFrom] = l
	}

	var found []domain.Discrepancy
	for _, entry := range schedule {
		from := entry.PeriodFrom
		d := domain.Discrepancy{
			CaseID:     req.CaseID,
			DecisionID: req.DecisionID,
			PeriodFrom: &from,
		}

		line, ok := byStart[entry.PeriodFrom]
		if !ok {
			d.Kind = domain.DiscrepancyMissingLine
			d.Detail = fmt.Sprintf("no %s line starts %s", entry.Kind, entry.PeriodFrom)
			found = append(found, d)
			continue
		}

		switch entry.Kind {
		case domain.LineKindPayment:
			if line.Kind != domain.LineKindPayment {
				d.Kind = domain.DiscrepancyKindMismatch
				d.Expected, d.Actual = string(entry.Kind), string(line.Kind)
				d.Detail = "decision pays where the request stops payment"
				found = append(found, d)
				continue
			}
			if !amountsMatch(entry.Amount, line.Amount) {
				d.Kind = domain.DiscrepancyAmountMismatch
				d.Expected, d.Actual = formatNullAmount(entry.Amount), formatNullAmount(line.Amount)
				d.Detail = "amount differs by one currency unit or more"
				found = append(found, d)
				continue
			}
			if !domain.SameMonth(entry.PeriodTo, line.PeriodTo) {
				d.Kind = domain.DiscrepancyPeriodMismatch
				d.Expected, d.Actual = formatMonth(entry.PeriodTo), formatMonth(line.PeriodTo)
				d.Detail = "period closes in a different month"
				found = append(found, d)
			}
		case domain.LineKindTermination:
			if line.Kind != domain.LineKindTermination {
				d.Kind = domain.DiscrepancyKindMismatch
				d.Expected, d.Actual = string(entry.Kind), string(line.Kind)
				d.Detail = "decision stops payment where the request pays"
				found = append(found, d)
				continue
			}
			if !domain.SameMonth(entry.PeriodTo, line.PeriodTo) {
				d.Kind = domain.DiscrepancyPeriodMismatch
				d.Expected, d.Actual = formatMonth(entry.PeriodTo), formatMonth(line.PeriodTo)
				d.Detail = "termination has a different trailing period"
				found = append(found, d)
			}
		}
	}
	return found
}

func amountsMatch(expected, actual decimal.NullDecimal) bool {
	if !expected.Valid || !actual.Valid {
		return false
	}
	return expected.Decimal.Sub(actual.Decimal).Abs().LessThan(amountTolerance)
}

func formatNullAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return "null"
	}
	return a.Decimal.String()
}

func formatMonth(m *domain.YearMonth) string {
	if m == nil {
		return "open"
	}
	return m.String()
}
