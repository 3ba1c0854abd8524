package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// YearMonth is a calendar month; payment periods have month granularity.
type YearMonth struct {
	Year  int
	Month time.Month
}

func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: month}
}

// YearMonthOf returns the month t falls in, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses the "2006-01" form.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonthOf(t), nil
}

func (m YearMonth) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m YearMonth) LastDay() time.Time {
	return m.FirstDay().AddDate(0, 1, -1)
}

func (m YearMonth) Next() YearMonth {
	return YearMonthOf(m.FirstDay().AddDate(0, 1, 0))
}

func (m YearMonth) Before(o YearMonth) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m YearMonth) After(o YearMonth) bool {
	return o.Before(m)
}

func (m YearMonth) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SameMonth compares two optional months; two nils are equal.
func SameMonth(a, b *YearMonth) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ReconciliationPeriod is an avstemmingsperiode: the half-open window [From, To)
// used to select orders for a batch reconciliation run.
type ReconciliationPeriod struct {
	From time.Time
	To   time.Time
}

// NewReconciliationPeriod rejects windows where from is not strictly before to.
func NewReconciliationPeriod(from, to time.Time) (ReconciliationPeriod, error) {
	if !from.Before(to) {
		return ReconciliationPeriod{}, &DomainError{
			Code:    ErrCodeInvalidPeriod,
			Message: fmt.Sprintf("reconciliation period start %s must be before end %s", from.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano)),
		}
	}
	return ReconciliationPeriod{From: from, To: to}, nil
}

func (p ReconciliationPeriod) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}
