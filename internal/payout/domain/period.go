package domain

import (
	"strings"
	"time"
)

const periodLayout = "2006-01"

// Period is one calendar month, first instant to last instant, UTC.
type Period struct {
	Label string
	Start time.Time
	End   time.Time
}

// ParsePeriod parses a YYYY-MM label into its month window.
func ParsePeriod(value string) (Period, error) {
	parsed, err := time.Parse(periodLayout, strings.TrimSpace(value))
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Label: start.Format(periodLayout),
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}, nil
}

// PeriodOf returns the month window containing t.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Label: start.Format(periodLayout),
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// PreviousPeriod returns the month window before the one containing t.
func PreviousPeriod(t time.Time) Period {
	return PeriodOf(PeriodOf(t).Start.AddDate(0, -1, 0))
}
