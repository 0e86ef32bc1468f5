package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	period, err := ParsePeriod("2026-03")
	require.NoError(t, err)

	assert.Equal(t, "2026-03", period.Label)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), period.Start)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC), period.End)
}

func TestParsePeriodLeapFebruary(t *testing.T) {
	period, err := ParsePeriod("2028-02")
	require.NoError(t, err)
	assert.Equal(t, 29, period.End.Day())
}

func TestParsePeriodRejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"", "2026", "2026-13", "2026-3", "03-2026", "2026-03-01", "not-a-period"} {
		_, err := ParsePeriod(input)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "input %q", input)
	}
}

func TestParsePeriodTrimsWhitespace(t *testing.T) {
	period, err := ParsePeriod("  2026-07 ")
	require.NoError(t, err)
	assert.Equal(t, "2026-07", period.Label)
}

func TestPreviousPeriodCrossesYearBoundary(t *testing.T) {
	period := PreviousPeriod(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-12", period.Label)
}

func TestPeriodOfContainsInstant(t *testing.T) {
	at := time.Date(2026, 6, 15, 23, 59, 59, 0, time.UTC)
	period := PeriodOf(at)
	assert.False(t, at.Before(period.Start))
	assert.False(t, at.After(period.End))
}
