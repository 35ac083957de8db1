package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDates(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", FormatDate(d))
	assert.Equal(t, "2026-W11", ISOWeekKey(d))

	_, err = ParseDate("09/03/2026")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	assert.Equal(t, 7, DaysBetween(d, d.AddDate(0, 0, 7)))
	assert.Equal(t, -1, DaysBetween(d, d.AddDate(0, 0, -1)))

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	late := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-10", FormatDate(StartOfDay(late, tokyo)))
}

func TestGoalCurrentWeek(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g := &Goal{CreatedAt: start}

	assert.Equal(t, 1, g.CurrentWeek(start))
	assert.Equal(t, 1, g.CurrentWeek(start.AddDate(0, 0, 6)))
	assert.Equal(t, 2, g.CurrentWeek(start.AddDate(0, 0, 7)))
	assert.Equal(t, 1, g.CurrentWeek(start.AddDate(0, 0, -3)))

	later := start.AddDate(0, 0, 14)
	g.StartedAt = &later
	assert.Equal(t, 1, g.CurrentWeek(later.AddDate(0, 0, 1)))
}
