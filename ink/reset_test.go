package ink_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/verseloft/ink-engine/ink"
)

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

// =============================================================================
// DAILY / MONTHLY BOUNDARY TESTS
// =============================================================================

func TestShouldResetDaily(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		last time.Time
		want bool
	}{
		{"same day, later hour", at(2025, time.March, 10, 18), at(2025, time.March, 10, 2), false},
		{"next day", at(2025, time.March, 11, 0), at(2025, time.March, 10, 23), true},
		{"next month, same day-of-month", at(2025, time.April, 10, 12), at(2025, time.March, 10, 12), true},
		{"next year, same month and day", at(2026, time.March, 10, 12), at(2025, time.March, 10, 12), true},
		{"non-UTC wall clocks compare in UTC", // 23:30 UTC vs 00:30+01:00 = 23:30 UTC same day
			time.Date(2025, time.March, 11, 0, 30, 0, 0, time.FixedZone("CET", 3600)),
			at(2025, time.March, 10, 23), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ink.ShouldResetDaily(tt.now, tt.last))
		})
	}
}

func TestShouldResetMonthly(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		last time.Time
		want bool
	}{
		{"same month", at(2025, time.March, 31, 23), at(2025, time.March, 1, 0), false},
		{"next month", at(2025, time.April, 1, 0), at(2025, time.March, 31, 23), true},
		{"same month, next year", at(2026, time.March, 10, 12), at(2025, time.March, 10, 12), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ink.ShouldResetMonthly(tt.now, tt.last))
		})
	}
}

func TestNextResets(t *testing.T) {
	now := time.Date(2025, time.March, 10, 16, 27, 3, 0, time.UTC)

	assert.Equal(t, at(2025, time.March, 11, 0), ink.NextDailyReset(now))
	assert.Equal(t, at(2025, time.April, 1, 0), ink.NextMonthlyReset(now))

	// December rolls into January of the next year.
	dec := at(2025, time.December, 31, 23)
	assert.Equal(t, at(2026, time.January, 1, 0), ink.NextMonthlyReset(dec))
}

// =============================================================================
// WITH-RESETS (LAZY RESET APPLICATION)
// =============================================================================

func TestWithResets_Idempotent(t *testing.T) {
	// GIVEN: counters last reset yesterday
	now := at(2025, time.March, 11, 9)
	a := ink.Allotment{
		DailyUsed:        5,
		MonthlyUsed:      12,
		LastDailyReset:   at(2025, time.March, 10, 9),
		LastMonthlyReset: at(2025, time.March, 1, 0),
	}

	// WHEN: resets applied
	a, changed := a.WithResets(now)

	// THEN: daily counter zeroed, monthly untouched
	assert.True(t, changed)
	assert.Equal(t, 0, a.DailyUsed)
	assert.Equal(t, 12, a.MonthlyUsed)
	assert.Equal(t, now, a.LastDailyReset)

	// Applying again in the same period is a no-op.
	again, changed := a.WithResets(now)
	assert.False(t, changed)
	assert.Equal(t, a, again)
}

func TestWithResets_MonthBoundaryResetsBoth(t *testing.T) {
	now := at(2025, time.April, 1, 0)
	a := ink.Allotment{
		DailyUsed:        3,
		MonthlyUsed:      30,
		LastDailyReset:   at(2025, time.March, 31, 12),
		LastMonthlyReset: at(2025, time.March, 1, 0),
	}

	a, changed := a.WithResets(now)

	assert.True(t, changed)
	assert.Equal(t, 0, a.DailyUsed)
	assert.Equal(t, 0, a.MonthlyUsed)
	assert.Equal(t, now, a.LastDailyReset)
	assert.Equal(t, now, a.LastMonthlyReset)
}
