/*
reset.go - Lazy reset policy for the free allotment

PURPOSE:
  Pure functions deciding whether a free-allotment counter is stale and
  should be zeroed. There is no background scheduler: every read of an
  allotment applies these checks first, which makes the reset lazy and
  idempotent (applying it twice in the same period is a no-op).

DAY BOUNDARY:
  All boundaries are UTC. "Daily" resets at UTC midnight and "monthly"
  at 00:00 UTC on the first of the month. The original behavior never
  pinned a timezone; UTC is chosen here so two servers (or two browser
  tabs hitting different replicas) can never disagree about which day
  a spend belongs to.

SEE ALSO:
  - types.go: Allotment
  - authorize.go: Uses ResetsIn durations for denial countdowns
*/
package ink

import "time"

// ShouldResetDaily reports whether the daily counter is stale: true iff
// now and lastReset fall on different UTC calendar days.
func ShouldResetDaily(now, lastReset time.Time) bool {
	a, b := now.UTC(), lastReset.UTC()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay != by || am != bm || ad != bd
}

// ShouldResetMonthly reports whether the monthly counter is stale: true iff
// now and lastReset fall in different UTC months (or years).
func ShouldResetMonthly(now, lastReset time.Time) bool {
	a, b := now.UTC(), lastReset.UTC()
	return a.Year() != b.Year() || a.Month() != b.Month()
}

// NextDailyReset returns the next UTC midnight after now.
func NextDailyReset(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// NextMonthlyReset returns 00:00 UTC on the first of the next month.
func NextMonthlyReset(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// WithResets returns the allotment with any stale counters zeroed and their
// reset timestamps stamped to now. The second return reports whether
// anything changed, so callers can skip a write when nothing did.
func (a Allotment) WithResets(now time.Time) (Allotment, bool) {
	changed := false
	if ShouldResetDaily(now, a.LastDailyReset) {
		a.DailyUsed = 0
		a.LastDailyReset = now
		changed = true
	}
	if ShouldResetMonthly(now, a.LastMonthlyReset) {
		a.MonthlyUsed = 0
		a.LastMonthlyReset = now
		changed = true
	}
	return a, changed
}
