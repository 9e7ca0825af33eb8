/*
quota.go - Weekly quota derivation, completion and period resets

PURPOSE:
  A member's weekly quota is a function of rank level only. Completion is a
  plain >= comparison against weekly points. The engine here is pure: it
  mutates a Member value in place and reports what changed. Iterating the
  whole member set and persisting lives in service.go.

QUOTA SHAPE (built-in table):
  level   1   2   3   4   5 | 6   7   8 | 9  10
  quota  10  15  20  25  30 |35  35  35 |20  20
         operational (steps) supervisor  hand-picked (fixed, lower)

WEEKLY RESET:
  Touches:     weekly points, weekly events, daily points, completion,
               quota (re-derived), streak, last-week baseline
  Never:       rank points, all-time points, rank level, promotion history

SEE ALSO:
  - service.go: RecomputeAll, WeeklyReset, DailyReset
  - ladder.go: RankTable quotas
*/
package progression

import "time"

// =============================================================================
// PURE FUNCTIONS
// =============================================================================

// QuotaFor returns the weekly quota for a rank level. Out-of-range levels
// are clamped to the ladder.
func QuotaFor(ladders *Ladders, level int) int {
	spec, _ := ladders.Spec(clampLevel(level))
	return spec.Quota
}

// IsCompleted is the only rule that decides quota completion.
func IsCompleted(weeklyPoints, quota int) bool {
	return weeklyPoints >= quota
}

// =============================================================================
// QUOTA ENGINE
// =============================================================================

// QuotaEngine applies quota rules to single members.
type QuotaEngine struct {
	Ladders *Ladders
}

// QuotaFor returns the quota for level using the engine's ladders.
func (q *QuotaEngine) QuotaFor(level int) int { return QuotaFor(q.Ladders, level) }

// RecomputeOne re-derives quota, completion and the other denormalized
// fields in place. Returns whether anything changed and whether the
// completion flag flipped. Calling it twice in a row reports no change
// the second time.
func (q *QuotaEngine) RecomputeOne(m *Member, now time.Time) (changed, flipped bool) {
	before := m.derived()
	m.sync(q.Ladders, now)
	after := m.derived()
	return before != after, before.QuotaCompleted != after.QuotaCompleted
}

// ResetWeek applies the weekly reset to one member. The streak counts
// consecutive weeks that ended with the quota met.
func (q *QuotaEngine) ResetWeek(m *Member, now time.Time) {
	if IsCompleted(m.WeeklyPoints, QuotaFor(q.Ladders, m.RankLevel)) {
		m.QuotaStreak++
	} else {
		m.QuotaStreak = 0
	}
	m.LastWeekPoints = m.WeeklyPoints
	m.WeeklyPoints = 0
	m.WeeklyEvents = 0
	m.DailyPointsToday = 0
	m.QuotaCompleted = false
	m.WeeklyQuota = QuotaFor(q.Ladders, m.RankLevel)
	m.UpdatedAt = now
}

// ResetDay zeroes the daily counter when it belongs to a previous local day.
// Returns whether the member changed.
func (q *QuotaEngine) ResetDay(m *Member, dayKey string, now time.Time) bool {
	if m.DailyPointsDate == dayKey {
		return false
	}
	changed := m.DailyPointsToday != 0
	m.DailyPointsToday = 0
	m.DailyPointsDate = dayKey
	m.UpdatedAt = now
	return changed
}

// DayKey formats the local calendar day of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
