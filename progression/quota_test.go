package progression_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

func TestIsCompleted(t *testing.T) {
	assert.False(t, progression.IsCompleted(9, 10))
	assert.True(t, progression.IsCompleted(10, 10))
	assert.True(t, progression.IsCompleted(11, 10))
}

func TestRecomputeOne_IsIdempotent(t *testing.T) {
	// GIVEN: a stored record whose derived fields went stale
	ladders := ranks.StandardLadders()
	q := &progression.QuotaEngine{Ladders: ladders}
	m := newMember(ladders)
	m.RankLevel = 3
	m.WeeklyPoints = 18
	m.WeeklyQuota = 15
	m.QuotaCompleted = true

	// WHEN: recomputed twice
	changed, flipped := q.RecomputeOne(&m, monday)
	again, flippedAgain := q.RecomputeOne(&m, monday)

	// THEN: the first pass fixes quota and completion, the second is a no-op
	assert.True(t, changed)
	assert.True(t, flipped)
	assert.Equal(t, 20, m.WeeklyQuota)
	assert.False(t, m.QuotaCompleted)
	assert.Equal(t, "Senior Operator", m.RankName)
	assert.False(t, again)
	assert.False(t, flippedAgain)
}

func TestResetWeek(t *testing.T) {
	ladders := ranks.StandardLadders()
	q := &progression.QuotaEngine{Ladders: ladders}

	m := newMember(ladders)
	m.WeeklyPoints = 12
	m.AllTimePoints = 300
	m.RankPoints = 40
	m.WeeklyEvents = 4
	m.DailyPointsToday = 6
	m.QuotaStreak = 2

	q.ResetWeek(&m, monday)

	assert.Equal(t, 0, m.WeeklyPoints)
	assert.Equal(t, 0, m.WeeklyEvents)
	assert.Equal(t, 0, m.DailyPointsToday)
	assert.False(t, m.QuotaCompleted)
	assert.Equal(t, 10, m.WeeklyQuota)
	assert.Equal(t, 12, m.LastWeekPoints)
	assert.Equal(t, 3, m.QuotaStreak)
	assert.Equal(t, 300, m.AllTimePoints)
	assert.Equal(t, 40, m.RankPoints)

	// A week below quota breaks the streak.
	m.WeeklyPoints = 4
	q.ResetWeek(&m, monday.Add(days(7)))
	assert.Equal(t, 0, m.QuotaStreak)
	assert.Equal(t, 4, m.LastWeekPoints)
}

func TestResetDay(t *testing.T) {
	ladders := ranks.StandardLadders()
	q := &progression.QuotaEngine{Ladders: ladders}
	m := newMember(ladders)
	m.DailyPointsToday = 9
	m.DailyPointsDate = "2025-03-03"

	assert.False(t, q.ResetDay(&m, "2025-03-03", monday))
	assert.Equal(t, 9, m.DailyPointsToday)

	assert.True(t, q.ResetDay(&m, "2025-03-04", monday))
	assert.Equal(t, 0, m.DailyPointsToday)
	assert.Equal(t, "2025-03-04", m.DailyPointsDate)
}

func TestDayKey_UsesLocation(t *testing.T) {
	late := time.Date(2025, time.March, 3, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	assert.Equal(t, "2025-03-03", progression.DayKey(late, nil))
	assert.Equal(t, "2025-03-04", progression.DayKey(late, tokyo))
}
