package progression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

func adjust(action progression.AdjustAction, amount int, reason string) progression.Adjustment {
	return progression.Adjustment{TargetID: "m-1", Action: action, Amount: amount, Reason: reason, ActorID: "admin"}
}

func TestAdjustment_AddThenRemoveRestoresCounters(t *testing.T) {
	ladders := ranks.StandardLadders()
	for _, amount := range []int{1, 15, 40, 500} {
		m := newMember(ladders)
		m.WeeklyPoints = 20
		m.AllTimePoints = 100
		m.RankPoints = 30

		_, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustAdd, amount, ""), ladders, monday)
		require.NoError(t, err)
		_, err = progression.ApplyAdjustment(&m, adjust(progression.AdjustRemove, amount, ""), ladders, monday)
		require.NoError(t, err)

		assert.Equal(t, 20, m.WeeklyPoints, "amount %d", amount)
		assert.Equal(t, 100, m.AllTimePoints, "amount %d", amount)
		assert.Equal(t, 30, m.RankPoints, "amount %d", amount)
	}
}

func TestAdjustment_AddCanMakeEligible(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.RankPoints = 60

	res, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustAdd, 5, "event credit"), ladders, monday)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Delta)
	assert.False(t, res.Before.Eligible)
	assert.True(t, res.After.Eligible)
	assert.True(t, res.EligibilityChanged)
	assert.Equal(t, progression.StateEligible, res.Eligibility.State)
	assert.True(t, m.PromotionEligible)
}

func TestAdjustment_RemoveClampsAtZero(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.WeeklyPoints = 5
	m.AllTimePoints = 50
	m.RankPoints = 3

	_, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustRemove, 10, ""), ladders, monday)
	require.NoError(t, err)
	assert.Equal(t, 0, m.WeeklyPoints)
	assert.Equal(t, 40, m.AllTimePoints)
	assert.Equal(t, 0, m.RankPoints)
}

func TestAdjustment_SetShiftsAllCountersByDifference(t *testing.T) {
	// GIVEN: weekly 20, all-time 100, rank 30
	ladders := ranks.StandardLadders()
	tests := []struct {
		amount                    int
		delta, weekly, all, rankP int
	}{
		{50, 30, 50, 130, 60},
		{5, -15, 5, 85, 15},
		{20, 0, 20, 100, 30},
	}
	for _, tt := range tests {
		m := newMember(ladders)
		m.WeeklyPoints = 20
		m.AllTimePoints = 100
		m.RankPoints = 30

		// WHEN: weekly points are set
		res, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustSet, tt.amount, ""), ladders, monday)
		require.NoError(t, err)

		// THEN: weekly is assigned, the other counters move by the same delta
		assert.Equal(t, tt.delta, res.Delta)
		assert.Equal(t, tt.weekly, m.WeeklyPoints)
		assert.Equal(t, tt.all, m.AllTimePoints)
		assert.Equal(t, tt.rankP, m.RankPoints)
	}
}

func TestAdjustment_RemoveAllZeroesEverything(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.WeeklyPoints = 50
	m.AllTimePoints = 200
	m.RankPoints = 40
	m.QuotaCompleted = true

	res, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustRemoveAll, 0, "confirm cleanup"), ladders, monday)
	require.NoError(t, err)

	assert.Equal(t, -50, res.Delta)
	assert.Equal(t, progression.PointSnapshot{}, res.After)
	assert.Equal(t, 50, res.Before.WeeklyPoints)
	assert.False(t, m.QuotaCompleted)
	assert.False(t, m.PromotionEligible)
}

func TestAdjustment_HandPickedRankPointsStayZero(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.RankLevel = 9

	_, err := progression.ApplyAdjustment(&m, adjust(progression.AdjustAdd, 25, ""), ladders, monday)
	require.NoError(t, err)
	assert.Equal(t, 25, m.WeeklyPoints)
	assert.Equal(t, 25, m.AllTimePoints)
	assert.Equal(t, 0, m.RankPoints)
	assert.True(t, m.QuotaCompleted)
}

func TestAdjustment_Validate(t *testing.T) {
	bad := map[string]progression.Adjustment{
		"no target":             {Action: progression.AdjustAdd, Amount: 1},
		"zero add":              adjust(progression.AdjustAdd, 0, ""),
		"negative remove":       adjust(progression.AdjustRemove, -3, ""),
		"negative set":          adjust(progression.AdjustSet, -1, ""),
		"remove_all w/o reason": adjust(progression.AdjustRemoveAll, 0, "  "),
		"unknown action":        adjust("double", 1, ""),
	}
	for name, adj := range bad {
		t.Run(name, func(t *testing.T) {
			assert.True(t, progression.IsClientError(adj.Validate()))
		})
	}
	assert.NoError(t, adjust(progression.AdjustSet, 0, "").Validate())
}

func TestParseAdjustAction(t *testing.T) {
	for in, want := range map[string]progression.AdjustAction{
		"add":        progression.AdjustAdd,
		" Remove ":   progression.AdjustRemove,
		"SET":        progression.AdjustSet,
		"remove-all": progression.AdjustRemoveAll,
		"remove_all": progression.AdjustRemoveAll,
	} {
		got, err := progression.ParseAdjustAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := progression.ParseAdjustAction("reset")
	assert.Error(t, err)
}
