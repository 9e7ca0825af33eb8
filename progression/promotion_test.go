package progression_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

// =============================================================================
// ELIGIBILITY STATE MACHINE
// =============================================================================

func TestCheckEligibility_AtThresholdIsEligible(t *testing.T) {
	ladders := ranks.StandardLadders()
	for _, u := range progression.Units {
		for level := 1; level < progression.LadderSize; level++ {
			next, _ := ladders.For(u).NextRank(level)
			if next.HandPicked {
				continue
			}
			m := newMember(ladders)
			m.Unit = u
			m.RankLevel = level
			m.RankPoints = next.PointsRequired

			e := progression.CheckEligibility(m, ladders, monday)
			assert.Equal(t, progression.StateEligible, e.State, "unit %s level %d", u, level)
			assert.Equal(t, 0, e.Progress.Remaining)
		}
	}
}

func TestCheckEligibility_LockTakesPrecedence(t *testing.T) {
	ladders := ranks.StandardLadders()
	for _, extra := range []int{0, 1, 500} {
		m := newMember(ladders)
		m.RankPoints = 65 + extra
		until := monday.Add(time.Hour)
		m.RankLockUntil = &until

		e := progression.CheckEligibility(m, ladders, monday)
		assert.Equal(t, progression.StateLocked, e.State)
		assert.True(t, e.ReadyButLocked())
		assert.Equal(t, time.Hour, e.LockRemaining)
		require.NotNil(t, e.LockUntil)
		assert.Equal(t, until, *e.LockUntil)
	}
}

func TestCheckEligibility_States(t *testing.T) {
	ladders := ranks.StandardLadders()
	past := monday.Add(-time.Minute)

	tests := []struct {
		name   string
		level  int
		points int
		lock   *time.Time
		want   progression.EligibilityState
	}{
		{"below threshold", 1, 64, nil, progression.StateBelowThreshold},
		{"expired lock is ignored", 2, 65, &past, progression.StateEligible},
		{"hand-picked gate ignores points", 8, 10000, nil, progression.StateHandPickedGate},
		{"hand-picked member moving up", 9, 0, nil, progression.StateHandPickedGate},
		{"max rank", 10, 0, nil, progression.StateMaxRank},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMember(ladders)
			m.RankLevel = tt.level
			m.RankPoints = tt.points
			m.RankLockUntil = tt.lock
			e := progression.CheckEligibility(m, ladders, monday)
			assert.Equal(t, tt.want, e.State)
			assert.NotEmpty(t, e.Reason())
		})
	}
}

func TestCheckEligibility_MaxRankHasNoNext(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.RankLevel = 10
	e := progression.CheckEligibility(m, ladders, monday)
	assert.Nil(t, e.Next)
	assert.Equal(t, "Chief", e.Current.Name)
	assert.False(t, e.Promotable())
}

func TestCheckEligibility_LockedHandPickedIsNotReady(t *testing.T) {
	ladders := ranks.StandardLadders()
	m := newMember(ladders)
	m.RankLevel = 8
	until := monday.Add(days(2))
	m.RankLockUntil = &until

	e := progression.CheckEligibility(m, ladders, monday)
	assert.Equal(t, progression.StateLocked, e.State)
	assert.False(t, e.ReadyButLocked())
}

func TestProgress_Percent(t *testing.T) {
	p := progression.Progress{Current: 13, Required: 65, Remaining: 52}
	assert.True(t, decimal.NewFromInt(20).Equal(p.Percent()), p.Percent().String())

	p = progression.Progress{Current: 1, Required: 3, Remaining: 2}
	assert.Equal(t, "33.33", p.Percent().String())

	p = progression.Progress{Current: 90, Required: 65}
	assert.True(t, decimal.NewFromInt(100).Equal(p.Percent()))
}

// =============================================================================
// RANK CHANGES
// =============================================================================

func TestApplyPromotion_ResetsProgressForEveryState(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}

	for level := 1; level < progression.LadderSize; level++ {
		for _, points := range []int{0, 30, 65, 1000} {
			m := newMember(ladders)
			m.RankLevel = level
			m.RankPoints = points
			m.PromotionEligible = true

			res, err := engine.ApplyPromotion(&m, "hr-1", progression.PromotionForced, "test", true, monday)
			require.NoError(t, err)
			assert.Equal(t, 0, m.RankPoints)
			assert.False(t, m.PromotionEligible)
			assert.Equal(t, level+1, m.RankLevel)
			assert.Equal(t, res.NewRank.Name, m.RankName)
			assert.Equal(t, m, res.Member)
		}
	}
}

func TestApplyPromotion_AppliesDestinationLock(t *testing.T) {
	// GIVEN: a level-1 member at the level-2 threshold
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	m := newMember(ladders)
	m.RankPoints = 65
	m.AllTimePoints = 140
	m.RankLockNotified = true

	// WHEN: HR approves
	res, err := engine.ApplyPromotion(&m, "hr-1", "", "good work", false, monday)
	require.NoError(t, err)

	// THEN: level 2 with a three day lock and a full history record
	wantLock := monday.Add(days(3))
	require.NotNil(t, m.RankLockUntil)
	assert.Equal(t, wantLock, *m.RankLockUntil)
	assert.False(t, m.RankLockNotified)
	assert.Equal(t, "Operator", m.RankName)
	assert.Equal(t, 15, m.WeeklyQuota)

	require.Len(t, m.PromotionHistory, 1)
	rec := m.PromotionHistory[0]
	assert.Equal(t, progression.PromotionApproved, rec.Type)
	assert.Equal(t, "Recruit", rec.FromRank)
	assert.Equal(t, "Operator", rec.ToRank)
	assert.Equal(t, 65, rec.RankPointsAtPromotion)
	assert.Equal(t, 140, rec.AllTimePointsAtPromotion)
	assert.Equal(t, "hr-1", rec.ActorID)
	assert.NotEmpty(t, rec.ID)
	require.NotNil(t, rec.LockApplied)
	assert.Equal(t, wantLock, *rec.LockApplied)
	assert.Equal(t, rec, res.Record)
}

func TestApplyPromotion_ReadyButLockedClearsLock(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	m := newMember(ladders)
	m.RankLevel = 2
	m.RankPoints = 70
	until := monday.Add(days(1))
	m.RankLockUntil = &until

	_, err := engine.ApplyPromotion(&m, "hr-1", "", "", false, monday)
	require.NoError(t, err)
	assert.Equal(t, 3, m.RankLevel)
	require.NotNil(t, m.RankLockUntil)
	assert.Equal(t, monday.Add(days(5)), *m.RankLockUntil, "old lock replaced by the level-3 lock")
}

func TestApplyPromotion_Rejections(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}

	// Below threshold
	m := newMember(ladders)
	m.RankPoints = 10
	_, err := engine.ApplyPromotion(&m, "hr-1", "", "", false, monday)
	var ne *progression.NotEligibleError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, progression.StateBelowThreshold, ne.State)
	assert.True(t, progression.IsNotAllowed(err))
	assert.Equal(t, 1, m.RankLevel, "rejected promotion leaves the member untouched")

	// Max rank, even when forced
	m = newMember(ladders)
	m.RankLevel = 10
	_, err = engine.ApplyPromotion(&m, "hr-1", "", "", true, monday)
	assert.ErrorIs(t, err, progression.ErrAlreadyAtMaxRank)
	assert.False(t, progression.IsRetryable(err))
}

func TestForcePromotion(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	cmu := progression.UnitCMU

	t.Run("into hand-picked tier", func(t *testing.T) {
		m := newMember(ladders)
		m.RankLevel = 8
		m.RankPoints = 12
		res, err := engine.ForcePromotion(&m, 9, nil, "admin", "appointed", monday)
		require.NoError(t, err)
		assert.Equal(t, progression.PromotionForced, res.Record.Type)
		assert.Equal(t, "Commander", m.RankName)
		assert.Nil(t, m.RankLockUntil, "hand-picked ranks carry no lock")
		assert.Nil(t, res.LockApplied)
		assert.Equal(t, 20, m.WeeklyQuota)
	})

	t.Run("demotion", func(t *testing.T) {
		m := newMember(ladders)
		m.RankLevel = 5
		res, err := engine.ForcePromotion(&m, 2, nil, "admin", "conduct", monday)
		require.NoError(t, err)
		assert.Equal(t, progression.PromotionDemotion, res.Record.Type)
		assert.Equal(t, 2, m.RankLevel)
	})

	t.Run("unit override", func(t *testing.T) {
		m := newMember(ladders)
		m.RankLevel = 3
		m.RankPoints = 40
		res, err := engine.ForcePromotion(&m, 4, &cmu, "admin", "lateral", monday)
		require.NoError(t, err)
		assert.Equal(t, progression.UnitCMU, m.Unit)
		assert.Equal(t, "Corporal", m.RankName)
		assert.Equal(t, progression.UnitSWAT, res.Record.FromUnit)
		assert.Equal(t, progression.UnitCMU, res.Record.ToUnit)
		assert.Equal(t, 0, m.RankPoints)
	})

	t.Run("invalid targets", func(t *testing.T) {
		m := newMember(ladders)
		for _, level := range []int{0, 11} {
			_, err := engine.ForcePromotion(&m, level, nil, "admin", "x", monday)
			assert.True(t, progression.IsClientError(err))
		}
		_, err := engine.ForcePromotion(&m, 1, nil, "admin", "x", monday)
		assert.True(t, progression.IsClientError(err), "same level and unit")
		bad := progression.Unit("navy")
		_, err = engine.ForcePromotion(&m, 2, &bad, "admin", "x", monday)
		assert.True(t, progression.IsClientError(err))
	})
}

func TestTransferUnit_KeepsLevelResetsProgress(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	m := newMember(ladders)
	m.RankLevel = 3
	m.RankPoints = 50
	m.AllTimePoints = 400

	res, err := engine.TransferUnit(&m, progression.UnitCMU, "admin", "", monday)
	require.NoError(t, err)
	assert.Equal(t, progression.PromotionTransfer, res.Record.Type)
	assert.Equal(t, 3, m.RankLevel)
	assert.Equal(t, "Senior Officer", m.RankName)
	assert.Equal(t, 0, m.RankPoints)
	assert.Equal(t, 400, m.AllTimePoints)
	require.NotNil(t, m.RankLockUntil)
	assert.Equal(t, monday.Add(days(5)), *m.RankLockUntil)

	_, err = engine.TransferUnit(&m, progression.UnitCMU, "admin", "", monday)
	assert.True(t, progression.IsClientError(err))
}

func TestBypassLock(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	m := newMember(ladders)
	m.RankLevel = 2
	m.RankPoints = 65
	until := monday.Add(days(2))
	m.RankLockUntil = &until
	m.RankLockNotified = true

	cleared, err := engine.BypassLock(&m, monday)
	require.NoError(t, err)
	assert.Equal(t, until, cleared)
	assert.Nil(t, m.RankLockUntil)
	assert.False(t, m.RankLockNotified)
	assert.Equal(t, 2, m.RankLevel)
	assert.Equal(t, 65, m.RankPoints)
	assert.True(t, m.PromotionEligible)

	_, err = engine.BypassLock(&m, monday)
	assert.True(t, progression.IsClientError(err), "nothing left to clear")
}

func TestExpireLock_ReportsOnce(t *testing.T) {
	ladders := ranks.StandardLadders()
	engine := &progression.PromotionEngine{Ladders: ladders}
	m := newMember(ladders)
	until := monday.Add(days(1))
	m.RankLockUntil = &until

	assert.False(t, engine.ExpireLock(&m, monday), "still active")
	assert.True(t, engine.ExpireLock(&m, monday.Add(days(2))))
	assert.False(t, engine.ExpireLock(&m, monday.Add(days(3))))
}

// =============================================================================
// ELIGIBILITY REPORT
// =============================================================================

func TestBuildReport_GroupsAndOrders(t *testing.T) {
	ladders := ranks.StandardLadders()
	locked := monday.Add(days(1))
	mk := func(id string, unit progression.Unit, level, rankPts, allTime int, lock *time.Time) progression.Member {
		m := progression.NewMember(progression.MemberID(id), id, ladders, monday)
		m.Unit = unit
		m.RankLevel = level
		m.RankPoints = rankPts
		m.AllTimePoints = allTime
		m.RankLockUntil = lock
		return m
	}
	members := []progression.Member{
		mk("a", progression.UnitSWAT, 1, 65, 100, nil),
		mk("b", progression.UnitSWAT, 1, 70, 300, nil),
		mk("c", progression.UnitSWAT, 2, 65, 500, &locked),
		mk("d", progression.UnitCMU, 1, 65, 90, nil),
		mk("e", progression.UnitSWAT, 1, 10, 999, nil),
		mk("f", progression.UnitSWAT, 8, 999, 999, nil),
		mk("g", progression.UnitSWAT, 10, 0, 999, nil),
		mk("h", progression.UnitSWAT, 3, 10, 50, &locked),
	}

	rep := progression.BuildReport(members, ladders, monday)

	assert.Equal(t, 8, rep.Scanned)
	assert.Equal(t, 3, rep.Eligible)
	assert.Equal(t, 1, rep.Locked)
	require.Len(t, rep.Groups, 3)

	assert.Equal(t, "swat-operator", rep.Groups[0].Destination.Key)
	require.Len(t, rep.Groups[0].Entries, 2)
	assert.Equal(t, progression.MemberID("b"), rep.Groups[0].Entries[0].Member.ID)
	assert.Equal(t, progression.MemberID("a"), rep.Groups[0].Entries[1].Member.ID)

	assert.Equal(t, "cmu-officer", rep.Groups[1].Destination.Key)
	assert.Equal(t, progression.MemberID("d"), rep.Groups[1].Entries[0].Member.ID)

	assert.Equal(t, "swat-senior-operator", rep.Groups[2].Destination.Key)
	assert.Equal(t, progression.StateLocked, rep.Groups[2].Entries[0].Eligibility.State)
}
