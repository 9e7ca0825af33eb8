package progression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

// =============================================================================
// LADDER STRUCTURE
// =============================================================================

func TestNextRank_AdvancesOneLevelUntilTop(t *testing.T) {
	ladders := ranks.StandardLadders()
	for _, u := range progression.Units {
		l := ladders.For(u)
		for level := 1; level < progression.LadderSize; level++ {
			next, ok := l.NextRank(level)
			require.True(t, ok, "unit %s level %d", u, level)
			assert.Equal(t, level+1, next.Level)
		}
		_, ok := l.NextRank(progression.LadderSize)
		assert.False(t, ok, "top of %s ladder is terminal", u)
	}
}

func TestQuota_NonDecreasingAcrossOperationalTier(t *testing.T) {
	ladders := ranks.StandardLadders()
	table := ladders.Table()
	for i := 0; i < len(table); i++ {
		for j := i + 1; j < len(table); j++ {
			if table[i].Tier != progression.TierOperational || table[j].Tier != progression.TierOperational {
				continue
			}
			assert.LessOrEqual(t, progression.QuotaFor(ladders, i+1), progression.QuotaFor(ladders, j+1))
		}
	}
}

func TestLadders_UnitsShareNumbersButNotNames(t *testing.T) {
	ladders := ranks.StandardLadders()
	swat := ladders.For(progression.UnitSWAT).Ranks()
	cmu := ladders.For(progression.UnitCMU).Ranks()

	for i := range swat {
		assert.Equal(t, swat[i].RankSpec, cmu[i].RankSpec)
		assert.NotEqual(t, swat[i].Key, cmu[i].Key)
	}
	assert.Equal(t, "Senior Operator", swat[2].Name)
	assert.Equal(t, "swat-senior-operator", swat[2].Key)
	assert.Equal(t, "Senior Officer", cmu[2].Name)
	assert.Equal(t, "cmu-senior-officer", cmu[2].Key)
}

func TestLadders_HandPickedTier(t *testing.T) {
	ladders := ranks.StandardLadders()
	assert.False(t, ladders.IsHandPicked(8))
	assert.True(t, ladders.IsHandPicked(9))
	assert.True(t, ladders.IsHandPicked(10))
	assert.False(t, ladders.IsHandPicked(11))
}

func TestQuotaFor_ClampsOutOfRange(t *testing.T) {
	ladders := ranks.StandardLadders()
	assert.Equal(t, 10, progression.QuotaFor(ladders, 0))
	assert.Equal(t, 20, progression.QuotaFor(ladders, 42))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestBuildLadders_RejectsBrokenTables(t *testing.T) {
	cases := map[string]func(t *progression.RankTable){
		"operational quota decreases": func(t *progression.RankTable) { t[2].Quota = 5 },
		"supervisor quota not flat":   func(t *progression.RankTable) { t[6].Quota = 40 },
		"missing threshold":           func(t *progression.RankTable) { t[3].PointsRequired = 0 },
		"hand-picked flag mismatch":   func(t *progression.RankTable) { t[8].HandPicked = false },
		"level out of order":          func(t *progression.RankTable) { t[4].Level = 7 },
		"negative lock":               func(t *progression.RankTable) { t[1].LockDays = -1 },
		"tier order":                  func(t *progression.RankTable) { t[5].Tier = progression.TierOperational; t[4].Tier = progression.TierSupervisor },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			table := ranks.StandardTable()
			mutate(&table)
			_, err := progression.BuildLadders(table, ranks.SWATOverlay(), ranks.CMUOverlay())
			assert.ErrorIs(t, err, progression.ErrInvalidConfig)
		})
	}
}

func TestBuildLadders_RequiresEveryUnit(t *testing.T) {
	_, err := progression.BuildLadders(ranks.StandardTable(), ranks.SWATOverlay())
	assert.ErrorIs(t, err, progression.ErrInvalidConfig)

	_, err = progression.BuildLadders(ranks.StandardTable(), ranks.SWATOverlay(), ranks.SWATOverlay(), ranks.CMUOverlay())
	assert.ErrorIs(t, err, progression.ErrInvalidConfig)

	blank := ranks.CMUOverlay()
	blank.Names[4] = " "
	_, err = progression.BuildLadders(ranks.StandardTable(), ranks.SWATOverlay(), blank)
	assert.ErrorIs(t, err, progression.ErrInvalidConfig)
}

func TestParseUnit(t *testing.T) {
	u, err := progression.ParseUnit(" CMU ")
	require.NoError(t, err)
	assert.Equal(t, progression.UnitCMU, u)

	_, err = progression.ParseUnit("navy")
	assert.True(t, progression.IsClientError(err))
}
