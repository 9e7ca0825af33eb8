package progression_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
)

func TestLeaderboard_TiesShareAPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, "a", func(m *progression.Member) { m.WeeklyPoints = 30; m.LastWeekPoints = 20 })
	f.seed(t, "b", func(m *progression.Member) { m.WeeklyPoints = 30 })
	f.seed(t, "c", func(m *progression.Member) { m.WeeklyPoints = 10; m.AllTimePoints = 500; m.Unit = progression.UnitCMU })

	board, err := f.svc.Leaderboard(ctx, progression.BoardWeekly, nil, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, []int{1, 1, 3}, []int{board[0].Position, board[1].Position, board[2].Position})
	assert.Equal(t, progression.MemberID("a"), board[0].Member.ID)
	require.NotNil(t, board[0].Trend)
	assert.Equal(t, "50", board[0].Trend.String())
	assert.Nil(t, board[1].Trend)

	cmu := progression.UnitCMU
	board, err = f.svc.Leaderboard(ctx, progression.BoardAllTime, &cmu, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 500, board[0].Points)

	board, err = f.svc.Leaderboard(ctx, progression.BoardWeekly, nil, 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)
}

func TestTrend(t *testing.T) {
	assert.Nil(t, progression.Trend(10, 0))
	assert.Equal(t, "-25", progression.Trend(15, 20).String())
	assert.Equal(t, "33.3", progression.Trend(4, 3).String())
}

func TestParseBoard(t *testing.T) {
	b, err := progression.ParseBoard("")
	require.NoError(t, err)
	assert.Equal(t, progression.BoardWeekly, b)

	b, err = progression.ParseBoard("all-time")
	require.NoError(t, err)
	assert.Equal(t, progression.BoardAllTime, b)

	_, err = progression.ParseBoard("monthly")
	assert.True(t, progression.IsClientError(err))
}
