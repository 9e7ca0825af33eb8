package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

var base = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

func TestMemberRow_RoundTrip(t *testing.T) {
	m := progression.NewMember("u-1", "Alice", ranks.StandardLadders(), base)
	lock := base.Add(72 * time.Hour)
	m.RankLockUntil = &lock
	m.DailyPointsDate = "2025-03-03"
	m.QuotaStreak = 4
	m.PromotionHistory = []progression.PromotionRecord{{ID: "p-1", FromLevel: 1, ToLevel: 2, At: base, LockApplied: &lock}}

	assert.Equal(t, m, toMemberRow(m).toMember())
}

// TestStore_Postgres runs against a real database when TEST_DATABASE_URL is set.
func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	id := progression.MemberID("pg-test-" + base.Format("150405"))
	t.Cleanup(func() {
		s.Delete(ctx, id)
		s.DeleteBySubject(ctx, id)
	})

	m := progression.NewMember(id, "Postgres", ranks.StandardLadders(), base)
	m.WeeklyPoints = 12
	require.NoError(t, s.Save(ctx, m))
	m.WeeklyPoints = 20
	require.NoError(t, s.Save(ctx, m))

	got, err := s.Find(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 20, got.WeeklyPoints)
	assert.True(t, got.CreatedAt.Equal(base))

	require.NoError(t, s.Append(ctx, progression.Event{ID: string(id) + "-e1", ActorID: "t", SubjectID: id, Category: progression.EventSubmission, CreatedAt: base}))
	require.NoError(t, s.Append(ctx, progression.Event{ID: string(id) + "-e2", ActorID: "t", SubjectID: id, Category: progression.EventPromotion, CreatedAt: base}))
	evs, err := s.Query(ctx, progression.EventFilter{SubjectID: &id})
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, string(id)+"-e2", evs[0].ID)

	n, err := s.DeleteBySubject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
