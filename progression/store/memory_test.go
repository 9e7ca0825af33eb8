package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/progression/store"
	"github.com/warp/rank-engine/ranks"
)

var base = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

func TestMemory_FindReturnsACopy(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := progression.NewMember("u-1", "Alice", ranks.StandardLadders(), base)
	lock := base.Add(time.Hour)
	m.RankLockUntil = &lock
	require.NoError(t, s.Save(ctx, m))

	got, err := s.Find(ctx, "u-1")
	require.NoError(t, err)
	got.WeeklyPoints = 99
	*got.RankLockUntil = base

	again, err := s.Find(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.WeeklyPoints)
	assert.Equal(t, lock, *again.RankLockUntil)

	missing, err := s.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_FindAllMatchingIsOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	ladders := ranks.StandardLadders()
	for _, id := range []progression.MemberID{"c", "a", "b"} {
		require.NoError(t, s.Save(ctx, progression.NewMember(id, string(id), ladders, base)))
	}

	all, err := s.FindAllMatching(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, progression.MemberID("a"), all[0].ID)
	assert.Equal(t, progression.MemberID("c"), all[2].ID)

	n, err := s.Count(ctx, func(m progression.Member) bool { return m.ID != "b" })
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Delete(ctx, "a"))
	n, err = s.Count(ctx, progression.All)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemory_EventsNewestFirst(t *testing.T) {
	// GIVEN: events appended out of time order
	ctx := context.Background()
	s := store.NewMemory()
	for _, ev := range []progression.Event{
		{ID: "late", SubjectID: "u-1", Category: progression.EventSubmission, CreatedAt: base.Add(time.Hour)},
		{ID: "early", SubjectID: "u-1", Category: progression.EventSubmission, CreatedAt: base},
		{ID: "late-2", SubjectID: "u-1", Category: progression.EventPromotion, CreatedAt: base.Add(time.Hour)},
		{ID: "other", SubjectID: "u-2", Category: progression.EventSubmission, CreatedAt: base},
	} {
		require.NoError(t, s.Append(ctx, ev))
	}

	// WHEN: queried by subject
	u1 := progression.MemberID("u-1")
	evs, err := s.Query(ctx, progression.EventFilter{SubjectID: &u1})
	require.NoError(t, err)

	// THEN: newest first, later appends first among equal timestamps
	require.Len(t, evs, 3)
	assert.Equal(t, []string{"late-2", "late", "early"}, []string{evs[0].ID, evs[1].ID, evs[2].ID})

	evs, err = s.Query(ctx, progression.EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "late-2", evs[0].ID)

	n, err := s.DeleteBySubject(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	evs, err = s.Query(ctx, progression.EventFilter{})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "other", evs[0].ID)
}

func TestMemory_Runs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveRun(ctx, progression.Run{ID: "r-1", Kind: progression.RunWeeklyReset, StartedAt: base}))
	require.NoError(t, s.SaveRun(ctx, progression.Run{ID: "r-2", Kind: progression.RunDailyReset, StartedAt: base.Add(time.Hour)}))
	require.NoError(t, s.SaveRun(ctx, progression.Run{ID: "r-1", Kind: progression.RunWeeklyReset, Status: progression.RunCompleted, StartedAt: base}))

	runs, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r-2", runs[0].ID)

	runs, err = s.ListRuns(ctx, progression.RunWeeklyReset, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, progression.RunCompleted, runs[0].Status)
}
