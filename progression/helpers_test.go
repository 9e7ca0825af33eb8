package progression_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/progression/store"
	"github.com/warp/rank-engine/ranks"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// monday is the start of a quota week in UTC.
var monday = time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// failingStore wraps the memory store and fails selected writes. beforeSave
// runs once, ahead of the next save of the named member.
type failingStore struct {
	*store.Memory
	failSave   map[progression.MemberID]bool
	failAppend bool
	beforeSave map[progression.MemberID]func()
}

func newFailingStore() *failingStore {
	return &failingStore{
		Memory:     store.NewMemory(),
		failSave:   map[progression.MemberID]bool{},
		beforeSave: map[progression.MemberID]func(){},
	}
}

func (f *failingStore) Save(ctx context.Context, m progression.Member) error {
	if hook, ok := f.beforeSave[m.ID]; ok {
		delete(f.beforeSave, m.ID)
		hook()
	}
	if f.failSave[m.ID] {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, m)
}

func (f *failingStore) Append(ctx context.Context, ev progression.Event) error {
	if f.failAppend {
		return errors.New("log unavailable")
	}
	return f.Memory.Append(ctx, ev)
}

type fixture struct {
	svc     *progression.Service
	store   *failingStore
	clock   *fakeClock
	ladders *progression.Ladders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFailingStore()
	clock := &fakeClock{now: monday}
	ladders := ranks.StandardLadders()
	svc, err := progression.NewService(progression.Config{
		Members: st,
		Events:  st,
		Runs:    st,
		Ladders: ladders,
		Points:  ranks.StandardPoints(),
		Clock:   clock.Now,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: st, clock: clock, ladders: ladders}
}

// seed stores a member built from NewMember after applying mutate. It
// bypasses the service so tests can set up arbitrary counters.
func (f *fixture) seed(t *testing.T, id string, mutate func(m *progression.Member)) progression.Member {
	t.Helper()
	m := progression.NewMember(progression.MemberID(id), "Member "+id, f.ladders, f.clock.now)
	if mutate != nil {
		mutate(&m)
	}
	require.NoError(t, f.store.Memory.Save(context.Background(), m))
	return m
}

func (f *fixture) member(t *testing.T, id string) progression.Member {
	t.Helper()
	m, err := f.svc.Member(context.Background(), progression.MemberID(id))
	require.NoError(t, err)
	return m
}

func (f *fixture) events(t *testing.T, id string) []progression.Event {
	t.Helper()
	mid := progression.MemberID(id)
	evs, err := f.svc.Events(context.Background(), progression.EventFilter{SubjectID: &mid})
	require.NoError(t, err)
	return evs
}

func (f *fixture) submit(t *testing.T, id string, activity progression.ActivityType, qty int) progression.SubmissionResult {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), progression.Submission{
		MemberID:     progression.MemberID(id),
		DisplayName:  "Member " + id,
		ActivityType: activity,
		Quantity:     qty,
	})
	require.NoError(t, err)
	return res
}

// newMember returns a level-1 member for pure engine tests.
func newMember(ladders *progression.Ladders) progression.Member {
	return progression.NewMember("m-1", "Tester", ladders, monday)
}
