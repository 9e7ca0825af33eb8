// Package store provides an in-memory progression.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/rank-engine/progression"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	members map[progression.MemberID]progression.Member
	events  []progression.Event
	runs    map[string]progression.Run
}

func NewMemory() *Memory {
	return &Memory{
		members: make(map[progression.MemberID]progression.Member),
		runs:    make(map[string]progression.Run),
	}
}

// =============================================================================
// MEMBERS
// =============================================================================

// Find returns a copy so callers cannot mutate stored state.
func (m *Memory) Find(_ context.Context, id progression.MemberID) (*progression.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	c := rec.Clone()
	return &c, nil
}

func (m *Memory) Save(_ context.Context, rec progression.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[rec.ID] = rec.Clone()
	return nil
}

func (m *Memory) FindAllMatching(_ context.Context, pred progression.Predicate) ([]progression.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []progression.Member
	for _, rec := range m.members {
		if pred == nil || pred(rec) {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Count(_ context.Context, pred progression.Predicate) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rec := range m.members {
		if pred == nil || pred(rec) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, id progression.MemberID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
	return nil
}

// =============================================================================
// EVENTS - Append-only
// =============================================================================

// Append keeps events ordered by CreatedAt; equal timestamps keep
// insertion order.
func (m *Memory) Append(_ context.Context, ev progression.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].CreatedAt.After(ev.CreatedAt)
	})
	m.events = append(m.events, progression.Event{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = ev
	return nil
}

// Query returns matches newest first.
func (m *Memory) Query(_ context.Context, f progression.EventFilter) ([]progression.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []progression.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		if !f.Matches(m.events[i]) {
			continue
		}
		result = append(result, m.events[i])
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) DeleteBySubject(_ context.Context, id progression.MemberID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	removed := 0
	for _, ev := range m.events {
		if ev.SubjectID == id {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return removed, nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, r progression.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return nil
}

func (m *Memory) ListRuns(_ context.Context, kind progression.RunKind, limit int) ([]progression.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []progression.Run
	for _, r := range m.runs {
		if kind == "" || r.Kind == kind {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ progression.Store = (*Memory)(nil)
