/*
Package progression implements the rank, quota and promotion engine.

PURPOSE:
  Members submit activities and earn points. Points feed three coupled
  counters (weekly, all-time, rank progress). The rank progress counter
  drives promotion through a ten-level ladder per unit; the weekly counter
  is measured against a per-rank quota that HR enforces.

KEY CONCEPTS IN THIS FILE (member.go):
  - Member: The mutable per-participant record
  - PromotionRecord: Append-only rank change history
  - PointSnapshot: Before/after view of the three counters

DESIGN PRINCIPLES:
  1. Default-initialized records: NewMember returns a complete, valid member.
     Missing fields are repaired once by Backfill, never on every read.
  2. Denormalized fields are derived, never set by hand: rank name, weekly
     quota, quota completion and the eligibility hint are all recomputed
     from rank level, unit and counters by sync().
  3. Value semantics: engine functions work on a Member value and the caller
     decides when to persist it. A failed save leaves the stored record as it was.

SEE ALSO:
  - ladder.go: Rank ladders
  - quota.go: Quota engine
  - promotion.go: Promotion engine
  - service.go: Load / mutate / save / log orchestration
*/
package progression

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// MemberID is the stable external id from the chat platform.
type MemberID string

// =============================================================================
// MEMBER
// =============================================================================

// Member is one participant's progression state.
type Member struct {
	ID          MemberID
	DisplayName string
	Unit        Unit

	// Rank state
	RankLevel         int
	RankName          string
	RankPoints        int
	RankLockUntil     *time.Time
	RankLockNotified  bool
	PromotionEligible bool // cached hint, never trusted for decisions
	PromotionHistory  []PromotionRecord

	// Point counters
	WeeklyPoints     int
	AllTimePoints    int
	WeeklyQuota      int
	QuotaCompleted   bool
	DailyPointsToday int
	DailyPointsDate  string // local day key (YYYY-MM-DD) DailyPointsToday belongs to
	QuotaStreak      int
	WeeklyEvents     int
	TotalEvents      int
	LastWeekPoints   int

	Booster bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PromotionType classifies a history record.
type PromotionType string

const (
	PromotionApproved PromotionType = "approved"
	PromotionForced   PromotionType = "forced"
	PromotionDemotion PromotionType = "demotion"
	PromotionTransfer PromotionType = "transfer"
)

// PromotionRecord is one entry of the append-only rank history.
type PromotionRecord struct {
	ID                       string
	FromLevel                int
	FromRank                 string
	FromUnit                 Unit
	ToLevel                  int
	ToRank                   string
	ToUnit                   Unit
	At                       time.Time
	ActorID                  string
	Type                     PromotionType
	Reason                   string
	RankPointsAtPromotion    int
	AllTimePointsAtPromotion int
	LockApplied              *time.Time
}

// PointSnapshot captures the three coupled counters.
type PointSnapshot struct {
	WeeklyPoints   int
	AllTimePoints  int
	RankPoints     int
	QuotaCompleted bool
	Eligible       bool
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// NewMember returns a fully initialized level-1 member of the default unit.
func NewMember(id MemberID, displayName string, ladders *Ladders, now time.Time) Member {
	m := Member{
		ID:          id,
		DisplayName: displayName,
		Unit:        DefaultUnit,
		RankLevel:   1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.sync(ladders, now)
	return m
}

// Clone returns a deep copy so engine mutations never alias the caller's value.
func (m Member) Clone() Member {
	c := m
	if m.RankLockUntil != nil {
		t := *m.RankLockUntil
		c.RankLockUntil = &t
	}
	if m.PromotionHistory != nil {
		c.PromotionHistory = make([]PromotionRecord, len(m.PromotionHistory))
		copy(c.PromotionHistory, m.PromotionHistory)
		for i, r := range c.PromotionHistory {
			if r.LockApplied != nil {
				t := *r.LockApplied
				c.PromotionHistory[i].LockApplied = &t
			}
		}
	}
	return c
}

// Snapshot returns the counter view used in adjustment results.
func (m Member) Snapshot() PointSnapshot {
	return PointSnapshot{
		WeeklyPoints:   m.WeeklyPoints,
		AllTimePoints:  m.AllTimePoints,
		RankPoints:     m.RankPoints,
		QuotaCompleted: m.QuotaCompleted,
		Eligible:       m.PromotionEligible,
	}
}

// IsLocked reports whether a rank lock is active at now.
func (m Member) IsLocked(now time.Time) bool {
	return m.RankLockUntil != nil && m.RankLockUntil.After(now)
}

// =============================================================================
// DERIVED FIELDS
// =============================================================================

// sync re-derives every denormalized field from level, unit and counters.
// It is the single place that writes RankName, WeeklyQuota, QuotaCompleted
// and PromotionEligible. Idempotent.
func (m *Member) sync(ladders *Ladders, now time.Time) {
	if !m.Unit.Valid() {
		m.Unit = DefaultUnit
	}
	m.RankLevel = clampLevel(m.RankLevel)
	if r, ok := ladders.For(m.Unit).Rank(m.RankLevel); ok {
		m.RankName = r.Name
	}
	if ladders.IsHandPicked(m.RankLevel) {
		m.RankPoints = 0
	}
	m.WeeklyPoints = max(m.WeeklyPoints, 0)
	m.AllTimePoints = max(m.AllTimePoints, 0)
	m.RankPoints = max(m.RankPoints, 0)
	m.DailyPointsToday = max(m.DailyPointsToday, 0)
	m.WeeklyQuota = QuotaFor(ladders, m.RankLevel)
	m.QuotaCompleted = IsCompleted(m.WeeklyPoints, m.WeeklyQuota)
	m.PromotionEligible = CheckEligibility(*m, ladders, now).State == StateEligible
}

// addPoints applies one signed delta to the three coupled counters.
// Hand-picked members keep rank points pinned at zero.
func (m *Member) addPoints(ladders *Ladders, delta int) {
	m.WeeklyPoints = max(m.WeeklyPoints+delta, 0)
	m.AllTimePoints = max(m.AllTimePoints+delta, 0)
	if ladders.IsHandPicked(m.RankLevel) {
		m.RankPoints = 0
		return
	}
	m.RankPoints = max(m.RankPoints+delta, 0)
}

func clampLevel(level int) int {
	switch {
	case level < 1:
		return 1
	case level > LadderSize:
		return LadderSize
	default:
		return level
	}
}

// =============================================================================
// VALIDATION & MIGRATION
// =============================================================================

// Validate checks every record invariant. The service calls it before each save.
func (m Member) Validate(ladders *Ladders) error {
	if m.ID == "" {
		return invalid("id", "member id is required")
	}
	if !m.Unit.Valid() {
		return invalid("unit", "unknown unit %q", m.Unit)
	}
	r, ok := ladders.For(m.Unit).Rank(m.RankLevel)
	if !ok {
		return invalid("rank_level", "level %d outside [1,%d]", m.RankLevel, LadderSize)
	}
	if m.RankName != r.Name {
		return invalid("rank_name", "%q does not match ladder name %q", m.RankName, r.Name)
	}
	if r.HandPicked && m.RankPoints != 0 {
		return invalid("rank_points", "hand-picked rank must hold 0 rank points, has %d", m.RankPoints)
	}
	if m.WeeklyQuota != QuotaFor(ladders, m.RankLevel) {
		return invalid("weekly_quota", "quota %d does not match level %d", m.WeeklyQuota, m.RankLevel)
	}
	if m.QuotaCompleted != IsCompleted(m.WeeklyPoints, m.WeeklyQuota) {
		return invalid("quota_completed", "flag disagrees with %d/%d", m.WeeklyPoints, m.WeeklyQuota)
	}
	if m.WeeklyPoints < 0 || m.AllTimePoints < 0 || m.RankPoints < 0 || m.DailyPointsToday < 0 {
		return invalid("points", "counters must be non-negative")
	}
	return nil
}

// Backfill is the explicit one-time migration for legacy records: it fills
// zero-valued identity fields and re-derives everything derivable. Returns
// whether anything changed.
func Backfill(m *Member, ladders *Ladders, now time.Time) bool {
	before := m.derived()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.RankLevel == 0 {
		m.RankLevel = 1
	}
	m.sync(ladders, now)
	changed := before != m.derived()
	if changed {
		m.UpdatedAt = now
	}
	return changed
}

// derivedState is the comparable subset of a member that sync may touch.
type derivedState struct {
	Unit              Unit
	RankLevel         int
	RankName          string
	RankPoints        int
	WeeklyPoints      int
	AllTimePoints     int
	DailyPointsToday  int
	WeeklyQuota       int
	QuotaCompleted    bool
	PromotionEligible bool
	CreatedAt         time.Time
}

func (m Member) derived() derivedState {
	return derivedState{
		Unit:              m.Unit,
		RankLevel:         m.RankLevel,
		RankName:          m.RankName,
		RankPoints:        m.RankPoints,
		WeeklyPoints:      m.WeeklyPoints,
		AllTimePoints:     m.AllTimePoints,
		DailyPointsToday:  m.DailyPointsToday,
		WeeklyQuota:       m.WeeklyQuota,
		QuotaCompleted:    m.QuotaCompleted,
		PromotionEligible: m.PromotionEligible,
		CreatedAt:         m.CreatedAt,
	}
}
