/*
promotion.go - Eligibility state machine and rank changes

PURPOSE:
  Decides whether a member may move up a rank, applies approved and forced
  rank changes, clears locks, and builds the organization-wide report of
  promotion candidates.

STATE MACHINE (evaluated in this order):

  next rank?  --none-->  MaxRank (terminal)
      |
  progress = {rankPoints, next.pointsRequired, max(0, required-current)}
      |
  lock active? --yes-->  Locked         (even when remaining == 0)
      |
  next hand-picked? --yes--> HandPickedGate (only administrative action exits)
      |
  remaining == 0 ? Eligible : BelowThreshold

READY BUT LOCKED:
  A Locked member whose progress is already met toward a point-based rank.
  HR may approve these; the approval clears the lock. Locked members facing
  a hand-picked next rank are never "ready": points cannot qualify them.

RANK CHANGE EFFECT (approve, force, transfer):
  1. History record appended with the point snapshot
  2. Level / unit set, rank name and quota re-derived
  3. Rank points reset to 0, eligibility hint false
  4. Lock set from the destination's LockDays (0 clears it), notified reset

SEE ALSO:
  - ladder.go: NextRank, LockDays, HandPicked
  - service.go: Review / Approve / Force / BypassLock / Report
*/
package progression

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ELIGIBILITY
// =============================================================================

// EligibilityState is the computed promotion state of one member.
type EligibilityState string

const (
	StateLocked         EligibilityState = "locked"
	StateBelowThreshold EligibilityState = "below_threshold"
	StateHandPickedGate EligibilityState = "hand_picked_gate"
	StateEligible       EligibilityState = "eligible"
	StateMaxRank        EligibilityState = "max_rank"
)

// Progress tracks rank points toward the next rank.
type Progress struct {
	Current   int
	Required  int
	Remaining int
}

// Met reports whether the threshold is reached.
func (p Progress) Met() bool { return p.Remaining == 0 }

// Percent returns progress as a percentage in [0, 100], two decimals.
func (p Progress) Percent() decimal.Decimal {
	if p.Required <= 0 || p.Current >= p.Required {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(int64(p.Current)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(p.Required))).
		Round(2)
}

// Eligibility is the result of CheckEligibility.
type Eligibility struct {
	State         EligibilityState
	Current       Rank
	Next          *Rank // nil at MaxRank
	Progress      Progress
	LockUntil     *time.Time
	LockRemaining time.Duration
}

// ReadyButLocked reports a locked member who already has the points for a
// point-based next rank.
func (e Eligibility) ReadyButLocked() bool {
	return e.State == StateLocked && e.Next != nil && !e.Next.HandPicked && e.Progress.Met()
}

// Promotable reports whether an approval without force is allowed.
func (e Eligibility) Promotable() bool {
	return e.State == StateEligible || e.ReadyButLocked()
}

// Reason renders the state for display and NotEligibleError.
func (e Eligibility) Reason() string {
	switch e.State {
	case StateMaxRank:
		return fmt.Sprintf("%s is the highest rank", e.Current.Name)
	case StateLocked:
		if e.Progress.Met() {
			return fmt.Sprintf("points met for %s, rank locked for another %s", e.Next.Name, e.LockRemaining.Round(time.Minute))
		}
		return fmt.Sprintf("rank locked for another %s, %d points still needed", e.LockRemaining.Round(time.Minute), e.Progress.Remaining)
	case StateHandPickedGate:
		return fmt.Sprintf("%s is hand-picked and requires an administrative promotion", e.Next.Name)
	case StateBelowThreshold:
		return fmt.Sprintf("%d of %d points toward %s", e.Progress.Current, e.Progress.Required, e.Next.Name)
	default:
		return fmt.Sprintf("eligible for %s", e.Next.Name)
	}
}

// CheckEligibility computes the authoritative promotion state. The cached
// Member.PromotionEligible flag is never consulted.
func CheckEligibility(m Member, ladders *Ladders, now time.Time) Eligibility {
	ladder := ladders.For(m.Unit)
	current, _ := ladder.Rank(clampLevel(m.RankLevel))
	e := Eligibility{Current: current}

	next, ok := ladder.NextRank(current.Level)
	if !ok {
		e.State = StateMaxRank
		return e
	}
	e.Next = &next
	e.Progress = Progress{
		Current:   m.RankPoints,
		Required:  next.PointsRequired,
		Remaining: max(0, next.PointsRequired-m.RankPoints),
	}

	switch {
	case m.IsLocked(now):
		until := *m.RankLockUntil
		e.State = StateLocked
		e.LockUntil = &until
		e.LockRemaining = until.Sub(now)
	case next.HandPicked:
		e.State = StateHandPickedGate
	case e.Progress.Met():
		e.State = StateEligible
	default:
		e.State = StateBelowThreshold
	}
	return e
}

// =============================================================================
// PROMOTION ENGINE
// =============================================================================

// PromotionEngine applies rank changes to single member values.
type PromotionEngine struct {
	Ladders *Ladders
}

// PromotionResult is returned by every rank-changing command.
type PromotionResult struct {
	OldRank     Rank
	NewRank     Rank
	LockApplied *time.Time
	Record      PromotionRecord
	Member      Member
}

// Check is CheckEligibility with the engine's ladders.
func (p *PromotionEngine) Check(m Member, now time.Time) Eligibility {
	return CheckEligibility(m, p.Ladders, now)
}

// ApplyPromotion advances m by one level. Without force the member must be
// Eligible or ready-but-locked; a ready-but-locked approval clears the lock
// as part of the promotion. Rejects only MaxRank when forced.
func (p *PromotionEngine) ApplyPromotion(m *Member, actor string, typ PromotionType, reason string, force bool, now time.Time) (PromotionResult, error) {
	e := p.Check(*m, now)
	if e.Next == nil {
		return PromotionResult{}, fmt.Errorf("%w: member %s holds %s", ErrAlreadyAtMaxRank, m.ID, e.Current.Name)
	}
	if !force && !e.Promotable() {
		return PromotionResult{}, &NotEligibleError{MemberID: m.ID, State: e.State, Reason: e.Reason()}
	}
	if typ == "" {
		typ = PromotionApproved
	}
	return p.changeRank(m, e.Next.Level, m.Unit, actor, typ, reason, now), nil
}

// ForcePromotion moves m to targetLevel with no eligibility checks, and
// optionally into another unit. Moving down is recorded as a demotion, a
// unit change at the same level as a transfer.
func (p *PromotionEngine) ForcePromotion(m *Member, targetLevel int, unitOverride *Unit, actor, reason string, now time.Time) (PromotionResult, error) {
	if targetLevel < 1 || targetLevel > LadderSize {
		return PromotionResult{}, invalid("target_level", "must be between 1 and %d, got %d", LadderSize, targetLevel)
	}
	unit := m.Unit
	if unitOverride != nil {
		if !unitOverride.Valid() {
			return PromotionResult{}, invalid("unit", "unknown unit %q", *unitOverride)
		}
		unit = *unitOverride
	}
	if targetLevel == m.RankLevel && unit == m.Unit {
		return PromotionResult{}, invalid("target_level", "member already holds level %d in %s", targetLevel, unit)
	}

	typ := PromotionForced
	switch {
	case targetLevel < m.RankLevel:
		typ = PromotionDemotion
	case targetLevel == m.RankLevel:
		typ = PromotionTransfer
	}
	return p.changeRank(m, targetLevel, unit, actor, typ, reason, now), nil
}

// TransferUnit moves m to the same level of another unit.
func (p *PromotionEngine) TransferUnit(m *Member, unit Unit, actor, reason string, now time.Time) (PromotionResult, error) {
	if unit == m.Unit {
		return PromotionResult{}, invalid("unit", "member is already in %s", unit)
	}
	return p.ForcePromotion(m, m.RankLevel, &unit, actor, reason, now)
}

// BypassLock clears an active rank lock without touching rank or points.
// Returns the lock that was cleared.
func (p *PromotionEngine) BypassLock(m *Member, now time.Time) (time.Time, error) {
	if !m.IsLocked(now) {
		return time.Time{}, invalid("rank_lock", "member %s has no active rank lock", m.ID)
	}
	cleared := *m.RankLockUntil
	m.RankLockUntil = nil
	m.RankLockNotified = false
	m.sync(p.Ladders, now)
	m.UpdatedAt = now
	return cleared, nil
}

// ExpireLock marks a lapsed lock as notified so the expiry is announced once.
func (p *PromotionEngine) ExpireLock(m *Member, now time.Time) bool {
	if m.RankLockUntil == nil || m.RankLockNotified || m.IsLocked(now) {
		return false
	}
	m.RankLockNotified = true
	m.sync(p.Ladders, now)
	m.UpdatedAt = now
	return true
}

func (p *PromotionEngine) changeRank(m *Member, toLevel int, toUnit Unit, actor string, typ PromotionType, reason string, now time.Time) PromotionResult {
	from, _ := p.Ladders.For(m.Unit).Rank(m.RankLevel)
	to, _ := p.Ladders.For(toUnit).Rank(toLevel)

	var lock *time.Time
	if to.LockDays > 0 {
		t := now.Add(time.Duration(to.LockDays) * 24 * time.Hour)
		lock = &t
	}

	rec := PromotionRecord{
		ID:                       uuid.NewString(),
		FromLevel:                from.Level,
		FromRank:                 from.Name,
		FromUnit:                 from.Unit,
		ToLevel:                  to.Level,
		ToRank:                   to.Name,
		ToUnit:                   to.Unit,
		At:                       now,
		ActorID:                  actor,
		Type:                     typ,
		Reason:                   reason,
		RankPointsAtPromotion:    m.RankPoints,
		AllTimePointsAtPromotion: m.AllTimePoints,
	}
	if lock != nil {
		t := *lock
		rec.LockApplied = &t
	}

	m.RankLevel = to.Level
	m.Unit = to.Unit
	m.RankPoints = 0
	m.RankLockUntil = lock
	m.RankLockNotified = false
	m.PromotionHistory = append(m.PromotionHistory, rec)
	m.sync(p.Ladders, now)
	m.PromotionEligible = false
	m.UpdatedAt = now

	return PromotionResult{OldRank: from, NewRank: to, LockApplied: lock, Record: rec, Member: m.Clone()}
}

// =============================================================================
// ELIGIBILITY REPORT
// =============================================================================

// ReportEntry is one candidate in the report.
type ReportEntry struct {
	Member      Member
	Eligibility Eligibility
}

// ReportGroup collects candidates heading to the same rank.
type ReportGroup struct {
	Destination Rank
	Entries     []ReportEntry
}

// Report lists Eligible and ready-but-locked members.
type Report struct {
	GeneratedAt time.Time
	Scanned     int
	Eligible    int
	Locked      int
	Groups      []ReportGroup
}

// BuildReport groups candidates by destination rank. Groups are ordered by
// destination level then unit; entries by current level ascending then
// all-time points descending.
func BuildReport(members []Member, ladders *Ladders, now time.Time) Report {
	rep := Report{GeneratedAt: now}
	groups := make(map[string]*ReportGroup)

	for _, m := range members {
		rep.Scanned++
		e := CheckEligibility(m, ladders, now)
		if e.Next == nil || !e.Promotable() {
			continue
		}
		if e.State == StateEligible {
			rep.Eligible++
		} else {
			rep.Locked++
		}
		g, ok := groups[e.Next.Key]
		if !ok {
			g = &ReportGroup{Destination: *e.Next}
			groups[e.Next.Key] = g
		}
		g.Entries = append(g.Entries, ReportEntry{Member: m, Eligibility: e})
	}

	for _, g := range groups {
		sort.SliceStable(g.Entries, func(i, j int) bool {
			a, b := g.Entries[i].Member, g.Entries[j].Member
			if a.RankLevel != b.RankLevel {
				return a.RankLevel < b.RankLevel
			}
			if a.AllTimePoints != b.AllTimePoints {
				return a.AllTimePoints > b.AllTimePoints
			}
			return a.ID < b.ID
		})
		rep.Groups = append(rep.Groups, *g)
	}
	sort.Slice(rep.Groups, func(i, j int) bool {
		a, b := rep.Groups[i].Destination, rep.Groups[j].Destination
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return unitOrder(a.Unit) < unitOrder(b.Unit)
	})
	return rep
}

func unitOrder(u Unit) int {
	for i, x := range Units {
		if x == u {
			return i
		}
	}
	return len(Units)
}
