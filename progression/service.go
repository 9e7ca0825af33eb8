/*
service.go - Load / compute / save / log orchestration

PURPOSE:
  The engines in this package are pure functions over one Member value.
  Service wraps them with the store and event log, in a fixed order per
  member:

    load -> clone -> point mutation -> quota -> eligibility -> save -> append

COMPUTE-THEN-SAVE:
  Every command works on a clone. If validation or Save fails, nothing
  durable changed and the caller may retry with the same input. If Save
  succeeds but the event append fails, the returned PersistenceError has
  Committed set so the caller knows not to retry.

SEE ALSO:
  - bulk.go: Weekly reset, daily reset, recompute, sweep, migration
  - leaderboard.go: Read-only ranking views
  - errors.go: PersistenceError, BatchError
*/
package progression

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// Config wires a Service.
type Config struct {
	Members  MemberStore
	Events   EventLog
	Runs     RunStore // optional
	Ladders  *Ladders
	Points   *PointTable
	Location *time.Location // local day boundary, default UTC
	Clock    Clock          // default time.Now
}

// Service is the command surface used by the HTTP layer and the scheduler.
type Service struct {
	members MemberStore
	events  EventLog
	runs    RunStore
	ladders *Ladders
	points  *PointTable
	loc     *time.Location
	now     Clock

	quota *QuotaEngine
	promo *PromotionEngine
}

// NewService validates cfg and returns a ready service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Members == nil || cfg.Events == nil {
		return nil, fmt.Errorf("%w: member store and event log are required", ErrInvalidConfig)
	}
	if cfg.Ladders == nil || cfg.Points == nil {
		return nil, fmt.Errorf("%w: ladders and point table are required", ErrInvalidConfig)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		members: cfg.Members,
		events:  cfg.Events,
		runs:    cfg.Runs,
		ladders: cfg.Ladders,
		points:  cfg.Points,
		loc:     cfg.Location,
		now:     cfg.Clock,
		quota:   &QuotaEngine{Ladders: cfg.Ladders},
		promo:   &PromotionEngine{Ladders: cfg.Ladders},
	}, nil
}

func (s *Service) Ladders() *Ladders { return s.ladders }

func (s *Service) Points() *PointTable { return s.points }

func (s *Service) Location() *time.Location { return s.loc }

// =============================================================================
// PERSISTENCE HELPERS
// =============================================================================

func (s *Service) load(ctx context.Context, id MemberID, op string) (Member, error) {
	if id == "" {
		return Member{}, invalid("member_id", "member id is required")
	}
	m, err := s.members.Find(ctx, id)
	if err != nil {
		return Member{}, &PersistenceError{MemberID: id, Op: op, Err: err}
	}
	if m == nil {
		return Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return m.Clone(), nil
}

// commit validates and saves m, then appends ev for it.
func (s *Service) commit(ctx context.Context, op string, m Member, ev *Event) error {
	if err := m.Validate(s.ladders); err != nil {
		return fmt.Errorf("%w: %s on %s: %v", ErrInvalidRecord, op, m.ID, err)
	}
	if err := s.members.Save(ctx, m); err != nil {
		return &PersistenceError{MemberID: m.ID, Op: op, Err: err}
	}
	if ev == nil {
		return nil
	}
	return s.appendEvent(ctx, op, m.ID, *ev)
}

func (s *Service) appendEvent(ctx context.Context, op string, id MemberID, ev Event) error {
	ev.ID = uuid.NewString()
	ev.SubjectID = id
	if ev.ActorID == "" {
		ev.ActorID = SystemActor
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return &PersistenceError{MemberID: id, Op: op + " (event log)", Committed: true, Err: err}
	}
	return nil
}

// SystemActor is recorded when no actor is supplied.
const SystemActor = "system"

// =============================================================================
// QUERIES
// =============================================================================

// Member returns one member or ErrMemberNotFound.
func (s *Service) Member(ctx context.Context, id MemberID) (Member, error) {
	return s.load(ctx, id, "get member")
}

// Members returns every member ordered by rank level desc, then id.
func (s *Service) Members(ctx context.Context, pred Predicate) ([]Member, error) {
	if pred == nil {
		pred = All
	}
	ms, err := s.members.FindAllMatching(ctx, pred)
	if err != nil {
		return nil, &PersistenceError{Op: "list members", Err: err}
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].RankLevel != ms[j].RankLevel {
			return ms[i].RankLevel > ms[j].RankLevel
		}
		return ms[i].ID < ms[j].ID
	})
	return ms, nil
}

// Events queries the audit trail.
func (s *Service) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	evs, err := s.events.Query(ctx, f)
	if err != nil {
		return nil, &PersistenceError{Op: "query events", Err: err}
	}
	return evs, nil
}

// Review is the read-only eligibility check.
func (s *Service) Review(ctx context.Context, id MemberID) (Eligibility, Member, error) {
	m, err := s.load(ctx, id, "review")
	if err != nil {
		return Eligibility{}, Member{}, err
	}
	return s.promo.Check(m, s.now()), m, nil
}

// Report builds the eligibility report over all non-max-rank members.
func (s *Service) Report(ctx context.Context) (Report, error) {
	ms, err := s.members.FindAllMatching(ctx, NotAtMaxRank)
	if err != nil {
		return Report{}, &PersistenceError{Op: "eligibility report", Err: err}
	}
	return BuildReport(ms, s.ladders, s.now()), nil
}

// =============================================================================
// POINT COMMANDS
// =============================================================================

// Submit credits an activity, creating the member on first submission.
func (s *Service) Submit(ctx context.Context, sub Submission) (SubmissionResult, error) {
	if err := sub.Validate(s.points); err != nil {
		return SubmissionResult{}, err
	}
	now := s.now()

	var m Member
	created := false
	found, err := s.members.Find(ctx, sub.MemberID)
	switch {
	case err != nil:
		return SubmissionResult{}, &PersistenceError{MemberID: sub.MemberID, Op: "submit", Err: err}
	case found == nil:
		m = NewMember(sub.MemberID, sub.DisplayName, s.ladders, now)
		created = true
	default:
		m = found.Clone()
	}

	res := ApplySubmission(&m, sub, s.points, s.ladders, DayKey(now, s.loc), now)
	res.Created = created

	desc := fmt.Sprintf("%s x%d", res.Activity.Name, sub.Quantity)
	if sub.Booster {
		desc += " (booster)"
	}
	if sub.BonusUnits > 0 {
		desc += fmt.Sprintf(" +%d bonus", sub.BonusUnits)
	}
	err = s.commit(ctx, "submit", m, &Event{
		ActorID:        actorOr(sub.ActorID, string(sub.MemberID)),
		Category:       EventSubmission,
		PointDelta:     res.PointsAwarded,
		Description:    desc,
		ProofReference: sub.ProofReference,
		Payload: map[string]any{
			"activity_type": string(sub.ActivityType),
			"quantity":      sub.Quantity,
			"bonus_units":   sub.BonusUnits,
			"booster":       sub.Booster,
		},
	})
	if err != nil && !committed(err) {
		return SubmissionResult{}, err
	}
	return res, err
}

// Adjust applies an administrative point adjustment.
func (s *Service) Adjust(ctx context.Context, adj Adjustment) (AdjustmentResult, error) {
	if err := adj.Validate(); err != nil {
		return AdjustmentResult{}, err
	}
	m, err := s.load(ctx, adj.TargetID, "adjust")
	if err != nil {
		return AdjustmentResult{}, err
	}
	res, err := ApplyAdjustment(&m, adj, s.ladders, s.now())
	if err != nil {
		return AdjustmentResult{}, err
	}

	desc := fmt.Sprintf("%s %d", adj.Action, adj.Amount)
	if adj.Action == AdjustRemoveAll {
		desc = string(adj.Action)
	}
	if r := strings.TrimSpace(adj.Reason); r != "" {
		desc += ": " + r
	}
	err = s.commit(ctx, "adjust", m, &Event{
		ActorID:     adj.ActorID,
		Category:    EventAdminAdjustment,
		PointDelta:  res.Delta,
		Description: desc,
		Payload: map[string]any{
			"action": string(adj.Action),
			"amount": adj.Amount,
			"before": res.Before,
			"after":  res.After,
		},
	})
	if err != nil && !committed(err) {
		return AdjustmentResult{}, err
	}
	return res, err
}

// =============================================================================
// PROMOTION COMMANDS
// =============================================================================

// Approve promotes an Eligible or ready-but-locked member by one level.
func (s *Service) Approve(ctx context.Context, id MemberID, actor, reason string) (PromotionResult, error) {
	m, err := s.load(ctx, id, "approve promotion")
	if err != nil {
		return PromotionResult{}, err
	}
	res, err := s.promo.ApplyPromotion(&m, actor, PromotionApproved, reason, false, s.now())
	if err != nil {
		return PromotionResult{}, err
	}
	return s.commitPromotion(ctx, "approve promotion", m, res, actor)
}

// Force moves a member to any level, optionally into another unit.
func (s *Service) Force(ctx context.Context, id MemberID, targetLevel int, unit *Unit, actor, reason string) (PromotionResult, error) {
	if strings.TrimSpace(reason) == "" {
		return PromotionResult{}, invalid("reason", "forced rank changes require a reason")
	}
	m, err := s.load(ctx, id, "force promotion")
	if err != nil {
		return PromotionResult{}, err
	}
	res, err := s.promo.ForcePromotion(&m, targetLevel, unit, actor, reason, s.now())
	if err != nil {
		return PromotionResult{}, err
	}
	return s.commitPromotion(ctx, "force promotion", m, res, actor)
}

// TransferUnit moves a member into the same level of another unit.
func (s *Service) TransferUnit(ctx context.Context, id MemberID, unit Unit, actor, reason string) (PromotionResult, error) {
	if !unit.Valid() {
		return PromotionResult{}, invalid("unit", "unknown unit %q", unit)
	}
	m, err := s.load(ctx, id, "transfer unit")
	if err != nil {
		return PromotionResult{}, err
	}
	res, err := s.promo.TransferUnit(&m, unit, actor, reason, s.now())
	if err != nil {
		return PromotionResult{}, err
	}
	return s.commitPromotion(ctx, "transfer unit", m, res, actor)
}

func (s *Service) commitPromotion(ctx context.Context, op string, m Member, res PromotionResult, actor string) (PromotionResult, error) {
	desc := fmt.Sprintf("%s: %s -> %s", res.Record.Type, res.OldRank.Name, res.NewRank.Name)
	if res.Record.Reason != "" {
		desc += ": " + res.Record.Reason
	}
	err := s.commit(ctx, op, m, &Event{
		ActorID:     actor,
		Category:    EventPromotion,
		PointDelta:  -res.Record.RankPointsAtPromotion,
		Description: desc,
		Payload: map[string]any{
			"record_id":  res.Record.ID,
			"type":       string(res.Record.Type),
			"from_level": res.Record.FromLevel,
			"to_level":   res.Record.ToLevel,
			"from_unit":  string(res.Record.FromUnit),
			"to_unit":    string(res.Record.ToUnit),
		},
	})
	if err != nil && !committed(err) {
		return PromotionResult{}, err
	}
	return res, err
}

// LockBypass is returned by BypassLock.
type LockBypass struct {
	Cleared     time.Time
	Eligibility Eligibility
	Member      Member
}

// BypassLock clears an active lock. Rank and points are unchanged.
func (s *Service) BypassLock(ctx context.Context, id MemberID, actor, reason string) (LockBypass, error) {
	m, err := s.load(ctx, id, "bypass lock")
	if err != nil {
		return LockBypass{}, err
	}
	now := s.now()
	cleared, err := s.promo.BypassLock(&m, now)
	if err != nil {
		return LockBypass{}, err
	}
	desc := fmt.Sprintf("lock until %s cleared", cleared.UTC().Format(time.RFC3339))
	if r := strings.TrimSpace(reason); r != "" {
		desc += ": " + r
	}
	res := LockBypass{Cleared: cleared, Eligibility: s.promo.Check(m, now), Member: m.Clone()}
	err = s.commit(ctx, "bypass lock", m, &Event{
		ActorID:     actor,
		Category:    EventLockBypass,
		Description: desc,
	})
	if err != nil && !committed(err) {
		return LockBypass{}, err
	}
	return res, err
}

// =============================================================================
// LIFECYCLE COMMANDS
// =============================================================================

// ProfileUpdate carries opportunistically synced platform fields.
type ProfileUpdate struct {
	DisplayName *string
	Booster     *bool
}

// SyncProfile refreshes display name and booster flag. A sync event is
// written only when something changed.
func (s *Service) SyncProfile(ctx context.Context, id MemberID, upd ProfileUpdate, actor string) (Member, bool, error) {
	m, err := s.load(ctx, id, "sync profile")
	if err != nil {
		return Member{}, false, err
	}
	var changes []string
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return Member{}, false, invalid("display_name", "must not be empty")
		}
		if name != m.DisplayName {
			changes = append(changes, fmt.Sprintf("display name %q -> %q", m.DisplayName, name))
			m.DisplayName = name
		}
	}
	if upd.Booster != nil && *upd.Booster != m.Booster {
		changes = append(changes, fmt.Sprintf("booster %t -> %t", m.Booster, *upd.Booster))
		m.Booster = *upd.Booster
	}
	if len(changes) == 0 {
		return m, false, nil
	}
	m.UpdatedAt = s.now()
	err = s.commit(ctx, "sync profile", m, &Event{
		ActorID:     actor,
		Category:    EventSync,
		Description: strings.Join(changes, ", "),
	})
	if err != nil && !committed(err) {
		return Member{}, false, err
	}
	return m, true, err
}

// DeletionPolicy decides what happens to a deleted member's events.
type DeletionPolicy string

const (
	RetainEvents DeletionPolicy = "retain"
	PurgeEvents  DeletionPolicy = "purge"
)

// Deletion is returned by DeleteMember.
type Deletion struct {
	Member       Member
	Policy       DeletionPolicy
	EventsPurged int
}

// DeleteMember removes a member, applies the event policy and writes one
// tombstone entry. The tombstone is written after any purge so it survives.
func (s *Service) DeleteMember(ctx context.Context, id MemberID, policy DeletionPolicy, actor, reason string) (Deletion, error) {
	if policy == "" {
		policy = RetainEvents
	}
	if policy != RetainEvents && policy != PurgeEvents {
		return Deletion{}, invalid("policy", "unknown deletion policy %q", policy)
	}
	if strings.TrimSpace(reason) == "" {
		return Deletion{}, invalid("reason", "deleting a member requires a reason")
	}
	m, err := s.load(ctx, id, "delete member")
	if err != nil {
		return Deletion{}, err
	}
	if err := s.members.Delete(ctx, id); err != nil {
		return Deletion{}, &PersistenceError{MemberID: id, Op: "delete member", Err: err}
	}

	res := Deletion{Member: m, Policy: policy}
	var errs []error
	if policy == PurgeEvents {
		n, err := s.events.DeleteBySubject(ctx, id)
		if err != nil {
			errs = append(errs, &PersistenceError{MemberID: id, Op: "purge events", Committed: true, Err: err})
		}
		res.EventsPurged = n
	}
	err = s.appendEvent(ctx, "delete member", id, Event{
		ActorID:     actor,
		Category:    EventDeletion,
		PointDelta:  -m.AllTimePoints,
		Description: fmt.Sprintf("member deleted (%s events): %s", policy, strings.TrimSpace(reason)),
		Payload: map[string]any{
			"rank_level":      m.RankLevel,
			"unit":            string(m.Unit),
			"all_time_points": m.AllTimePoints,
			"events_purged":   res.EventsPurged,
		},
	})
	if err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

// =============================================================================
// HELPERS
// =============================================================================

// committed reports a PersistenceError raised after the member was saved.
func committed(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Committed
}

func actorOr(actor, fallback string) string {
	if strings.TrimSpace(actor) != "" {
		return actor
	}
	return fallback
}
