package progression

import (
	"strings"
	"time"
)

// =============================================================================
// ADMINISTRATIVE ADJUSTMENTS
// =============================================================================

// AdjustAction is one of the four administrative point operations.
type AdjustAction string

const (
	AdjustAdd       AdjustAction = "add"
	AdjustRemove    AdjustAction = "remove"
	AdjustSet       AdjustAction = "set"
	AdjustRemoveAll AdjustAction = "remove_all"
)

// ParseAdjustAction accepts "remove-all" as well as "remove_all".
func ParseAdjustAction(s string) (AdjustAction, error) {
	a := AdjustAction(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch a {
	case AdjustAdd, AdjustRemove, AdjustSet, AdjustRemoveAll:
		return a, nil
	}
	return "", invalid("action", "unknown action %q", s)
}

// Adjustment is the administrative point-adjustment input.
type Adjustment struct {
	TargetID MemberID
	Action   AdjustAction
	Amount   int
	Reason   string
	ActorID  string
}

// Validate rejects malformed adjustments before any member is loaded.
// Confirmation phrases for remove_all are the command layer's concern;
// a non-empty reason is required here.
func (a Adjustment) Validate() error {
	if a.TargetID == "" {
		return invalid("member_id", "target member is required")
	}
	switch a.Action {
	case AdjustAdd, AdjustRemove:
		if a.Amount <= 0 {
			return invalid("amount", "must be positive, got %d", a.Amount)
		}
	case AdjustSet:
		if a.Amount < 0 {
			return invalid("amount", "must not be negative, got %d", a.Amount)
		}
	case AdjustRemoveAll:
		if strings.TrimSpace(a.Reason) == "" {
			return invalid("reason", "remove_all requires a reason")
		}
	default:
		return invalid("action", "unknown action %q", a.Action)
	}
	return nil
}

// AdjustmentResult reports the counters before and after the change.
type AdjustmentResult struct {
	Action             AdjustAction
	Delta              int // signed delta applied to weekly points
	Before             PointSnapshot
	After              PointSnapshot
	EligibilityChanged bool
	Eligibility        Eligibility
	Member             Member
}

// ApplyAdjustment mutates m in place. Rank points move by the same signed
// delta as the leaderboard counters except for hand-picked members.
//
// "set" assigns weekly points and shifts all-time and rank points by
// (amount - old weekly points), matching how the bot has always behaved.
func ApplyAdjustment(m *Member, adj Adjustment, ladders *Ladders, now time.Time) (AdjustmentResult, error) {
	if err := adj.Validate(); err != nil {
		return AdjustmentResult{}, err
	}

	m.sync(ladders, now)
	before := m.Snapshot()

	var delta int
	switch adj.Action {
	case AdjustAdd:
		delta = adj.Amount
		m.addPoints(ladders, delta)
	case AdjustRemove:
		delta = -adj.Amount
		m.addPoints(ladders, delta)
	case AdjustSet:
		delta = adj.Amount - m.WeeklyPoints
		m.addPoints(ladders, delta)
	case AdjustRemoveAll:
		delta = -m.WeeklyPoints
		m.WeeklyPoints = 0
		m.AllTimePoints = 0
		m.RankPoints = 0
	}

	m.sync(ladders, now)
	m.UpdatedAt = now
	after := m.Snapshot()

	return AdjustmentResult{
		Action:             adj.Action,
		Delta:              delta,
		Before:             before,
		After:              after,
		EligibilityChanged: before.Eligible != after.Eligible,
		Eligibility:        CheckEligibility(*m, ladders, now),
		Member:             m.Clone(),
	}, nil
}
