package progression

import (
	"strings"
	"time"
)

// =============================================================================
// ACTIVITY SUBMISSIONS
// =============================================================================

// Submission is the activity input from the command layer.
type Submission struct {
	MemberID       MemberID
	DisplayName    string
	ActivityType   ActivityType
	Quantity       int
	Booster        bool
	BonusUnits     int
	ProofReference string
	ActorID        string
}

// Validate checks identity fields and the point-table ranges.
func (s Submission) Validate(points *PointTable) error {
	if s.MemberID == "" {
		return invalid("member_id", "member id is required")
	}
	return points.Validate(s.ActivityType, s.Quantity, s.BonusUnits)
}

// SubmissionResult is what the caller renders as the confirmation.
type SubmissionResult struct {
	Activity          Activity
	PointsAwarded     int
	QuotaCompletedNow bool // false -> true on this submission
	NewlyEligible     bool
	NextRank          *Rank
	Eligibility       Eligibility
	Created           bool
	Member            Member
}

// ApplySubmission credits one validated submission to m.
// Order: counters, then quota and eligibility via sync.
func ApplySubmission(m *Member, sub Submission, points *PointTable, ladders *Ladders, dayKey string, now time.Time) SubmissionResult {
	m.sync(ladders, now)
	wasCompleted := m.QuotaCompleted
	wasEligible := m.PromotionEligible

	activity, _ := points.Lookup(sub.ActivityType)
	total := points.TotalPoints(sub.ActivityType, sub.Quantity, sub.Booster, sub.BonusUnits)

	if name := strings.TrimSpace(sub.DisplayName); name != "" {
		m.DisplayName = name
	}
	m.Booster = sub.Booster
	m.addPoints(ladders, total)
	if m.DailyPointsDate != dayKey {
		m.DailyPointsToday = 0
		m.DailyPointsDate = dayKey
	}
	m.DailyPointsToday += total
	m.WeeklyEvents += sub.Quantity
	m.TotalEvents += sub.Quantity

	m.sync(ladders, now)
	m.UpdatedAt = now

	e := CheckEligibility(*m, ladders, now)
	return SubmissionResult{
		Activity:          activity,
		PointsAwarded:     total,
		QuotaCompletedNow: !wasCompleted && m.QuotaCompleted,
		NewlyEligible:     !wasEligible && m.PromotionEligible,
		NextRank:          e.Next,
		Eligibility:       e,
		Member:            m.Clone(),
	}
}
