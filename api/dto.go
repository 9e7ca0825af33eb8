/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the progression package, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rank-engine/progression"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitRequest is an activity submission from the chat layer.
type SubmitRequest struct {
	DisplayName    string `json:"display_name,omitempty"`
	ActivityType   string `json:"activity_type"`
	Quantity       int    `json:"quantity"`
	Booster        bool   `json:"booster,omitempty"`
	BonusUnits     int    `json:"bonus_units,omitempty"`
	ProofReference string `json:"proof_reference,omitempty"`
}

// AdjustRequest is an administrative point adjustment.
type AdjustRequest struct {
	Action string `json:"action"` // add, remove, set, remove_all
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// PromotionRequest carries the reason for approve / bypass.
type PromotionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ForceRequest moves a member to any level.
type ForceRequest struct {
	TargetLevel int     `json:"target_level"`
	Unit        *string `json:"unit,omitempty"`
	Reason      string  `json:"reason"`
}

// TransferRequest moves a member to another unit.
type TransferRequest struct {
	Unit   string `json:"unit"`
	Reason string `json:"reason,omitempty"`
}

// ProfileRequest syncs platform-owned fields.
type ProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Booster     *bool   `json:"booster,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID                string                `json:"id"`
	DisplayName       string                `json:"display_name"`
	Unit              string                `json:"unit"`
	RankLevel         int                   `json:"rank_level"`
	RankName          string                `json:"rank_name"`
	RankPoints        int                   `json:"rank_points"`
	RankLockUntil     *string               `json:"rank_lock_until,omitempty"`
	PromotionEligible bool                  `json:"promotion_eligible"`
	WeeklyPoints      int                   `json:"weekly_points"`
	AllTimePoints     int                   `json:"all_time_points"`
	WeeklyQuota       int                   `json:"weekly_quota"`
	QuotaCompleted    bool                  `json:"quota_completed"`
	DailyPointsToday  int                   `json:"daily_points_today"`
	QuotaStreak       int                   `json:"quota_streak"`
	WeeklyEvents      int                   `json:"weekly_events"`
	TotalEvents       int                   `json:"total_events"`
	LastWeekPoints    int                   `json:"last_week_points"`
	Booster           bool                  `json:"booster"`
	PromotionHistory  []PromotionRecordDTO  `json:"promotion_history,omitempty"`
	CreatedAt         string                `json:"created_at"`
	UpdatedAt         string                `json:"updated_at"`
}

// PromotionRecordDTO is one rank history entry.
type PromotionRecordDTO struct {
	ID                       string  `json:"id"`
	Type                     string  `json:"type"`
	FromRank                 string  `json:"from_rank"`
	FromLevel                int     `json:"from_level"`
	FromUnit                 string  `json:"from_unit"`
	ToRank                   string  `json:"to_rank"`
	ToLevel                  int     `json:"to_level"`
	ToUnit                   string  `json:"to_unit"`
	At                       string  `json:"at"`
	ActorID                  string  `json:"actor_id"`
	Reason                   string  `json:"reason,omitempty"`
	RankPointsAtPromotion    int     `json:"rank_points_at_promotion"`
	AllTimePointsAtPromotion int     `json:"all_time_points_at_promotion"`
	LockApplied              *string `json:"lock_applied,omitempty"`
}

// RankDTO is one ladder entry.
type RankDTO struct {
	Key            string `json:"key"`
	Unit           string `json:"unit"`
	Level          int    `json:"level"`
	Name           string `json:"name"`
	Emoji          string `json:"emoji,omitempty"`
	PointsRequired int    `json:"points_required"`
	LockDays       int    `json:"lock_days"`
	Quota          int    `json:"quota"`
	HandPicked     bool   `json:"hand_picked"`
	Tier           string `json:"tier"`
}

// LadderDTO is a unit's full ladder.
type LadderDTO struct {
	Unit  string    `json:"unit"`
	Label string    `json:"label"`
	Ranks []RankDTO `json:"ranks"`
}

// ActivityDTO is one point-table row.
type ActivityDTO struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	BasePoints   int    `json:"base_points"`
	BonusPerUnit bool   `json:"bonus_per_unit"`
}

// EligibilityDTO is the review result.
type EligibilityDTO struct {
	State           string          `json:"state"`
	Reason          string          `json:"reason"`
	ReadyButLocked  bool            `json:"ready_but_locked"`
	CurrentRank     RankDTO         `json:"current_rank"`
	NextRank        *RankDTO        `json:"next_rank,omitempty"`
	PointsCurrent   int             `json:"points_current"`
	PointsRequired  int             `json:"points_required"`
	PointsRemaining int             `json:"points_remaining"`
	ProgressPct     decimal.Decimal `json:"progress_pct"`
	LockUntil       *string         `json:"lock_until,omitempty"`
	LockRemaining   string          `json:"lock_remaining,omitempty"`
}

// SnapshotDTO is the counter view in adjustment results.
type SnapshotDTO struct {
	WeeklyPoints   int  `json:"weekly_points"`
	AllTimePoints  int  `json:"all_time_points"`
	RankPoints     int  `json:"rank_points"`
	QuotaCompleted bool `json:"quota_completed"`
	Eligible       bool `json:"eligible"`
}

// SubmissionResponse confirms a submission.
type SubmissionResponse struct {
	PointsAwarded     int            `json:"points_awarded"`
	QuotaCompletedNow bool           `json:"quota_completed_now"`
	NewlyEligible     bool           `json:"newly_eligible"`
	Created           bool           `json:"created"`
	NextRank          *RankDTO       `json:"next_rank,omitempty"`
	Eligibility       EligibilityDTO `json:"eligibility"`
	Member            MemberDTO      `json:"member"`
}

// AdjustmentResponse reports before/after counters.
type AdjustmentResponse struct {
	Action             string         `json:"action"`
	Delta              int            `json:"delta"`
	Before             SnapshotDTO    `json:"before"`
	After              SnapshotDTO    `json:"after"`
	EligibilityChanged bool           `json:"eligibility_changed"`
	Eligibility        EligibilityDTO `json:"eligibility"`
	Member             MemberDTO      `json:"member"`
}

// PromotionResponse confirms a rank change.
type PromotionResponse struct {
	OldRank     RankDTO            `json:"old_rank"`
	NewRank     RankDTO            `json:"new_rank"`
	LockApplied *string            `json:"lock_applied,omitempty"`
	Record      PromotionRecordDTO `json:"record"`
	Member      MemberDTO          `json:"member"`
}

// LockBypassResponse confirms a cleared lock.
type LockBypassResponse struct {
	Cleared     string         `json:"cleared"`
	Eligibility EligibilityDTO `json:"eligibility"`
	Member      MemberDTO      `json:"member"`
}

// ReportDTO is the eligibility report.
type ReportDTO struct {
	GeneratedAt string           `json:"generated_at"`
	Scanned     int              `json:"scanned"`
	Eligible    int              `json:"eligible"`
	Locked      int              `json:"locked"`
	Groups      []ReportGroupDTO `json:"groups"`
}

// ReportGroupDTO groups candidates by destination rank.
type ReportGroupDTO struct {
	Destination RankDTO          `json:"destination"`
	Entries     []ReportEntryDTO `json:"entries"`
}

// ReportEntryDTO is one candidate.
type ReportEntryDTO struct {
	MemberID      string  `json:"member_id"`
	DisplayName   string  `json:"display_name"`
	RankLevel     int     `json:"rank_level"`
	RankName      string  `json:"rank_name"`
	AllTimePoints int     `json:"all_time_points"`
	State         string  `json:"state"`
	LockUntil     *string `json:"lock_until,omitempty"`
}

// StandingDTO is one leaderboard row.
type StandingDTO struct {
	Position    int              `json:"position"`
	MemberID    string           `json:"member_id"`
	DisplayName string           `json:"display_name"`
	Unit        string           `json:"unit"`
	RankName    string           `json:"rank_name"`
	Points      int              `json:"points"`
	TrendPct    *decimal.Decimal `json:"trend_pct,omitempty"`
}

// EventDTO is one audit entry.
type EventDTO struct {
	ID             string         `json:"id"`
	ActorID        string         `json:"actor_id"`
	SubjectID      string         `json:"subject_id"`
	Category       string         `json:"category"`
	PointDelta     int            `json:"point_delta"`
	Description    string         `json:"description,omitempty"`
	ProofReference string         `json:"proof_reference,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// BatchResponse summarizes a bulk job.
type BatchResponse struct {
	RunID           string       `json:"run_id"`
	Kind            string       `json:"kind"`
	Scanned         int          `json:"scanned"`
	MembersUpdated  int          `json:"members_updated"`
	CompletionFlips int          `json:"completion_flips"`
	Failures        []FailureDTO `json:"failures,omitempty"`
	Members         []MemberDTO  `json:"members,omitempty"`
}

// FailureDTO is one failed record in a bulk job.
type FailureDTO struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

// RunDTO is one journal entry.
type RunDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	ActorID     string  `json:"actor_id"`
	Scanned     int     `json:"scanned"`
	Updated     int     `json:"updated"`
	Failed      int     `json:"failed"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// DeletionResponse confirms a deletion.
type DeletionResponse struct {
	MemberID     string `json:"member_id"`
	Policy       string `json:"policy"`
	EventsPurged int    `json:"events_purged"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toMemberDTO(m progression.Member) MemberDTO {
	dto := MemberDTO{
		ID:                string(m.ID),
		DisplayName:       m.DisplayName,
		Unit:              string(m.Unit),
		RankLevel:         m.RankLevel,
		RankName:          m.RankName,
		RankPoints:        m.RankPoints,
		RankLockUntil:     formatTimePtr(m.RankLockUntil),
		PromotionEligible: m.PromotionEligible,
		WeeklyPoints:      m.WeeklyPoints,
		AllTimePoints:     m.AllTimePoints,
		WeeklyQuota:       m.WeeklyQuota,
		QuotaCompleted:    m.QuotaCompleted,
		DailyPointsToday:  m.DailyPointsToday,
		QuotaStreak:       m.QuotaStreak,
		WeeklyEvents:      m.WeeklyEvents,
		TotalEvents:       m.TotalEvents,
		LastWeekPoints:    m.LastWeekPoints,
		Booster:           m.Booster,
		CreatedAt:         formatTime(m.CreatedAt),
		UpdatedAt:         formatTime(m.UpdatedAt),
	}
	for _, r := range m.PromotionHistory {
		dto.PromotionHistory = append(dto.PromotionHistory, toPromotionRecordDTO(r))
	}
	return dto
}

func toPromotionRecordDTO(r progression.PromotionRecord) PromotionRecordDTO {
	return PromotionRecordDTO{
		ID:                       r.ID,
		Type:                     string(r.Type),
		FromRank:                 r.FromRank,
		FromLevel:                r.FromLevel,
		FromUnit:                 string(r.FromUnit),
		ToRank:                   r.ToRank,
		ToLevel:                  r.ToLevel,
		ToUnit:                   string(r.ToUnit),
		At:                       formatTime(r.At),
		ActorID:                  r.ActorID,
		Reason:                   r.Reason,
		RankPointsAtPromotion:    r.RankPointsAtPromotion,
		AllTimePointsAtPromotion: r.AllTimePointsAtPromotion,
		LockApplied:              formatTimePtr(r.LockApplied),
	}
}

func toRankDTO(r progression.Rank) RankDTO {
	return RankDTO{
		Key:            r.Key,
		Unit:           string(r.Unit),
		Level:          r.Level,
		Name:           r.Name,
		Emoji:          r.Emoji,
		PointsRequired: r.PointsRequired,
		LockDays:       r.LockDays,
		Quota:          r.Quota,
		HandPicked:     r.HandPicked,
		Tier:           string(r.Tier),
	}
}

func toRankDTOPtr(r *progression.Rank) *RankDTO {
	if r == nil {
		return nil
	}
	dto := toRankDTO(*r)
	return &dto
}

func toEligibilityDTO(e progression.Eligibility) EligibilityDTO {
	dto := EligibilityDTO{
		State:           string(e.State),
		Reason:          e.Reason(),
		ReadyButLocked:  e.ReadyButLocked(),
		CurrentRank:     toRankDTO(e.Current),
		NextRank:        toRankDTOPtr(e.Next),
		PointsCurrent:   e.Progress.Current,
		PointsRequired:  e.Progress.Required,
		PointsRemaining: e.Progress.Remaining,
		ProgressPct:     e.Progress.Percent(),
		LockUntil:       formatTimePtr(e.LockUntil),
	}
	if e.LockRemaining > 0 {
		dto.LockRemaining = e.LockRemaining.Round(time.Second).String()
	}
	return dto
}

func toSnapshotDTO(s progression.PointSnapshot) SnapshotDTO {
	return SnapshotDTO{
		WeeklyPoints:   s.WeeklyPoints,
		AllTimePoints:  s.AllTimePoints,
		RankPoints:     s.RankPoints,
		QuotaCompleted: s.QuotaCompleted,
		Eligible:       s.Eligible,
	}
}

func toPromotionResponse(res progression.PromotionResult) PromotionResponse {
	return PromotionResponse{
		OldRank:     toRankDTO(res.OldRank),
		NewRank:     toRankDTO(res.NewRank),
		LockApplied: formatTimePtr(res.LockApplied),
		Record:      toPromotionRecordDTO(res.Record),
		Member:      toMemberDTO(res.Member),
	}
}

func toReportDTO(rep progression.Report) ReportDTO {
	dto := ReportDTO{
		GeneratedAt: formatTime(rep.GeneratedAt),
		Scanned:     rep.Scanned,
		Eligible:    rep.Eligible,
		Locked:      rep.Locked,
		Groups:      []ReportGroupDTO{},
	}
	for _, g := range rep.Groups {
		gd := ReportGroupDTO{Destination: toRankDTO(g.Destination)}
		for _, e := range g.Entries {
			gd.Entries = append(gd.Entries, ReportEntryDTO{
				MemberID:      string(e.Member.ID),
				DisplayName:   e.Member.DisplayName,
				RankLevel:     e.Member.RankLevel,
				RankName:      e.Member.RankName,
				AllTimePoints: e.Member.AllTimePoints,
				State:         string(e.Eligibility.State),
				LockUntil:     formatTimePtr(e.Eligibility.LockUntil),
			})
		}
		dto.Groups = append(dto.Groups, gd)
	}
	return dto
}

func toEventDTO(ev progression.Event) EventDTO {
	return EventDTO{
		ID:             ev.ID,
		ActorID:        ev.ActorID,
		SubjectID:      string(ev.SubjectID),
		Category:       string(ev.Category),
		PointDelta:     ev.PointDelta,
		Description:    ev.Description,
		ProofReference: ev.ProofReference,
		Payload:        ev.Payload,
		CreatedAt:      formatTime(ev.CreatedAt),
	}
}

func toBatchResponse(sum progression.BatchSummary) BatchResponse {
	resp := BatchResponse{
		RunID:           sum.RunID,
		Kind:            string(sum.Kind),
		Scanned:         sum.Scanned,
		MembersUpdated:  sum.Updated,
		CompletionFlips: sum.CompletionFlips,
	}
	for _, f := range sum.Failures {
		resp.Failures = append(resp.Failures, FailureDTO{MemberID: string(f.MemberID), Error: f.Err.Error()})
	}
	for _, m := range sum.Members {
		resp.Members = append(resp.Members, toMemberDTO(m))
	}
	return resp
}

func toRunDTO(r progression.Run) RunDTO {
	return RunDTO{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Status:      string(r.Status),
		ActorID:     r.ActorID,
		Scanned:     r.Scanned,
		Updated:     r.Updated,
		Failed:      r.Failed,
		Error:       r.Error,
		StartedAt:   formatTime(r.StartedAt),
		CompletedAt: formatTimePtr(r.CompletedAt),
	}
}
