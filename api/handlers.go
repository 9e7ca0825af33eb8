/*
handlers.go - HTTP API handlers for the rank progression engine

PURPOSE:
  Exposes the progression service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the service.

ENDPOINTS:
  Members:
    GET    /api/members                         List members (?unit=, ?eligible=true)
    GET    /api/members/{id}                    Member record
    DELETE /api/members/{id}                    Delete (?policy=retain|purge&reason=)
    PUT    /api/members/{id}/profile            Sync display name / booster
    GET    /api/members/{id}/events             Audit trail (?category=, ?limit=)

  Points:
    POST   /api/members/{id}/submissions        Submit an activity
    POST   /api/members/{id}/adjustments        Administrative adjustment

  Promotions:
    GET    /api/members/{id}/eligibility        Review eligibility
    POST   /api/members/{id}/promotions/approve Approve the next rank
    POST   /api/members/{id}/promotions/force   Force any level / unit
    POST   /api/members/{id}/lock/bypass        Clear an active lock
    POST   /api/members/{id}/transfer           Move to another unit
    GET    /api/promotions/report               Eligibility report

  Catalogue:
    GET    /api/leaderboard                     ?board=weekly|all_time&unit=&limit=
    GET    /api/ladders                         Ranks per unit
    GET    /api/activities                      Point table

  Admin:
    POST   /api/admin/weekly-reset              Weekly reset
    POST   /api/admin/daily-reset               Daily counter reset
    POST   /api/admin/recompute-quotas          Quota recompute
    POST   /api/admin/lock-sweep                Lock expiry sweep
    POST   /api/admin/migrate                   Backfill derived fields
    GET    /api/admin/runs                      Job journal (?kind=, ?limit=)

  Demo:
    GET    /api/scenarios                       Available demo scenarios
    POST   /api/scenarios/load                  Load one (see scenarios.go)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Member not found
  - 409: Not eligible / already at max rank
  - 500: Persistence failures, invalid stored records

  A command whose member save succeeded but whose audit append failed still
  returns 200 with the result; the failure is reported in the Warning header.
  Bulk jobs with per-record failures return 200 and list the failures.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/rank-engine/progression"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *progression.Service
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *progression.Service) *Handler {
	return &Handler{Service: svc}
}

func actorFrom(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return progression.SystemActor
}

func memberID(r *http.Request) progression.MemberID {
	return progression.MemberID(chi.URLParam(r, "id"))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns members ordered by rank, highest first.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	pred := progression.All
	q := r.URL.Query()
	if s := q.Get("unit"); s != "" {
		unit, err := progression.ParseUnit(s)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		pred = func(m progression.Member) bool { return m.Unit == unit }
	}
	members, err := h.Service.Members(r.Context(), pred)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	onlyEligible := q.Get("eligible") == "true"
	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		if onlyEligible && !m.PromotionEligible {
			continue
		}
		dtos = append(dtos, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns one member record.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Member(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(m))
}

// DeleteMember removes a member record.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	policy := progression.DeletionPolicy(q.Get("policy"))
	del, err := h.Service.DeleteMember(r.Context(), memberID(r), policy, actorFrom(r), q.Get("reason"))
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}
	writeCommitted(w, err, DeletionResponse{
		MemberID:     string(del.Member.ID),
		Policy:       string(del.Policy),
		EventsPurged: del.EventsPurged,
	})
}

// SyncProfile updates platform-owned fields.
func (h *Handler) SyncProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, _, err := h.Service.SyncProfile(r.Context(), memberID(r), progression.ProfileUpdate{
		DisplayName: req.DisplayName,
		Booster:     req.Booster,
	}, actorFrom(r))
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}
	writeCommitted(w, err, toMemberDTO(m))
}

// ListMemberEvents returns a member's audit trail, newest first.
func (h *Handler) ListMemberEvents(w http.ResponseWriter, r *http.Request) {
	id := memberID(r)
	q := r.URL.Query()
	f := progression.EventFilter{SubjectID: &id}
	for _, c := range q["category"] {
		f.Categories = append(f.Categories, progression.EventCategory(c))
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	f.Limit = limit

	events, err := h.Service.Events(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POINT HANDLERS
// =============================================================================

// Submit credits an activity. The member is created on first submission.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Service.Submit(r.Context(), progression.Submission{
		MemberID:       memberID(r),
		DisplayName:    req.DisplayName,
		ActivityType:   progression.ActivityType(req.ActivityType),
		Quantity:       req.Quantity,
		Booster:        req.Booster,
		BonusUnits:     req.BonusUnits,
		ProofReference: req.ProofReference,
		ActorID:        r.Header.Get(ActorHeader),
	})
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	if err != nil {
		w.Header().Set("Warning", warningText(err))
	}
	writeJSON(w, status, SubmissionResponse{
		PointsAwarded:     res.PointsAwarded,
		QuotaCompletedNow: res.QuotaCompletedNow,
		NewlyEligible:     res.NewlyEligible,
		Created:           res.Created,
		NextRank:          toRankDTOPtr(res.NextRank),
		Eligibility:       toEligibilityDTO(res.Eligibility),
		Member:            toMemberDTO(res.Member),
	})
}

// Adjust applies an administrative point adjustment.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decodeBody(w, r, &req) {
		return
	}
	action, err := progression.ParseAdjustAction(req.Action)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.Service.Adjust(r.Context(), progression.Adjustment{
		TargetID: memberID(r),
		Action:   action,
		Amount:   req.Amount,
		Reason:   req.Reason,
		ActorID:  actorFrom(r),
	})
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}
	writeCommitted(w, err, AdjustmentResponse{
		Action:             string(res.Action),
		Delta:              res.Delta,
		Before:             toSnapshotDTO(res.Before),
		After:              toSnapshotDTO(res.After),
		EligibilityChanged: res.EligibilityChanged,
		Eligibility:        toEligibilityDTO(res.Eligibility),
		Member:             toMemberDTO(res.Member),
	})
}

// =============================================================================
// PROMOTION HANDLERS
// =============================================================================

// Review returns the authoritative eligibility of one member.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	e, _, err := h.Service.Review(r.Context(), memberID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityDTO(e))
}

// Approve promotes a member to the next rank.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req PromotionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	res, err := h.Service.Approve(r.Context(), memberID(r), actorFrom(r), req.Reason)
	h.writePromotion(w, res, err)
}

// Force moves a member to any level, optionally in another unit.
func (h *Handler) Force(w http.ResponseWriter, r *http.Request) {
	var req ForceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var unit *progression.Unit
	if req.Unit != nil {
		u, err := progression.ParseUnit(*req.Unit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		unit = &u
	}
	res, err := h.Service.Force(r.Context(), memberID(r), req.TargetLevel, unit, actorFrom(r), req.Reason)
	h.writePromotion(w, res, err)
}

// Transfer moves a member to another unit at the same level.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	unit, err := progression.ParseUnit(req.Unit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.Service.TransferUnit(r.Context(), memberID(r), unit, actorFrom(r), req.Reason)
	h.writePromotion(w, res, err)
}

func (h *Handler) writePromotion(w http.ResponseWriter, res progression.PromotionResult, err error) {
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}
	writeCommitted(w, err, toPromotionResponse(res))
}

// BypassLock clears an active rank lock.
func (h *Handler) BypassLock(w http.ResponseWriter, r *http.Request) {
	var req PromotionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	res, err := h.Service.BypassLock(r.Context(), memberID(r), actorFrom(r), req.Reason)
	if err != nil && !isCommitted(err) {
		writeServiceError(w, err)
		return
	}
	writeCommitted(w, err, LockBypassResponse{
		Cleared:     formatTime(res.Cleared),
		Eligibility: toEligibilityDTO(res.Eligibility),
		Member:      toMemberDTO(res.Member),
	})
}

// Report returns the grouped eligibility report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Report(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// =============================================================================
// CATALOGUE HANDLERS
// =============================================================================

// Leaderboard returns standings for the chosen board.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	board, err := progression.ParseBoard(q.Get("board"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var unit *progression.Unit
	if s := q.Get("unit"); s != "" {
		u, err := progression.ParseUnit(s)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		unit = &u
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	standings, err := h.Service.Leaderboard(r.Context(), board, unit, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]StandingDTO, len(standings))
	for i, s := range standings {
		dtos[i] = StandingDTO{
			Position:    s.Position,
			MemberID:    string(s.Member.ID),
			DisplayName: s.Member.DisplayName,
			Unit:        string(s.Member.Unit),
			RankName:    s.Member.RankName,
			Points:      s.Points,
			TrendPct:    s.Trend,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLadders returns the resolved ladder of every unit.
func (h *Handler) ListLadders(w http.ResponseWriter, r *http.Request) {
	ladders := h.Service.Ladders()
	dtos := make([]LadderDTO, 0, len(progression.Units))
	for _, u := range progression.Units {
		l := ladders.For(u)
		dto := LadderDTO{Unit: string(u), Label: l.Label}
		for _, rank := range l.Ranks() {
			dto.Ranks = append(dto.Ranks, toRankDTO(rank))
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListActivities returns the point table.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities := h.Service.Points().Activities()
	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = ActivityDTO{
			Type:         string(a.Type),
			Name:         a.Name,
			BasePoints:   a.BasePoints,
			BonusPerUnit: a.BonusPerUnit,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// WeeklyReset runs the weekly reset over every member.
func (h *Handler) WeeklyReset(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.WeeklyReset(r.Context(), actorFrom(r))
	writeBatch(w, sum, err)
}

// DailyReset zeroes stale daily counters.
func (h *Handler) DailyReset(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.DailyReset(r.Context(), actorFrom(r))
	writeBatch(w, sum, err)
}

// RecomputeQuotas re-derives quota and completion for every member.
func (h *Handler) RecomputeQuotas(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.RecomputeAll(r.Context(), actorFrom(r))
	writeBatch(w, sum, err)
}

// LockSweep expires elapsed locks and lists the members it released.
func (h *Handler) LockSweep(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.LockExpirySweep(r.Context(), actorFrom(r))
	writeBatch(w, sum, err)
}

// Migrate backfills derived fields on legacy records.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.MigrateAll(r.Context(), actorFrom(r))
	writeBatch(w, sum, err)
}

// ListRuns returns the job journal, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	runs, err := h.Service.Runs(r.Context(), progression.RunKind(q.Get("kind")), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func writeBatch(w http.ResponseWriter, sum progression.BatchSummary, err error) {
	if err != nil && !errors.Is(err, progression.ErrPartialBatch) {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(sum))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		inv *progression.InvalidInputError
		ne  *progression.NotEligibleError
	)
	switch {
	case errors.As(err, &inv):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   inv.Error(),
			Code:    "invalid_input",
			Details: map[string]string{"field": inv.Field, "reason": inv.Reason},
		})
	case progression.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case progression.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &ne):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   ne.Error(),
			Code:    "not_eligible",
			Details: map[string]string{"state": string(ne.State), "reason": ne.Reason},
		})
	case errors.Is(err, progression.ErrAlreadyAtMaxRank):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "max_rank"})
	case errors.Is(err, progression.ErrInvalidRecord):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "invalid_record"})
	case errors.Is(err, progression.ErrPersistence):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "storage failure",
			Code:    "persistence",
			Details: map[string]any{"retryable": progression.IsRetryable(err), "error": err.Error()},
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// isCommitted reports an error raised after the member record was saved.
func isCommitted(err error) bool {
	var pe *progression.PersistenceError
	return errors.As(err, &pe) && pe.Committed
}

func writeCommitted(w http.ResponseWriter, err error, data any) {
	if err != nil {
		w.Header().Set("Warning", warningText(err))
	}
	writeJSON(w, http.StatusOK, data)
}

func warningText(err error) string {
	return fmt.Sprintf("199 - %q", "audit log incomplete: "+err.Error())
}

// decodeBody decodes a required JSON body. Writes a 400 and returns false on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decodeBody(w, r, dst)
}

func intParam(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &progression.InvalidInputError{Field: field, Reason: fmt.Sprintf("must be a non-negative integer, got %q", s)}
	}
	return n, nil
}
