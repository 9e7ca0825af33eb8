/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with members in
	recognizable progression states, so the staff dashboard and the chat
	layer can be exercised without real activity. Every scenario drives the
	normal service commands; nothing is written to the store directly.

AVAILABLE SCENARIOS:

	new-recruit:      A recruit with a few patrols, below the first threshold
	promotion-ready:  A recruit at exactly the level-2 threshold
	locked:           A fresh Operator whose points already clear the next rank
	hand-picked:      A Lieutenant waiting on a hand-picked appointment
	unit-roster:      SWAT and CMU members for leaderboard demos

HOW SCENARIOS WORK:
 1. Purge any earlier copy of the scenario's demo members
 2. Submit activities as the member
 3. Optionally approve, force or adjust as the demo actor

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "promotion-ready"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and member ids
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Demo members use the "demo-" id prefix. Only their records are reset.

SEE ALSO:
  - handlers.go: Command handlers the loaders mirror
  - ranks/ranks.go: Built-in activity types used below
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/rank-engine/progression"
	"github.com/warp/rank-engine/ranks"
)

// DemoActor is recorded on every staff command a scenario issues.
const DemoActor = "demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "new-recruit",
		Name:        "New Recruit",
		Description: "Recruit with three patrols, quota not yet met",
		Members:     []string{"demo-recruit"},
	},
	{
		ID:          "promotion-ready",
		Name:        "Promotion Ready",
		Description: "Recruit at exactly 65 rank points, eligible for Operator",
		Members:     []string{"demo-ready"},
	},
	{
		ID:          "locked",
		Name:        "Ready But Locked",
		Description: "Operator promoted today with enough points for the next rank",
		Members:     []string{"demo-locked"},
	},
	{
		ID:          "hand-picked",
		Name:        "Hand-Picked Gate",
		Description: "Lieutenant with a large point total; the next rank is appointed",
		Members:     []string{"demo-lieutenant"},
	},
	{
		ID:          "unit-roster",
		Name:        "Unit Roster",
		Description: "Mixed SWAT and CMU members for leaderboard views",
		Members:     []string{"demo-swat-1", "demo-swat-2", "demo-cmu-1", "demo-cmu-2"},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	def, ok := scenarioByID(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.resetDemoMembers(ctx, def.Members); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset demo members", err)
		return
	}

	var err error
	switch def.ID {
	case "new-recruit":
		err = h.loadNewRecruitScenario(ctx)
	case "promotion-ready":
		err = h.loadPromotionReadyScenario(ctx)
	case "locked":
		err = h.loadLockedScenario(ctx)
	case "hand-picked":
		err = h.loadHandPickedScenario(ctx)
	case "unit-roster":
		err = h.loadUnitRosterScenario(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": def.ID, "members": def.Members})
}

func (h *Handler) resetDemoMembers(ctx context.Context, ids []string) error {
	for _, id := range ids {
		_, err := h.Service.DeleteMember(ctx, progression.MemberID(id), progression.PurgeEvents, DemoActor, "demo scenario reset")
		if err != nil && !progression.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadNewRecruitScenario(ctx context.Context) error {
	return h.demoSubmit(ctx, "demo-recruit", "Rookie Rivera", ranks.ActivityPatrol, 1, 3)
}

func (h *Handler) loadPromotionReadyScenario(ctx context.Context) error {
	// 13 raids is exactly the level-2 threshold.
	return h.demoSubmit(ctx, "demo-ready", "Casey Ortega", ranks.ActivityRaid, 13, 1)
}

func (h *Handler) loadLockedScenario(ctx context.Context) error {
	id := progression.MemberID("demo-locked")
	if err := h.demoSubmit(ctx, string(id), "Jordan Pike", ranks.ActivityRaid, 13, 1); err != nil {
		return err
	}
	if _, err := h.Service.Approve(ctx, id, DemoActor, "demo promotion"); err != nil {
		return err
	}
	// Operator -> Senior Operator also needs 65.
	return h.demoSubmit(ctx, string(id), "Jordan Pike", ranks.ActivityRaid, 14, 1)
}

func (h *Handler) loadHandPickedScenario(ctx context.Context) error {
	id := progression.MemberID("demo-lieutenant")
	if err := h.demoSubmit(ctx, string(id), "Morgan Hale", ranks.ActivityEventHosting, 4, 1); err != nil {
		return err
	}
	if _, err := h.Service.Force(ctx, id, 8, nil, DemoActor, "demo: seeded as Lieutenant"); err != nil {
		return err
	}
	// The forced rank carries a lock, which would mask the gate.
	if _, err := h.Service.BypassLock(ctx, id, DemoActor, "demo"); err != nil {
		return err
	}
	_, err := h.Service.Adjust(ctx, progression.Adjustment{
		TargetID: id,
		Action:   progression.AdjustAdd,
		Amount:   500,
		Reason:   "demo: long service credit",
		ActorID:  DemoActor,
	})
	return err
}

func (h *Handler) loadUnitRosterScenario(ctx context.Context) error {
	roster := []struct {
		id, name string
		unit     progression.Unit
		activity progression.ActivityType
		qty      int
	}{
		{"demo-swat-1", "Avery Stone", progression.UnitSWAT, ranks.ActivityRaid, 6},
		{"demo-swat-2", "Riley Brooks", progression.UnitSWAT, ranks.ActivityPatrol, 4},
		{"demo-cmu-1", "Quinn Marsh", progression.UnitCMU, ranks.ActivityArrest, 9},
		{"demo-cmu-2", "Sam Ellis", progression.UnitCMU, ranks.ActivityTraining, 6},
	}
	for _, m := range roster {
		if err := h.demoSubmit(ctx, m.id, m.name, m.activity, m.qty, 1); err != nil {
			return err
		}
		if m.unit == progression.DefaultUnit {
			continue
		}
		if _, err := h.Service.TransferUnit(ctx, progression.MemberID(m.id), m.unit, DemoActor, "demo roster"); err != nil {
			return err
		}
	}
	return nil
}

// demoSubmit files the same submission repeatedly.
func (h *Handler) demoSubmit(ctx context.Context, id, name string, activity progression.ActivityType, qty, times int) error {
	for range times {
		_, err := h.Service.Submit(ctx, progression.Submission{
			MemberID:       progression.MemberID(id),
			DisplayName:    name,
			ActivityType:   activity,
			Quantity:       qty,
			ProofReference: "demo",
		})
		if err != nil {
			return fmt.Errorf("submit %s for %s: %w", activity, id, err)
		}
	}
	return nil
}

func scenarioByID(id string) (ScenarioDTO, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return ScenarioDTO{}, false
}
