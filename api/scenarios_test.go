/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Demo members are created through the service
	- Each member lands in the advertised eligibility state
	- Reloading a scenario replaces, rather than adds to, its members

These tests double as integration tests of the command handlers.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) loadScenario(id string) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": id})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *testServer) eligibility(id string) EligibilityDTO {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/members/"+id+"/eligibility", nil)
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[EligibilityDTO](s.t, rec)
}

func TestScenario_States(t *testing.T) {
	tests := []struct {
		scenario string
		member   string
		state    string
		locked   bool
	}{
		{"new-recruit", "demo-recruit", "below_threshold", false},
		{"promotion-ready", "demo-ready", "eligible", false},
		{"locked", "demo-locked", "locked", true},
		{"hand-picked", "demo-lieutenant", "hand_picked_gate", false},
	}
	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			// GIVEN / WHEN: the scenario is loaded
			s := newTestServer(t)
			s.loadScenario(tt.scenario)

			// THEN: the member is in the advertised state
			e := s.eligibility(tt.member)
			assert.Equal(t, tt.state, e.State)
			assert.Equal(t, tt.locked, e.ReadyButLocked)
		})
	}
}

func TestScenario_NewRecruitCounters(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("new-recruit")

	rec := s.do(http.MethodGet, "/api/members/demo-recruit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[MemberDTO](t, rec)
	assert.Equal(t, 9, m.WeeklyPoints)
	assert.Equal(t, 3, m.TotalEvents)
	assert.False(t, m.QuotaCompleted)
}

func TestScenario_ReloadReplacesMembers(t *testing.T) {
	// GIVEN: a scenario loaded twice
	s := newTestServer(t)
	s.loadScenario("promotion-ready")
	s.loadScenario("promotion-ready")

	// THEN: points were not doubled
	rec := s.do(http.MethodGet, "/api/members/demo-ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[MemberDTO](t, rec)
	assert.Equal(t, 65, m.AllTimePoints)
	assert.Equal(t, 65, m.RankPoints)
}

func TestScenario_UnitRoster(t *testing.T) {
	s := newTestServer(t)
	s.loadScenario("unit-roster")

	rec := s.do(http.MethodGet, "/api/leaderboard?unit=cmu", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]StandingDTO](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, "demo-cmu-2", rows[0].MemberID, "24 training points beat 18 arrest points")
	assert.Equal(t, "cmu", rows[0].Unit)
	assert.Equal(t, "Cadet", rows[0].RankName)
}

func TestScenario_ListAndUnknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(scenarios))

	rec = s.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "year-end"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	s := newTestServer(t)
	for _, sc := range scenarios {
		s.loadScenario(sc.ID)
		for _, id := range sc.Members {
			assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/members/"+id, nil).Code, id)
		}
	}
}
