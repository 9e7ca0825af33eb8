/*
ranks.go - Built-in rank ladders and activity catalogue

PURPOSE:
  Provides the ready-to-use configuration the bot ships with. These are
  plain values handed to progression.NewService; nothing here is global
  state read by the engine.

CONTENTS:
  StandardTable:     The shared numeric table (thresholds, locks, quotas)
  SWATOverlay:       Names for the SWAT ladder
  CMUOverlay:        Names for the CMU ladder
  StandardLadders:   Table + both overlays, resolved
  StandardPoints:    Activity point values

CUSTOMIZATION:
  Deployments that need different numbers load a YAML file through the
  factory package instead of editing these values.

SEE ALSO:
  - progression/ladder.go: BuildLadders
  - factory/config.go: YAML/JSON ladder configuration
*/
package ranks

import "github.com/warp/rank-engine/progression"

// =============================================================================
// NUMERIC TABLE
// =============================================================================

// StandardTable returns the shared numbers for both units.
func StandardTable() progression.RankTable {
	op, sup, hp := progression.TierOperational, progression.TierSupervisor, progression.TierHandPicked
	return progression.RankTable{
		{Level: 1, PointsRequired: 0, LockDays: 0, Quota: 10, Tier: op},
		{Level: 2, PointsRequired: 65, LockDays: 3, Quota: 15, Tier: op},
		{Level: 3, PointsRequired: 65, LockDays: 5, Quota: 20, Tier: op},
		{Level: 4, PointsRequired: 120, LockDays: 7, Quota: 25, Tier: op},
		{Level: 5, PointsRequired: 180, LockDays: 7, Quota: 30, Tier: op},
		{Level: 6, PointsRequired: 250, LockDays: 10, Quota: 35, Tier: sup},
		{Level: 7, PointsRequired: 320, LockDays: 14, Quota: 35, Tier: sup},
		{Level: 8, PointsRequired: 400, LockDays: 14, Quota: 35, Tier: sup},
		{Level: 9, Quota: 20, HandPicked: true, Tier: hp},
		{Level: 10, Quota: 20, HandPicked: true, Tier: hp},
	}
}

// =============================================================================
// UNIT OVERLAYS
// =============================================================================

func SWATOverlay() progression.UnitOverlay {
	return progression.UnitOverlay{
		Unit:  progression.UnitSWAT,
		Label: "SWAT",
		Names: [progression.LadderSize]string{
			"Recruit", "Operator", "Senior Operator", "Specialist", "Senior Specialist",
			"Team Leader", "Sergeant", "Lieutenant", "Commander", "Chief",
		},
		Emojis: [progression.LadderSize]string{
			"🔰", "🛡️", "🛡️", "🎯", "🎯", "⭐", "⭐", "⭐", "👑", "👑",
		},
	}
}

func CMUOverlay() progression.UnitOverlay {
	return progression.UnitOverlay{
		Unit:  progression.UnitCMU,
		Label: "CMU",
		Names: [progression.LadderSize]string{
			"Cadet", "Officer", "Senior Officer", "Corporal", "Senior Corporal",
			"Sergeant", "Staff Sergeant", "Inspector", "Superintendent", "Commissioner",
		},
		Emojis: [progression.LadderSize]string{
			"🔰", "🚓", "🚓", "📋", "📋", "⭐", "⭐", "⭐", "👑", "👑",
		},
	}
}

// StandardLadders resolves the built-in table with both overlays.
func StandardLadders() *progression.Ladders {
	return progression.MustBuildLadders(StandardTable(), SWATOverlay(), CMUOverlay())
}

// =============================================================================
// ACTIVITIES
// =============================================================================

const (
	ActivityPatrol        progression.ActivityType = "patrol"
	ActivityArrest        progression.ActivityType = "arrest"
	ActivityRaid          progression.ActivityType = "raid"
	ActivityTraining      progression.ActivityType = "training"
	ActivityTryoutHosting progression.ActivityType = "tryout_hosting"
	ActivityEventHosting  progression.ActivityType = "event_hosting"
	ActivityDeployment    progression.ActivityType = "deployment"
)

// StandardActivities lists the built-in point values.
func StandardActivities() []progression.Activity {
	return []progression.Activity{
		{Type: ActivityPatrol, Name: "Patrol", BasePoints: 3},
		{Type: ActivityArrest, Name: "Arrest", BasePoints: 2},
		{Type: ActivityRaid, Name: "Raid", BasePoints: 5},
		{Type: ActivityTraining, Name: "Training", BasePoints: 4},
		{Type: ActivityTryoutHosting, Name: "Tryout Hosting", BasePoints: 3, BonusPerUnit: true},
		{Type: ActivityEventHosting, Name: "Event Hosting", BasePoints: 5},
		{Type: ActivityDeployment, Name: "Deployment", BasePoints: 4},
	}
}

// StandardPoints returns the built-in point table.
func StandardPoints() *progression.PointTable {
	return progression.MustPointTable(StandardActivities()...)
}
