package progression

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// POINT TABLE - Activity type -> base points
// =============================================================================

const (
	MinQuantity   = 1
	MaxQuantity   = 20
	MinBonusUnits = 0
	MaxBonusUnits = 50
)

// ActivityType identifies a kind of submission, e.g. "patrol".
type ActivityType string

// Activity is one row of the point table.
type Activity struct {
	Type         ActivityType
	Name         string
	BasePoints   int
	BonusPerUnit bool // each qualifying sub-unit (tryout attendee) adds +1
}

// PointTable is the immutable activity catalogue. It performs no I/O.
type PointTable struct {
	activities map[ActivityType]Activity
}

// NewPointTable validates and indexes the activities.
func NewPointTable(activities ...Activity) (*PointTable, error) {
	pt := &PointTable{activities: make(map[ActivityType]Activity, len(activities))}
	for _, a := range activities {
		key := ActivityType(strings.ToLower(strings.TrimSpace(string(a.Type))))
		if key == "" {
			return nil, fmt.Errorf("%w: activity with empty type", ErrInvalidConfig)
		}
		if a.BasePoints <= 0 {
			return nil, fmt.Errorf("%w: activity %s must award positive points", ErrInvalidConfig, key)
		}
		if _, dup := pt.activities[key]; dup {
			return nil, fmt.Errorf("%w: duplicate activity %s", ErrInvalidConfig, key)
		}
		a.Type = key
		pt.activities[key] = a
	}
	return pt, nil
}

// MustPointTable panics on invalid input.
func MustPointTable(activities ...Activity) *PointTable {
	pt, err := NewPointTable(activities...)
	if err != nil {
		panic(err)
	}
	return pt
}

// Lookup returns the activity row.
func (pt *PointTable) Lookup(t ActivityType) (Activity, bool) {
	a, ok := pt.activities[normalizeActivity(t)]
	return a, ok
}

// BasePoints returns 0 for unknown types. Callers must treat 0 as an
// invalid type, not a free activity.
func (pt *PointTable) BasePoints(t ActivityType) int {
	return pt.activities[normalizeActivity(t)].BasePoints
}

// IsBonusEligible reports whether bonus units count for this type.
func (pt *PointTable) IsBonusEligible(t ActivityType) bool {
	return pt.activities[normalizeActivity(t)].BonusPerUnit
}

// TotalPoints applies the award formula:
//
//	per   = base + (eligible ? bonusUnits : 0)
//	mult  = booster ? per*2 : per
//	total = mult * quantity
//
// Inputs must already have passed Validate.
func (pt *PointTable) TotalPoints(t ActivityType, quantity int, booster bool, bonusUnits int) int {
	per := pt.BasePoints(t)
	if pt.IsBonusEligible(t) {
		per += bonusUnits
	}
	if booster {
		per *= 2
	}
	return per * quantity
}

// Validate rejects out-of-range submissions before anything is mutated.
func (pt *PointTable) Validate(t ActivityType, quantity, bonusUnits int) error {
	if pt.BasePoints(t) == 0 {
		return invalid("activity_type", "unknown activity type %q", t)
	}
	if quantity < MinQuantity || quantity > MaxQuantity {
		return invalid("quantity", "must be between %d and %d, got %d", MinQuantity, MaxQuantity, quantity)
	}
	if bonusUnits < MinBonusUnits || bonusUnits > MaxBonusUnits {
		return invalid("bonus_units", "must be between %d and %d, got %d", MinBonusUnits, MaxBonusUnits, bonusUnits)
	}
	if bonusUnits > 0 && !pt.IsBonusEligible(t) {
		return invalid("bonus_units", "activity %q does not take bonus units", t)
	}
	return nil
}

// Activities returns all rows sorted by type.
func (pt *PointTable) Activities() []Activity {
	out := make([]Activity, 0, len(pt.activities))
	for _, a := range pt.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func normalizeActivity(t ActivityType) ActivityType {
	return ActivityType(strings.ToLower(strings.TrimSpace(string(t))))
}
