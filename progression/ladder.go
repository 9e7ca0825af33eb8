/*
ladder.go - Rank ladders for the two parallel units

PURPOSE:
  A unit's ladder is an ordered table of ten ranks. Each rank carries the
  points needed to be promoted INTO it, the lock applied on arrival, the
  weekly quota while holding it, and whether it is hand-picked (never
  reachable by points alone).

ONE TABLE, TWO OVERLAYS:
  Both units share identical numbers. Only names differ. The numbers live in
  a single RankTable and each unit contributes a UnitOverlay with its names.
  BuildLadders combines them, so the two units cannot drift apart on
  thresholds, locks or quotas.

    table  : [{L1 0pts 0d q10} {L2 65pts 3d q15} ... {L10 hand-picked}]
    SWAT   : [Recruit, Operator, ...]
    CMU    : [Cadet, Officer, ...]
    ------------------------------------------------------------
    Ladders{SWAT: Ladder, CMU: Ladder}

TIERS:
  operational  - levels whose quota steps upward
  supervisor   - quota is flat
  hand-picked  - promotion only by administrative action, rank points pinned

SEE ALSO:
  - ranks/ranks.go: Built-in table and overlays
  - factory/config.go: YAML/JSON ladder configuration
  - quota.go: QuotaFor reads the table
*/
package progression

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// =============================================================================
// UNIT
// =============================================================================

// Unit is one of the two organizational tracks.
type Unit string

const (
	UnitSWAT Unit = "swat" // Unit A, the default for new members
	UnitCMU  Unit = "cmu"  // Unit B
)

// DefaultUnit is assigned to lazily created members.
const DefaultUnit = UnitSWAT

// Units lists every valid unit in display order.
var Units = []Unit{UnitSWAT, UnitCMU}

func (u Unit) Valid() bool { return u == UnitSWAT || u == UnitCMU }

// ParseUnit accepts the unit key case-insensitively.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", invalid("unit", "unknown unit %q", s)
	}
	return u, nil
}

// =============================================================================
// RANK TABLE - Unit-agnostic numbers
// =============================================================================

// LadderSize is the number of levels in every ladder.
const LadderSize = 10

type Tier string

const (
	TierOperational Tier = "operational"
	TierSupervisor  Tier = "supervisor"
	TierHandPicked  Tier = "hand_picked"
)

// RankSpec is the numeric definition of one level.
type RankSpec struct {
	Level          int
	PointsRequired int // to be promoted into this level from Level-1
	LockDays       int // applied on arrival, 0 = no lock
	Quota          int // weekly target while at this level
	HandPicked     bool
	Tier           Tier
}

// RankTable holds the ten specs, index 0 = level 1.
type RankTable [LadderSize]RankSpec

// Validate checks the structural rules every table must satisfy.
func (t RankTable) Validate() error {
	var prevOperational int
	var supervisorQuota = -1
	for i, spec := range t {
		level := i + 1
		if spec.Level != level {
			return fmt.Errorf("%w: entry %d has level %d", ErrInvalidConfig, i, spec.Level)
		}
		if spec.PointsRequired < 0 || spec.LockDays < 0 || spec.Quota < 0 {
			return fmt.Errorf("%w: level %d has negative values", ErrInvalidConfig, level)
		}
		if level > 1 && !spec.HandPicked && spec.PointsRequired == 0 {
			return fmt.Errorf("%w: level %d needs a point threshold or the hand-picked tier", ErrInvalidConfig, level)
		}
		if spec.HandPicked != (spec.Tier == TierHandPicked) {
			return fmt.Errorf("%w: level %d hand-picked flag disagrees with tier %s", ErrInvalidConfig, level, spec.Tier)
		}
		switch spec.Tier {
		case TierOperational:
			if spec.Quota < prevOperational {
				return fmt.Errorf("%w: operational quota decreases at level %d", ErrInvalidConfig, level)
			}
			prevOperational = spec.Quota
		case TierSupervisor:
			if supervisorQuota >= 0 && spec.Quota != supervisorQuota {
				return fmt.Errorf("%w: supervisor quota not flat at level %d", ErrInvalidConfig, level)
			}
			supervisorQuota = spec.Quota
		case TierHandPicked:
		default:
			return fmt.Errorf("%w: level %d has unknown tier %q", ErrInvalidConfig, level, spec.Tier)
		}
		if i > 0 && tierOrder(spec.Tier) < tierOrder(t[i-1].Tier) {
			return fmt.Errorf("%w: tiers out of order at level %d", ErrInvalidConfig, level)
		}
	}
	return nil
}

func tierOrder(t Tier) int {
	switch t {
	case TierOperational:
		return 0
	case TierSupervisor:
		return 1
	default:
		return 2
	}
}

// =============================================================================
// UNIT OVERLAY - Names only
// =============================================================================

// UnitOverlay supplies the human-facing names for one unit.
type UnitOverlay struct {
	Unit   Unit
	Label  string
	Names  [LadderSize]string
	Emojis [LadderSize]string
}

// =============================================================================
// LADDER
// =============================================================================

// Rank is a fully resolved ladder entry for a specific unit.
type Rank struct {
	RankSpec
	Unit  Unit
	Name  string
	Emoji string
	Key   string // stable slug, e.g. "swat-senior-operator"
}

// Ladder is the resolved ten-level ladder of one unit.
type Ladder struct {
	Unit  Unit
	Label string
	ranks [LadderSize]Rank
}

// Rank returns the entry at level. ok is false outside [1, LadderSize].
func (l *Ladder) Rank(level int) (Rank, bool) {
	if level < 1 || level > LadderSize {
		return Rank{}, false
	}
	return l.ranks[level-1], true
}

// NextRank returns the entry at level+1. At the top of the ladder there is
// no next rank; that is a terminal state, not an error.
func (l *Ladder) NextRank(level int) (Rank, bool) {
	return l.Rank(level + 1)
}

// Ranks returns a copy of all entries in level order.
func (l *Ladder) Ranks() []Rank {
	out := make([]Rank, LadderSize)
	copy(out, l.ranks[:])
	return out
}

// Ladders is the immutable pair of unit ladders plus the shared table.
type Ladders struct {
	table   RankTable
	ladders map[Unit]*Ladder
}

// BuildLadders validates the table and overlays and resolves both ladders.
func BuildLadders(table RankTable, overlays ...UnitOverlay) (*Ladders, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	ls := &Ladders{table: table, ladders: make(map[Unit]*Ladder, len(Units))}
	for _, o := range overlays {
		if !o.Unit.Valid() {
			return nil, fmt.Errorf("%w: overlay for unknown unit %q", ErrInvalidConfig, o.Unit)
		}
		if _, dup := ls.ladders[o.Unit]; dup {
			return nil, fmt.Errorf("%w: duplicate overlay for unit %s", ErrInvalidConfig, o.Unit)
		}
		l := &Ladder{Unit: o.Unit, Label: o.Label}
		for i, spec := range table {
			name := strings.TrimSpace(o.Names[i])
			if name == "" {
				return nil, fmt.Errorf("%w: unit %s has no name for level %d", ErrInvalidConfig, o.Unit, i+1)
			}
			l.ranks[i] = Rank{
				RankSpec: spec,
				Unit:     o.Unit,
				Name:     name,
				Emoji:    o.Emojis[i],
				Key:      slug.Make(string(o.Unit) + " " + name),
			}
		}
		ls.ladders[o.Unit] = l
	}
	for _, u := range Units {
		if _, ok := ls.ladders[u]; !ok {
			return nil, fmt.Errorf("%w: missing overlay for unit %s", ErrInvalidConfig, u)
		}
	}
	return ls, nil
}

// MustBuildLadders panics on invalid input. Use for built-in presets and tests.
func MustBuildLadders(table RankTable, overlays ...UnitOverlay) *Ladders {
	ls, err := BuildLadders(table, overlays...)
	if err != nil {
		panic(err)
	}
	return ls
}

// For returns the ladder for a unit. Unknown units fall back to DefaultUnit,
// which cannot happen for validated members.
func (ls *Ladders) For(u Unit) *Ladder {
	if l, ok := ls.ladders[u]; ok {
		return l
	}
	return ls.ladders[DefaultUnit]
}

// Table returns the shared numeric table.
func (ls *Ladders) Table() RankTable { return ls.table }

// Spec returns the numeric entry for a level.
func (ls *Ladders) Spec(level int) (RankSpec, bool) {
	if level < 1 || level > LadderSize {
		return RankSpec{}, false
	}
	return ls.table[level-1], true
}

// IsHandPicked reports whether a level belongs to the hand-picked tier.
func (ls *Ladders) IsHandPicked(level int) bool {
	spec, ok := ls.Spec(level)
	return ok && spec.HandPicked
}
