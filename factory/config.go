/*
Package factory converts YAML or JSON ladder configuration into engine values.

PURPOSE:
  Lets a deployment change thresholds, locks, quotas, rank names and point
  values without a code change. The factory validates the document and
  returns a resolved *progression.Ladders and *progression.PointTable.

SCHEMA (YAML; the JSON form uses the same keys):
  ranks:
    - {level: 1, points_required: 0,  lock_days: 0, quota: 10, tier: operational}
    - {level: 2, points_required: 65, lock_days: 3, quota: 15, tier: operational}
    ...
    - {level: 10, quota: 20, tier: hand_picked}
  units:
    - unit: swat
      label: SWAT
      names: [Recruit, Operator, ...]   # exactly ten
      emojis: [...]                     # optional
  activities:
    - {type: patrol, name: Patrol, points: 3}
    - {type: tryout_hosting, name: Tryout Hosting, points: 3, bonus_per_unit: true}

  hand_picked is implied by tier: hand_picked.

USAGE:
  cfg, err := factory.LoadFile("ladders.yaml")
  ladders, points, err := cfg.Build()

SEE ALSO:
  - ranks/ranks.go: Built-in presets (used when no file is configured)
  - progression/ladder.go: BuildLadders validation rules
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/rank-engine/progression"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// Config is the on-disk document.
type Config struct {
	Ranks      []RankConfig     `json:"ranks" yaml:"ranks"`
	Units      []UnitConfig     `json:"units" yaml:"units"`
	Activities []ActivityConfig `json:"activities" yaml:"activities"`
}

// RankConfig is one row of the shared numeric table.
type RankConfig struct {
	Level          int    `json:"level" yaml:"level"`
	PointsRequired int    `json:"points_required,omitempty" yaml:"points_required,omitempty"`
	LockDays       int    `json:"lock_days,omitempty" yaml:"lock_days,omitempty"`
	Quota          int    `json:"quota" yaml:"quota"`
	Tier           string `json:"tier" yaml:"tier"` // operational, supervisor, hand_picked
}

// UnitConfig is the naming overlay for one unit.
type UnitConfig struct {
	Unit   string   `json:"unit" yaml:"unit"`
	Label  string   `json:"label,omitempty" yaml:"label,omitempty"`
	Names  []string `json:"names" yaml:"names"`
	Emojis []string `json:"emojis,omitempty" yaml:"emojis,omitempty"`
}

// ActivityConfig is one point-table row.
type ActivityConfig struct {
	Type         string `json:"type" yaml:"type"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	Points       int    `json:"points" yaml:"points"`
	BonusPerUnit bool   `json:"bonus_per_unit,omitempty" yaml:"bonus_per_unit,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseYAML decodes a YAML document. Unknown keys are rejected.
func ParseYAML(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: config payload is empty", progression.ErrInvalidConfig)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ladder YAML: %w", err)
	}
	return &cfg, nil
}

// ParseJSON decodes a JSON document. Unknown keys are rejected.
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ladder JSON: %w", err)
	}
	return &cfg, nil
}

// LoadFile picks the decoder from the file extension (.json, else YAML).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ladder config %s: %w", path, err)
	}
	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		cfg, err = ParseJSON(data)
	} else {
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// =============================================================================
// BUILD
// =============================================================================

// Build validates the document and resolves ladders and point table.
func (c *Config) Build() (*progression.Ladders, *progression.PointTable, error) {
	table, err := c.table()
	if err != nil {
		return nil, nil, err
	}

	overlays := make([]progression.UnitOverlay, 0, len(c.Units))
	for _, uc := range c.Units {
		o, err := uc.overlay()
		if err != nil {
			return nil, nil, err
		}
		overlays = append(overlays, o)
	}
	ladders, err := progression.BuildLadders(table, overlays...)
	if err != nil {
		return nil, nil, err
	}

	if len(c.Activities) == 0 {
		return nil, nil, fmt.Errorf("%w: no activities configured", progression.ErrInvalidConfig)
	}
	activities := make([]progression.Activity, 0, len(c.Activities))
	for _, ac := range c.Activities {
		name := ac.Name
		if name == "" {
			name = ac.Type
		}
		activities = append(activities, progression.Activity{
			Type:         progression.ActivityType(ac.Type),
			Name:         name,
			BasePoints:   ac.Points,
			BonusPerUnit: ac.BonusPerUnit,
		})
	}
	points, err := progression.NewPointTable(activities...)
	if err != nil {
		return nil, nil, err
	}
	return ladders, points, nil
}

func (c *Config) table() (progression.RankTable, error) {
	var table progression.RankTable
	if len(c.Ranks) != progression.LadderSize {
		return table, fmt.Errorf("%w: expected %d ranks, got %d", progression.ErrInvalidConfig, progression.LadderSize, len(c.Ranks))
	}
	for i, rc := range c.Ranks {
		tier, err := parseTier(rc.Tier)
		if err != nil {
			return table, fmt.Errorf("rank %d: %w", rc.Level, err)
		}
		table[i] = progression.RankSpec{
			Level:          rc.Level,
			PointsRequired: rc.PointsRequired,
			LockDays:       rc.LockDays,
			Quota:          rc.Quota,
			HandPicked:     tier == progression.TierHandPicked,
			Tier:           tier,
		}
	}
	return table, nil
}

func (uc UnitConfig) overlay() (progression.UnitOverlay, error) {
	unit, err := progression.ParseUnit(uc.Unit)
	if err != nil {
		return progression.UnitOverlay{}, fmt.Errorf("%w: %v", progression.ErrInvalidConfig, err)
	}
	if len(uc.Names) != progression.LadderSize {
		return progression.UnitOverlay{}, fmt.Errorf("%w: unit %s needs %d names, got %d", progression.ErrInvalidConfig, unit, progression.LadderSize, len(uc.Names))
	}
	if len(uc.Emojis) > progression.LadderSize {
		return progression.UnitOverlay{}, fmt.Errorf("%w: unit %s has more emojis than ranks", progression.ErrInvalidConfig, unit)
	}
	o := progression.UnitOverlay{Unit: unit, Label: uc.Label}
	if o.Label == "" {
		o.Label = strings.ToUpper(string(unit))
	}
	copy(o.Names[:], uc.Names)
	copy(o.Emojis[:], uc.Emojis)
	return o, nil
}

func parseTier(s string) (progression.Tier, error) {
	switch progression.Tier(strings.ToLower(strings.TrimSpace(s))) {
	case progression.TierOperational:
		return progression.TierOperational, nil
	case progression.TierSupervisor:
		return progression.TierSupervisor, nil
	case progression.TierHandPicked, "hand-picked", "handpicked":
		return progression.TierHandPicked, nil
	}
	return "", fmt.Errorf("%w: unknown tier %q", progression.ErrInvalidConfig, s)
}

// =============================================================================
// EXPORT
// =============================================================================

// FromLadders converts resolved values back into a document, e.g. to dump
// the built-in presets as a starting file.
func FromLadders(ladders *progression.Ladders, points *progression.PointTable) *Config {
	cfg := &Config{}
	for _, spec := range ladders.Table() {
		cfg.Ranks = append(cfg.Ranks, RankConfig{
			Level:          spec.Level,
			PointsRequired: spec.PointsRequired,
			LockDays:       spec.LockDays,
			Quota:          spec.Quota,
			Tier:           string(spec.Tier),
		})
	}
	for _, u := range progression.Units {
		l := ladders.For(u)
		uc := UnitConfig{Unit: string(u), Label: l.Label}
		for _, r := range l.Ranks() {
			uc.Names = append(uc.Names, r.Name)
			uc.Emojis = append(uc.Emojis, r.Emoji)
		}
		cfg.Units = append(cfg.Units, uc)
	}
	for _, a := range points.Activities() {
		cfg.Activities = append(cfg.Activities, ActivityConfig{
			Type:         string(a.Type),
			Name:         a.Name,
			Points:       a.BasePoints,
			BonusPerUnit: a.BonusPerUnit,
		})
	}
	return cfg
}

// EncodeYAML renders the document as YAML.
func (c *Config) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
