// Package config loads the YAML configuration surface: temperaments,
// named-interval display labels, the ordered list of harmony
// strategies, the backend's channel pool and bend range, and the
// absolute tuning reference. Build turns a parsed Config into the
// runtime objects pkg/process and pkg/backend actually consume.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TemperamentConfig names a temperament and the two square integer
// matrices interval.NewTemperament needs: tempered and pure, each one
// row per basis axis.
type TemperamentConfig struct {
	Name     string    `yaml:"name"`
	Tempered [][]int64 `yaml:"tempered"`
	Pure     [][]int64 `yaml:"pure"`
}

// NamedIntervalConfig attaches a short display name to a comma or
// interval, expressed as target coefficients over the active basis.
// Purely cosmetic: the retuning math never consults it; Build only
// collects the entries into Built.NamedIntervals.
type NamedIntervalConfig struct {
	Name   string  `yaml:"name"`
	Target []int64 `yaml:"target"`
}

// KeyShapeConfig is the YAML shape of a harmony.KeyShape. Kind selects
// which of the remaining fields is meaningful.
type KeyShapeConfig struct {
	Kind string `yaml:"kind"`

	Keys    []uint8 `yaml:"keys,omitempty"`
	Offsets []uint8 `yaml:"offsets,omitempty"`

	Classes []uint8 `yaml:"classes,omitempty"`
	Zero    uint8   `yaml:"zero,omitempty"`

	Blocks [][]uint8 `yaml:"blocks,omitempty"`
}

// NeighbourhoodEntryConfig is one {offset, target} pair of an explicit
// neighbourhood table.
type NeighbourhoodEntryConfig struct {
	Offset int8    `yaml:"offset"`
	Target []int64 `yaml:"target"`
}

// NeighbourhoodConfig is a named, explicit 12-entry neighbourhood table.
// Exactly 12 entries are required, one per pitch class.
type NeighbourhoodConfig struct {
	Name    string                     `yaml:"name"`
	Entries []NeighbourhoodEntryConfig `yaml:"entries"`
}

// NeighbourhoodCorridorConfig builds a five-limit corridor neighbourhood
// procedurally (pkg/neighbourhood.NewFiveLimitCorridor) instead of
// listing all 12 entries by hand.
type NeighbourhoodCorridorConfig struct {
	Width  int64 `yaml:"width"`
	Index  int64 `yaml:"index"`
	Offset int64 `yaml:"offset"`
}

// PatternConfig is one chord-list entry.
type PatternConfig struct {
	KeyShape            KeyShapeConfig               `yaml:"key-shape"`
	Neighbourhood       *NeighbourhoodConfig         `yaml:"neighbourhood,omitempty"`
	Corridor            *NeighbourhoodCorridorConfig `yaml:"corridor,omitempty"`
	AllowExtraHighNotes bool                         `yaml:"allow-extra-high-notes"`
}

// ChordListConfig configures the chord-list harmony strategy.
type ChordListConfig struct {
	Enable   bool            `yaml:"enable"`
	Patterns []PatternConfig `yaml:"patterns"`
}

// SpringConfig is one candidate interval a spring connector may relax
// to, with its stiffness expressed as a rational numerator/denominator
// pair (exact rationals, matching the rest of this system's arithmetic).
type SpringConfig struct {
	Target             []int64 `yaml:"target"`
	StiffnessNumerator int64   `yaml:"stiffness-numerator"`
	StiffnessDenom     int64   `yaml:"stiffness-denominator"`
}

// ConnectorConfig describes one of the 12 mod-12 classes in a
// HarmonySpringsProvider: either a fixed rod or a list of candidate
// springs.
type ConnectorConfig struct {
	Rod     []int64        `yaml:"rod,omitempty"`
	Springs []SpringConfig `yaml:"springs,omitempty"`
}

// SpringsConfig configures the mass-spring harmony strategy.
type SpringsConfig struct {
	MemoSprings                 bool              `yaml:"memo-springs"`
	MinimumNumberOfSoundingKeys int               `yaml:"minimum-number-of-sounding-keys"`
	LowerNotesAreMoreStable     bool              `yaml:"lower-notes-are-more-stable"`
	TimeoutMillis               int64             `yaml:"timeout-millis"`
	ByClass                     []ConnectorConfig `yaml:"by-class"`
	Octave                      []int64           `yaml:"octave"`
}

// StrategyConfig is one named, switchable harmony strategy. Exactly one
// of ChordList/Springs should be set, selected by Kind.
type StrategyConfig struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	ChordList *ChordListConfig `yaml:"chord-list,omitempty"`
	Springs   *SpringsConfig   `yaml:"springs,omitempty"`
}

// BackendConfig is the `backend` entry: the channel pool and bend
// range the pitch-bend allocator is constrained to.
type BackendConfig struct {
	Channels  []uint8 `yaml:"channels"`
	BendRange float64 `yaml:"bend-range"`
}

// ReferenceConfig is the `tuning_reference` entry. Build pins the whole
// tuning system on the Stack given by Target: every derived tuning is
// that Stack's own Semitones() plus the relative Stack. Semitones is
// parsed but Build does not read it, so it does not move the pitch.
type ReferenceConfig struct {
	Target    []int64 `yaml:"stack"`
	Semitones float64 `yaml:"semitones"`
}

// Config is the top-level configuration document.
type Config struct {
	Temperaments    []TemperamentConfig   `yaml:"temperaments"`
	NamedIntervals  []NamedIntervalConfig `yaml:"named_intervals"`
	Strategies      []StrategyConfig      `yaml:"strategies"`
	ActiveStrategy  string                `yaml:"active-strategy"`
	Backend         BackendConfig         `yaml:"backend"`
	TuningReference ReferenceConfig       `yaml:"tuning_reference"`
}

// Load reads and parses a configuration document from path. yaml.v3's
// struct decode does not reject unknown fields; Validate catches the
// structural mistakes that matter before Build fails less legibly.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports structural problems Build would otherwise fail on
// less legibly: an empty strategy list, an unresolvable active-strategy
// name, or a neighbourhood table with the wrong number of entries.
func (c *Config) Validate() error {
	if len(c.Strategies) == 0 {
		return fmt.Errorf("config: at least one strategy is required")
	}
	if c.ActiveStrategy != "" {
		found := false
		for _, s := range c.Strategies {
			if s.Name == c.ActiveStrategy {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("config: active-strategy %q does not match any strategy name", c.ActiveStrategy)
		}
	}
	for _, s := range c.Strategies {
		if s.ChordList != nil {
			for _, p := range s.ChordList.Patterns {
				if p.Neighbourhood != nil && len(p.Neighbourhood.Entries) != 12 {
					return fmt.Errorf("config: strategy %q: neighbourhood %q must have exactly 12 entries, found %d",
						s.Name, p.Neighbourhood.Name, len(p.Neighbourhood.Entries))
				}
				if p.Neighbourhood == nil && p.Corridor == nil {
					return fmt.Errorf("config: strategy %q: pattern has neither neighbourhood nor corridor", s.Name)
				}
			}
		}
		if s.Springs != nil && len(s.Springs.ByClass) != 12 {
			return fmt.Errorf("config: strategy %q: springs by-class must have exactly 12 entries, found %d",
				s.Name, len(s.Springs.ByClass))
		}
	}
	return nil
}
