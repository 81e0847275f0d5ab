package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/kjhall/adaptuner/pkg/harmony"
	"github.com/kjhall/adaptuner/pkg/interval"
	"github.com/kjhall/adaptuner/pkg/neighbourhood"
	"github.com/kjhall/adaptuner/pkg/process"
)

// Built holds the runtime objects realized from a parsed Config, ready
// to hand to process.NewProcess and backend.NewPitchbend.
type Built struct {
	Basis              interval.Basis
	Temperaments       []*interval.Temperament
	ActiveTemperaments []bool
	NamedIntervals     map[string]*interval.Stack

	Strategies      map[string]harmony.Strategy[process.KeyState]
	ActiveStrategy  string

	KeyCenter      *interval.Stack
	ReferenceStack *interval.Stack

	Channels  []uint8
	BendRange float64
}

// Build realizes cfg against basis, the single interval basis this
// deployment tunes over. The
// basis is a runtime value rather than a type parameter: Go generics
// can't parametrize a package-level Build function without forcing
// every caller to specialize it, and only the five-limit basis is in
// active use.
func Build(cfg *Config, basis interval.Basis, now func() time.Time) (*Built, error) {
	temperaments := make([]*interval.Temperament, 0, len(cfg.Temperaments))
	for _, t := range cfg.Temperaments {
		tempered, err := interval.NewTemperament(t.Name, t.Tempered, t.Pure)
		if err != nil {
			return nil, fmt.Errorf("config: temperament %q: %w", t.Name, err)
		}
		temperaments = append(temperaments, tempered)
	}
	activeTemperaments := make([]bool, len(temperaments))

	namedIntervals := make(map[string]*interval.Stack, len(cfg.NamedIntervals))
	for _, ni := range cfg.NamedIntervals {
		namedIntervals[ni.Name] = interval.NewFromTarget(basis, ni.Target, temperaments, activeTemperaments)
	}

	strategies := make(map[string]harmony.Strategy[process.KeyState], len(cfg.Strategies))
	for _, s := range cfg.Strategies {
		built, err := buildStrategy(s, basis, temperaments, activeTemperaments, now)
		if err != nil {
			return nil, fmt.Errorf("config: strategy %q: %w", s.Name, err)
		}
		strategies[s.Name] = built
	}

	active := cfg.ActiveStrategy
	if active == "" {
		active = cfg.Strategies[0].Name
	}

	referenceStack := interval.NewFromTarget(basis, cfg.TuningReference.Target, temperaments, activeTemperaments)

	return &Built{
		Basis:              basis,
		Temperaments:       temperaments,
		ActiveTemperaments: activeTemperaments,
		NamedIntervals:     namedIntervals,
		Strategies:         strategies,
		ActiveStrategy:     active,
		KeyCenter:          interval.NewZero(basis),
		ReferenceStack:     referenceStack,
		Channels:           cfg.Backend.Channels,
		BendRange:          cfg.Backend.BendRange,
	}, nil
}

func buildStrategy(s StrategyConfig, basis interval.Basis, temperaments []*interval.Temperament, active []bool, now func() time.Time) (harmony.Strategy[process.KeyState], error) {
	switch s.Kind {
	case "chord-list":
		if s.ChordList == nil {
			return nil, fmt.Errorf("kind chord-list requires a chord-list block")
		}
		return buildChordList(*s.ChordList, basis, temperaments, active)
	case "springs":
		if s.Springs == nil {
			return nil, fmt.Errorf("kind springs requires a springs block")
		}
		return buildSprings(*s.Springs, basis, now)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
}

func buildChordList(c ChordListConfig, basis interval.Basis, temperaments []*interval.Temperament, active []bool) (*harmony.ChordList[process.KeyState], error) {
	patterns := make([]harmony.Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		shape, err := buildKeyShape(p.KeyShape)
		if err != nil {
			return nil, err
		}

		var neigh harmony.NeighbourhoodProvider
		switch {
		case p.Neighbourhood != nil:
			neigh = buildExplicitNeighbourhood(*p.Neighbourhood, basis, temperaments, active)
		case p.Corridor != nil:
			octave := interval.NewFromPureInterval(basis, 0, 1)
			neigh = neighbourhood.NewFiveLimitCorridor(basis, octave, temperaments, active,
				p.Corridor.Width, p.Corridor.Index, p.Corridor.Offset)
		default:
			return nil, fmt.Errorf("pattern has neither neighbourhood nor corridor")
		}

		patterns = append(patterns, harmony.Pattern{
			KeyShape:            shape,
			Neighbourhood:       neigh,
			AllowExtraHighNotes: p.AllowExtraHighNotes,
		})
	}
	return &harmony.ChordList[process.KeyState]{Enable: c.Enable, Patterns: patterns}, nil
}

func buildKeyShape(k KeyShapeConfig) (harmony.KeyShape, error) {
	switch k.Kind {
	case "exact-fixed":
		return harmony.KeyShape{Kind: harmony.ExactFixedKind, Keys: k.Keys}, nil
	case "exact-relative":
		return harmony.KeyShape{Kind: harmony.ExactRelativeKind, Offsets: k.Offsets}, nil
	case "classes-fixed":
		return harmony.KeyShape{Kind: harmony.ClassesFixedKind, Classes: k.Classes, Zero: k.Zero}, nil
	case "classes-relative":
		return harmony.KeyShape{Kind: harmony.ClassesRelativeKind, Classes: k.Classes}, nil
	case "block-voicing-fixed":
		return harmony.KeyShape{Kind: harmony.BlockVoicingFixedKind, Blocks: k.Blocks, Zero: k.Zero}, nil
	case "block-voicing-relative":
		return harmony.KeyShape{Kind: harmony.BlockVoicingRelativeKind, Blocks: k.Blocks}, nil
	default:
		return harmony.KeyShape{}, fmt.Errorf("unknown key-shape kind %q", k.Kind)
	}
}

// buildExplicitNeighbourhood realizes a 12-entry table into a
// neighbourhood.Neighbourhood. Entries are keyed by offset (a pitch
// class, 0..11 after mod-12 reduction); the period is always a pure
// octave over basis, matching every neighbourhood this system builds.
func buildExplicitNeighbourhood(n NeighbourhoodConfig, basis interval.Basis, temperaments []*interval.Temperament, active []bool) *neighbourhood.Neighbourhood {
	var stacks [12]*interval.Stack
	for i := range stacks {
		stacks[i] = interval.NewZero(basis)
	}
	for _, e := range n.Entries {
		class := int(((int64(e.Offset) % 12) + 12) % 12)
		stacks[class] = interval.NewFromTarget(basis, e.Target, temperaments, active)
	}
	octave := interval.NewFromPureInterval(basis, 0, 1)
	return &neighbourhood.Neighbourhood{Stacks: stacks, Period: octave}
}

func buildSprings(c SpringsConfig, basis interval.Basis, now func() time.Time) (*harmony.HarmonySprings[process.KeyState], error) {
	var byClass [12]harmony.RodOrSprings
	for i, conn := range c.ByClass {
		if conn.Rod != nil {
			byClass[i] = harmony.RodOrSprings{IsRod: true, Rod: interval.NewFromTarget(basis, conn.Rod, nil, nil)}
			continue
		}
		springs := make([]harmony.Spring, 0, len(conn.Springs))
		for _, sp := range conn.Springs {
			if sp.StiffnessDenom == 0 {
				return nil, fmt.Errorf("by-class[%d]: stiffness denominator must be nonzero", i)
			}
			springs = append(springs, harmony.Spring{
				Length:    interval.NewFromTarget(basis, sp.Target, nil, nil),
				Stiffness: big.NewRat(sp.StiffnessNumerator, sp.StiffnessDenom),
			})
		}
		byClass[i] = harmony.RodOrSprings{Springs: springs}
	}

	octave := interval.NewFromPureInterval(basis, 0, 1)
	if len(c.Octave) > 0 {
		octave = interval.NewFromTarget(basis, c.Octave, nil, nil)
	}

	cfg := harmony.HarmonySpringsConfig{
		MemoSprings:                 c.MemoSprings,
		MinimumNumberOfSoundingKeys: c.MinimumNumberOfSoundingKeys,
		LowerNotesAreMoreStable:     c.LowerNotesAreMoreStable,
		Provider:                    harmony.HarmonySpringsProvider{ByClass: byClass, Octave: octave},
		Timeout:                     time.Duration(c.TimeoutMillis) * time.Millisecond,
	}
	return harmony.NewHarmonySprings[process.KeyState](basis, cfg, now), nil
}
