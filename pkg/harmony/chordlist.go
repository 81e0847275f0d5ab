package harmony

import "github.com/kjhall/adaptuner/pkg/interval"

// NeighbourhoodProvider maps a keyboard distance relative to some
// reference key to the Stack that distance should be retuned to.
// pkg/neighbourhood.Neighbourhood and PartialNeighbourhood both implement
// this.
type NeighbourhoodProvider interface {
	At(d int64) *interval.Stack
}

// PartialNeighbourhood records explicit relative Stacks observed for a
// specific chord, rather than a full 12-class lookup table. HarmonySprings
// builds one from each solved spring system, and the resulting Harmony only ever needs to answer for the exact relative
// distances that were actually sounding when it was built.
type PartialNeighbourhood struct {
	byDistance map[int64]*interval.Stack
}

// NewPartialNeighbourhood returns an empty PartialNeighbourhood.
func NewPartialNeighbourhood() *PartialNeighbourhood {
	return &PartialNeighbourhood{byDistance: map[int64]*interval.Stack{}}
}

// Insert adds s (keyed by its own KeyDistance) if that distance was not
// already recorded. Reports whether the insert happened.
func (p *PartialNeighbourhood) Insert(s *interval.Stack) bool {
	d := s.KeyDistance()
	if _, ok := p.byDistance[d]; ok {
		return false
	}
	p.byDistance[d] = s.Clone()
	return true
}

// At returns the Stack recorded for distance d, or nil if none was ever
// inserted for that distance.
func (p *PartialNeighbourhood) At(d int64) *interval.Stack {
	if s, ok := p.byDistance[d]; ok {
		return s.Clone()
	}
	return nil
}

// SoundingSource supplies, for a key index, whether it is currently
// sounding and its current tuning Stack.
type SoundingSource interface {
	Sounding(key int) bool
	Tuning(key int) *interval.Stack
}

// Harmony is what a harmony strategy produces for the process loop to
// consume: a neighbourhood to retune relative distances against, and the
// key that distance zero refers to.
type Harmony struct {
	Neighbourhood NeighbourhoodProvider
	Reference     int64
}

// Pattern is one chord-list entry: a KeyShape to match against the
// active keys, the Harmony to use when it matches, and whether matching
// a prefix of this pattern (rather than the whole thing) is acceptable
// when extra high notes are sounding above it.
type Pattern struct {
	KeyShape            KeyShape
	Neighbourhood       NeighbourhoodProvider
	AllowExtraHighNotes bool
}

// ChordList is the chord-list harmony strategy: patterns are tried in
// order and the one whose KeyShape extends farthest up the keyboard
// wins.
type ChordList[N HasActivationStatus] struct {
	Enable   bool
	Patterns []Pattern
}

// Solve returns the index of the winning pattern and the Harmony it
// produces, or (nil, nil) if the strategy is disabled, has no patterns,
// or no pattern matches well enough. tunings is unused by ChordList (its
// patterns carry their own Neighbourhood); it is accepted so ChordList
// satisfies the same Strategy interface as HarmonySprings.
func (c *ChordList[N]) Solve(keys *[128]N, tunings TuningSource) (*int, *Harmony) {
	if !c.Enable || len(c.Patterns) == 0 {
		return nil, nil
	}

	fit := NewWorstFit()
	index := 0
	for i, p := range c.Patterns {
		if fit.IsComplete() {
			break
		}
		newFit := FitKeyShape(p.KeyShape, keys)
		if newFit.IsBetterThan(fit) {
			fit = newFit
			index = i
		}
	}

	selected := c.Patterns[index]
	if selected.AllowExtraHighNotes {
		if fit.MatchesNothing() {
			return nil, nil
		}
	} else if !fit.IsComplete() {
		return nil, nil
	}

	idx := index
	return &idx, &Harmony{Neighbourhood: selected.Neighbourhood, Reference: int64(fit.Zero)}
}

