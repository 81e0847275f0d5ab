// Package neighbourhood builds, for each of the 12 pitch classes, a
// representative Stack relative to a reference note, so that any played key
// can be mapped to a nearby just-intonation spelling by its distance modulo
// an octave period.
package neighbourhood

import "github.com/kjhall/adaptuner/pkg/interval"

// Neighbourhood holds one representative Stack per pitch class (indices
// 0..11, where stacks[i].KeyDistance() == i by construction) plus the
// period Stack (a pure octave) used to fold distances outside 0..11 back
// into range.
type Neighbourhood struct {
	Stacks [12]*interval.Stack
	Period *interval.Stack
}

// At returns the Stack that represents keyboard distance d from the
// reference note: the class stacks[d mod 12] plus floor(d/12) copies of
// the period.
func (n *Neighbourhood) At(d int64) *interval.Stack {
	class := int(((d % 12) + 12) % 12)
	periods := floorDiv(d, 12)
	s := n.Stacks[class].Clone()
	if periods != 0 {
		s.ScaledAdd(periods, n.Period)
	}
	return s
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}

// NewFiveLimitCorridor builds a five-limit Neighbourhood whose 12 class
// representatives lie within a "corridor" of the line of fifths, width
// fifths wide, further shifted by offset. index shifts the window along
// the line of fifths: positions -index through 11-index are used, each
// filed under its pitch class. Position 0 always yields the zero Stack,
// so stacks[0] is the zero Stack whenever index is below 12.
//
// width must be at least 1; offset must be in 0..width; index must be in
// 0..12. octave must be a Stack describing a pure octave over basis.
func NewFiveLimitCorridor(basis interval.Basis, octave *interval.Stack, temperaments []*interval.Temperament, activeTemperaments []bool, width, index, offset int64) *Neighbourhood {
	var stacks [12]*interval.Stack
	for i := range stacks {
		stacks[i] = interval.NewZero(basis)
	}

	for i := -index; i < 12-index; i++ {
		octaves, fifths, thirds := fiveLimitCorridor(width, offset, i)
		class := int(floorMod(7*i, 12))
		stacks[class].IncrementAt(0, octaves, temperaments, activeTemperaments)
		stacks[class].IncrementAt(1, fifths, temperaments, activeTemperaments)
		stacks[class].IncrementAt(2, thirds, temperaments, activeTemperaments)
	}

	return &Neighbourhood{Stacks: stacks, Period: octave}
}

func fiveLimitCorridor(width, offset, index int64) (octaves, fifths, thirds int64) {
	fifths, thirds = fiveLimitCorridorNoOffset(width, index+offset)
	fifths -= offset
	octaves = -floorDiv(2*thirds+4*fifths, 7)
	return octaves, fifths, thirds
}

func fiveLimitCorridorNoOffset(width, index int64) (fifths, thirds int64) {
	thirds = floorDiv(index, width)
	fifths = (width-4)*thirds + floorMod(index, width)
	return fifths, thirds
}

// Bounds returns the minimum and maximum coefficient seen at basis axis
// across all 12 class stacks (index 0 is always the zero Stack, so it
// never moves the bounds away from 0 on its own).
func (n *Neighbourhood) Bounds(axis int) (min, max int64) {
	for i := 1; i < 12; i++ {
		c := n.Stacks[i].Target[axis]
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	return min, max
}
