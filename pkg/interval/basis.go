// Package interval implements the exact-rational pitch algebra: named basis
// intervals, temperaments, and the Stack pitch representation built on them.
package interval

// BasisInterval is a named prime-limit interval: how many equally-tempered
// semitones it spans, and how many keyboard semitones (white+black keys) it
// spans when stacked onto a 12-key-per-octave keyboard. Immutable.
type BasisInterval struct {
	Name        string
	Semitones   float64
	KeyDistance int
}

// Basis is an ordered, immutable list of basis intervals. A Stack's target
// and actual vectors are coefficients over this ordering.
type Basis []BasisInterval

// Dim is the number of basis intervals, i.e. the dimension of any Stack's
// coefficient vectors.
func (b Basis) Dim() int {
	return len(b)
}

// FiveLimit is the classical three-interval basis (octave, fifth, third)
// that most of this module's packages and tests are built over.
var FiveLimit = Basis{
	{Name: "octave", Semitones: 12, KeyDistance: 12},
	{Name: "fifth", Semitones: 7.019550008653874, KeyDistance: 7},
	{Name: "third", Semitones: 3.8631371386483504, KeyDistance: 4},
}
