// Package harmony implements the chord-list and spring-physics strategies
// that decide how sounding keys should be re-tuned relative to each other.
package harmony

// HasActivationStatus is implemented by whatever per-key state type the
// caller uses (see pkg/process.KeyState) so KeyShape matching can work
// generically over it without importing pkg/process.
type HasActivationStatus interface {
	Active() bool
}

// Fit describes how well a KeyShape matches the currently active keys
// starting from some key index: Zero is the key that pattern index 0 maps
// to, and Next is one past the highest matched key (128 means the whole
// keyboard matched, i.e. every active key from the start point onward was
// consumed by the pattern).
type Fit struct {
	Zero uint8
	Next int
}

// NewWorstFit returns the Fit value representing "matches nothing".
func NewWorstFit() Fit { return Fit{Zero: 0, Next: 0} }

// IsComplete reports whether every active key from the match's start to
// the top of the keyboard was consumed.
func (f Fit) IsComplete() bool { return f.Next == 128 }

// MatchesNothing reports whether this Fit matched no keys at all.
func (f Fit) MatchesNothing() bool { return f.Next == 0 }

// IsBetterThan reports whether f extends farther up the keyboard than
// other.
func (f Fit) IsBetterThan(other Fit) bool { return f.Next > other.Next }

// Kind discriminates the KeyShape variants.
type Kind int

const (
	ExactFixedKind Kind = iota
	ExactRelativeKind
	ClassesFixedKind
	ClassesRelativeKind
	BlockVoicingFixedKind
	BlockVoicingRelativeKind
)

// KeyShape is a chord-list pattern entry: a description of a set of keys
// (fixed absolute positions, fixed pitch classes, relative pitch classes,
// or "block" voicings of either) to match against the currently active
// keys. Exactly one of the variant-specific fields is meaningful,
// selected by Kind.
type KeyShape struct {
	Kind Kind

	Keys    []uint8 // ExactFixedKind
	Offsets []uint8 // ExactRelativeKind: Offsets[0] is the reference key

	Classes []uint8 // ClassesFixedKind, ClassesRelativeKind
	Zero    uint8   // ClassesFixedKind, BlockVoicingFixedKind

	Blocks [][]uint8 // BlockVoicingFixedKind, BlockVoicingRelativeKind
}

// ClassesRelativeFromCurrent builds a ClassesRelative KeyShape that fits
// the keys currently active in notes, with lowestSounding mapped to class
// zero.
func ClassesRelativeFromCurrent[N HasActivationStatus](notes *[128]N, lowestSounding int) KeyShape {
	return KeyShape{Kind: ClassesRelativeKind, Classes: classesRelativeToLowestSounding(notes, lowestSounding)}
}

// ClassesFixedFromCurrent builds a ClassesFixed KeyShape that fits the
// keys currently active in notes, with Zero set to lowestSounding % 12.
func ClassesFixedFromCurrent[N HasActivationStatus](notes *[128]N, lowestSounding int) KeyShape {
	return KeyShape{
		Kind:    ClassesFixedKind,
		Classes: classesRelativeToLowestSounding(notes, lowestSounding),
		Zero:    uint8(lowestSounding % 12),
	}
}

func classesRelativeToLowestSounding[N HasActivationStatus](notes *[128]N, lowestSounding int) []uint8 {
	var active [12]bool
	for i, k := range notes {
		if k.Active() {
			active[i%12] = true
		}
	}
	var classes []uint8
	for i, b := range active {
		if b {
			classes = append(classes, uint8(floorMod(int64(i)-int64(lowestSounding), 12)))
		}
	}
	return classes
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// FitKeyShape evaluates how well shape matches the currently active keys
// in notes, starting the search from the bottom of the keyboard.
func FitKeyShape[N HasActivationStatus](shape KeyShape, notes *[128]N) Fit {
	switch shape.Kind {
	case ExactFixedKind:
		return fitExactFixed(shape.Keys, notes)
	case ExactRelativeKind:
		return fitExactRelative(shape.Offsets, notes)
	default:
		return fitFrom(shape, notes, 0)
	}
}

func fitFrom[N HasActivationStatus](shape KeyShape, notes *[128]N, start int) Fit {
	switch shape.Kind {
	case ClassesFixedKind:
		return fitClassesFixed(shape.Classes, shape.Zero, notes, start)
	case ClassesRelativeKind:
		return fitClassesRelative(shape.Classes, notes, start)
	case BlockVoicingFixedKind:
		return fitVoicingFixed(shape.Blocks, shape.Zero, notes, start)
	case BlockVoicingRelativeKind:
		return fitVoicingRelative(shape.Blocks, notes, start)
	default:
		panic("harmony: fitFrom called with an Exact* KeyShape")
	}
}

// fitExactFixed assumes keys is nonempty.
func fitExactFixed[N HasActivationStatus](keys []uint8, notes *[128]N) Fit {
	lowestSounding := -1
	for i, n := range notes {
		if n.Active() {
			lowestSounding = i
			break
		}
	}
	if lowestSounding == -1 {
		return NewWorstFit()
	}

	var patternSet [256]bool
	maxKey := 0
	for _, k := range keys {
		patternSet[k] = true
		if int(k) > maxKey {
			maxKey = int(k)
		}
	}

	var activeSet [256]bool
	maxActive := 0
	for i, n := range notes {
		if n.Active() {
			activeSet[i] = true
			maxActive = i
		}
	}

	limit := maxActive
	if maxKey > limit {
		limit = maxKey
	}
	lowestDiff := -1
	for i := 0; i <= limit; i++ {
		if activeSet[i] != patternSet[i] {
			lowestDiff = i
			break
		}
	}
	if lowestDiff == -1 {
		return Fit{Zero: uint8(lowestSounding), Next: 128}
	}
	if lowestDiff > maxKey {
		return Fit{Zero: uint8(lowestSounding), Next: 1 + maxKey}
	}
	return NewWorstFit()
}

// fitExactRelative assumes offsets is nonempty.
func fitExactRelative[N HasActivationStatus](offsets []uint8, notes *[128]N) Fit {
	lowestSounding := -1
	for i, n := range notes {
		if n.Active() {
			lowestSounding = i
			break
		}
	}
	if lowestSounding == -1 {
		return NewWorstFit()
	}

	base := offsets[0]
	var patternSet [256]bool
	maxKey := 0
	for _, k := range offsets {
		shifted := int(k) - int(base)
		patternSet[shifted] = true
		if shifted > maxKey {
			maxKey = shifted
		}
	}

	var activeSet [256]bool
	maxActive := 0
	for i, n := range notes {
		if n.Active() && i >= lowestSounding {
			shifted := i - lowestSounding
			if shifted < len(activeSet) {
				activeSet[shifted] = true
				if shifted > maxActive {
					maxActive = shifted
				}
			}
		}
	}

	limit := maxActive
	if maxKey > limit {
		limit = maxKey
	}
	lowestDiff := -1
	for i := 0; i <= limit; i++ {
		if activeSet[i] != patternSet[i] {
			lowestDiff = i
			break
		}
	}
	if lowestDiff == -1 {
		return Fit{Zero: uint8(lowestSounding), Next: 128}
	}
	if lowestDiff > maxKey {
		return Fit{Zero: uint8(lowestSounding), Next: 1 + lowestSounding + maxKey}
	}
	return NewWorstFit()
}

func fitClassesFixed[N HasActivationStatus](classes []uint8, zero uint8, notes *[128]N, start int) Fit {
	matchedZero := 255
	used := make([]bool, len(classes))
	i := start
	for i < 128 {
		if !notes[i].Active() {
			i++
			continue
		}
		if uint8(i)%12 == zero%12 && i < matchedZero {
			matchedZero = i
		}
		idx := -1
		for j, x := range classes {
			if (x+zero)%12 == uint8(i)%12 {
				idx = j
				break
			}
		}
		if idx == -1 {
			break
		}
		i++
		used[idx] = true
	}
	for _, u := range used {
		if !u {
			return Fit{Zero: zero, Next: start}
		}
	}
	return Fit{Zero: uint8(matchedZero), Next: i}
}

func fitClassesRelative[N HasActivationStatus](classes []uint8, notes *[128]N, start int) Fit {
	for zero := 0; zero < 12; zero++ {
		res := fitClassesFixed(classes, uint8(zero), notes, start)
		if res.Next > start {
			return res
		}
	}
	return NewWorstFit()
}

func fitVoicingFixed[N HasActivationStatus](blocks [][]uint8, zero uint8, notes *[128]N, start int) Fit {
	matchedZero := 255
	next := start
	i := 0
	for i < len(blocks) {
		res := fitClassesFixed(blocks[i], zero, notes, next)
		if int(res.Zero) < matchedZero {
			matchedZero = int(res.Zero)
		}
		if res.Next > next {
			next = res.Next
			i++
		} else {
			break
		}
	}
	if i == len(blocks) {
		return Fit{Zero: uint8(matchedZero), Next: next}
	}
	return Fit{Zero: zero, Next: start}
}

func fitVoicingRelative[N HasActivationStatus](blocks [][]uint8, notes *[128]N, start int) Fit {
	for zero := 0; zero < 12; zero++ {
		res := fitVoicingFixed(blocks, uint8(zero), notes, start)
		if res.Next > start {
			return res
		}
	}
	return NewWorstFit()
}
