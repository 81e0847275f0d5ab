package interval

import "math/big"

// Stack is a pitch: an integer target vector (names the note) and a
// rational actual vector (the sounding pitch once temperament adjustments
// are applied), both over the same Basis. Value-like; callers that mutate
// a Stack in place should Clone first if the original is still needed.
type Stack struct {
	basis  Basis
	Target []int64
	Actual []*big.Rat
}

// NewZero returns the origin Stack over basis: target and actual both zero.
func NewZero(basis Basis) *Stack {
	d := basis.Dim()
	target := make([]int64, d)
	actual := make([]*big.Rat, d)
	for i := range actual {
		actual[i] = big.NewRat(0, 1)
	}
	return &Stack{basis: basis, Target: target, Actual: actual}
}

// NewFromTarget builds a Stack from integer target coefficients, applying
// the given temperaments (selected by activeTemperaments, indexed the same
// way as temperaments) to derive actual.
func NewFromTarget(basis Basis, target []int64, temperaments []*Temperament, activeTemperaments []bool) *Stack {
	d := basis.Dim()
	t := make([]int64, d)
	copy(t, target)
	actual := make([]*big.Rat, d)
	for i, c := range t {
		actual[i] = big.NewRat(c, 1)
	}
	for i, active := range activeTemperaments {
		if active && i < len(temperaments) {
			temperaments[i].AddAdjustment(t, actual)
		}
	}
	return &Stack{basis: basis, Target: t, Actual: actual}
}

// NewFromPureInterval builds the Stack for exponent copies of the basis
// interval at index, with no temperament applied (actual == target).
func NewFromPureInterval(basis Basis, index int, exponent int64) *Stack {
	s := NewZero(basis)
	s.Target[index] = exponent
	s.Actual[index] = big.NewRat(exponent, 1)
	return s
}

// Clone returns a deep copy.
func (s *Stack) Clone() *Stack {
	target := make([]int64, len(s.Target))
	copy(target, s.Target)
	actual := make([]*big.Rat, len(s.Actual))
	for i, r := range s.Actual {
		actual[i] = new(big.Rat).Set(r)
	}
	return &Stack{basis: s.basis, Target: target, Actual: actual}
}

// Basis returns the interval basis this Stack is expressed over.
func (s *Stack) Basis() Basis {
	return s.basis
}

// ScaledAdd mutates s to s + scalar*other.
func (s *Stack) ScaledAdd(scalar int64, other *Stack) {
	for i := range s.Target {
		s.Target[i] += scalar * other.Target[i]
		term := new(big.Rat).Mul(other.Actual[i], big.NewRat(scalar, 1))
		s.Actual[i].Add(s.Actual[i], term)
	}
}

// Scale mutates s to scalar*s.
func (s *Stack) Scale(scalar int64) {
	for i := range s.Target {
		s.Target[i] *= scalar
		s.Actual[i].Mul(s.Actual[i], big.NewRat(scalar, 1))
	}
}

// IncrementAt adds increment to target[index] and actual[index], reapplying
// the active temperaments' commas for that basis interval scaled by
// increment.
func (s *Stack) IncrementAt(index int, increment int64, temperaments []*Temperament, activeTemperaments []bool) {
	s.Target[index] += increment
	s.Actual[index].Add(s.Actual[index], big.NewRat(increment, 1))
	for i, active := range activeTemperaments {
		if active && i < len(temperaments) {
			comma := temperaments[i].Comma(index)
			for j, c := range comma {
				term := new(big.Rat).Mul(c, big.NewRat(increment, 1))
				s.Actual[j].Add(s.Actual[j], term)
			}
		}
	}
}

// Retemper resets actual to target as rationals, then reapplies every
// active temperament. Idempotent.
func (s *Stack) Retemper(temperaments []*Temperament, activeTemperaments []bool) {
	for i, c := range s.Target {
		s.Actual[i] = big.NewRat(c, 1)
	}
	for i, active := range activeTemperaments {
		if active && i < len(temperaments) {
			temperaments[i].AddAdjustment(s.Target, s.Actual)
		}
	}
}

// IsTarget reports whether every actual entry is an integer equal to the
// corresponding target entry (no temperament applied).
func (s *Stack) IsTarget() bool {
	for i, r := range s.Actual {
		if !r.IsInt() {
			return false
		}
		if r.Num().Int64() != s.Target[i] {
			return false
		}
	}
	return true
}

// IsPure reports whether every actual entry is an integer (possibly
// different from target, but not fractionally detuned).
func (s *Stack) IsPure() bool {
	for _, r := range s.Actual {
		if !r.IsInt() {
			return false
		}
	}
	return true
}

// Semitones is the sounding pitch of this Stack, in equally-tempered-12
// semitones relative to the zero Stack.
func (s *Stack) Semitones() float64 {
	var res float64
	for i, r := range s.Actual {
		f, _ := new(big.Rat).Set(r).Float64()
		res += s.basis[i].Semitones * f
	}
	return res
}

// SemitonesAboveTarget is how many fractional semitones higher than the
// named (target) note the actually sounding pitch is.
func (s *Stack) SemitonesAboveTarget() float64 {
	var target float64
	for i, c := range s.Target {
		target += s.basis[i].Semitones * float64(c)
	}
	return s.Semitones() - target
}

// KeyDistance is the deterministic keyboard-semitone distance implied by
// target alone.
func (s *Stack) KeyDistance() int64 {
	var res int64
	for i, c := range s.Target {
		res += int64(s.basis[i].KeyDistance) * c
	}
	return res
}

// ResetToZero mutates s in place to the origin Stack.
func (s *Stack) ResetToZero() {
	for i := range s.Target {
		s.Target[i] = 0
		s.Actual[i] = big.NewRat(0, 1)
	}
}

// Equal reports whether two Stacks have identical target and actual
// coefficients over the same basis dimension.
func (s *Stack) Equal(other *Stack) bool {
	if len(s.Target) != len(other.Target) {
		return false
	}
	for i := range s.Target {
		if s.Target[i] != other.Target[i] {
			return false
		}
		if s.Actual[i].Cmp(other.Actual[i]) != 0 {
			return false
		}
	}
	return true
}
