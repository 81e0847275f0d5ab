package interval

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrIndeterminateTemperament is returned by NewTemperament when the
// tempered matrix is singular: the D declared identifications don't pin
// down a unique adjustment.
var ErrIndeterminateTemperament = errors.New("interval: indeterminate temperament (tempered matrix is singular)")

// Temperament holds a D x D matrix of exact-rational "commas": row i is the
// adjustment, as a linear combination of basis intervals, applied to the
// i-th basis interval when the temperament is active.
type Temperament struct {
	Name        string
	adjustments []*big.Rat // row-major D*D
	dim         int
}

// NewTemperament computes the adjustment matrix tempered⁻¹·pure − I over
// exact rationals via Gauss-Jordan elimination (invertMatrix). Each row of
// tempered/pure is an integer linear combination of basis intervals;
// tempered must be invertible.
func NewTemperament(name string, tempered, pure [][]int64) (*Temperament, error) {
	d := len(tempered)
	if d == 0 {
		return nil, fmt.Errorf("interval: NewTemperament %q: empty matrix", name)
	}
	for _, row := range tempered {
		if len(row) != d {
			return nil, fmt.Errorf("interval: NewTemperament %q: tempered matrix must be square", name)
		}
	}
	if len(pure) != d {
		return nil, fmt.Errorf("interval: NewTemperament %q: pure matrix shape mismatch", name)
	}
	for _, row := range pure {
		if len(row) != d {
			return nil, fmt.Errorf("interval: NewTemperament %q: pure matrix must be square", name)
		}
	}

	temperedRat := ratMatrixFromInt(tempered)
	temperedInv, err := invertMatrix(temperedRat)
	if err != nil {
		if errors.Is(err, errSingular) {
			return nil, ErrIndeterminateTemperament
		}
		return nil, fmt.Errorf("interval: NewTemperament %q: %w", name, err)
	}

	pureRat := ratMatrixFromInt(pure)
	adjustments := matMul(temperedInv, pureRat, d, d, d)
	for i := 0; i < d; i++ {
		idx := i*d + i
		adjustments[idx] = new(big.Rat).Sub(adjustments[idx], big.NewRat(1, 1))
	}

	return &Temperament{Name: name, adjustments: adjustments, dim: d}, nil
}

// Comma returns the adjustment row for basis interval i: the error
// "tempered out" by it, as coefficients of a rational combination of basis
// intervals.
func (t *Temperament) Comma(i int) []*big.Rat {
	row := make([]*big.Rat, t.dim)
	for j := 0; j < t.dim; j++ {
		row[j] = new(big.Rat).Set(t.adjustments[i*t.dim+j])
	}
	return row
}

// AddAdjustment adds, in place, the temperament's adjustment for the given
// integer basis coefficients to output.
func (t *Temperament) AddAdjustment(coefficients []int64, output []*big.Rat) {
	for i := 0; i < t.dim; i++ {
		for j := 0; j < t.dim; j++ {
			if coefficients[i] == 0 {
				continue
			}
			term := new(big.Rat).Mul(t.adjustments[i*t.dim+j], big.NewRat(coefficients[i], 1))
			output[j].Add(output[j], term)
		}
	}
}

func ratMatrixFromInt(m [][]int64) []*big.Rat {
	d := len(m)
	out := make([]*big.Rat, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			out[i*d+j] = big.NewRat(m[i][j], 1)
		}
	}
	return out
}
