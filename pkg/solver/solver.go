// Package solver implements the 1-D mass-spring linear system over exact
// rationals that the spring harmony strategy uses to position sounding
// keys relative to each other.
package solver

import (
	"errors"
	"math/big"
)

// ErrSingular is returned by Solve when the assembled stiffness matrix A is
// singular: the spring/rod configuration does not constrain every node.
var ErrSingular = errors.New("solver: singular system (underconstrained node configuration)")

// System is a reusable mass-spring workspace. Call Prepare before each
// solve to reset and (if needed) grow the internal matrices.
type System struct {
	nNodes, nLengths, nBaseLengths int
	a                              []*big.Rat // nNodes x nNodes
	b                              []*big.Rat // nNodes x nLengths
	l                              []*big.Rat // nLengths x nBaseLengths
}

// NewSystem allocates a System with the given initial capacity; Prepare
// will grow it transparently if a later solve needs more room.
func NewSystem(nNodes, nLengths, nBaseLengths int) *System {
	s := &System{}
	s.grow(nNodes, nLengths, nBaseLengths)
	return s
}

func (s *System) grow(nNodes, nLengths, nBaseLengths int) {
	if nNodes > s.nNodes {
		s.nNodes = nNodes
	}
	if nLengths > s.nLengths {
		s.nLengths = nLengths
	}
	if nBaseLengths > s.nBaseLengths {
		s.nBaseLengths = nBaseLengths
	}
	s.a = zeroRats(s.nNodes * s.nNodes)
	s.b = zeroRats(s.nNodes * s.nLengths)
	s.l = zeroRats(s.nLengths * s.nBaseLengths)
}

// Prepare resets the system to all-zero for the given dimensions, growing
// backing storage if necessary. Must be called before each independent
// solve.
func (s *System) Prepare(nNodes, nLengths, nBaseLengths int) {
	if nNodes > s.nNodes || nLengths > s.nLengths || nBaseLengths > s.nBaseLengths {
		s.grow(nNodes, nLengths, nBaseLengths)
	}
	s.nNodes, s.nLengths, s.nBaseLengths = nNodes, nLengths, nBaseLengths
	for i := range s.a {
		s.a[i] = big.NewRat(0, 1)
	}
	for i := range s.b {
		s.b[i] = big.NewRat(0, 1)
	}
	for i := range s.l {
		s.l[i] = big.NewRat(0, 1)
	}
}

func zeroRats(n int) []*big.Rat {
	out := make([]*big.Rat, n)
	for i := range out {
		out[i] = big.NewRat(0, 1)
	}
	return out
}

func (s *System) aAt(i, j int) *big.Rat { return s.a[i*s.nNodes+j] }
func (s *System) bAt(i, j int) *big.Rat { return s.b[i*s.nLengths+j] }

// DefineLength sets length i's coefficients over the basis to coefficients.
func (s *System) DefineLength(i int, coefficients []*big.Rat) {
	for j, c := range coefficients {
		s.l[i*s.nBaseLengths+j] = new(big.Rat).Set(c)
	}
}

// DefineZeroLength sets length i to the zero vector.
func (s *System) DefineZeroLength(i int) {
	for j := 0; j < s.nBaseLengths; j++ {
		s.l[i*s.nBaseLengths+j] = big.NewRat(0, 1)
	}
}

// AddSpring connects start and end with a spring of the given length index
// and positive stiffness. Must be called at most once per unordered pair
// {start, end}.
func (s *System) AddSpring(start, end, length int, stiffness *big.Rat) {
	s.a[start*s.nNodes+end] = new(big.Rat).Add(s.aAt(start, end), stiffness)
	s.a[end*s.nNodes+start] = new(big.Rat).Add(s.aAt(end, start), stiffness)
	s.a[start*s.nNodes+start] = new(big.Rat).Sub(s.aAt(start, start), stiffness)
	s.a[end*s.nNodes+end] = new(big.Rat).Sub(s.aAt(end, end), stiffness)

	if start < end {
		s.b[start*s.nLengths+length] = new(big.Rat).Add(s.bAt(start, length), stiffness)
		s.b[end*s.nLengths+length] = new(big.Rat).Sub(s.bAt(end, length), stiffness)
	} else {
		s.b[start*s.nLengths+length] = new(big.Rat).Sub(s.bAt(start, length), stiffness)
		s.b[end*s.nLengths+length] = new(big.Rat).Add(s.bAt(end, length), stiffness)
	}
}

// AddFixedSpring anchors node to a fixed point at the given length index
// with positive stiffness. Must be called at most once per node.
func (s *System) AddFixedSpring(node, length int, stiffness *big.Rat) {
	s.a[node*s.nNodes+node] = new(big.Rat).Sub(s.aAt(node, node), stiffness)
	s.b[node*s.nLengths+length] = new(big.Rat).Sub(s.bAt(node, length), stiffness)
}

// AddRod rigidly fixes the displacement end - start to the given length.
// Must be called after all springs and fixed springs, at most once per
// value of end, and end may never again appear as a start or end argument
// afterward (callers must preprocess rod chains to satisfy this).
func (s *System) AddRod(start, end, length int) {
	for j := 0; j < s.nNodes; j++ {
		s.a[start*s.nNodes+j] = new(big.Rat).Add(s.aAt(start, j), s.aAt(end, j))
	}
	for j := 0; j < s.nNodes; j++ {
		s.a[end*s.nNodes+j] = big.NewRat(0, 1)
	}
	s.a[end*s.nNodes+start] = big.NewRat(-1, 1)
	s.a[end*s.nNodes+end] = big.NewRat(1, 1)

	for j := 0; j < s.nLengths; j++ {
		s.b[start*s.nLengths+j] = new(big.Rat).Add(s.bAt(start, j), s.bAt(end, j))
	}
	for j := 0; j < s.nLengths; j++ {
		s.b[end*s.nLengths+j] = big.NewRat(0, 1)
	}
	s.b[end*s.nLengths+length] = big.NewRat(1, 1)
}

// Solve computes X = A^-1 . B . L, an nNodes x nBaseLengths matrix of node
// positions, returned row-major.
func (s *System) Solve() ([]*big.Rat, error) {
	bl := matMul(s.b, s.l, s.nNodes, s.nLengths, s.nBaseLengths)
	ainv, err := invert(s.a, s.nNodes)
	if err != nil {
		return nil, err
	}
	res := matMul(ainv, bl, s.nNodes, s.nNodes, s.nBaseLengths)
	return res, nil
}

// Row returns row i of a solution matrix with the given column count.
func Row(solution []*big.Rat, i, cols int) []*big.Rat {
	return solution[i*cols : (i+1)*cols]
}

func matMul(a, b []*big.Rat, rows, inner, cols int) []*big.Rat {
	out := make([]*big.Rat, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sum := big.NewRat(0, 1)
			for k := 0; k < inner; k++ {
				term := new(big.Rat).Mul(a[i*inner+k], b[k*cols+j])
				sum.Add(sum, term)
			}
			out[i*cols+j] = sum
		}
	}
	return out
}

func invert(a []*big.Rat, n int) ([]*big.Rat, error) {
	augmented := make([][]*big.Rat, n)
	for i := 0; i < n; i++ {
		row := make([]*big.Rat, 2*n)
		for j := 0; j < n; j++ {
			row[j] = new(big.Rat).Set(a[i*n+j])
		}
		for j := 0; j < n; j++ {
			if i == j {
				row[n+j] = big.NewRat(1, 1)
			} else {
				row[n+j] = big.NewRat(0, 1)
			}
		}
		augmented[i] = row
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if augmented[r][col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, ErrSingular
		}
		augmented[col], augmented[pivot] = augmented[pivot], augmented[col]

		pivotVal := augmented[col][col]
		for j := 0; j < 2*n; j++ {
			augmented[col][j] = new(big.Rat).Quo(augmented[col][j], pivotVal)
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := augmented[r][col]
			if factor.Sign() == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				term := new(big.Rat).Mul(factor, augmented[col][j])
				augmented[r][j] = new(big.Rat).Sub(augmented[r][j], term)
			}
		}
	}

	inv := make([]*big.Rat, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv[i*n+j] = augmented[i][n+j]
		}
	}
	return inv, nil
}
