package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func r(n int64) *big.Rat { return big.NewRat(n, 1) }
func rf(n, d int64) *big.Rat { return big.NewRat(n, d) }

type spring struct {
	start, end, length int
	stiffness          *big.Rat
}

type fixedSpring struct {
	node, length int
	stiffness    *big.Rat
}

type rod struct {
	start, end, length int
}

type systemSpec struct {
	lengths      [][]*big.Rat
	nNodes       int
	springs      []spring
	fixedSprings []fixedSpring
	rods         []rod
}

func solveSpec(t *testing.T, spec systemSpec) []*big.Rat {
	t.Helper()
	nLengths := len(spec.lengths)
	nBaseLengths := len(spec.lengths[0])

	sys := NewSystem(spec.nNodes, nLengths, nBaseLengths)
	sys.Prepare(spec.nNodes, nLengths, nBaseLengths)

	for i, row := range spec.lengths {
		sys.DefineLength(i, row)
	}
	for _, sp := range spec.springs {
		sys.AddSpring(sp.start, sp.end, sp.length, sp.stiffness)
	}
	for _, fs := range spec.fixedSprings {
		sys.AddFixedSpring(fs.node, fs.length, fs.stiffness)
	}
	for _, rd := range spec.rods {
		sys.AddRod(rd.start, rd.end, rd.length)
	}

	res, err := sys.Solve()
	require.NoError(t, err)
	return res
}

func assertMatrixEqual(t *testing.T, expected [][]*big.Rat, actual []*big.Rat, cols int) {
	t.Helper()
	for i, row := range expected {
		for j, want := range row {
			got := actual[i*cols+j]
			assert.Zerof(t, want.Cmp(got), "row %d col %d: want %v got %v", i, j, want, got)
		}
	}
}

func TestSolverResultLengths(t *testing.T) {
	cases := []struct {
		name     string
		spec     systemSpec
		expected [][]*big.Rat
	}{
		{
			"one node anchored to the origin",
			systemSpec{
				lengths:      [][]*big.Rat{{r(0)}},
				nNodes:       1,
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(0)}},
		},
		{
			"one node anchored to a point that is not the origin",
			systemSpec{
				lengths:      [][]*big.Rat{{r(1), r(0), r(0)}},
				nNodes:       1,
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(1), r(0), r(0)}},
		},
		{
			"one anchored node with one node attached to it",
			systemSpec{
				lengths:      [][]*big.Rat{{r(1), r(0), r(3)}, {r(0), r(2), r(0)}},
				nNodes:       2,
				springs:      []spring{{0, 1, 1, r(1)}},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(1), r(0), r(3)}, {r(1), r(2), r(3)}},
		},
		{
			"the right node is anchored instead",
			systemSpec{
				lengths:      [][]*big.Rat{{r(1), r(0), r(3)}, {r(0), r(2), r(0)}},
				nNodes:       2,
				springs:      []spring{{0, 1, 0, r(1)}},
				fixedSprings: []fixedSpring{{1, 1, r(1)}},
			},
			[][]*big.Rat{{r(-1), r(2), r(-3)}, {r(0), r(2), r(0)}},
		},
		{
			"three nodes a,b,c chained from anchored a",
			systemSpec{
				lengths:      [][]*big.Rat{{r(2), r(0), r(0)}, {r(0), r(3), r(0)}},
				nNodes:       3,
				springs:      []spring{{0, 1, 0, r(1)}, {1, 2, 1, r(1)}},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(2), r(0), r(0)}, {r(4), r(0), r(0)}, {r(4), r(3), r(0)}},
		},
		{
			"three nodes fully connected, equal springs",
			systemSpec{
				lengths: [][]*big.Rat{{r(0)}, {r(1)}},
				nNodes:  3,
				springs: []spring{
					{0, 1, 1, r(1)}, {1, 2, 1, r(1)}, {0, 2, 1, r(1)},
				},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(0)}, {rf(2, 3)}, {rf(4, 3)}},
		},
		{
			"three nodes fully connected, one spring twice as long",
			systemSpec{
				lengths: [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}, {r(2), r(0), r(0)}},
				nNodes:  3,
				springs: []spring{
					{0, 1, 1, r(1)}, {1, 2, 1, r(1)}, {0, 2, 2, r(1)},
				},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}, {r(2), r(0), r(0)}},
		},
		{
			"three nodes fully connected, one spring half as stiff",
			systemSpec{
				lengths: [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}},
				nNodes:  3,
				springs: []spring{
					{0, 1, 1, r(2)}, {1, 2, 1, r(2)}, {0, 2, 1, r(1)},
				},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
			},
			[][]*big.Rat{{r(0), r(0), r(0)}, {rf(3, 4), r(0), r(0)}, {rf(3, 2), r(0), r(0)}},
		},
		{
			"a rod with both ends attached to the origin",
			systemSpec{
				lengths:      [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}},
				nNodes:       2,
				fixedSprings: []fixedSpring{{0, 0, r(1)}, {1, 0, r(1)}},
				rods:         []rod{{0, 1, 1}},
			},
			[][]*big.Rat{{rf(-1, 2), r(0), r(0)}, {rf(1, 2), r(0), r(0)}},
		},
		{
			"three equal springs compressed between a rod's ends",
			systemSpec{
				lengths: [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}, {r(7), r(-13), r(5)}},
				nNodes:  4,
				springs: []spring{
					{0, 1, 2, r(1)}, {1, 2, 2, r(1)}, {2, 3, 2, r(1)},
				},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
				rods:         []rod{{0, 3, 1}},
			},
			[][]*big.Rat{{r(0), r(0), r(0)}, {rf(1, 3), r(0), r(0)}, {rf(2, 3), r(0), r(0)}, {r(1), r(0), r(0)}},
		},
		{
			"three unequal springs compressed between a rod's ends",
			systemSpec{
				lengths: [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}},
				nNodes:  4,
				springs: []spring{
					{0, 1, 1, r(1)}, {1, 2, 1, r(2)}, {2, 3, 1, r(1)},
				},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
				rods:         []rod{{0, 3, 1}},
			},
			[][]*big.Rat{{r(0), r(0), r(0)}, {rf(1, 5), r(0), r(0)}, {rf(4, 5), r(0), r(0)}, {r(1), r(0), r(0)}},
		},
		{
			"two rods connected by a spring, free ends anchored",
			systemSpec{
				lengths:      [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}},
				nNodes:       4,
				springs:      []spring{{1, 2, 1, r(1)}},
				fixedSprings: []fixedSpring{{0, 0, r(1)}, {3, 0, r(1)}},
				rods:         []rod{{0, 1, 1}, {2, 3, 1}},
			},
			[][]*big.Rat{{r(-1), r(0), r(0)}, {r(0), r(0), r(0)}, {r(0), r(0), r(0)}, {r(1), r(0), r(0)}},
		},
		{
			"a triangle of two rods and a spring under tension",
			systemSpec{
				lengths:      [][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}, {r(3), r(0), r(0)}},
				nNodes:       3,
				springs:      []spring{{1, 2, 1, r(1)}},
				fixedSprings: []fixedSpring{{0, 0, r(1)}},
				rods:         []rod{{0, 1, 1}, {0, 2, 2}},
			},
			[][]*big.Rat{{r(0), r(0), r(0)}, {r(1), r(0), r(0)}, {r(3), r(0), r(0)}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cols := len(c.expected[0])
			actual := solveSpec(t, c.spec)
			assertMatrixEqual(t, c.expected, actual, cols)
		})
	}
}

func TestSolverSingularReportsError(t *testing.T) {
	sys := NewSystem(2, 1, 1)
	sys.Prepare(2, 1, 1)
	sys.DefineLength(0, []*big.Rat{r(0)})
	// No springs, rods, or fixed springs at all: A is the zero matrix.
	_, err := sys.Solve()
	require.ErrorIs(t, err, ErrSingular)
}
