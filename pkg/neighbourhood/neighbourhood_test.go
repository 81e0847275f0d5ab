package neighbourhood

import (
	"testing"

	"github.com/kjhall/adaptuner/pkg/interval"
	"github.com/stretchr/testify/assert"
)

func targets(t *testing.T, n *Neighbourhood) [12][]int64 {
	t.Helper()
	var out [12][]int64
	for i, s := range n.Stacks {
		out[i] = append([]int64{}, s.Target...)
	}
	return out
}

func TestFiveLimitCorridorNeighbours(t *testing.T) {
	octave := interval.NewFromPureInterval(interval.FiveLimit, 0, 1)

	cases := []struct {
		name          string
		width, offset int64
		index         int64
		want          [12][]int64
	}{
		{
			"width 12, offset 0, index 0",
			12, 0, 0,
			[12][]int64{
				{0, 0, 0}, {-4, 7, 0}, {-1, 2, 0}, {-5, 9, 0},
				{-2, 4, 0}, {-6, 11, 0}, {-3, 6, 0}, {0, 1, 0},
				{-4, 8, 0}, {-1, 3, 0}, {-5, 10, 0}, {-2, 5, 0},
			},
		},
		{
			"width 3, offset 0, index 0",
			3, 0, 0,
			[12][]int64{
				{0, 0, 0}, {0, -1, 2}, {-1, 2, 0}, {1, -3, 3},
				{0, 0, 1}, {0, -1, 3}, {1, -2, 2}, {0, 1, 0},
				{0, 0, 2}, {1, -1, 1}, {1, -2, 3}, {0, 1, 1},
			},
		},
		{
			"width 5, offset 0, index 0",
			5, 0, 0,
			[12][]int64{
				{0, 0, 0}, {-2, 3, 1}, {-1, 2, 0}, {-3, 5, 1},
				{-2, 4, 0}, {-2, 3, 2}, {-1, 2, 1}, {0, 1, 0},
				{-2, 4, 1}, {-1, 3, 0}, {-1, 2, 2}, {0, 1, 1},
			},
		},
		{
			"width 4, offset 0, index 4",
			4, 0, 4,
			[12][]int64{
				{0, 0, 0}, {-2, 3, 1}, {-1, 2, 0}, {0, 1, -1},
				{0, 0, 1}, {-1, 3, -1}, {-1, 2, 1}, {0, 1, 0},
				{1, 0, -1}, {-1, 3, 0}, {0, 2, -1}, {0, 1, 1},
			},
		},
		{
			"width 4, offset 3, index 0",
			4, 3, 0,
			[12][]int64{
				{0, 0, 0}, {0, -1, 2}, {1, -2, 1}, {1, -3, 3},
				{0, 0, 1}, {0, -1, 3}, {1, -2, 2}, {2, -3, 1},
				{0, 0, 2}, {1, -1, 1}, {1, -2, 3}, {2, -3, 2},
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := NewFiveLimitCorridor(interval.FiveLimit, octave, nil, []bool{false, false}, c.width, c.index, c.offset)
			got := targets(t, n)
			assert.Equal(t, c.want, got)
			assert.True(t, n.Stacks[0].IsTarget())
		})
	}
}

func TestNeighbourhoodAtFoldsPeriods(t *testing.T) {
	octave := interval.NewFromPureInterval(interval.FiveLimit, 0, 1)
	n := NewFiveLimitCorridor(interval.FiveLimit, octave, nil, []bool{false, false}, 12, 0, 0)

	unison := n.At(0)
	assert.Equal(t, int64(0), unison.KeyDistance())

	oneOctaveUp := n.At(12)
	assert.Equal(t, int64(12), oneOctaveUp.KeyDistance())

	oneOctaveDown := n.At(-12)
	assert.Equal(t, int64(-12), oneOctaveDown.KeyDistance())
}
