package interval

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quarterCommaMeantone is the classical "temper fifths down by a quarter
// syntonic comma" temperament: four tempered fifths equal two octaves plus
// a third, octaves and thirds stay pure.
func quarterCommaMeantone(t *testing.T) *Temperament {
	t.Helper()
	tempered := [][]int64{{0, 4, 0}, {1, 0, 0}, {0, 0, 1}}
	pure := [][]int64{{2, 0, 1}, {1, 0, 0}, {0, 0, 1}}
	tp, err := NewTemperament("quarter-comma meantone", tempered, pure)
	require.NoError(t, err)
	return tp
}

// edo12 tempers both the fifth and third to their 12-tone-equal sizes:
// twelve fifths equal seven octaves, and three thirds equal one octave.
func edo12(t *testing.T) *Temperament {
	t.Helper()
	tempered := [][]int64{{1, 0, 0}, {0, 12, 0}, {0, 0, 3}}
	pure := [][]int64{{1, 0, 0}, {7, 0, 0}, {1, 0, 0}}
	tp, err := NewTemperament("12-edo", tempered, pure)
	require.NoError(t, err)
	return tp
}

func TestTemperamentQuarterCommaMeantoneAdjustment(t *testing.T) {
	tp := quarterCommaMeantone(t)

	octave := NewZero(FiveLimit)
	octave.IncrementAt(0, 1, []*Temperament{tp}, []bool{true})
	assert.True(t, octave.IsTarget())

	fifth := NewZero(FiveLimit)
	fifth.IncrementAt(1, 1, []*Temperament{tp}, []bool{true})
	assert.False(t, fifth.IsTarget())
	assert.Equal(t, 0, fifth.Actual[0].Cmp(big.NewRat(2, 4)))
	assert.Equal(t, 0, fifth.Actual[1].Cmp(big.NewRat(0, 1)))
	assert.Equal(t, 0, fifth.Actual[2].Cmp(big.NewRat(1, 4)))

	third := NewZero(FiveLimit)
	third.IncrementAt(2, 1, []*Temperament{tp}, []bool{true})
	assert.True(t, third.IsTarget())
}

func TestTemperamentSingularIsIndeterminate(t *testing.T) {
	tempered := [][]int64{{0, 0}, {1, 0}}
	pure := [][]int64{{1, 0}, {0, 1}}
	_, err := NewTemperament("degenerate", tempered, pure)
	require.ErrorIs(t, err, ErrIndeterminateTemperament)
}

func TestStackSemitones(t *testing.T) {
	fifth := 12.0 * math.Log2(3.0/2.0)
	third := 12.0 * math.Log2(5.0/4.0)
	quarterCommaDown := 12.0 * math.Log2(80.0/81.0) / 4.0
	edo12ThirdErr := 4.0 - third
	edo12FifthErr := 7.0 - fifth

	qc := quarterCommaMeantone(t)
	edo := edo12(t)
	const eps = 1e-9

	cases := []struct {
		name     string
		target   []int64
		active   []*Temperament
		mask     []bool
		semis    float64
		above    float64
	}{
		{"third/no-temperament", []int64{0, 0, 1}, nil, nil, third, 0},
		{"third/quartercomma", []int64{0, 0, 1}, []*Temperament{qc}, []bool{true}, third, 0},
		{"third/edo12", []int64{0, 0, 1}, []*Temperament{edo}, []bool{true}, 4.0, edo12ThirdErr},
		{"fifth/no-temperament", []int64{0, 1, 0}, nil, nil, fifth, 0},
		{"fifth/quartercomma", []int64{0, 1, 0}, []*Temperament{qc}, []bool{true}, fifth + quarterCommaDown, quarterCommaDown},
		{"fifth/edo12", []int64{0, 1, 0}, []*Temperament{edo}, []bool{true}, 7.0, edo12FifthErr},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := NewFromTarget(FiveLimit, c.target, c.active, c.mask)
			assert.InDelta(t, c.semis, s.Semitones(), eps)
			assert.InDelta(t, c.above, s.SemitonesAboveTarget(), eps)
		})
	}
}

func TestStackRollovers(t *testing.T) {
	octave := 12.0
	third := 12.0 * math.Log2(5.0/4.0)
	quarterCommaDown := 12.0 * math.Log2(80.0/81.0) / 4.0
	edo12ThirdErr := 4.0 - third

	qc := quarterCommaMeantone(t)
	edo := edo12(t)
	const eps = 1e-9

	s := NewFromTarget(FiveLimit, []int64{0, 4, 0}, []*Temperament{qc}, []bool{true})
	assert.InDelta(t, 2*octave+third, s.Semitones(), eps)
	assert.InDelta(t, 4*quarterCommaDown, s.SemitonesAboveTarget(), eps)
	assert.True(t, s.IsPure())
	assert.False(t, s.IsTarget())

	s2 := NewFromTarget(FiveLimit, []int64{0, 0, 4}, []*Temperament{edo}, []bool{true})
	assert.InDelta(t, octave+third+edo12ThirdErr, s2.Semitones(), eps)
	assert.InDelta(t, 4*edo12ThirdErr, s2.SemitonesAboveTarget(), eps)
	assert.False(t, s2.IsPure())
	assert.False(t, s2.IsTarget())
}

func TestStackScaledAddAndKeyDistance(t *testing.T) {
	a := NewFromPureInterval(FiveLimit, 1, 1) // fifth
	b := NewFromPureInterval(FiveLimit, 2, 1) // third
	a.ScaledAdd(1, b)
	assert.Equal(t, int64(7+4), a.KeyDistance())
}

func TestStackIsOnTargetImpliesIsPure(t *testing.T) {
	qc := quarterCommaMeantone(t)
	s := NewFromTarget(FiveLimit, []int64{1, 0, 1}, []*Temperament{qc}, []bool{true})
	if s.IsTarget() {
		assert.True(t, s.IsPure())
	}
}

func TestRetemperIsIdempotent(t *testing.T) {
	qc := quarterCommaMeantone(t)
	s := NewFromTarget(FiveLimit, []int64{0, 1, 0}, []*Temperament{qc}, []bool{true})
	before := s.Clone()
	s.Retemper([]*Temperament{qc}, []bool{true})
	s.Retemper([]*Temperament{qc}, []bool{true})
	assert.True(t, s.Equal(before))
}
