package harmony

import (
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/kjhall/adaptuner/pkg/interval"
	"github.com/kjhall/adaptuner/pkg/solver"
)

// Spring is one candidate just-intonation interval a spring connector may
// relax to, with the stiffness (spring constant) that candidate pulls
// with.
type Spring struct {
	Length    *interval.Stack
	Stiffness *big.Rat
}

// RodOrSprings is either a single rigid Rod interval, or a list of
// candidate Springs to choose among.
type RodOrSprings struct {
	IsRod   bool
	Rod     *interval.Stack
	Springs []Spring
}

// HarmonySpringsProvider supplies, for a signed keyboard distance modulo
// 12, whether that connector is a rigid rod or a set of candidate
// springs, folding octaves so that e.g. a tenth consults the same
// class as a third.
type HarmonySpringsProvider struct {
	ByClass [12]RodOrSprings
	Octave  *interval.Stack
}

// ConnectorKind discriminates Connector.
type ConnectorKind int

const (
	ConnectorNone ConnectorKind = iota
	ConnectorSpring
	ConnectorRod
)

// Connector is what connects two keys: nothing, a spring (to be chosen
// among provider.CandidateSprings), or a fixed rod interval.
type Connector struct {
	Kind ConnectorKind
	Rod  *interval.Stack
}

func floorDivInt8(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorModInt8(a, b int) int {
	return a - floorDivInt8(a, b)*b
}

// WhichConnector returns the Connector between key i (at keyboard key
// iKey) and key j (at keyboard key jKey).
func (p *HarmonySpringsProvider) WhichConnector(iKey, jKey uint8) Connector {
	d := int(jKey) - int(iKey)
	rem := floorModInt8(d, 12)
	entry := p.ByClass[rem]
	if entry.IsRod {
		quot := int64(floorDivInt8(d, 12))
		rod := entry.Rod.Clone()
		rod.ScaledAdd(quot, p.Octave)
		return Connector{Kind: ConnectorRod, Rod: rod}
	}
	return Connector{Kind: ConnectorSpring}
}

// CandidateSprings returns the candidate (length, stiffness) pairs for a
// signed keyboard distance d, shifted by the appropriate number of
// octaves. Panics if the class at d mod 12 is a rod, not springs.
func (p *HarmonySpringsProvider) CandidateSprings(d int) []Spring {
	rem := floorModInt8(d, 12)
	entry := p.ByClass[rem]
	if entry.IsRod {
		panic("harmony: cannot compute candidate springs for a rod connector")
	}
	quot := int64(floorDivInt8(d, 12))
	out := make([]Spring, len(entry.Springs))
	for i, s := range entry.Springs {
		shifted := s.Length.Clone()
		shifted.ScaledAdd(quot, p.Octave)
		out[i] = Spring{Length: shifted, Stiffness: s.Stiffness}
	}
	return out
}

type pairKey struct{ I, J int }

func lessPair(a, b pairKey) bool {
	if a.I != b.I {
		return a.I < b.I
	}
	return a.J < b.J
}

type springInfo struct {
	solverLengthIndex     int
	memoKey               int
	currentCandidateIndex int
}

// springSetup tracks the current spring/rod graph for the keys currently
// sounding, mirroring SpringSetup in the original.
type springSetup struct {
	memoedSprings map[int][]Spring
	springKeys    []pairKey
	springs       map[pairKey]*springInfo
	rodKeys       []pairKey
	rods          map[pairKey]*interval.Stack
}

func newSpringSetup() *springSetup {
	return &springSetup{
		memoedSprings: map[int][]Spring{},
		springs:       map[pairKey]*springInfo{},
		rods:          map[pairKey]*interval.Stack{},
	}
}

func (s *springSetup) nSprings() int { return len(s.springKeys) }
func (s *springSetup) nRods() int    { return len(s.rodKeys) }

// collectSpringsAndRods rebuilds the connector graph for keys (sorted
// ascending keyboard key numbers, one entry per sounding note), then
// collapses chains of collinear rods into single rods so that
// pkg/solver.System.AddRod's every-end-used-once invariant holds.
func (s *springSetup) collectSpringsAndRods(keys []uint8, which func(i, j int, ik, jk uint8) Connector, candidate func(d int) []Spring, memoSprings bool) {
	s.rods = map[pairKey]*interval.Stack{}
	s.rodKeys = nil
	s.springs = map[pairKey]*springInfo{}
	s.springKeys = nil

	if !memoSprings {
		s.memoedSprings = map[int][]Spring{}
	}

	n := len(keys)
	springIndex := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			conn := which(i, j, keys[i], keys[j])
			switch conn.Kind {
			case ConnectorSpring:
				d := int(keys[j]) - int(keys[i])
				if _, ok := s.memoedSprings[d]; !ok {
					s.memoedSprings[d] = candidate(d)
				}
				k := pairKey{i, j}
				s.springs[k] = &springInfo{solverLengthIndex: springIndex, memoKey: d, currentCandidateIndex: 0}
				s.springKeys = append(s.springKeys, k)
				springIndex++
			case ConnectorRod:
				k := pairKey{i, j}
				s.rods[k] = conn.Rod
				s.rodKeys = append(s.rodKeys, k)
			}
		}
	}
	sort.Slice(s.springKeys, func(a, b int) bool { return lessPair(s.springKeys[a], s.springKeys[b]) })
	sort.Slice(s.rodKeys, func(a, b int) bool { return lessPair(s.rodKeys[a], s.rodKeys[b]) })

	// collapse collinear rod chains i-j-k into i-k, matching AddRod's
	// requirement that an end index is used at most once.
	for k := n - 1; k >= 0; k-- {
		for j := k - 1; j >= 0; j-- {
			for i := j - 1; i >= 0; i-- {
				b, ok := s.takeRod(j, k)
				if !ok {
					continue
				}
				a, hasA := s.rods[pairKey{i, j}]
				c, hasC := s.rods[pairKey{i, k}]
				switch {
				case !hasA && !hasC:
					s.setRod(j, k, b)
				case hasA && !hasC:
					bPlusA := b.Clone()
					bPlusA.ScaledAdd(1, a)
					s.setRod(i, k, bPlusA)
				case !hasA && hasC:
					cMinusB := b.Clone()
					cMinusB.Scale(-1)
					cMinusB.ScaledAdd(1, c)
					s.setRod(i, j, cMinusB)
				default:
					// i, j, k collinear: b is redundant with a and c.
				}
			}
		}
	}
}

func (s *springSetup) takeRod(i, j int) (*interval.Stack, bool) {
	k := pairKey{i, j}
	st, ok := s.rods[k]
	if ok {
		delete(s.rods, k)
		s.removeRodKey(k)
	}
	return st, ok
}

func (s *springSetup) setRod(i, j int, st *interval.Stack) {
	k := pairKey{i, j}
	if _, existed := s.rods[k]; !existed {
		s.rodKeys = append(s.rodKeys, k)
	}
	s.rods[k] = st
}

func (s *springSetup) removeRodKey(k pairKey) {
	for idx, rk := range s.rodKeys {
		if rk == k {
			s.rodKeys = append(s.rodKeys[:idx], s.rodKeys[idx+1:]...)
			return
		}
	}
}

func (s *springSetup) sortedRodKeys() []pairKey {
	out := append([]pairKey{}, s.rodKeys...)
	sort.Slice(out, func(a, b int) bool { return lessPair(out[a], out[b]) })
	return out
}

// currentSpring returns the currently selected candidate for an already
// collected spring.
func (s *springSetup) currentSpring(k pairKey) (Spring, int) {
	info := s.springs[k]
	candidates := s.memoedSprings[info.memoKey]
	return candidates[info.currentCandidateIndex], info.solverLengthIndex
}

// prepareNextCandidate advances to the next untried combination of spring
// candidates, odometer-style. changeFromBack iterates the springs in
// reverse key order first when lowerNotesAreMoreStable is set, so that
// the springs between higher (less stable) notes are retried before
// springs between lower (more stable) notes. Reports whether a next
// combination exists.
func (s *springSetup) prepareNextCandidate(changeFromBack bool) bool {
	order := append([]pairKey{}, s.springKeys...)
	if changeFromBack {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	for _, k := range order {
		info := s.springs[k]
		maxIx := len(s.memoedSprings[info.memoKey]) - 1
		if info.currentCandidateIndex < maxIx {
			info.currentCandidateIndex++
			return true
		}
		info.currentCandidateIndex = 0
	}
	return false
}

func semitonesFromActual(basis interval.Basis, actual []*big.Rat) float64 {
	var res float64
	for i, r := range actual {
		f, _ := new(big.Rat).Set(r).Float64()
		res += basis[i].Semitones * f
	}
	return res
}

func relativeSemitonesInSolutionRows(basis interval.Basis, i, j int, solution []*big.Rat, cols int) float64 {
	return semitonesFromActual(basis, solver.Row(solution, j, cols)) - semitonesFromActual(basis, solver.Row(solution, i, cols))
}

func (s *springSetup) energyIn(basis interval.Basis, solution []*big.Rat, cols int) float64 {
	var energy float64
	for _, k := range s.springKeys {
		spring, _ := s.currentSpring(k)
		length := spring.Length.Semitones()
		if spring.Stiffness.Sign() != 0 {
			stiffness, _ := new(big.Rat).Set(spring.Stiffness).Float64()
			diff := length - relativeSemitonesInSolutionRows(basis, k.I, k.J, solution, cols)
			energy += stiffness * diff * diff
		}
	}
	return energy
}

func (s *springSetup) relaxedIn(basis interval.Basis, solution []*big.Rat, cols int) bool {
	for _, k := range s.springKeys {
		spring, _ := s.currentSpring(k)
		ri := solver.Row(solution, k.I, cols)
		rj := solver.Row(solution, k.J, cols)
		for d := 0; d < basis.Dim(); d++ {
			want := new(big.Rat).Sub(rj[d], ri[d])
			if spring.Length.Actual[d].Cmp(want) != 0 {
				return false
			}
		}
	}
	return true
}

// HarmonySpringsConfig configures a HarmonySprings strategy.
type HarmonySpringsConfig struct {
	MemoSprings                 bool
	MinimumNumberOfSoundingKeys int
	LowerNotesAreMoreStable     bool
	Provider                    HarmonySpringsProvider
	Timeout                     time.Duration
}

// HarmonySprings is the mass-spring harmony strategy: it lays sounding
// keys out along a line of exact-rational positions, connected by either
// rigid rods (intervals that must stay exact) or springs (intervals that
// may detune to minimize total energy), and searches spring candidate
// combinations until a zero-energy ("relaxed") solution is found or a
// wall-clock deadline passes.
type HarmonySprings[N HasActivationStatus] struct {
	basis interval.Basis
	cfg   HarmonySpringsConfig

	keys  []uint8
	setup *springSetup
	sys   *solver.System

	solveStart time.Time
	relaxed    bool
	energy     float64

	solutionActuals    []*big.Rat
	solutionCols       int
	solutionCandidates map[pairKey]int

	now func() time.Time
}

// NewHarmonySprings constructs a HarmonySprings strategy. now supplies
// the current wall-clock time (injected so the deadline loop is
// testable); pass time.Now in production.
func NewHarmonySprings[N HasActivationStatus](basis interval.Basis, cfg HarmonySpringsConfig, now func() time.Time) *HarmonySprings[N] {
	return &HarmonySprings[N]{
		basis: basis,
		cfg:   cfg,
		setup: newSpringSetup(),
		sys:   solver.NewSystem(10, 45, basis.Dim()),
		now:   now,
	}
}

// TuningSource supplies, for a key index, its currently sounding tuning
// Stack. Every strategy receives one on Solve so both implementations
// share a signature; HarmonySprings derives its neighbourhood from the
// solver output and does not consult it.
type TuningSource interface {
	SoundingSource
}

func (h *HarmonySprings[N]) initialise(keys *[128]N) {
	h.keys = h.keys[:0]
	for i, k := range keys {
		if k.Active() {
			h.keys = append(h.keys, uint8(i))
		}
	}
	h.setup.collectSpringsAndRods(h.keys,
		func(i, j int, ik, jk uint8) Connector { return h.cfg.Provider.WhichConnector(ik, jk) },
		func(d int) []Spring { return h.cfg.Provider.CandidateSprings(d) },
		h.cfg.MemoSprings,
	)
	h.solveStart = h.now()
	h.relaxed = false
	h.energy = posInf
}

var posInf = math.Inf(1)

func (h *HarmonySprings[N]) computeSolutionActuals() bool {
	nNodes := len(h.keys)
	nSprings := h.setup.nSprings()
	nRods := h.setup.nRods()
	nLengths := nSprings + nRods + 1
	nBaseLengths := h.basis.Dim()

	h.sys.Prepare(nNodes, nLengths, nBaseLengths)

	for _, k := range h.setup.springKeys {
		spring, lengthIdx := h.setup.currentSpring(k)
		h.sys.AddSpring(k.I, k.J, lengthIdx, spring.Stiffness)
		h.sys.DefineLength(lengthIdx, spring.Length.Actual)
	}

	lengthIdx := nSprings
	for _, k := range h.setup.sortedRodKeys() {
		stack := h.setup.rods[k]
		h.sys.AddRod(k.I, k.J, lengthIdx)
		h.sys.DefineLength(lengthIdx, stack.Actual)
		lengthIdx++
	}

	h.sys.DefineZeroLength(lengthIdx)
	h.sys.AddFixedSpring(0, lengthIdx, big.NewRat(1, 1))

	solution, err := h.sys.Solve()
	if err != nil {
		return false
	}

	cols := nBaseLengths
	copySolution := false
	if h.setup.relaxedIn(h.basis, solution, cols) {
		h.relaxed = true
		h.energy = 0
		copySolution = true
	} else {
		newEnergy := h.setup.energyIn(h.basis, solution, cols)
		if newEnergy < h.energy {
			h.energy = newEnergy
			copySolution = true
		}
	}
	if copySolution {
		h.solutionActuals = solution
		h.solutionCols = cols
		// The odometer keeps advancing after this; remember which
		// candidate produced the solution being kept.
		h.solutionCandidates = make(map[pairKey]int, len(h.setup.springKeys))
		for _, k := range h.setup.springKeys {
			h.solutionCandidates[k] = h.setup.springs[k].currentCandidateIndex
		}
	}
	return true
}

// Solve runs the energy-minimization search and returns the resulting
// Harmony (always pattern index nil, since HarmonySprings is not a
// pattern-list strategy), or (nil, nil) if too few keys are sounding or
// no candidate combination ever solves. tunings is unused: the returned
// neighbourhood is read back from the solver result, not from the keys'
// previous tunings.
func (h *HarmonySprings[N]) Solve(keys *[128]N, tunings TuningSource) (*int, *Harmony) {
	h.initialise(keys)
	if len(h.keys) < h.cfg.MinimumNumberOfSoundingKeys {
		return nil, nil
	}

	computedAtLeastOne := h.computeSolutionActuals()
	for h.now().Sub(h.solveStart) <= h.cfg.Timeout {
		if h.relaxed {
			break
		}
		if !h.setup.prepareNextCandidate(h.cfg.LowerNotesAreMoreStable) {
			break
		}
		if h.computeSolutionActuals() {
			computedAtLeastOne = true
		}
	}

	if !computedAtLeastOne {
		return nil, nil
	}

	return nil, &Harmony{Neighbourhood: h.solvedNeighbourhood(), Reference: int64(h.keys[0])}
}

// solvedNeighbourhood reads the winning solution back out as one Stack
// per sounding key, relative to the anchor (lowest) key: the anchor is
// the zero stack, every other key's actual coefficients come straight
// from the solved node positions, and its target coefficients are the
// cumulative rod- or chosen-spring-prescribed targets along a path from
// the anchor. Rod targets are propagated first: when a detuned solution
// leaves two paths disagreeing by a comma, the rigid interval decides
// the note name. Rod collapse can remove a direct connector, in which
// case the target completes through an intermediate key.
func (h *HarmonySprings[N]) solvedNeighbourhood() *PartialNeighbourhood {
	n := len(h.keys)
	dim := h.basis.Dim()

	rodTargets := make(map[pairKey][]int64, len(h.setup.rodKeys))
	for _, k := range h.setup.rodKeys {
		rodTargets[k] = h.setup.rods[k].Target
	}
	allTargets := make(map[pairKey][]int64, len(h.setup.rodKeys)+len(h.setup.springKeys))
	for k, t := range rodTargets {
		allTargets[k] = t
	}
	for _, k := range h.setup.springKeys {
		candidates := h.setup.memoedSprings[h.setup.springs[k].memoKey]
		allTargets[k] = candidates[h.solutionCandidates[k]].Length.Target
	}

	known := make([][]int64, n)
	known[0] = make([]int64, dim)
	propagate := func(pairTargets map[pairKey][]int64) {
		for changed := true; changed; {
			changed = false
			for j := 1; j < n; j++ {
				if known[j] != nil {
					continue
				}
				for i := 0; i < n && known[j] == nil; i++ {
					if known[i] == nil || i == j {
						continue
					}
					lo, hi, sign := i, j, int64(1)
					if j < i {
						lo, hi, sign = j, i, -1
					}
					t, ok := pairTargets[pairKey{lo, hi}]
					if !ok {
						continue
					}
					sum := make([]int64, dim)
					for d := range sum {
						sum[d] = known[i][d] + sign*t[d]
					}
					known[j] = sum
					changed = true
				}
			}
		}
	}
	propagate(rodTargets)
	propagate(allTargets)

	anchor := solver.Row(h.solutionActuals, 0, h.solutionCols)
	neigh := NewPartialNeighbourhood()
	for i := 0; i < n; i++ {
		if known[i] == nil {
			continue
		}
		st := interval.NewFromTarget(h.basis, known[i], nil, nil)
		row := solver.Row(h.solutionActuals, i, h.solutionCols)
		for d := 0; d < dim; d++ {
			st.Actual[d] = new(big.Rat).Sub(row[d], anchor[d])
		}
		neigh.Insert(st)
	}
	return neigh
}
