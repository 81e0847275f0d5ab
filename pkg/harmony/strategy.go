package harmony

// Action is a user-triggered adjustment to a harmony strategy's
// internal state, as opposed to a Solve call driven by key state.
type Action int

const (
	IncrementNeighbourhoodIndex Action = iota
	SetReferenceToLowest
	SetReferenceToHighest
	SetReferenceToCurrent
	ToggleChordMatching
	ToggleReanchor
	ResetStrategy
)

// Strategy is the common surface pkg/process drives a harmony strategy
// through: recompute the current Harmony from sounding keys, and react
// to user actions. ChordList and HarmonySprings both implement it.
type Strategy[N HasActivationStatus] interface {
	// Solve returns the index of the matched pattern (chord-list
	// strategies only; always nil for HarmonySprings) and the Harmony to
	// retune against, or (nil, nil) if nothing currently matches.
	Solve(keys *[128]N, tunings TuningSource) (*int, *Harmony)

	// HandleAction reacts to a user-triggered Action. Strategies that
	// have no notion of a given action (e.g. ToggleChordMatching sent to
	// a HarmonySprings strategy) silently ignore it.
	HandleAction(action Action)
}

// HandleAction on ChordList only reacts to ToggleChordMatching; every
// other action is meaningful to the process loop's reference/neighbourhood
// bookkeeping instead, not to the pattern list itself.
func (c *ChordList[N]) HandleAction(action Action) {
	if action == ToggleChordMatching {
		c.Enable = !c.Enable
	}
}

// HandleAction on HarmonySprings ignores every action: none of its
// configuration fields is bound to a user action.
func (h *HarmonySprings[N]) HandleAction(action Action) {}
