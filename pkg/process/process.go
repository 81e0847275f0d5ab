// Package process implements the per-event state machine that sits
// between MIDI input and the backend: it tracks which keys are
// sounding, asks the active harmony strategy how they should be tuned,
// and emits Retune/TunedNoteOn instructions whenever that answer
// changes.
package process

import (
	"time"

	"github.com/kjhall/adaptuner/pkg/harmony"
	"github.com/kjhall/adaptuner/pkg/interval"
)

// DecodedKind discriminates the channel-voice messages Process reacts
// to. Anything else decodes to DecodedOther and is forwarded verbatim.
type DecodedKind int

const (
	DecodedOther DecodedKind = iota
	DecodedNoteOn
	DecodedNoteOff
	DecodedControlChange
	DecodedProgramChange
)

// DecodedMidi is the result of parsing one incoming MIDI message.
// pkg/midiwire implements the decoding; Process only depends on the
// shape of the result, not on the wire library, so it stays testable
// without a real MIDI stack.
type DecodedMidi struct {
	Kind     DecodedKind
	Channel  uint8
	Note     uint8
	Velocity uint8
	Control  uint8
	Value    uint8
	Program  uint8
}

// MidiDecoder turns raw bytes off the wire into a DecodedMidi. Returns
// ok=false for incomplete or malformed input.
type MidiDecoder interface {
	Decode(bytes []byte) (DecodedMidi, bool)
}

// sustainControlNumber is the MIDI CC number for the sustain pedal.
const sustainControlNumber = 64

// Process is the retuning engine's event loop state: the 128 keys, the
// active harmony strategy, and the stacks (reference, key-center) the
// tuning-derivation formula combines with whatever the strategy
// produces.
type Process struct {
	basis              interval.Basis
	temperaments       []*interval.Temperament
	activeTemperaments []bool

	keys             Keys
	sustainByChannel [16]bool

	keyCenter      *interval.Stack
	referenceStack *interval.Stack

	strategy harmony.Strategy[KeyState]
	decoder  MidiDecoder

	currentPatternIndex *int
	currentHarmony      *harmony.Harmony

	now func() time.Time
}

// Config bundles what NewProcess needs beyond the strategy and decoder:
// the interval basis, the temperament set and which are active, the
// key-center Stack (added to every derived tuning, e.g. to implement a
// capo-like transposition), and the absolute tuning reference Stack
// (the `tuning_reference` configuration entry).
type Config struct {
	Basis              interval.Basis
	Temperaments       []*interval.Temperament
	ActiveTemperaments []bool
	KeyCenter          *interval.Stack
	ReferenceStack     *interval.Stack
}

// NewProcess constructs a Process. now supplies the current wall-clock
// time (injected for testability, matching pkg/harmony's HarmonySprings
// convention); pass time.Now in production.
func NewProcess(cfg Config, strategy harmony.Strategy[KeyState], decoder MidiDecoder, now func() time.Time) *Process {
	return &Process{
		basis:              cfg.Basis,
		temperaments:       cfg.Temperaments,
		activeTemperaments: cfg.ActiveTemperaments,
		keyCenter:          cfg.KeyCenter,
		referenceStack:     cfg.ReferenceStack,
		strategy:           strategy,
		decoder:            decoder,
		now:                now,
	}
}

// Handle processes one ToProcess event and returns the AfterProcess
// events it produces, in order, for the backend and UI to consume.
func (p *Process) Handle(msg ToProcess) []AfterProcess {
	switch m := msg.(type) {
	case ToProcessStart:
		p.reset()
		return []AfterProcess{Start{}}
	case ToProcessReset:
		p.reset()
		return []AfterProcess{Reset{}}
	case ToProcessStop:
		return []AfterProcess{Stop{}}
	case IncomingMidi:
		return p.handleIncomingMidi(m.Bytes)
	case ConsiderCoefficients:
		stack := interval.NewFromTarget(p.basis, m.Coefficients, p.temperaments, p.activeTemperaments)
		return []AfterProcess{Consider{Stack: stack}}
	case ToggleTemperament:
		if m.Index >= 0 && m.Index < len(p.activeTemperaments) {
			p.activeTemperaments[m.Index] = !p.activeTemperaments[m.Index]
			for i := range p.keys {
				if p.keys[i].Tuning != nil {
					p.keys[i].Tuning.Retemper(p.temperaments, p.activeTemperaments)
				}
			}
		}
		return p.recompute(nil, 0, 0)
	case UserAction:
		p.strategy.HandleAction(m.Action)
		events := p.applyAction(m.Action)
		return append(events, p.recompute(nil, 0, 0)...)
	case ToProcessSpecial:
		return []AfterProcess{Special{Code: m.Code}}
	default:
		return nil
	}
}

func (p *Process) reset() {
	p.keys = Keys{}
	p.sustainByChannel = [16]bool{}
	p.currentPatternIndex = nil
	p.currentHarmony = nil
}

// applyAction reacts to the subset of harmony.Action values that are
// Process's own concern (reference selection) rather than the
// strategy's (chord matching, which HandleAction already dispatched),
// announcing any reference change to the UI.
func (p *Process) applyAction(action harmony.Action) []AfterProcess {
	switch action {
	case harmony.SetReferenceToLowest:
		if lo := p.keys.LowestSounding(); lo >= 0 && p.keys[lo].Tuning != nil {
			p.keyCenter = p.keys[lo].Tuning
			return []AfterProcess{SetReference{Key: uint8(lo), Stack: p.keyCenter}}
		}
	case harmony.SetReferenceToHighest:
		if hi := p.keys.HighestSounding(); hi >= 0 && p.keys[hi].Tuning != nil {
			p.keyCenter = p.keys[hi].Tuning
			return []AfterProcess{SetReference{Key: uint8(hi), Stack: p.keyCenter}}
		}
	case harmony.ResetStrategy:
		p.reset()
		return []AfterProcess{Reset{}}
	}
	return nil
}

func (p *Process) handleIncomingMidi(bytes []byte) []AfterProcess {
	decoded, ok := p.decoder.Decode(bytes)
	if !ok {
		return []AfterProcess{MidiParseErr{Err: "could not parse incoming MIDI message"}}
	}

	switch decoded.Kind {
	case DecodedNoteOn:
		if decoded.Velocity == 0 {
			return p.noteOff(decoded.Channel, decoded.Note, 0)
		}
		return p.noteOn(decoded.Channel, decoded.Note, decoded.Velocity)
	case DecodedNoteOff:
		return p.noteOff(decoded.Channel, decoded.Note, decoded.Velocity)
	case DecodedControlChange:
		if decoded.Control == sustainControlNumber {
			return p.sustain(decoded.Channel, decoded.Value)
		}
		return []AfterProcess{ForwardMidi{Bytes: bytes}}
	case DecodedProgramChange:
		return []AfterProcess{ProgramChange{Channel: decoded.Channel, Program: decoded.Program}}
	default:
		return []AfterProcess{ForwardMidi{Bytes: bytes}}
	}
}

func (p *Process) noteOn(channel, note, velocity uint8) []AfterProcess {
	p.keys[note] = KeyState{Status: KeyOn, Channel: channel, Since: p.now()}
	return p.recompute(&note, velocity, channel)
}

func (p *Process) noteOff(channel, note, velocity uint8) []AfterProcess {
	key := &p.keys[note]
	if key.Status == KeyOff {
		return nil
	}
	events := []AfterProcess{NoteOff{HeldBySustain: p.sustainByChannel[channel&0x0f], Channel: channel, Note: note, Velocity: velocity}}
	if p.sustainByChannel[channel&0x0f] {
		key.Status = KeySustained
	} else {
		key.Status = KeyOff
		key.Tuning = nil
	}
	return append(events, p.recompute(nil, 0, 0)...)
}

func (p *Process) sustain(channel, value uint8) []AfterProcess {
	held := value != 0
	p.sustainByChannel[channel&0x0f] = held
	events := []AfterProcess{Sustain{Channel: channel, Value: value}}
	if held {
		return events
	}
	for i := range p.keys {
		if p.keys[i].Status == KeySustained && p.keys[i].Channel == channel {
			p.keys[i].Status = KeyOff
			p.keys[i].Tuning = nil
		}
	}
	return append(events, p.recompute(nil, 0, 0)...)
}

// recompute calls the active strategy, diffs its result against the
// previously applied Harmony, and returns the resulting TunedNoteOn (for
// newNote, if given) and Retune (for every other sounding key whose
// stack changed) events.
func (p *Process) recompute(newNote *uint8, newVelocity, newChannel uint8) []AfterProcess {
	idx, h := p.strategy.Solve((*[128]KeyState)(&p.keys), &p.keys)
	changed := p.harmonyChanged(idx, h)
	if h != nil {
		p.currentPatternIndex = idx
		p.currentHarmony = h
	}
	if h == nil {
		h = p.currentHarmony
	}
	if h == nil {
		return nil
	}

	var events []AfterProcess
	for i := 0; i < 128; i++ {
		if !p.keys[i].Active() {
			continue
		}
		stack := p.deriveTuning(i, h)
		if stack == nil {
			// no tuning for this offset: keep the key's previous tuning
			continue
		}
		tuning := stack.Semitones()

		if newNote != nil && i == int(*newNote) {
			p.keys[i].Tuning = stack
			events = append(events, TunedNoteOn{
				Channel:     newChannel,
				Note:        *newNote,
				Velocity:    newVelocity,
				Tuning:      tuning,
				TuningStack: stack,
			})
			continue
		}

		if !changed {
			continue
		}
		if p.keys[i].Tuning != nil && p.keys[i].Tuning.Equal(stack) {
			continue
		}
		p.keys[i].Tuning = stack
		events = append(events, Retune{
			Note:              uint8(i),
			Tuning:            tuning,
			TuningStackActual: stack,
		})
	}
	return events
}

// harmonyChanged reports whether idx/h differ from the previously
// applied pattern index / Harmony. Comparison is by identity of the
// Neighbourhood handle, not by value: two interface values holding the
// same underlying pointer compare equal with `==`, which is exactly
// the identity comparison wanted here.
func (p *Process) harmonyChanged(idx *int, h *harmony.Harmony) bool {
	if h == nil {
		return false
	}
	if p.currentHarmony == nil {
		return true
	}
	if (idx == nil) != (p.currentPatternIndex == nil) {
		return true
	}
	if idx != nil && *idx != *p.currentPatternIndex {
		return true
	}
	if h.Reference != p.currentHarmony.Reference {
		return true
	}
	return h.Neighbourhood != p.currentHarmony.Neighbourhood
}

// deriveTuning implements the tuning-derivation formula: d = k -
// reference - key_center.key_distance; look up neighbourhood[d mod 12]
// plus floor(d/12) periods; retemper with the active temperament mask;
// add the reference stack and the key-center stack. Returns nil when
// the neighbourhood has no tuning for distance d (a partial
// neighbourhood answers only for the distances it was built from).
func (p *Process) deriveTuning(key int, h *harmony.Harmony) *interval.Stack {
	d := int64(key) - h.Reference - p.keyCenter.KeyDistance()
	stack := h.Neighbourhood.At(d)
	if stack == nil {
		return nil
	}
	stack.Retemper(p.temperaments, p.activeTemperaments)
	if p.referenceStack != nil {
		stack.ScaledAdd(1, p.referenceStack)
	}
	stack.ScaledAdd(1, p.keyCenter)
	return stack
}
