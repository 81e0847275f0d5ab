// Package backend allocates a fixed pool of MIDI channels to sounding
// notes and drives each one's pitch-bend wheel so that exact-rational
// tunings can be approximated on hardware that only understands
// integer note numbers plus a per-channel bend.
package backend

import (
	"math"

	"github.com/kjhall/adaptuner/pkg/process"
)

const (
	centerBend   uint16 = 8192
	minBend      uint16 = 0
	maxBend      uint16 = 16383
	bendTravel          = 8191.0
	bendCenterF         = 8192.0
)

// Advisory strings sent to the UI when a note cannot be tuned exactly.
// Preserved verbatim: other packages and tests match on these.
const (
	AdvisoryNoChannel      = "No more available channels on NoteOn"
	AdvisoryOutOfRange     = "Could not re-tune farther than the pitchbend range"
	AdvisoryCascadedDetune = "Detuned because another note on the same channel was re-tuned"
)

// MidiOut is the set of wire-level operations the pitch-bend allocator
// drives. pkg/midiwire provides the concrete implementation over
// gitlab.com/gomidi/midi/v2.
type MidiOut interface {
	NoteOn(channel, note, velocity uint8)
	NoteOff(channel, note, velocity uint8)
	PitchBend(channel uint8, bend uint16)
	Hold(channel, value uint8)
	ProgramChange(channel, program uint8)
	AllSoundOff(channel uint8)
	Forward(bytes []byte)
}

// UIOut receives advisory and status events for the monitor UI.
type UIOut interface {
	Notify(process.AfterProcess)
}

func bendFromSemitones(bendRange, semitones float64) uint16 {
	v := math.Trunc(bendTravel*semitones/bendRange + bendCenterF)
	if v < float64(minBend) {
		return minBend
	}
	if v > float64(maxBend) {
		return maxBend
	}
	return uint16(v)
}

func semitonesFromBend(bendRange float64, bend uint16) float64 {
	return (float64(bend) - bendCenterF) / bendTravel * bendRange
}

type noteInfo struct {
	desiredTuning float64
	channel       uint8
	channelIndex  int
	mappedTo      uint8
	sustained     bool
}

type channelInfo struct {
	usage uint8
	bend  uint16
}

// Pitchbend is the backend's note-on/note-off/retune handler. It owns a
// fixed pool of MIDI channels, each carrying one pitch-bend value at a
// time, and allocates sounding notes to channels so that notes sharing
// a bend can share a channel.
type Pitchbend struct {
	channels    []uint8
	channelInfo []channelInfo
	activeNotes [128]*noteInfo
	sustained   bool
	bendRange   float64
}

// NewPitchbend builds a Pitchbend over the given MIDI channels (0-15),
// each retuned by at most bendRange semitones in either direction.
func NewPitchbend(channels []uint8, bendRange float64) *Pitchbend {
	p := &Pitchbend{
		channels:  append([]uint8(nil), channels...),
		bendRange: bendRange,
	}
	p.channelInfo = make([]channelInfo, len(channels))
	return p
}

func (p *Pitchbend) initialise(out MidiOut) {
	for i := range p.channelInfo {
		p.channelInfo[i] = channelInfo{usage: 0, bend: centerBend}
	}
	for i := range p.activeNotes {
		p.activeNotes[i] = nil
	}
	p.sustained = false
	for _, ch := range p.channels {
		out.PitchBend(ch, centerBend)
		out.Hold(ch, 0)
		out.AllSoundOff(ch)
	}
}

// HandleMsg reacts to a single AfterProcess event, driving out and
// notifying ui as needed.
func (p *Pitchbend) HandleMsg(msg process.AfterProcess, out MidiOut, ui UIOut) {
	switch m := msg.(type) {
	case process.Start:
		p.initialise(out)
	case process.Reset:
		p.initialise(out)
	case process.Stop:
		// nothing to do
	case process.TunedNoteOn:
		p.tunedNoteOn(m, out, ui)
	case process.NoteOff:
		p.noteOff(m, out)
	case process.Sustain:
		p.sustain(m, out)
	case process.ProgramChange:
		for _, ch := range p.channels {
			out.ProgramChange(ch, m.Program)
		}
	case process.Retune:
		p.retune(m, out, ui)
	case process.ForwardMidi:
		out.Forward(m.Bytes)
	default:
		// Notify, MidiParseErr, DetunedNote, SetReference,
		// Consider, NotifyFit, NotifyNoFit, Special, BackendLatency: these
		// are UI-facing or process-internal and the backend doesn't react
		// to them.
	}
}

func (p *Pitchbend) tunedNoteOn(m process.TunedNoteOn, out MidiOut, ui UIOut) {
	mappedTo := uint8(math.Round(m.Tuning))
	bend := bendFromSemitones(p.bendRange, m.Tuning-float64(mappedTo))

	// Tier 1: reuse a channel already bent to this exact value.
	for i, ci := range p.channelInfo {
		if ci.bend == bend {
			p.channelInfo[i].usage++
			p.activeNotes[m.Note] = &noteInfo{
				desiredTuning: m.Tuning,
				channel:       p.channels[i],
				channelIndex:  i,
				mappedTo:      mappedTo,
			}
			out.NoteOn(p.channels[i], mappedTo, m.Velocity)
			return
		}
	}

	// Tier 2: take an unused channel.
	for i, ci := range p.channelInfo {
		if ci.usage == 0 {
			p.channelInfo[i].bend = bend
			p.channelInfo[i].usage = 1
			p.activeNotes[m.Note] = &noteInfo{
				desiredTuning: m.Tuning,
				channel:       p.channels[i],
				channelIndex:  i,
				mappedTo:      mappedTo,
			}
			out.PitchBend(p.channels[i], bend)
			out.NoteOn(p.channels[i], mappedTo, m.Velocity)
			return
		}
	}

	// Tier 3: no channel is free or matching; pile onto whichever is
	// closest and tell the UI it was detuned.
	closest := 0
	closestDist := math.MaxFloat64
	for i, ci := range p.channelInfo {
		d := math.Abs(float64(ci.bend) - float64(bend))
		if d < closestDist {
			closestDist = d
			closest = i
		}
	}
	p.channelInfo[closest].usage++
	p.activeNotes[m.Note] = &noteInfo{
		desiredTuning: m.Tuning,
		channel:       p.channels[closest],
		channelIndex:  closest,
		mappedTo:      mappedTo,
	}
	out.NoteOn(p.channels[closest], mappedTo, m.Velocity)
	ui.Notify(process.DetunedNote{
		Note:        m.Note,
		ShouldBe:    m.Tuning,
		Actual:      semitonesFromBend(p.bendRange, p.channelInfo[closest].bend) + float64(mappedTo),
		Explanation: AdvisoryNoChannel,
	})
}

func (p *Pitchbend) noteOff(m process.NoteOff, out MidiOut) {
	info := p.activeNotes[m.Note]
	if info == nil {
		return
	}
	out.NoteOff(info.channel, info.mappedTo, m.Velocity)
	if p.sustained {
		info.sustained = true
		return
	}
	p.activeNotes[m.Note] = nil
	if p.channelInfo[info.channelIndex].usage > 0 {
		p.channelInfo[info.channelIndex].usage--
	}
}

func (p *Pitchbend) sustain(m process.Sustain, out MidiOut) {
	for _, ch := range p.channels {
		out.Hold(ch, m.Value)
	}
	p.sustained = m.Value != 0
	if p.sustained {
		return
	}
	for note, info := range p.activeNotes {
		if info == nil || !info.sustained {
			continue
		}
		p.activeNotes[note] = nil
		if p.channelInfo[info.channelIndex].usage > 0 {
			p.channelInfo[info.channelIndex].usage--
		}
	}
}

func (p *Pitchbend) retune(m process.Retune, out MidiOut, ui UIOut) {
	info := p.activeNotes[m.Note]
	if info == nil {
		return
	}
	bend := bendFromSemitones(p.bendRange, m.Tuning-float64(info.mappedTo))
	if bend == p.channelInfo[info.channelIndex].bend {
		return
	}
	out.PitchBend(info.channel, bend)
	p.channelInfo[info.channelIndex].bend = bend
	info.desiredTuning = m.Tuning

	if math.Abs(m.Tuning-float64(info.mappedTo)) > p.bendRange {
		actual := float64(info.mappedTo) - p.bendRange
		if m.Tuning > float64(info.mappedTo) {
			actual = float64(info.mappedTo) + p.bendRange
		}
		ui.Notify(process.DetunedNote{
			Note:        m.Note,
			ShouldBe:    m.Tuning,
			Actual:      actual,
			Explanation: AdvisoryOutOfRange,
		})
	}

	if p.channelInfo[info.channelIndex].usage <= 1 {
		return
	}
	for otherNote, other := range p.activeNotes {
		if other == nil || otherNote == int(m.Note) {
			continue
		}
		if other.channelIndex != info.channelIndex || other.mappedTo == info.mappedTo {
			continue
		}
		otherBend := bendFromSemitones(p.bendRange, other.desiredTuning-float64(other.mappedTo))
		if otherBend == bend {
			continue
		}
		ui.Notify(process.DetunedNote{
			Note:        uint8(otherNote),
			ShouldBe:    other.desiredTuning,
			Actual:      float64(other.mappedTo) + semitonesFromBend(p.bendRange, bend),
			Explanation: AdvisoryCascadedDetune,
		})
	}
}
