// Package midiwire is the thin boundary between the retuning engine's
// internal event types and the MIDI wire format, built on
// gitlab.com/gomidi/midi/v2. It implements pkg/process.MidiDecoder (for
// incoming bytes) and pkg/backend.MidiOut (for outgoing messages) so
// neither of those packages needs to import a MIDI library directly.
package midiwire

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/kjhall/adaptuner/pkg/process"
)

// Decoder implements process.MidiDecoder over gomidi/midi/v2's Message
// accessors.
type Decoder struct{}

// Decode parses one MIDI message's raw bytes.
func (Decoder) Decode(raw []byte) (process.DecodedMidi, bool) {
	msg := midi.Message(raw)

	var channel, note, velocity, control, value, program uint8

	if msg.GetNoteOn(&channel, &note, &velocity) {
		return process.DecodedMidi{Kind: process.DecodedNoteOn, Channel: channel, Note: note, Velocity: velocity}, true
	}
	if msg.GetNoteOff(&channel, &note, &velocity) {
		return process.DecodedMidi{Kind: process.DecodedNoteOff, Channel: channel, Note: note, Velocity: velocity}, true
	}
	if msg.GetControlChange(&channel, &control, &value) {
		return process.DecodedMidi{Kind: process.DecodedControlChange, Channel: channel, Control: control, Value: value}, true
	}
	if msg.GetProgramChange(&channel, &program) {
		return process.DecodedMidi{Kind: process.DecodedProgramChange, Channel: channel, Program: program}, true
	}
	if len(msg) == 0 {
		return process.DecodedMidi{}, false
	}
	return process.DecodedMidi{Kind: process.DecodedOther}, true
}

// Out sends wire-level MIDI messages to a gomidi output port. Every
// method builds the message with midi/v2's constructors rather than
// hand-assembling status bytes, matching how the rest of the pack
// (e.g. the synthtribe2midi and backing-tracks converters) drives this
// library.
type Out struct {
	port drivers.Out
}

// NewOut wraps an already-open gomidi output port.
func NewOut(port drivers.Out) *Out {
	return &Out{port: port}
}

func (o *Out) send(msg midi.Message) {
	// Best-effort: a send failure (port closed, device unplugged) has no
	// recovery available to the caller beyond logging, which happens one
	// layer up where the charmbracelet/log logger lives.
	_ = o.port.Send(msg)
}

func (o *Out) NoteOn(channel, note, velocity uint8) {
	o.send(midi.NoteOn(channel, note, velocity))
}

func (o *Out) NoteOff(channel, note, velocity uint8) {
	o.send(midi.NoteOffVelocity(channel, note, velocity))
}

func (o *Out) PitchBend(channel uint8, bend uint16) {
	o.send(midi.Pitchbend(channel, int16(int32(bend)-8192)))
}

func (o *Out) Hold(channel, value uint8) {
	o.send(midi.ControlChange(channel, 64, value))
}

func (o *Out) ProgramChange(channel, program uint8) {
	o.send(midi.ProgramChange(channel, program))
}

func (o *Out) AllSoundOff(channel uint8) {
	o.send(midi.ControlChange(channel, 120, 0))
}

func (o *Out) Forward(bytes []byte) {
	o.send(midi.Message(bytes))
}

// Buffer implements backend.MidiOut by accumulating encoded messages
// instead of sending them, so the backend loop can hand one input
// event's worth of output to the MIDI-out worker as a single batch.
type Buffer struct {
	Messages []midi.Message
}

func (b *Buffer) add(m midi.Message) { b.Messages = append(b.Messages, m) }

// Reset empties the buffer for reuse, keeping its capacity.
func (b *Buffer) Reset() { b.Messages = b.Messages[:0] }

func (b *Buffer) NoteOn(channel, note, velocity uint8) {
	b.add(midi.NoteOn(channel, note, velocity))
}

func (b *Buffer) NoteOff(channel, note, velocity uint8) {
	b.add(midi.NoteOffVelocity(channel, note, velocity))
}

func (b *Buffer) PitchBend(channel uint8, bend uint16) {
	b.add(midi.Pitchbend(channel, int16(int32(bend)-8192)))
}

func (b *Buffer) Hold(channel, value uint8) {
	b.add(midi.ControlChange(channel, 64, value))
}

func (b *Buffer) ProgramChange(channel, program uint8) {
	b.add(midi.ProgramChange(channel, program))
}

func (b *Buffer) AllSoundOff(channel uint8) {
	b.add(midi.ControlChange(channel, 120, 0))
}

func (b *Buffer) Forward(bytes []byte) {
	b.add(midi.Message(bytes))
}
