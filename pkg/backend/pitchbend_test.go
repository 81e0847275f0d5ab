package backend

import (
	"testing"

	"github.com/kjhall/adaptuner/pkg/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type midiCall struct {
	kind           string
	channel        uint8
	note, velocity uint8
	bend           uint16
	value, program uint8
}

type recordingOut struct {
	calls []midiCall
}

func (r *recordingOut) NoteOn(channel, note, velocity uint8) {
	r.calls = append(r.calls, midiCall{kind: "NoteOn", channel: channel, note: note, velocity: velocity})
}
func (r *recordingOut) NoteOff(channel, note, velocity uint8) {
	r.calls = append(r.calls, midiCall{kind: "NoteOff", channel: channel, note: note, velocity: velocity})
}
func (r *recordingOut) PitchBend(channel uint8, bend uint16) {
	r.calls = append(r.calls, midiCall{kind: "PitchBend", channel: channel, bend: bend})
}
func (r *recordingOut) Hold(channel, value uint8) {
	r.calls = append(r.calls, midiCall{kind: "Hold", channel: channel, value: value})
}
func (r *recordingOut) ProgramChange(channel, program uint8) {
	r.calls = append(r.calls, midiCall{kind: "ProgramChange", channel: channel, program: program})
}
func (r *recordingOut) AllSoundOff(channel uint8) {
	r.calls = append(r.calls, midiCall{kind: "AllSoundOff", channel: channel})
}
func (r *recordingOut) Forward(bytes []byte) {
	r.calls = append(r.calls, midiCall{kind: "Forward"})
}

type recordingUI struct {
	notes []process.DetunedNote
}

func (u *recordingUI) Notify(msg process.AfterProcess) {
	if d, ok := msg.(process.DetunedNote); ok {
		u.notes = append(u.notes, d)
	}
}

// TestSixteenClasses reproduces the channel-allocation and cascading
// detune scenario from the original pitch-bend fixture: two notes
// sharing a channel because they round to the same bend, a third note
// forcing a new channel, a sustain broadcast, a retune that knocks the
// shared channel off both notes' desired bends, and a retune that
// exceeds the configured bend range.
func TestSixteenClasses(t *testing.T) {
	out := &recordingOut{}
	ui := &recordingUI{}
	p := NewPitchbend([]uint8{1, 2}, 2.0)
	p.initialise(out)
	out.calls = nil

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 3, Velocity: 100, Tuning: 3.2}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "PitchBend", channel: 1, bend: 9011},
		{kind: "NoteOn", channel: 1, note: 3, velocity: 100},
	}, out.calls)
	out.calls = nil

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 17, Velocity: 101, Tuning: 113.2}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "NoteOn", channel: 1, note: 113, velocity: 101},
	}, out.calls)
	out.calls = nil

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 4, Velocity: 13, Tuning: 3.7}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "PitchBend", channel: 2, bend: 6963},
		{kind: "NoteOn", channel: 2, note: 4, velocity: 13},
	}, out.calls)
	out.calls = nil

	p.HandleMsg(process.Sustain{Channel: 1, Value: 123}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "Hold", channel: 1, value: 123},
		{kind: "Hold", channel: 2, value: 123},
	}, out.calls)
	out.calls = nil

	p.HandleMsg(process.Retune{Note: 3, Tuning: 3.1}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "PitchBend", channel: 1, bend: 8601},
	}, out.calls)
	require.Len(t, ui.notes, 1)
	assert.Equal(t, uint8(17), ui.notes[0].Note)
	assert.Equal(t, 113.2, ui.notes[0].ShouldBe)
	assert.InDelta(t, 113.0998657, ui.notes[0].Actual, 1e-6)
	assert.Equal(t, AdvisoryCascadedDetune, ui.notes[0].Explanation)
	out.calls = nil
	ui.notes = nil

	p.HandleMsg(process.Retune{Note: 4, Tuning: 6.1}, out, ui)
	require.Equal(t, []midiCall{
		{kind: "PitchBend", channel: 2, bend: maxBend},
	}, out.calls)
	require.Len(t, ui.notes, 1)
	assert.Equal(t, uint8(4), ui.notes[0].Note)
	assert.Equal(t, 6.1, ui.notes[0].ShouldBe)
	assert.InDelta(t, 6.0, ui.notes[0].Actual, 1e-9)
	assert.Equal(t, AdvisoryOutOfRange, ui.notes[0].Explanation)
}

func TestTunedNoteOnExhaustsChannelsFallsBackToClosest(t *testing.T) {
	out := &recordingOut{}
	ui := &recordingUI{}
	p := NewPitchbend([]uint8{1}, 2.0)
	p.initialise(out)
	out.calls = nil

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 60, Velocity: 100, Tuning: 60.0}, out, ui)
	out.calls = nil

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 61, Velocity: 100, Tuning: 61.5}, out, ui)
	require.Len(t, out.calls, 1)
	assert.Equal(t, "NoteOn", out.calls[0].kind)
	require.Len(t, ui.notes, 1)
	assert.Equal(t, uint8(61), ui.notes[0].Note)
	assert.Equal(t, AdvisoryNoChannel, ui.notes[0].Explanation)
}

func TestNoteOffRespectsSustain(t *testing.T) {
	out := &recordingOut{}
	ui := &recordingUI{}
	p := NewPitchbend([]uint8{1}, 2.0)
	p.initialise(out)

	p.HandleMsg(process.TunedNoteOn{Channel: 1, Note: 60, Velocity: 100, Tuning: 60.0}, out, ui)
	p.HandleMsg(process.Sustain{Channel: 1, Value: 100}, out, ui)
	p.HandleMsg(process.NoteOff{Note: 60, Velocity: 0}, out, ui)

	require.NotNil(t, p.activeNotes[60])
	assert.True(t, p.activeNotes[60].sustained)
	assert.Equal(t, uint8(1), p.channelInfo[0].usage)

	p.HandleMsg(process.Sustain{Channel: 1, Value: 0}, out, ui)
	assert.Nil(t, p.activeNotes[60])
	assert.Equal(t, uint8(0), p.channelInfo[0].usage)
}
