package process

import (
	"testing"
	"time"

	"github.com/kjhall/adaptuner/pkg/harmony"
	"github.com/kjhall/adaptuner/pkg/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoder struct{}

func (fakeDecoder) Decode(b []byte) (DecodedMidi, bool) {
	if len(b) == 0 {
		return DecodedMidi{}, false
	}
	status := b[0]
	channel := status & 0x0f
	switch status & 0xf0 {
	case 0x90:
		return DecodedMidi{Kind: DecodedNoteOn, Channel: channel, Note: b[1], Velocity: b[2]}, true
	case 0x80:
		return DecodedMidi{Kind: DecodedNoteOff, Channel: channel, Note: b[1], Velocity: b[2]}, true
	case 0xb0:
		return DecodedMidi{Kind: DecodedControlChange, Channel: channel, Control: b[1], Value: b[2]}, true
	case 0xc0:
		return DecodedMidi{Kind: DecodedProgramChange, Channel: channel, Program: b[1]}, true
	}
	return DecodedMidi{Kind: DecodedOther}, true
}

// zeroNeighbourhood answers distance d with d pure octaves, so only
// distance 0 gives the zero Stack; it isolates Process's own diffing and emission logic from
// pkg/neighbourhood/pkg/harmony's lookup logic, which are tested
// elsewhere. Used only by pointer, like every real NeighbourhoodProvider
// implementation, so Harmony's identity-based comparison (interface
// equality over a pointer dynamic value) never hits an uncomparable
// dynamic type at runtime.
type zeroNeighbourhood struct {
	basis interval.Basis
}

// At varies with d (rather than always answering the zero Stack) so
// that tests relying on a Harmony reference change actually producing a
// different derived Stack for an already-sounding key have something to
// observe.
func (z *zeroNeighbourhood) At(d int64) *interval.Stack {
	return interval.NewFromPureInterval(z.basis, 0, d)
}

// fakeStrategy returns whatever Harmony it is configured with, counting
// how many times it was consulted.
type fakeStrategy struct {
	harmony *harmony.Harmony
	calls   int
}

func (f *fakeStrategy) Solve(keys *[128]KeyState, tunings harmony.TuningSource) (*int, *harmony.Harmony) {
	f.calls++
	return nil, f.harmony
}

func (f *fakeStrategy) HandleAction(action harmony.Action) {}

func newTestProcess(strategy harmony.Strategy[KeyState]) *Process {
	basis := interval.FiveLimit
	cfg := Config{
		Basis:              basis,
		Temperaments:       nil,
		ActiveTemperaments: nil,
		KeyCenter:          interval.NewZero(basis),
		ReferenceStack:     nil,
	}
	now := time.Unix(0, 0)
	return NewProcess(cfg, strategy, fakeDecoder{}, func() time.Time { return now })
}

func TestProcessNoteOnEmitsTunedNoteOn(t *testing.T) {
	basis := interval.FiveLimit
	strat := &fakeStrategy{harmony: &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 60}}
	p := newTestProcess(strat)

	events := p.Handle(IncomingMidi{Bytes: []byte{0x90, 60, 100}})
	require.Len(t, events, 1)
	on, ok := events[0].(TunedNoteOn)
	require.True(t, ok)
	assert.Equal(t, uint8(60), on.Note)
	assert.Equal(t, uint8(100), on.Velocity)
	assert.Equal(t, 0.0, on.Tuning)
	assert.True(t, p.keys[60].Active())
}

func TestProcessRetunesOtherSoundingKeysOnHarmonyChange(t *testing.T) {
	basis := interval.FiveLimit
	firstHarmony := &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 60}
	strat := &fakeStrategy{harmony: firstHarmony}
	p := newTestProcess(strat)

	p.Handle(IncomingMidi{Bytes: []byte{0x90, 60, 100}})

	secondHarmony := &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 64}
	strat.harmony = secondHarmony
	events := p.Handle(IncomingMidi{Bytes: []byte{0x90, 64, 90}})

	var sawTunedNoteOn, sawRetune bool
	for _, e := range events {
		switch ev := e.(type) {
		case TunedNoteOn:
			sawTunedNoteOn = true
			assert.Equal(t, uint8(64), ev.Note)
		case Retune:
			sawRetune = true
			assert.Equal(t, uint8(60), ev.Note)
		}
	}
	assert.True(t, sawTunedNoteOn)
	assert.True(t, sawRetune, "the already-sounding key should be retuned when the Harmony's reference changes")
}

func TestNoteOffHeldBySustainKeepsKeySustained(t *testing.T) {
	basis := interval.FiveLimit
	strat := &fakeStrategy{harmony: &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 60}}
	p := newTestProcess(strat)

	p.Handle(IncomingMidi{Bytes: []byte{0x90, 60, 100}})
	p.Handle(IncomingMidi{Bytes: []byte{0xb0, 64, 127}}) // sustain on
	p.Handle(IncomingMidi{Bytes: []byte{0x80, 60, 0}})   // note off while sustained

	assert.Equal(t, KeySustained, p.keys[60].Status)
	assert.True(t, p.keys[60].Active())

	p.Handle(IncomingMidi{Bytes: []byte{0xb0, 64, 0}}) // sustain off
	assert.Equal(t, KeyOff, p.keys[60].Status)
	assert.False(t, p.keys[60].Active())
}

func TestNoteOffWithoutSustainClearsKey(t *testing.T) {
	basis := interval.FiveLimit
	strat := &fakeStrategy{harmony: &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 60}}
	p := newTestProcess(strat)

	p.Handle(IncomingMidi{Bytes: []byte{0x90, 60, 100}})
	events := p.Handle(IncomingMidi{Bytes: []byte{0x80, 60, 64}})

	require.Len(t, events, 1)
	off, ok := events[0].(NoteOff)
	require.True(t, ok)
	assert.False(t, off.HeldBySustain)
	assert.Equal(t, KeyOff, p.keys[60].Status)
	assert.Nil(t, p.keys[60].Tuning)
}

func TestKeysLowestAndHighestSounding(t *testing.T) {
	var keys Keys
	assert.Equal(t, -1, keys.LowestSounding())
	assert.Equal(t, -1, keys.HighestSounding())

	keys[40] = KeyState{Status: KeyOn}
	keys[72] = KeyState{Status: KeySustained}
	keys[55] = KeyState{Status: KeyOff}

	assert.Equal(t, 40, keys.LowestSounding())
	assert.Equal(t, 72, keys.HighestSounding())
	assert.True(t, keys.Sounding(40))
	assert.False(t, keys.Sounding(55))
}

func TestUserActionSetReferenceEmitsSetReference(t *testing.T) {
	basis := interval.FiveLimit
	strat := &fakeStrategy{harmony: &harmony.Harmony{Neighbourhood: &zeroNeighbourhood{basis}, Reference: 60}}
	p := newTestProcess(strat)

	p.Handle(IncomingMidi{Bytes: []byte{0x90, 60, 100}})
	events := p.Handle(UserAction{Action: harmony.SetReferenceToLowest})

	require.NotEmpty(t, events)
	ref, ok := events[0].(SetReference)
	require.True(t, ok)
	assert.Equal(t, uint8(60), ref.Key)
	require.NotNil(t, ref.Stack)
}
