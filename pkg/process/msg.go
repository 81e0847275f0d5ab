package process

import (
	"time"

	"github.com/kjhall/adaptuner/pkg/harmony"
	"github.com/kjhall/adaptuner/pkg/interval"
)

// AfterProcess is an event emitted by the process loop for the backend
// and/or the monitor UI to react to. Concrete types implement it as a
// closed set; callers dispatch with a type switch rather than a Kind
// field, since Go's type switches already give exhaustiveness-by-review
// at the call site and there is no payload shared across variants worth
// factoring out.
type AfterProcess interface {
	isAfterProcess()
}

type Start struct{}

func (Start) isAfterProcess() {}

type Stop struct{}

func (Stop) isAfterProcess() {}

type Reset struct{}

func (Reset) isAfterProcess() {}

// Notify is a plain status line for the monitor UI.
type Notify struct {
	Line string
}

func (Notify) isAfterProcess() {}

// MidiParseErr reports a byte sequence on the MIDI input that failed to
// parse.
type MidiParseErr struct {
	Err string
}

func (MidiParseErr) isAfterProcess() {}

// DetunedNote informs the UI that a sounding note could not be retuned
// exactly as requested. Explanation is always one of a small fixed set
// of advisory strings produced by the backend.
type DetunedNote struct {
	Note        uint8
	ShouldBe    float64
	Actual      float64
	Explanation string
}

func (DetunedNote) isAfterProcess() {}

// TunedNoteOn asks the backend to sound note at the given tuning
// (expressed both in semitones on the MIDI note-number scale and as the
// exact Stack it was derived from).
type TunedNoteOn struct {
	Channel     uint8
	Note        uint8
	Velocity    uint8
	Tuning      float64
	TuningStack *interval.Stack
}

func (TunedNoteOn) isAfterProcess() {}

type NoteOff struct {
	HeldBySustain bool
	Channel       uint8
	Note          uint8
	Velocity      uint8
}

func (NoteOff) isAfterProcess() {}

type Sustain struct {
	Channel uint8
	Value   uint8
}

func (Sustain) isAfterProcess() {}

type ProgramChange struct {
	Channel uint8
	Program uint8
}

func (ProgramChange) isAfterProcess() {}

// ForwardMidi carries a raw MIDI message through the process loop
// unchanged (e.g. clock, SysEx) for the backend to re-emit verbatim.
type ForwardMidi struct {
	Bytes []byte
}

func (ForwardMidi) isAfterProcess() {}

// Retune asks the backend to re-tune an already-sounding note.
// TuningStackActual is the Stack the new tuning was derived from.
// TuningStackTargets has room for candidate Stacks (for UI diagnostics);
// Process leaves it nil.
type Retune struct {
	Note               uint8
	Tuning             float64
	TuningStackActual  *interval.Stack
	TuningStackTargets []*interval.Stack
}

func (Retune) isAfterProcess() {}

type SetReference struct {
	Key   uint8
	Stack *interval.Stack
}

func (SetReference) isAfterProcess() {}

type Consider struct {
	Stack *interval.Stack
}

func (Consider) isAfterProcess() {}

type NotifyFit struct {
	PatternName    string
	ReferenceStack *interval.Stack
}

func (NotifyFit) isAfterProcess() {}

type NotifyNoFit struct{}

func (NotifyNoFit) isAfterProcess() {}

type Special struct {
	Code uint8
}

func (Special) isAfterProcess() {}

// BackendLatency reports how long elapsed between a MIDI input event
// and the backend finishing its reaction to it.
type BackendLatency struct {
	SinceInput time.Duration
}

func (BackendLatency) isAfterProcess() {}

// ToProcess is an event consumed by the process loop.
type ToProcess interface {
	isToProcess()
}

type ToProcessStart struct{}

func (ToProcessStart) isToProcess() {}

type ToProcessStop struct{}

func (ToProcessStop) isToProcess() {}

type ToProcessReset struct{}

func (ToProcessReset) isToProcess() {}

// IncomingMidi carries raw bytes read off the MIDI input port.
type IncomingMidi struct {
	Bytes []byte
}

func (IncomingMidi) isToProcess() {}

// ConsiderCoefficients asks the process loop to evaluate a candidate
// interval (given as coefficients over the active basis) against the
// current tuning, without committing to it.
type ConsiderCoefficients struct {
	Coefficients []int64
}

func (ConsiderCoefficients) isToProcess() {}

type ToggleTemperament struct {
	Index int
}

func (ToggleTemperament) isToProcess() {}

type ToProcessSpecial struct {
	Code uint8
}

func (ToProcessSpecial) isToProcess() {}

// UserAction carries a harmony.Action from the UI/keyboard-shortcut
// layer into the merged process event queue, so the process loop has a
// single queue of MIDI-in events and user actions to range over.
type UserAction struct {
	Action harmony.Action
}

func (UserAction) isToProcess() {}

// FromMidi is the timestamped envelope a MIDI-in reader (or the UI's
// action dispatcher) enqueues for the process loop: the wall-clock
// arrival time plus the event itself. The timestamp rides along
// through the backend to the MIDI-out worker, which reports end-to-end
// latency against it.
type FromMidi struct {
	At  time.Time
	Msg ToProcess
}

// ToBackend is the timestamped envelope the process loop emits for the
// backend loop.
type ToBackend struct {
	At    time.Time
	Event AfterProcess
}

// ToUI is the envelope mirrored to the monitor UI. Sends are
// best-effort; the UI may lag or be absent entirely.
type ToUI struct {
	At    time.Time
	Event AfterProcess
}
