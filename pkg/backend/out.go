package backend

import "time"

// ToMidiOut is one event's worth of encoded wire messages plus the
// originating input's arrival time, handed to a MIDI-out worker. The
// worker reports latency against At once the driver has accepted the
// whole batch.
type ToMidiOut struct {
	At       time.Time
	Messages [][]byte
}
