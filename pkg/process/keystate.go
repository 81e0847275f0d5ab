package process

import (
	"time"

	"github.com/kjhall/adaptuner/pkg/interval"
)

// KeyStatus discriminates whether a MIDI key is silent, sounding, or
// held silent-but-sounding by the sustain pedal after its note-off.
type KeyStatus int

const (
	KeyOff KeyStatus = iota
	KeyOn
	KeySustained
)

// KeyState is the per-MIDI-key bookkeeping Process maintains for all
// 128 keys: whether it is sounding, which channel and since when, and
// its most recently emitted tuning. It implements
// harmony.HasActivationStatus directly; On and Sustained both count as
// active, since a note held by the pedal still sounds and must keep
// participating in chord matching.
type KeyState struct {
	Status  KeyStatus
	Channel uint8
	Since   time.Time
	Tuning  *interval.Stack
}

// Active reports whether this key currently counts toward a harmony
// strategy's sounding-key set.
func (k KeyState) Active() bool {
	return k.Status == KeyOn || k.Status == KeySustained
}

// Keys is the full per-key state array plus the bookkeeping needed to
// answer harmony.SoundingSource for it.
type Keys [128]KeyState

// Sounding reports whether key is currently active.
func (k *Keys) Sounding(key int) bool {
	if key < 0 || key >= 128 {
		return false
	}
	return k[key].Active()
}

// Tuning returns the most recently assigned tuning Stack for key, or
// nil if it was never tuned.
func (k *Keys) Tuning(key int) *interval.Stack {
	if key < 0 || key >= 128 {
		return nil
	}
	return k[key].Tuning
}

// LowestSounding returns the lowest active key index, or -1 if none are
// active.
func (k *Keys) LowestSounding() int {
	for i := range k {
		if k[i].Active() {
			return i
		}
	}
	return -1
}

// HighestSounding returns the highest active key index, or -1 if none
// are active.
func (k *Keys) HighestSounding() int {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i].Active() {
			return i
		}
	}
	return -1
}
