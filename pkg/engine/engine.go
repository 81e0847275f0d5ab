// Package engine wires the long-lived goroutines together: MIDI-in
// reader → process loop → backend loop → MIDI-out worker, with a
// best-effort mirror of UI-facing events to the monitor. Every
// cross-goroutine hop is a typed, timestamped channel; no state is
// shared between loops.
package engine

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kjhall/adaptuner/pkg/backend"
	"github.com/kjhall/adaptuner/pkg/midiwire"
	"github.com/kjhall/adaptuner/pkg/process"
)

var (
	processLog = log.With("thread", "process")
	backendLog = log.With("thread", "backend")
	midiOutLog = log.With("thread", "midi-out")
)

// RawSender is the wire-level sink the MIDI-out worker drives; a
// gomidi drivers.Out satisfies it.
type RawSender interface {
	Send(data []byte) error
}

// Engine owns the process, backend and MIDI-out goroutines and the
// channels between them. Producers (the MIDI-in reader callback, the
// UI's action dispatcher) push FromMidi envelopes into Inbox; the
// monitor drains UI.
type Engine struct {
	Inbox chan process.FromMidi
	UI    chan process.ToUI

	proc *process.Process
	pb   *backend.Pitchbend
	out  RawSender

	toBackend chan process.ToBackend
	toOut     chan backend.ToMidiOut

	wg sync.WaitGroup
}

// New assembles an Engine around an already-configured process loop,
// pitch-bend allocator, and output sink. Inbox is deep enough that a
// burst of MIDI input never blocks the driver callback in practice;
// the downstream channels are bounded so a stalled consumer applies
// backpressure instead of growing without limit.
func New(proc *process.Process, pb *backend.Pitchbend, out RawSender) *Engine {
	return &Engine{
		Inbox:     make(chan process.FromMidi, 1024),
		UI:        make(chan process.ToUI, 256),
		proc:      proc,
		pb:        pb,
		out:       out,
		toBackend: make(chan process.ToBackend, 256),
		toOut:     make(chan backend.ToMidiOut, 256),
	}
}

// Start spawns the three loops. Each loop closes its downstream
// channel when its inbox closes, so Stop drains the whole pipeline in
// order.
func (e *Engine) Start() {
	e.wg.Add(3)
	go e.processLoop()
	go e.backendLoop()
	go e.midiOutLoop()
}

// Stop closes the inbox and waits until every already-enqueued event
// has been processed, sent, or dropped.
func (e *Engine) Stop() {
	close(e.Inbox)
	e.wg.Wait()
}

func (e *Engine) processLoop() {
	defer e.wg.Done()
	defer close(e.toBackend)
	processLog.Debug("event loop started")
	for env := range e.Inbox {
		for _, ev := range e.proc.Handle(env.Msg) {
			e.toBackend <- process.ToBackend{At: env.At, Event: ev}
			if uiFacing(ev) {
				e.mirrorUI(env.At, ev)
			}
		}
	}
	processLog.Debug("event loop stopped")
}

func (e *Engine) backendLoop() {
	defer e.wg.Done()
	defer close(e.toOut)
	var buf midiwire.Buffer
	ui := uiMirror{e: e}
	for env := range e.toBackend {
		buf.Reset()
		ui.at = env.At
		e.pb.HandleMsg(env.Event, &buf, &ui)
		if len(buf.Messages) == 0 {
			continue
		}
		batch := backend.ToMidiOut{At: env.At, Messages: make([][]byte, len(buf.Messages))}
		for i, m := range buf.Messages {
			// buf is reused next iteration; the batch needs its own bytes.
			batch.Messages[i] = append([]byte(nil), m...)
		}
		e.toOut <- batch
	}
	backendLog.Debug("event loop stopped")
}

func (e *Engine) midiOutLoop() {
	defer e.wg.Done()
	for batch := range e.toOut {
		for _, msg := range batch.Messages {
			if err := e.out.Send(msg); err != nil {
				// Send failure means the port is gone (unplugged, or a
				// shutdown race); there is nothing to retry against.
				midiOutLog.Debug("send failed", "err", err)
			}
		}
		e.mirrorUI(batch.At, process.BackendLatency{SinceInput: time.Since(batch.At)})
	}
}

// uiMirror adapts the backend's advisory sink onto the engine's
// best-effort UI channel, stamping each advisory with the arrival time
// of the input event that provoked it.
type uiMirror struct {
	e  *Engine
	at time.Time
}

func (u *uiMirror) Notify(ev process.AfterProcess) {
	u.e.mirrorUI(u.at, ev)
}

// mirrorUI forwards one event to the monitor without ever blocking a
// realtime loop on it: if the UI's queue is full, the event is dropped.
func (e *Engine) mirrorUI(at time.Time, ev process.AfterProcess) {
	select {
	case e.UI <- process.ToUI{At: at, Event: ev}:
	default:
	}
}

// uiFacing filters the event stream mirrored to the monitor.
// ForwardMidi is excluded: a clock-emitting controller would flood the
// log with messages nobody reads.
func uiFacing(ev process.AfterProcess) bool {
	switch ev.(type) {
	case process.ForwardMidi:
		return false
	default:
		return true
	}
}
