package testutil

import (
	"sync"
)

// Emitted is one event captured by RecordingEmitter.
type Emitted struct {
	Room  string
	Event string
	Data  any
}

// RecordingEmitter captures emits instead of delivering them.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []Emitted
}

func (r *RecordingEmitter) Emit(room, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Room: room, Event: event, Data: data})
}

func (r *RecordingEmitter) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emitted(nil), r.events...)
}

// To returns the event names emitted to room, in order.
func (r *RecordingEmitter) To(room string) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Room == room {
			out = append(out, e.Event)
		}
	}
	return out
}

func (r *RecordingEmitter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
