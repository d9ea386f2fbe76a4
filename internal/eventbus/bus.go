package eventbus

import "ytbatch/internal/ytlog"

// capacity bounds the event channel. Producers (workers, URL processors,
// the dependency installer) may block briefly under back-pressure; this
// is acceptable per §5's shared-resource notes.
const capacity = 256

// Bus is a single-producer-friendly, single-consumer stream of typed
// events. Multiple goroutines may call Emit concurrently; exactly one
// goroutine is expected to range over Events().
type Bus struct {
	events chan Event
}

// New creates a Bus with a bounded internal channel.
func New() *Bus {
	return &Bus{events: make(chan Event, capacity)}
}

// Emit enqueues ev, blocking if the bus is at capacity. It never drops
// events; a saturated bus is a sign the consumer has stalled.
func (b *Bus) Emit(ev Event) {
	b.events <- ev
}

// TryEmit enqueues ev without blocking, returning false if the bus is
// full. Useful for best-effort diagnostics where stalling is worse than
// dropping (e.g. log-forwarding events).
func (b *Bus) TryEmit(ev Event) bool {
	select {
	case b.events <- ev:
		return true
	default:
		ytlog.Log.Warn().Msg("eventbus: dropped event, consumer is not keeping up")
		return false
	}
}

// Events returns the receive-only channel the single consumer ranges over.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Close closes the underlying channel. Callers must ensure no further
// Emit calls happen afterward.
func (b *Bus) Close() {
	close(b.events)
}
