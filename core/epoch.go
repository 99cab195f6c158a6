package orchestration

import "sync/atomic"

// Epoch is a monotonically increasing generation counter. Asynchronous work
// captures the current value when it starts and checks IsCurrent before it
// commits any effect; advancing the epoch silently invalidates all of it.
type Epoch struct {
	value atomic.Uint64
}

// Advance invalidates all work captured at earlier values and returns the new
// value.
func (e *Epoch) Advance() uint64 {
	return e.value.Add(1)
}

func (e *Epoch) Current() uint64 {
	return e.value.Load()
}

func (e *Epoch) IsCurrent(captured uint64) bool {
	return e.value.Load() == captured
}
