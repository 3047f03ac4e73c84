package stallwatch

import (
	"unsafe"

	"github.com/driftwatch/stallwatch/internal/shmlayout"
)

// Tracker is a handle to one stall-tracker slot: a named region whose
// progress counter is published in this process's stallwatch
// instrumentation page, for an external monitor to poll.
//
// A Tracker is active immediately upon construction: New allocates a slot
// and performs its first activating toggle in one step. Call GoIdle to
// mark the region as not currently making progress, and GoActive to mark
// it active again.
//
// A single Tracker must never be toggled concurrently from more than one
// goroutine; that owning-goroutine discipline is the caller's
// responsibility. Distinct Trackers are fully independent and need no
// coordination between them.
type Tracker struct {
	slot   *shmlayout.Slot
	active bool
	closed bool
}

// New allocates a stall tracker slot named name, hinted to hint, and
// publishes it active. name must be a nonempty UTF-8 string; hint is
// either GIL or a ThreadHint built with NewThreadHint.
func New(name string, hint ThreadHint) (*Tracker, error) {
	slot, err := global.alloc(name, hint)
	if err != nil {
		return nil, err
	}
	return &Tracker{slot: slot, active: true}, nil
}

// GoActive marks the tracked region as active (making progress).
func (t *Tracker) GoActive() error {
	if t.closed {
		return ErrUseAfterClose
	}
	if t.active {
		return ErrAlreadyActive
	}
	t.slot.Toggle()
	t.active = true
	return nil
}

// GoIdle marks the tracked region as idle (not currently making
// progress).
func (t *Tracker) GoIdle() error {
	if t.closed {
		return ErrUseAfterClose
	}
	if !t.active {
		return ErrAlreadyIdle
	}
	t.slot.Toggle()
	t.active = false
	return nil
}

// IsActive reports the tracker's locally-known liveness.
func (t *Tracker) IsActive() bool {
	if t.closed {
		return false
	}
	return t.slot.IsActive()
}

// CounterAddress returns the process-local virtual address of the
// tracker's progress counter, for external harnesses that want to verify
// the shared-memory layout independently of this package.
func (t *Tracker) CounterAddress() (uintptr, error) {
	if t.closed {
		return 0, ErrUseAfterClose
	}
	return uintptr(unsafe.Pointer(&t.slot.Count)), nil
}

// Close releases the tracker's slot back to the process freelist. It is
// an error to close an active tracker (call GoIdle first); the tracker
// remains open and usable in that case. Closing an already-closed Tracker
// is a no-op.
func (t *Tracker) Close() error {
	if t.closed {
		return nil
	}
	if t.active {
		return ErrReleaseWhileActive
	}
	if err := global.release(t.slot); err != nil {
		return err
	}
	t.closed = true
	return nil
}
