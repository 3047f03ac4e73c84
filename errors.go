package stallwatch

import "errors"

// Error kinds surfaced by the in-process instrumentation layer. None of
// these are ever raised as panics: every misuse of a Tracker or the
// allocator becomes one of these errors instead, per the "never panic on
// user misuse" rule that also governs the monitor side (see package
// monitor for its own, separate error kinds).
var (
	// ErrOutOfSlots is returned by New when the process-wide freelist has
	// no free slots left in the instrumentation page.
	ErrOutOfSlots = errors.New("stallwatch: out of stall tracker slots")

	// ErrReleaseWhileActive is returned by Tracker.Close when the tracker
	// is still active; call GoIdle first.
	ErrReleaseWhileActive = errors.New("stallwatch: attempt to release an active stall tracker")

	// ErrInvalidThreadHint is returned by NewThreadHint when given a zero
	// thread id (zero is reserved for the GIL sentinel).
	ErrInvalidThreadHint = errors.New("stallwatch: thread hint must be GIL or a nonzero thread id")

	// ErrUseAfterClose is returned by any Tracker operation performed
	// after Close has released its slot.
	ErrUseAfterClose = errors.New("stallwatch: use of closed stall tracker")

	// ErrAlreadyActive is returned by GoActive when the tracker is
	// already active.
	ErrAlreadyActive = errors.New("stallwatch: stall tracker is already active")

	// ErrAlreadyIdle is returned by GoIdle when the tracker is already
	// idle.
	ErrAlreadyIdle = errors.New("stallwatch: stall tracker is already idle")
)
