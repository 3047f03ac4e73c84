package monitor

import (
	"errors"
	"fmt"
	"runtime"
)

// hintedError is a fatal monitor-side error that carries a
// platform-specific remediation hint, surfaced by the CLI alongside the
// error text.
type hintedError struct {
	msg  string
	hint string
}

func (e *hintedError) Error() string { return e.msg }

// Hint returns the remediation text for this error, or "" if none
// applies.
func (e *hintedError) Hint() string { return e.hint }

// Hint extracts the remediation hint from err, if it (or something it
// wraps) carries one.
func Hint(err error) string {
	var he *hintedError
	if errors.As(err, &he) {
		return he.Hint()
	}
	return ""
}

func permissionHint() string {
	if runtime.GOOS == "darwin" {
		return "retry with sudo, or grant the debugger entitlement required to read another process's memory on macOS"
	}
	return "retry with CAP_SYS_PTRACE (e.g. via setcap on this binary), or as a user permitted to ptrace the target (see /proc/sys/kernel/yama/ptrace_scope)"
}

// Sentinel error kinds for discovery, detection, and reporting. Soft
// errors (ErrNameDecodeFailed, ErrSamplerError) are skipped: a sampler
// failure is logged, while a slot whose name fails to decode is dropped
// from that poll's events without being logged. Everything else here is
// fatal, per the error-handling design. Page
// discovery's two fatal outcomes — "maps readable, no magic found" vs.
// "no map could be read at all" — are distinguished by
// ErrNotInstrumented vs. ErrPermissionDenied respectively; there is no
// separate "page not found" kind beyond those two.
var (
	// ErrNotInstrumented is returned by Attach when at least one
	// candidate map was readable but none matched the stallwatch magic.
	ErrNotInstrumented = errors.New("monitor: target process has no stallwatch instrumentation page")

	// ErrPermissionDenied is returned by Attach when the monitor lacks
	// permission to inspect the target.
	ErrPermissionDenied = &hintedError{msg: "monitor: permission denied reading target process", hint: permissionHint()}

	// ErrNameDecodeFailed is a soft, per-slot error: that slot's report
	// is skipped for this poll, polling continues.
	ErrNameDecodeFailed = errors.New("monitor: slot name failed UTF-8 decode")

	// ErrSamplerError is a soft error wrapping a StackSampler failure:
	// logged, the poll loop continues without a traceback this time.
	ErrSamplerError = errors.New("monitor: stack sampler error")
)

// errVersionMismatch builds the error Attach returns when a matched page's
// version differs from the monitor's own. Not a plain sentinel since the message
// must name both versions.
func errVersionMismatch(got, want uint64) error {
	return &hintedError{
		msg: fmt.Sprintf("monitor: instrumentation page version mismatch: target publishes %d, monitor expects %d", got, want),
	}
}
