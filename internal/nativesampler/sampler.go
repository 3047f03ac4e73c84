// Package nativesampler is a minimal, unsymbolicated implementation of
// monitor.StackSampler: it ptrace-attaches each of the target's threads
// long enough to read its current instruction pointer, and returns one
// frame per thread with no debug-info resolution and no notion of a
// global interpreter lock.
//
// Reading managed-language stack traces from another process is
// explicitly an external collaborator's job (see monitor.StackSampler);
// this package exists so `stallwatch-monitor watch` produces a real,
// if coarse, traceback out of the box instead of requiring a plugin
// before it can report anything beyond "stall detected".
package nativesampler

import "errors"

// ErrUnsupportedPlatform is returned by New on platforms with no ptrace
// backend wired up.
var ErrUnsupportedPlatform = errors.New("nativesampler: unsupported platform")
