// Package shmpage provides the platform hook for creating the single
// anonymous, page-sized mapping that backs a process's stallwatch
// instrumentation. It is the only part of the publishing side that needs
// OS-specific code; everything above it (internal/shmlayout, the
// freelist) works on the returned []byte and its address alone.
package shmpage

import "errors"

// ErrUnsupportedPlatform is returned by New on platforms with no page
// allocation backend wired up.
var ErrUnsupportedPlatform = errors.New("shmpage: unsupported platform")

// Page is a single leaked, zeroed, page-sized anonymous mapping.
type Page struct {
	// Addr is the virtual address at which Bytes[0] resides in the current
	// process. Stored separately from the slice header because it must
	// survive being copied into the wire header as a plain integer.
	Addr uintptr
	// Bytes is the live view of the mapped page. Never resized, never
	// unmapped: the instrumentation page is deliberately immortal for the
	// life of the process (spec: "leaking is correct").
	Bytes []byte
}

// Size reports the page size used by New on this platform.
func Size() int {
	return pageSize()
}
