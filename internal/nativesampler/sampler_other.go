//go:build !(linux && amd64)

package nativesampler

import "github.com/driftwatch/stallwatch/monitor"

// Sampler has no backend outside linux/amd64: other architectures'
// unix.PtraceRegs layouts aren't wired up, and non-Linux platforms have
// no ptrace equivalent exercised anywhere in this codebase.
type Sampler struct{}

// New always fails on unsupported platforms.
func New(pid int) (*Sampler, error) {
	return nil, ErrUnsupportedPlatform
}

func (s *Sampler) StackTraces() ([]monitor.Trace, error) {
	return nil, ErrUnsupportedPlatform
}
