package monitor

import (
	"fmt"

	"github.com/driftwatch/stallwatch/internal/procreader"
)

// fakeTarget is an in-memory stand-in for procreader.Target, letting
// detector and discovery tests exercise the real algorithms without a
// real target process. Memory is modeled as a flat byte slice, with a
// configurable base address.
type fakeTarget struct {
	pid        int
	base       uintptr
	mem        []byte
	maps       []procreader.MapRegion
	alive      bool
	cmdline    []string
	unreadable map[uintptr]bool // addresses that always fail to read

	// failAfter, when > 0, makes ReadAt fail starting from the failAfter'th
	// call (1-indexed); 0 means never force a failure this way.
	failAfter int
	reads     int
}

func newFakeTarget(pid int, base uintptr, size int) *fakeTarget {
	return &fakeTarget{
		pid:        pid,
		base:       base,
		mem:        make([]byte, size),
		alive:      true,
		unreadable: make(map[uintptr]bool),
	}
}

func (f *fakeTarget) Pid() int { return f.pid }

func (f *fakeTarget) MemoryMaps() ([]procreader.MapRegion, error) {
	return f.maps, nil
}

func (f *fakeTarget) ReadAt(addr uintptr, length int) ([]byte, error) {
	f.reads++
	if f.failAfter > 0 && f.reads >= f.failAfter {
		return nil, fmt.Errorf("fake: forced read failure on call %d", f.reads)
	}
	if f.unreadable[addr] {
		return nil, fmt.Errorf("fake: unreadable region at %#x", addr)
	}
	if addr < f.base {
		return nil, fmt.Errorf("fake: address %#x below base %#x", addr, f.base)
	}
	off := int(addr - f.base)
	if off+length > len(f.mem) {
		return nil, fmt.Errorf("fake: read past end of mapped memory")
	}
	out := make([]byte, length)
	copy(out, f.mem[off:off+length])
	return out, nil
}

func (f *fakeTarget) Alive() bool { return f.alive }

func (f *fakeTarget) Cmdline() ([]string, error) { return f.cmdline, nil }

func (f *fakeTarget) Close() error { return nil }
