// Package monitor is the external side of stallwatch: given a target
// pid, it discovers the target's instrumentation page, polls it for
// stalls, and reports them through a caller-supplied StackSampler (see
// internal/nativesampler for the built-in ptrace-based fallback) and
// internal/logging.
package monitor

import (
	"errors"
	"fmt"

	"github.com/driftwatch/stallwatch/internal/procreader"
	"github.com/driftwatch/stallwatch/internal/shmlayout"
	"github.com/driftwatch/stallwatch/internal/shmpage"
)

// Monitor is an attached handle on one target process: its memory
// reader, the located slot array, and the per-slot snapshots the
// detector maintains between polls.
type Monitor struct {
	target    procreader.Target
	slotsPtr  uintptr
	numSlots  int
	sampler   StackSampler
	snapshots []slotSnapshot
	cfg       Config
}

// Attach discovers pid's stallwatch instrumentation page by scanning its
// memory maps for a page-sized region whose header matches our magic
// and self_address, then locates and snapshots its slot array. sampler
// is the caller's StackSampler collaborator, used later by the
// reporter; it is not required for discovery itself.
func Attach(pid int, sampler StackSampler, cfg Config) (*Monitor, error) {
	target, err := procreader.Open(pid)
	if err != nil {
		if errors.Is(err, procreader.ErrPermissionDenied) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}

	slotsPtr, numSlots, err := locateSlots(target)
	if err != nil {
		target.Close()
		return nil, err
	}

	m := &Monitor{
		target:   target,
		slotsPtr: slotsPtr,
		numSlots: numSlots,
		sampler:  sampler,
		cfg:      cfg,
	}

	if err := m.initSnapshots(); err != nil {
		target.Close()
		return nil, err
	}

	return m, nil
}

// locateSlots implements spec's page-discovery algorithm: scan
// page-sized maps, validate by magic then self_address, reject on
// version mismatch, and compute the slot array's location from the
// matched map alone.
func locateSlots(target procreader.Target) (slotsPtr uintptr, numSlots int, err error) {
	maps, err := target.MemoryMaps()
	if err != nil {
		return 0, 0, fmt.Errorf("monitor: enumerate memory maps: %w", err)
	}

	pageSize := shmpage.Size()
	var anyReadable bool
	for _, region := range maps {
		if region.Size() != pageSize {
			continue
		}

		buf, readErr := target.ReadAt(region.Start, int(shmlayout.HeaderSize))
		if readErr != nil {
			// Guard pages and races with unmapping are normal; skip.
			continue
		}
		anyReadable = true

		header, decodeErr := shmlayout.DecodeHeader(buf)
		if decodeErr != nil {
			continue
		}
		if header.Magic != shmlayout.Magic {
			continue
		}
		if header.SelfAddress != region.Start {
			continue
		}
		if uint64(header.Version) != shmlayout.Version {
			return 0, 0, errVersionMismatch(uint64(header.Version), shmlayout.Version)
		}

		ptr, count := shmlayout.SlotsLayout(region.Start, region.Size())
		return ptr, count, nil
	}

	if anyReadable {
		return 0, 0, ErrNotInstrumented
	}
	return 0, 0, ErrPermissionDenied
}

// Pid returns the attached target's process id.
func (m *Monitor) Pid() int { return m.target.Pid() }

// Close releases the underlying process handle.
func (m *Monitor) Close() error { return m.target.Close() }
