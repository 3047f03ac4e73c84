//go:build linux && amd64

package nativesampler

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/driftwatch/stallwatch/monitor"
)

// Sampler ptrace-attaches to each of a pid's threads in turn, one at a
// time, to read its instruction pointer. Linux ptrace permits waiting on
// a tracee that isn't the tracer's own child, which is what lets this
// attach to arbitrary threads of an already-running target.
type Sampler struct {
	pid int
}

// New returns a Sampler for pid.
func New(pid int) (*Sampler, error) {
	return &Sampler{pid: pid}, nil
}

// StackTraces implements monitor.StackSampler. Threads that exit or
// otherwise fail to attach between listing and sampling are skipped
// rather than failing the whole capture.
func (s *Sampler) StackTraces() ([]monitor.Trace, error) {
	tids, err := listThreads(s.pid)
	if err != nil {
		return nil, fmt.Errorf("nativesampler: list threads of pid %d: %w", s.pid, err)
	}

	traces := make([]monitor.Trace, 0, len(tids))
	for _, tid := range tids {
		trace, err := sampleThread(tid)
		if err != nil {
			continue
		}
		traces = append(traces, trace)
	}
	return traces, nil
}

func listThreads(pid int) ([]int, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", pid))
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// sampleThread attaches, waits for the resulting stop, reads registers,
// and detaches — a single brief pause of one thread, not the whole
// process.
func sampleThread(tid int) (monitor.Trace, error) {
	if err := unix.PtraceAttach(tid); err != nil {
		return monitor.Trace{}, fmt.Errorf("ptrace attach %d: %w", tid, err)
	}
	defer func() { _ = unix.PtraceDetach(tid) }()

	var ws unix.WaitStatus
	if _, err := unix.Wait4(tid, &ws, 0, nil); err != nil {
		return monitor.Trace{}, fmt.Errorf("wait4 %d: %w", tid, err)
	}

	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return monitor.Trace{}, fmt.Errorf("getregs %d: %w", tid, err)
	}

	return monitor.Trace{
		ThreadID:       uint64(tid),
		OwnsGlobalLock: false,
		Status:         "stopped",
		Frames: []monitor.StackFrame{{
			// No symbolication is attempted; the instruction pointer is
			// the only information this fallback sampler can offer.
			Name:     fmt.Sprintf("native@%#x", regs.Rip),
			Filename: "",
			Line:     0,
		}},
	}, nil
}
