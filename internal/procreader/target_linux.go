//go:build linux

package procreader

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// linuxTarget reads a target process's memory through /proc/<pid>/maps
// and /proc/<pid>/mem, and its liveness/cmdline through gopsutil (which
// itself reads /proc on this platform, but gives us a portable surface
// for the fields that don't need raw memory access).
type linuxTarget struct {
	pid int
	fd  int // open O_RDONLY on /proc/<pid>/mem, kept for the life of the Target
}

func openTarget(pid int) (Target, error) {
	if !process.PidExists(int32(pid)) {
		return nil, ErrNotFound
	}

	fd, err := unix.Open(fmt.Sprintf("/proc/%d/mem", pid), unix.O_RDONLY, 0)
	if err != nil {
		switch err {
		case unix.ENOENT, unix.ESRCH:
			return nil, ErrNotFound
		case unix.EACCES, unix.EPERM:
			return nil, fmt.Errorf("%w: open /proc/%d/mem: %v", ErrPermissionDenied, pid, err)
		default:
			return nil, fmt.Errorf("procreader: open /proc/%d/mem: %w", pid, err)
		}
	}

	return &linuxTarget{pid: pid, fd: fd}, nil
}

func (t *linuxTarget) Pid() int { return t.pid }

// MemoryMaps parses /proc/<pid>/maps. Each line has the form
// "start-end perms offset dev inode pathname", space-separated, with
// pathname optional and potentially containing spaces (ignored here:
// discovery only needs the address range).
func (t *linuxTarget) MemoryMaps() ([]MapRegion, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", t.pid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: open /proc/%d/maps: %v", ErrPermissionDenied, t.pid, err)
		}
		return nil, fmt.Errorf("procreader: open /proc/%d/maps: %w", t.pid, err)
	}
	defer f.Close()

	var regions []MapRegion
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 1 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		regions = append(regions, MapRegion{Start: uintptr(start), End: uintptr(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("procreader: read /proc/%d/maps: %w", t.pid, err)
	}
	return regions, nil
}

// ReadAt performs a single pread against the already-open mem fd. Guard
// pages and since-unmapped regions surface as ordinary read errors;
// discovery skips such regions, while a failed bulk slot read is returned
// from the poll and resolved by a liveness probe on the target.
func (t *linuxTarget) ReadAt(addr uintptr, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := unix.Pread(t.fd, buf, int64(addr))
	if err != nil {
		return nil, fmt.Errorf("procreader: pread %d bytes at %#x: %w", length, addr, err)
	}
	if n != length {
		return nil, fmt.Errorf("procreader: short pread at %#x: got %d bytes, want %d", addr, n, length)
	}
	return buf, nil
}

// Alive reports whether the target pid still resolves to a live
// process. Used as the liveness probe after a read error distinguishes
// "target exited" from a genuine failure.
func (t *linuxTarget) Alive() bool {
	return process.PidExists(int32(t.pid))
}

func (t *linuxTarget) Cmdline() ([]string, error) {
	p, err := process.NewProcess(int32(t.pid))
	if err != nil {
		return nil, fmt.Errorf("procreader: lookup pid %d: %w", t.pid, err)
	}
	args, err := p.CmdlineSlice()
	if err != nil {
		return nil, fmt.Errorf("procreader: cmdline for pid %d: %w", t.pid, err)
	}
	return args, nil
}

func (t *linuxTarget) Close() error {
	return unix.Close(t.fd)
}
