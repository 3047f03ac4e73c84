//go:build linux || darwin

package shmpage

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

// New creates one zeroed, page-sized anonymous mapping and leaks it. The
// mapping is MAP_SHARED so the Go runtime and any cross-process reader
// agree it is not copy-on-write, and MAP_ANON because it has no backing
// file: nothing but this function ever needs to name it.
//
// Anonymous mmap'd pages return pre-zeroed memory from the kernel, so the
// "all-zero is a valid empty state" invariant holds without any explicit
// clearing.
func New() (*Page, error) {
	size := pageSize()
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmpage: mmap anonymous page: %w", err)
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	return &Page{Addr: addr, Bytes: buf}, nil
}
