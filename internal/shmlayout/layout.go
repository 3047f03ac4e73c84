// Package shmlayout defines the bit-exact binary layout of the stallwatch
// shared-memory page: a fixed header followed by a contiguous array of
// slot records. Both the in-process publisher and the external monitor
// depend on this package, but only the publisher may hold a live
// *Header/*Slot pointer into real memory — the monitor only ever sees
// copied bytes read out of another process, and must go through
// DecodeHeader/DecodeSlot.
package shmlayout

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"
)

// MagicSize is the length, in bytes, of the page's identifying magic.
const MagicSize = 16

// Magic identifies a stallwatch instrumentation page. Generated once and
// fixed for the life of the wire format; bumping it is equivalent to
// bumping Version, but Version exists so a mismatch can be reported with
// both numbers instead of just "not found".
var Magic = [MagicSize]byte{0xad, 0xce, 0x61, 0x74, 0x17, 0x49, 0xff, 0x41, 0xe8, 0xd4, 0xe8, 0x0a, 0x50, 0xb1, 0xfc, 0x86}

// Version is the ABI version this build of stallwatch publishes/expects.
const Version uint64 = 0

// Header is the fixed page header, written once at page creation and never
// mutated afterward.
type Header struct {
	Magic       [MagicSize]byte
	SelfAddress uintptr
	Version     uintptr
}

// Metadata describes a slot's owner-published identity: the name bytes'
// location in the owning process and the declared ThreadHint. Valid only
// while the slot's Count is odd.
type Metadata struct {
	NamePtr    uintptr
	NameLen    uintptr
	ThreadHint uintptr
}

// Slot is one StallTracker record: an atomic progress counter plus its
// metadata. The all-zero value is a valid, free (idle) slot.
type Slot struct {
	Count    uint64
	Metadata Metadata
}

// Sizes and alignment of the wire types, computed from the Go struct
// layout. HeaderSize/SlotSize/SlotAlign are load-bearing: the monitor uses
// them to locate the slot array without any cooperation from the target
// beyond the header it already read.
const (
	HeaderSize   = unsafe.Sizeof(Header{})
	SlotSize     = unsafe.Sizeof(Slot{})
	SlotAlign    = unsafe.Alignof(Slot{})
	headerMagic  = 0
	headerSelf   = MagicSize
	headerVers   = MagicSize + int(unsafe.Sizeof(uintptr(0)))
	slotCount    = 0
	slotNamePtr  = 8
	slotNameLen  = slotNamePtr + int(unsafe.Sizeof(uintptr(0)))
	slotThreadID = slotNameLen + int(unsafe.Sizeof(uintptr(0)))
)

// atomicCount returns an atomic view of s.Count, for use by the
// publishing side only (the monitor never has a live pointer into a
// Slot belonging to another process).
func (s *Slot) atomicCount() *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&s.Count))
}

// IsActive reports whether the slot's counter is odd (region active).
func (s *Slot) IsActive() bool {
	return s.atomicCount().Load()%2 == 1
}

// Toggle flips the slot's liveness parity via a single atomic increment.
// Relaxed is sufficient for every toggle after the first: the metadata no
// longer changes, and fetch-add preserves monotonicity on its own.
func (s *Slot) Toggle() {
	s.atomicCount().Add(1)
}

// Publish increments the counter to mark first activation after
// (re)allocation. Must only be called after Metadata has been written.
// Go's atomic.Uint64.Add is a full memory barrier, which is at least as
// strong as the release ordering the protocol requires of this step.
func (s *Slot) Publish() {
	s.atomicCount().Add(1)
}

// RoundUp rounds value up to the next multiple of align, which must be a
// power of two.
func RoundUp(value, align uintptr) uintptr {
	return (value + align - 1) &^ (align - 1)
}

// SlotsLayout computes where the slot array starts and how many slots fit,
// given a page of pageSize bytes mapped starting at pageStart. The slot
// count is never stored in the page itself — both sides recompute it from
// known sizes and alignment.
func SlotsLayout(pageStart uintptr, pageSize int) (slotsPtr uintptr, count int) {
	headerEnd := pageStart + HeaderSize
	slotsPtr = RoundUp(headerEnd, SlotAlign)
	if uintptr(pageSize) < slotsPtr-pageStart {
		return slotsPtr, 0
	}
	remaining := pageStart + uintptr(pageSize) - slotsPtr
	return slotsPtr, int(remaining / SlotSize)
}

// FitsInPage reports whether a header plus n slots fits within a page of
// the given size, starting at a naturally-aligned page boundary.
func FitsInPage(pageSize int, n int) bool {
	_, count := SlotsLayout(0, pageSize)
	return n <= count
}

// byteOrder is the wire byte order: the host's native order, which is the
// order the publishing side's live slot overlay stores its fields in. The
// monitor and its target run on the same host, so bytes read out of a
// target decode with the same order.
var byteOrder = binary.NativeEndian

// DecodeHeader decodes a Header from the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < int(HeaderSize) {
		return Header{}, fmt.Errorf("shmlayout: short header read: got %d bytes, want %d", len(buf), HeaderSize)
	}
	var h Header
	copy(h.Magic[:], buf[headerMagic:headerMagic+MagicSize])
	h.SelfAddress = uintptr(byteOrder.Uint64(buf[headerSelf:]))
	h.Version = uintptr(byteOrder.Uint64(buf[headerVers:]))
	return h, nil
}

// DecodeSlot decodes a single Slot from the first SlotSize bytes of buf.
func DecodeSlot(buf []byte) (Slot, error) {
	if len(buf) < int(SlotSize) {
		return Slot{}, fmt.Errorf("shmlayout: short slot read: got %d bytes, want %d", len(buf), SlotSize)
	}
	var s Slot
	s.Count = byteOrder.Uint64(buf[slotCount:])
	s.Metadata.NamePtr = uintptr(byteOrder.Uint64(buf[slotNamePtr:]))
	s.Metadata.NameLen = uintptr(byteOrder.Uint64(buf[slotNameLen:]))
	s.Metadata.ThreadHint = uintptr(byteOrder.Uint64(buf[slotThreadID:]))
	return s, nil
}

// DecodeSlots decodes count consecutive slots from buf.
func DecodeSlots(buf []byte, count int) ([]Slot, error) {
	want := int(SlotSize) * count
	if len(buf) < want {
		return nil, fmt.Errorf("shmlayout: short slots read: got %d bytes, want %d for %d slots", len(buf), want, count)
	}
	slots := make([]Slot, count)
	for i := range slots {
		s, err := DecodeSlot(buf[i*int(SlotSize):])
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}
	return slots, nil
}

// EncodeHeader writes h into the first HeaderSize bytes of buf, which must
// be at least that long. Used only by the in-process page creator.
func EncodeHeader(buf []byte, h Header) {
	copy(buf[headerMagic:], h.Magic[:])
	byteOrder.PutUint64(buf[headerSelf:], uint64(h.SelfAddress))
	byteOrder.PutUint64(buf[headerVers:], uint64(h.Version))
}

// EncodeSlot writes s into the first SlotSize bytes of buf, which must
// be at least that long. The publishing side never needs this (it
// mutates a live overlay in place); it exists for building synthetic
// target memory images in tests.
func EncodeSlot(buf []byte, s Slot) {
	byteOrder.PutUint64(buf[slotCount:], s.Count)
	byteOrder.PutUint64(buf[slotNamePtr:], uint64(s.Metadata.NamePtr))
	byteOrder.PutUint64(buf[slotNameLen:], uint64(s.Metadata.NameLen))
	byteOrder.PutUint64(buf[slotThreadID:], uint64(s.Metadata.ThreadHint))
}
