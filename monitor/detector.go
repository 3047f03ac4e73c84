package monitor

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/driftwatch/stallwatch"
	"github.com/driftwatch/stallwatch/internal/shmlayout"
)

// slotSnapshot is the detector's per-slot state: the last observed slot
// contents, bit-for-bit, and when that observation was installed.
type slotSnapshot struct {
	value       shmlayout.Slot
	lastUpdated time.Time
}

// StallEvent is one fired stall: a slot whose counter has been odd and
// unchanged for at least cfg.AlertInterval.
type StallEvent struct {
	SlotIndex  int
	Name       string
	ThreadHint stallwatch.ThreadHint
	Since      time.Time
	Duration   time.Duration
}

// initSnapshots performs the one bulk read at attach time that seeds
// every slot's snapshot with lastUpdated = attach time, per spec.
func (m *Monitor) initSnapshots() error {
	now := time.Now()
	slots, err := m.readSlots()
	if err != nil {
		return err
	}
	m.snapshots = make([]slotSnapshot, len(slots))
	for i, s := range slots {
		m.snapshots[i] = slotSnapshot{value: s, lastUpdated: now}
	}
	return nil
}

// readSlots performs the single cross-process bulk read of the entire
// slot array.
func (m *Monitor) readSlots() ([]shmlayout.Slot, error) {
	if m.numSlots == 0 {
		return nil, nil
	}
	buf, err := m.target.ReadAt(m.slotsPtr, int(shmlayout.SlotSize)*m.numSlots)
	if err != nil {
		return nil, fmt.Errorf("monitor: bulk slot read: %w", err)
	}
	return shmlayout.DecodeSlots(buf, m.numSlots)
}

// Poll performs one detection cycle: bulk-read the slot array, advance
// or hold each slot's snapshot per the two-poll confirmation rule, and
// return every slot that is firing a stall this cycle (including slots
// that fired on a previous poll and are still active — the snapshot is
// deliberately left in place for those, so duration keeps growing).
func (m *Monitor) Poll() ([]StallEvent, error) {
	now := time.Now()
	cur, err := m.readSlots()
	if err != nil {
		return nil, err
	}

	var events []StallEvent
	for i, slot := range cur {
		snap := &m.snapshots[i]

		if slot.IsActive() && slot.Count == snap.value.Count {
			since := snap.lastUpdated
			duration := now.Sub(since)
			if duration >= m.cfg.AlertInterval {
				name, decodeErr := m.decodeName(slot.Metadata)
				if decodeErr != nil {
					// Soft error: skip this slot's report, keep polling.
					continue
				}
				events = append(events, StallEvent{
					SlotIndex:  i,
					Name:       name,
					ThreadHint: stallwatch.ThreadHint(slot.Metadata.ThreadHint),
					Since:      since,
					Duration:   duration,
				})
			}
			// Leave the snapshot in place either way: this is the only
			// branch that must not advance lastUpdated.
			continue
		}

		snap.value = slot
		snap.lastUpdated = now
	}

	return events, nil
}

// decodeName reads a slot's name out of the target and validates it as
// UTF-8, per spec's name_decode_failed soft-error path.
func (m *Monitor) decodeName(md shmlayout.Metadata) (string, error) {
	if md.NameLen == 0 {
		return "", ErrNameDecodeFailed
	}
	buf, err := m.target.ReadAt(md.NamePtr, int(md.NameLen))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNameDecodeFailed, err)
	}
	if !utf8.Valid(buf) {
		return "", ErrNameDecodeFailed
	}
	return string(buf), nil
}
