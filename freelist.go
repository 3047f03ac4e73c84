package stallwatch

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/driftwatch/stallwatch/internal/shmlayout"
	"github.com/driftwatch/stallwatch/internal/shmpage"
)

// slotAllocator is the process-wide singleton freelist over the slots in
// the instrumentation page. The page and its slot array are created
// lazily on the first call to alloc; nothing ever tears them down.
type slotAllocator struct {
	mu    sync.Mutex
	page  *shmpage.Page
	slots []shmlayout.Slot // a live overlay of page.Bytes, not a copy
	free  []*shmlayout.Slot
}

// global is the single freelist backing every Tracker in this process.
var global slotAllocator

// initLocked creates the instrumentation page and builds the freelist
// from it, if that hasn't happened yet. Must be called with mu held.
func (a *slotAllocator) initLocked() error {
	if a.page != nil {
		return nil
	}

	page, err := shmpage.New()
	if err != nil {
		return err
	}

	shmlayout.EncodeHeader(page.Bytes, shmlayout.Header{
		Magic:       shmlayout.Magic,
		SelfAddress: page.Addr,
		Version:     uintptr(shmlayout.Version),
	})

	slotsPtr, count := shmlayout.SlotsLayout(page.Addr, len(page.Bytes))
	slotsOffset := slotsPtr - page.Addr

	// Overlay the slot array directly onto the mapped bytes: this is the
	// one place a Slot's atomic Count is toggled in-place rather than
	// decoded from a copy, which is why it's safe only here, in the
	// publishing process.
	var slots []shmlayout.Slot
	if count > 0 {
		slots = unsafe.Slice((*shmlayout.Slot)(unsafe.Pointer(&page.Bytes[slotsOffset])), count)
	}

	a.page = page
	a.slots = slots
	a.free = make([]*shmlayout.Slot, 0, count)
	for i := range slots {
		a.free = append(a.free, &slots[i])
	}
	return nil
}

// alloc hands out a slot, publishes its metadata, and performs the first
// activating toggle, all before returning.
func (a *slotAllocator) alloc(name string, hint ThreadHint) (*shmlayout.Slot, error) {
	if name == "" {
		return nil, fmt.Errorf("stallwatch: tracker name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.initLocked(); err != nil {
		return nil, err
	}

	if len(a.free) == 0 {
		return nil, ErrOutOfSlots
	}

	slot := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	nameBytes := leakString(name)
	slot.Metadata = shmlayout.Metadata{
		NamePtr:    uintptr(unsafe.Pointer(&nameBytes[0])),
		NameLen:    uintptr(len(nameBytes)),
		ThreadHint: uintptr(hint),
	}

	// Publish: metadata must be visible to any external reader that
	// subsequently observes the counter go odd. This call is the slot's
	// first activation since (re)allocation.
	slot.Publish()

	return slot, nil
}

// release returns slot to the freelist. The slot's metadata is
// deliberately left in place: while the slot sits on the freelist with an
// even counter, the monitor never examines its metadata (see
// shmlayout.Slot.IsActive), so there's nothing unsafe about the stale
// bytes, and re-publishing on the next alloc is cheap enough not to
// bother clearing eagerly.
func (a *slotAllocator) release(slot *shmlayout.Slot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if slot.IsActive() {
		return ErrReleaseWhileActive
	}
	a.free = append(a.free, slot)
	return nil
}

// leakedNames keeps every tracker name reachable for the life of the
// process. Once a name is stored in a slot's metadata, an external reader
// may dereference its pointer at any time up to target exit, so its
// backing array must never be collected or reused.
var leakedNames struct {
	mu   sync.Mutex
	kept [][]byte
}

func leakString(s string) []byte {
	b := []byte(s)
	leakedNames.mu.Lock()
	leakedNames.kept = append(leakedNames.kept, b)
	leakedNames.mu.Unlock()
	return b
}
