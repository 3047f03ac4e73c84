package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/stallwatch/internal/procreader"
	"github.com/driftwatch/stallwatch/internal/shmlayout"
	"github.com/driftwatch/stallwatch/internal/shmpage"
)

func Test_discover_locateSlots_matchesInstrumentedPage(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize*2)
	shmlayout.EncodeHeader(target.mem, shmlayout.Header{
		Magic:       shmlayout.Magic,
		SelfAddress: fakeBase,
		Version:     uintptr(shmlayout.Version),
	})
	target.maps = []procreader.MapRegion{
		{Start: fakeBase, End: fakeBase + uintptr(pageSize)}, // the real page
		{Start: fakeBase + uintptr(pageSize), End: fakeBase + uintptr(2*pageSize)}, // decoy, same size, no magic
	}

	slotsPtr, n, err := locateSlots(target)
	require.NoError(t, err)
	wantPtr, wantN := shmlayout.SlotsLayout(fakeBase, pageSize)
	assert.Equal(t, wantPtr, slotsPtr)
	assert.Equal(t, wantN, n)
}

func Test_discover_locateSlots_ignoresWrongSelfAddress(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize)
	// Header claims a self_address that doesn't match the map's start:
	// must be rejected even though the magic matches.
	shmlayout.EncodeHeader(target.mem, shmlayout.Header{
		Magic:       shmlayout.Magic,
		SelfAddress: fakeBase + 1,
		Version:     uintptr(shmlayout.Version),
	})
	target.maps = []procreader.MapRegion{{Start: fakeBase, End: fakeBase + uintptr(pageSize)}}

	_, _, err := locateSlots(target)
	assert.ErrorIs(t, err, ErrNotInstrumented)
}

func Test_discover_locateSlots_notInstrumented(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize)
	// Zeroed page: readable, but no magic.
	target.maps = []procreader.MapRegion{{Start: fakeBase, End: fakeBase + uintptr(pageSize)}}

	_, _, err := locateSlots(target)
	assert.ErrorIs(t, err, ErrNotInstrumented)
}

func Test_discover_locateSlots_permissionDenied(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize)
	target.maps = []procreader.MapRegion{{Start: fakeBase, End: fakeBase + uintptr(pageSize)}}
	target.unreadable[fakeBase] = true

	_, _, err := locateSlots(target)
	var he *hintedError
	assert.True(t, errors.As(err, &he))
	assert.Same(t, ErrPermissionDenied, err)
}

func Test_discover_locateSlots_versionMismatch(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize)
	shmlayout.EncodeHeader(target.mem, shmlayout.Header{
		Magic:       shmlayout.Magic,
		SelfAddress: fakeBase,
		Version:     uintptr(shmlayout.Version) + 1,
	})
	target.maps = []procreader.MapRegion{{Start: fakeBase, End: fakeBase + uintptr(pageSize)}}

	_, _, err := locateSlots(target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version mismatch")
}

func Test_discover_locateSlots_ignoresWrongSizedMaps(t *testing.T) {
	pageSize := shmpage.Size()
	target := newFakeTarget(1, fakeBase, pageSize*2)
	shmlayout.EncodeHeader(target.mem, shmlayout.Header{
		Magic:       shmlayout.Magic,
		SelfAddress: fakeBase,
		Version:     uintptr(shmlayout.Version),
	})
	// The only map offered is NOT page-sized, so discovery must skip it
	// even though its header would otherwise match. With no page-sized
	// candidate ever attempted, this falls into the same "nothing could
	// be read" bucket as a genuine permission failure.
	target.maps = []procreader.MapRegion{{Start: fakeBase, End: fakeBase + uintptr(pageSize) + 1}}

	_, _, err := locateSlots(target)
	assert.Same(t, ErrPermissionDenied, err)
}
