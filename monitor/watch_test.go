package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/stallwatch/internal/logging"
	"github.com/driftwatch/stallwatch/internal/shmlayout"
)

func Test_Watch_exitsCleanlyWhenTargetDies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	m, target := buildFakeMonitor(t, 1, cfg)
	target.writeSlot(m.slotsPtr, 0, shmlayout.Slot{Count: 0})
	require.NoError(t, m.initSnapshots())

	target.failAfter = 1
	target.alive = false

	var logs bytes.Buffer
	logger := logging.NewWithWriter(true, &logs)
	r := NewReporter(cfg, logger)
	err := Watch(m, r, logger)
	assert.NoError(t, err)
	assert.Contains(t, logs.String(), fmt.Sprintf("Process %d has exited", m.Pid()))
}

func Test_Watch_returnsErrorWhenTargetStillAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	m, target := buildFakeMonitor(t, 1, cfg)
	target.writeSlot(m.slotsPtr, 0, shmlayout.Slot{Count: 0})
	require.NoError(t, m.initSnapshots())

	target.failAfter = 1
	target.alive = true

	r := NewReporter(cfg, logging.New(true))
	err := Watch(m, r, logging.New(true))
	assert.Error(t, err)
}

func Test_Watch_reportsFiredStallThenExitsOnDeath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.AlertInterval = 0 // fire immediately once odd+unchanged is observed twice

	m, target := buildFakeMonitor(t, 1, cfg)
	nameAddr := fakeBase + 2048
	target.writeBytes(nameAddr, []byte("stuck"))
	target.writeSlot(m.slotsPtr, 0, shmlayout.Slot{
		Count: 1,
		Metadata: shmlayout.Metadata{NamePtr: nameAddr, NameLen: 5},
	})
	require.NoError(t, m.initSnapshots())
	m.sampler = &fakeSampler{traces: []Trace{{ThreadID: 1, OwnsGlobalLock: true, Frames: []StackFrame{{Name: "f"}}}}}

	// Die after the attach-time read plus the first poll's bulk read and
	// name decode (3 reads); the second poll's bulk read is what finally
	// fails.
	target.failAfter = 4
	target.alive = false

	r := NewReporter(cfg, logging.New(true))
	err := Watch(m, r, logging.New(true))
	assert.NoError(t, err)
}

func Test_Watch_samplerErrorIsSoftAndLoopContinues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.AlertInterval = 0

	m, target := buildFakeMonitor(t, 1, cfg)
	nameAddr := fakeBase + 2048
	target.writeBytes(nameAddr, []byte("stuck"))
	target.writeSlot(m.slotsPtr, 0, shmlayout.Slot{
		Count: 1,
		Metadata: shmlayout.Metadata{NamePtr: nameAddr, NameLen: 5},
	})
	require.NoError(t, m.initSnapshots())
	m.sampler = &fakeSampler{err: errors.New("boom")}

	// The first poll's bulk read and name decode (reads 2 and 3) succeed,
	// so the stall fires and the sampler fails; the second poll's bulk
	// read fails.
	target.failAfter = 4
	target.alive = false

	r := NewReporter(cfg, logging.New(true))
	err := Watch(m, r, logging.New(true))
	assert.NoError(t, err)
}
