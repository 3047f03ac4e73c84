package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/driftwatch/stallwatch/internal/logging"
)

// Watch runs the single-threaded poll loop against an already-attached
// Monitor until the target exits or a fatal error occurs: sleep
// PollInterval, poll all slots, report every fired stall in order. A
// read error is resolved by a liveness probe on the target — if the
// target no longer exists, that's a clean exit (nil), not an error, and
// is logged at Info severity before returning.
func Watch(m *Monitor, reporter *Reporter, logger *logging.Logger) error {
	for {
		time.Sleep(m.cfg.PollInterval)

		events, err := m.Poll()
		if err != nil {
			if !m.target.Alive() {
				logger.Emit(logging.Info, fmt.Sprintf("Process %d has exited", m.Pid()), nil, nil)
				return nil
			}
			return err
		}

		for _, ev := range events {
			if repErr := reporter.Report(m, ev); repErr != nil {
				if errors.Is(repErr, ErrSamplerError) {
					logger.Emit(logging.Warning, "continuing after stack sampler error", nil, nil)
					continue
				}
				return repErr
			}
		}
	}
}
