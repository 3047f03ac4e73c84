package monitor

import (
	"fmt"
	"strconv"
	"time"

	catrate "github.com/joeycumines/go-catrate"

	"github.com/driftwatch/stallwatch/internal/logging"
)

// tracebackCategory is the single category used with the global
// traceback rate limiter: there is exactly one budget, shared across
// every slot, per spec's "rate limit is global across all slots".
const tracebackCategory = "traceback"

// Reporter emits stall reports through internal/logging and gates
// traceback capture behind a go-catrate limiter shared across every
// slot in the monitored process.
type Reporter struct {
	cfg     Config
	logger  *logging.Logger
	limiter *catrate.Limiter
}

// NewReporter builds a Reporter whose traceback rate limit allows at
// most one capture per cfg.TracebackSuppress, globally.
func NewReporter(cfg Config, logger *logging.Logger) *Reporter {
	return &Reporter{
		cfg:    cfg,
		logger: logger,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			cfg.TracebackSuppress: 1,
		}),
	}
}

// Report handles one fired stall: it always emits a "stall detected"
// record, then either a rate-limited notice or — when the global
// traceback budget allows it — a full, thread-attributed stack dump
// obtained from the monitor's sampler.
func (r *Reporter) Report(m *Monitor, ev StallEvent) error {
	info := map[string]string{
		"pid":  strconv.Itoa(m.Pid()),
		"name": ev.Name,
	}

	r.logger.Emit(logging.Warning,
		fmt.Sprintf("stall detected: %q has been active for %s", ev.Name, ev.Duration),
		info, nil)

	if _, allowed := r.limiter.Allow(tracebackCategory); !allowed {
		r.logger.Emit(logging.Notice, "traceback suppressed by rate limit", info, &logging.StallDetails{
			LengthMS:    ev.Duration.Milliseconds(),
			RateLimited: true,
		})
		return nil
	}

	if m.sampler == nil {
		return fmt.Errorf("%w: no stack sampler configured", ErrSamplerError)
	}

	traces, err := m.sampler.StackTraces()
	if err != nil {
		r.logger.Emit(logging.Warning, "stack sampler error, continuing without a traceback", info, nil)
		return fmt.Errorf("%w: %v", ErrSamplerError, err)
	}

	var relevant, other [][]logging.Frame
	for _, tr := range traces {
		frames := renderFrames(tr.Frames, r.cfg.PrintLocals)
		if ev.ThreadHint.Relevant(tr.OwnsGlobalLock, tr.ThreadID) {
			relevant = append(relevant, frames)
		} else {
			other = append(other, frames)
		}
	}

	cmdline, _ := m.target.Cmdline()

	r.logger.Emit(logging.Warning, "stall traceback captured", info, &logging.StallDetails{
		LengthMS:       ev.Duration.Milliseconds(),
		RelevantTraces: relevant,
		OtherTraces:    other,
		Cmdline:        cmdline,
		RateLimited:    false,
	})
	return nil
}

// renderFrames converts a sampler's deepest-first trace into the
// report's outermost-first order, optionally stripping locals when
// PrintLocals is off.
func renderFrames(frames []StackFrame, printLocals bool) []logging.Frame {
	out := make([]logging.Frame, len(frames))
	for i, f := range frames {
		// frames[i] is depth i from the top (deepest first); reversed
		// index lands the outermost call first in out.
		j := len(frames) - 1 - i
		rendered := logging.Frame{
			Name:     f.Name,
			Filename: f.Filename,
			Line:     f.Line,
		}
		if printLocals {
			for _, l := range f.Locals {
				rendered.Locals = append(rendered.Locals, logging.LocalVariable{Name: l.Name, Repr: l.Repr})
			}
		}
		out[j] = rendered
	}
	return out
}
