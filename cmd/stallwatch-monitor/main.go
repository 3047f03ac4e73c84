// Command stallwatch-monitor attaches to a running process's stallwatch
// instrumentation page and reports stalls until the target exits.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/driftwatch/stallwatch/internal/logging"
	"github.com/driftwatch/stallwatch/internal/nativesampler"
	"github.com/driftwatch/stallwatch/monitor"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "watch" {
		usage(stderr)
		return 2
	}

	cfg, pid, err := parseWatchArgs(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr)
		return 2
	}

	logger := logging.New(cfg.JSONMode)

	sampler, err := nativesampler.New(pid)
	if err != nil {
		logger.Emit(logging.Warning, "no stack sampler available, stalls will be reported without tracebacks", map[string]string{
			"error": err.Error(),
		}, nil)
	}

	m, err := monitor.Attach(pid, sampler, cfg)
	if err != nil {
		return reportFatal(logger, "failed to attach to target", err)
	}
	defer m.Close()

	reporter := monitor.NewReporter(cfg, logger)

	if err := monitor.Watch(m, reporter, logger); err != nil {
		return reportFatal(logger, "monitor exited with error", err)
	}

	return 0
}

func reportFatal(logger *logging.Logger, message string, err error) int {
	info := map[string]string{"error": err.Error()}
	if hint := monitor.Hint(err); hint != "" {
		info["hint"] = hint
	}
	logger.Emit(logging.Error, message, info, nil)
	return 1
}

func usage(stderr io.Writer) {
	fmt.Fprintln(stderr, "usage: stallwatch-monitor watch PID [flags]")
	fmt.Fprintln(stderr, "flags:")
	fmt.Fprintln(stderr, "  --poll-interval SECS        how often to re-read the slot array (default 0.05)")
	fmt.Fprintln(stderr, "  --alert-interval SECS       minimum continuous-active duration before a stall fires (default 0.20)")
	fmt.Fprintln(stderr, "  --traceback-suppress SECS   minimum gap between stack dumps (default 30.0)")
	fmt.Fprintln(stderr, "  --print-locals              include local variable reprs in reports (default true)")
	fmt.Fprintln(stderr, "  --no-print-locals           omit local variable reprs")
	fmt.Fprintln(stderr, "  --json-mode                 emit NDJSON reports on stderr instead of human-readable")
}

// parseWatchArgs parses the flags for the watch subcommand and the
// trailing PID argument, returning a ready-to-use monitor.Config. Split
// out from run so the flag logic is testable without a real process or
// os.Exit.
func parseWatchArgs(args []string) (monitor.Config, int, error) {
	cfg := monitor.DefaultConfig()

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(nopWriter{})

	var pollSecs, alertSecs, suppressSecs float64
	fs.Float64Var(&pollSecs, "poll-interval", cfg.PollInterval.Seconds(), "")
	fs.Float64Var(&alertSecs, "alert-interval", cfg.AlertInterval.Seconds(), "")
	fs.Float64Var(&suppressSecs, "traceback-suppress", cfg.TracebackSuppress.Seconds(), "")
	printLocals := fs.Bool("print-locals", cfg.PrintLocals, "")
	noPrintLocals := fs.Bool("no-print-locals", false, "")
	jsonMode := fs.Bool("json-mode", cfg.JSONMode, "")

	if err := fs.Parse(args); err != nil {
		return monitor.Config{}, 0, err
	}

	if fs.NArg() != 1 {
		return monitor.Config{}, 0, fmt.Errorf("stallwatch-monitor: watch requires exactly one PID argument, got %d", fs.NArg())
	}

	var pid int
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &pid); err != nil || pid <= 0 {
		return monitor.Config{}, 0, fmt.Errorf("stallwatch-monitor: invalid PID %q", fs.Arg(0))
	}

	// Reject non-positive durations here rather than let them reach
	// catrate.NewLimiter, which panics on a rate of duration <= 0.
	if pollSecs <= 0 {
		return monitor.Config{}, 0, fmt.Errorf("stallwatch-monitor: --poll-interval must be > 0, got %v", pollSecs)
	}
	if alertSecs < 0 {
		return monitor.Config{}, 0, fmt.Errorf("stallwatch-monitor: --alert-interval must be >= 0, got %v", alertSecs)
	}
	if suppressSecs <= 0 {
		return monitor.Config{}, 0, fmt.Errorf("stallwatch-monitor: --traceback-suppress must be > 0, got %v", suppressSecs)
	}

	cfg.PollInterval = secondsToDuration(pollSecs)
	cfg.AlertInterval = secondsToDuration(alertSecs)
	cfg.TracebackSuppress = secondsToDuration(suppressSecs)
	cfg.PrintLocals = *printLocals && !*noPrintLocals
	cfg.JSONMode = *jsonMode

	return cfg, pid, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
