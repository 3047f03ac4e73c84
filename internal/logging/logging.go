// Package logging renders stallwatch's structured report schema through
// github.com/joeycumines/logiface, backed by
// github.com/joeycumines/izerolog over github.com/rs/zerolog — the same
// facade-over-backend wiring as the izerolog package, applied to
// stallwatch's own report shape rather than a generic message log.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/izerolog"
	"github.com/rs/zerolog"
)

// Severity is the report severity enum of the monitor's JSON report
// schema, modeled on the syslog-derived levels logiface already defines,
// reduced to the subset stallwatch actually emits.
type Severity int

const (
	Default Severity = iota
	Debug
	Info
	Notice
	Warning
	Error
)

// String renders the severity the way it appears in the JSON schema.
func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Notice:
		return "NOTICE"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "DEFAULT"
	}
}

func (s Severity) level() logiface.Level {
	switch s {
	case Debug:
		return logiface.LevelDebug
	case Info:
		return logiface.LevelInformational
	case Notice:
		return logiface.LevelNotice
	case Warning:
		return logiface.LevelWarning
	case Error:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// Frame is one stack frame as rendered in a report, outermost-first
// (the reporter is responsible for reversing the sampler's
// deepest-first order before building this slice).
type Frame struct {
	Name     string          `json:"name"`
	Filename string          `json:"filename"`
	Line     int             `json:"line"`
	Locals   []LocalVariable `json:"locals,omitempty"`
}

// LocalVariable is one captured local, already rendered to its
// string representation by the sampler — stallwatch never interprets
// the value itself.
type LocalVariable struct {
	Name string `json:"name"`
	Repr string `json:"repr"`
}

// StallDetails carries the per-stall fields of the report schema, present
// only on a rate-limited record or a captured-traceback record.
type StallDetails struct {
	LengthMS       int64     `json:"length_ms"`
	RelevantTraces [][]Frame `json:"relevant_traces,omitempty"`
	OtherTraces    [][]Frame `json:"other_traces,omitempty"`
	Cmdline        []string  `json:"cmdline,omitempty"`
	RateLimited    bool      `json:"rate_limited"`
}

// Logger emits stallwatch report records through logiface, in either
// JSON (NDJSON) or human-readable console form depending on how it was
// constructed by New.
type Logger struct {
	l *logiface.Logger[*izerolog.Event]
}

// New constructs a Logger writing to stderr. jsonMode selects zerolog's
// native JSON encoder (NDJSON, one object per line); otherwise output
// goes through zerolog.ConsoleWriter for human reading.
func New(jsonMode bool) *Logger {
	return NewWithWriter(jsonMode, os.Stderr)
}

// NewWithWriter is New with the output writer exposed, for tests that
// need to assert on emitted records rather than a real process's stderr.
func NewWithWriter(jsonMode bool, w io.Writer) *Logger {
	var zl zerolog.Logger
	if jsonMode {
		zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	}
	return &Logger{
		l: logiface.New[*izerolog.Event](
			izerolog.WithZerolog(zl),
			logiface.WithLevel[*izerolog.Event](logiface.LevelTrace),
		),
	}
}

// Emit writes one report record: severity, message, the flat
// additionalInfo map the schema requires, and an optional stall_details
// payload. additionalInfo and details may be nil.
func (lg *Logger) Emit(sev Severity, message string, additionalInfo map[string]string, details *StallDetails) {
	b := lg.l.Build(sev.level())
	if !b.Enabled() {
		b.Release()
		return
	}
	b = b.Str("severity", sev.String())
	if len(additionalInfo) > 0 {
		b = b.Field("additional_info", additionalInfo)
	}
	if details != nil {
		b = b.Field("stall_details", details)
	}
	b.Log(message)
}
