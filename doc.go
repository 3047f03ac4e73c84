// Package stallwatch is the in-process instrumentation half of the
// stallwatch stall-detection system: it publishes the liveness of named
// "tracked regions" (event loops, worker goroutines, GIL-held sections,
// anything that should periodically make forward progress) into a
// shared-memory page that an external monitor process can poll without
// any cooperation from this process beyond having mapped the page.
//
// A Tracker is created with New, toggled between active and idle with
// GoActive and GoIdle, and released with Close. The package never blocks
// and never spawns goroutines of its own: every Tracker operation is an
// atomic increment on a counter this process owns, plus bookkeeping on a
// process-local freelist. The companion package monitor implements the
// external, read-only half of the protocol.
package stallwatch
