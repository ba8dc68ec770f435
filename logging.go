// Package voxlit is the facade for the incremental voxel light propagation
// engine: shared logging, configuration, and error-kind plumbing used by
// the light, jobs, materials, and terrain packages.
package voxlit

import (
	"log"
	"os"
	"sync"
)

// Logger is the structured logging surface the job pool and terrain
// coordinator actually call: job dispatch/completion, spill routing, and
// fatal invariant faults (spec section 6's observable events). Grounded
// on the teacher's logging.go idiom — a small interface, a stdlib-backed
// default, and a no-op fallback guarded by a mutex-protected debug flag —
// but shaped around this engine's own handful of call sites instead of a
// generic four-level Debugf/Infof/Warnf/Errorf wrapper, since nothing
// here ever needs a free-form log line.
type Logger interface {
	// DebugEnabled reports whether JobDispatched/JobCompleted traces are
	// emitted. SpillRouted and InvariantFault always fire.
	DebugEnabled() bool
	SetDebug(enabled bool)

	// JobDispatched reports one job handed to the pool for blockPos.
	JobDispatched(blockPos, jobID string, seedCount int)
	// JobCompleted reports one job's result coming back from a worker.
	JobCompleted(blockPos, jobID string, changed bool, spillCount int)
	// SpillRouted reports one spill event being re-seeded onto its
	// target block.
	SpillRouted(fromBlock, toBlock, channel string, value uint8)
	// InvariantFault reports a fatal error surfaced by a worker for
	// blockPos (spec section 7: "all worker exceptions are fatal").
	InvariantFault(blockPos string, err error)
}

// DefaultLogger writes every event to stderr through the standard
// library logger, gating the two chatty per-job events behind a
// mutex-guarded debug flag; spill routing and invariant faults always
// print since they are comparatively rare and operationally relevant.
type DefaultLogger struct {
	mu    sync.Mutex
	debug bool
	log   *log.Logger
}

// NewDefaultLogger builds a DefaultLogger with the given initial
// debug-enabled state.
func NewDefaultLogger(debug bool) *DefaultLogger {
	return &DefaultLogger{
		debug: debug,
		log:   log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) JobDispatched(blockPos, jobID string, seedCount int) {
	if !l.DebugEnabled() {
		return
	}
	l.log.Printf("job dispatched: block=%s job=%s seeds=%d", blockPos, jobID, seedCount)
}

func (l *DefaultLogger) JobCompleted(blockPos, jobID string, changed bool, spillCount int) {
	if !l.DebugEnabled() {
		return
	}
	l.log.Printf("job completed: block=%s job=%s changed=%v spills=%d", blockPos, jobID, changed, spillCount)
}

func (l *DefaultLogger) SpillRouted(fromBlock, toBlock, channel string, value uint8) {
	l.log.Printf("spill routed: %s -> %s channel=%s value=%d", fromBlock, toBlock, channel, value)
}

func (l *DefaultLogger) InvariantFault(blockPos string, err error) {
	l.log.Printf("invariant fault: block=%s err=%v", blockPos, err)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. Safe default
// for hosts that don't want engine logging.
func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                                                { return false }
func (n *nopLogger) SetDebug(enabled bool)                                             {}
func (n *nopLogger) JobDispatched(blockPos, jobID string, seedCount int)               {}
func (n *nopLogger) JobCompleted(blockPos, jobID string, changed bool, spillCount int) {}
func (n *nopLogger) SpillRouted(fromBlock, toBlock, channel string, value uint8)       {}
func (n *nopLogger) InvariantFault(blockPos string, err error)                         {}

// OrNop returns l if non-nil, otherwise a no-op logger. Packages that
// accept an optional Logger call this once at construction time.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
