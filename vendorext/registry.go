// Package vendorext implements the per-manufacturer CRC-tolerance hook
// described in spec.md §4.9: a flat registry mapping manufacturer ID to
// a single-method extension, dispatched whenever a block CRC fails.
// Tolerance is off by default — an empty Registry rejects every block
// CRC failure, matching the standard's own behaviour.
package vendorext

import (
	"log/slog"
	"sync"

	"mbusgo/wmbus"
)

// Extension is implemented by each vendor-specific tolerance policy.
// Narrowed to one method, unlike the teacher's four-method Parser
// interface, because dispatch here only ever needs one decision:
// whether to accept a block whose CRC did not verify.
type Extension interface {
	// Name identifies the extension for logging.
	Name() string

	// TolerateCRCFailure decides whether a failed block CRC should be
	// accepted anyway. ok=false means "no opinion", which the registry
	// treats as "use default" (reject) per spec.md §4.9.
	TolerateCRCFailure(deviceID uint32, ctx wmbus.ToleranceContext) (tolerate bool, ok bool)
}

// Registry maps manufacturer ID to its registered Extension. Register
// swaps in a fresh copy of the map, so a snapshot a reader already holds
// is never mutated; Lookup still takes the same mutex as Register to read
// the current snapshot, so lookups are not lock-free and wait while a
// Register is copying the map.
type Registry struct {
	mu       sync.Mutex
	snapshot map[uint16]Extension
	logger   *slog.Logger
}

// New creates an empty registry. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{snapshot: make(map[uint16]Extension), logger: logger}
}

// Register installs ext for manufacturer, replacing any previous
// extension for that ID. Safe to call at any time, including while
// AsToleranceFunc's returned function is being invoked concurrently.
func (r *Registry) Register(manufacturer uint16, ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[uint16]Extension, len(r.snapshot)+1)
	for k, v := range r.snapshot {
		next[k] = v
	}
	next[manufacturer] = ext
	r.snapshot = next
}

// Lookup returns the extension registered for manufacturer, if any.
func (r *Registry) Lookup(manufacturer uint16) (Extension, bool) {
	r.mu.Lock()
	snap := r.snapshot
	r.mu.Unlock()
	ext, ok := snap[manufacturer]
	return ext, ok
}

// Count returns the number of manufacturers with a registered extension.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshot)
}

// AsToleranceFunc adapts the registry into a wmbus.ToleranceFunc suitable
// for passing to wmbus.ParseWMBus or radio.NewLayer. Dispatch is total:
// an extension that is not registered, or whose TolerateCRCFailure panics
// or returns ok=false, always falls back to "use default" rather than
// aborting the parse, per spec.md §4.9.
func (r *Registry) AsToleranceFunc() wmbus.ToleranceFunc {
	return func(manufacturer uint16, deviceID uint32, ctx wmbus.ToleranceContext) (tolerate bool, handled bool) {
		ext, found := r.Lookup(manufacturer)
		if !found {
			return false, false
		}
		return r.dispatch(ext, deviceID, ctx)
	}
}

// dispatch isolates the call to ext so a recovered panic still yields
// "use default" instead of crashing the parser.
func (r *Registry) dispatch(ext Extension, deviceID uint32, ctx wmbus.ToleranceContext) (tolerate bool, handled bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("vendor extension panicked, using default tolerance",
				"extension", ext.Name(), "panic", p)
			tolerate, handled = false, false
		}
	}()
	return ext.TolerateCRCFailure(deviceID, ctx)
}
