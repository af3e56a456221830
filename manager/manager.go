package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mbusgo/frame"
	"mbusgo/mbuserr"
	"mbusgo/stats"
	"mbusgo/vif"
	"mbusgo/wmbus"
)

// fullWildcardMask selects any device, used by ScanDevices to probe for a
// single responding wired device. mbusgo does not implement the EN
// 13757-3 digit-by-digit collision search tree needed to enumerate every
// device sharing the broadcast address in one scan; see DESIGN.md for the
// judgment call. protocol.Backoff (collision backoff) and
// protocol.Machine's select/confirm steps give a caller the primitives to
// build that search on top of this package.
const fullWildcardMask = "FFFFFFFFFFFFFFFF"

// Manager is the unified facade of spec.md §4.10: it owns a heterogeneous
// collection of wired and wireless handles, keyed by caller-chosen ID, and
// dispatches operations to the right one without understanding M-Bus
// semantics beyond routing.
type Manager struct {
	logger *slog.Logger
	stats  *stats.Registry

	mu       sync.Mutex
	wired    map[string]*wiredHandle
	wireless map[string]*wirelessHandle
}

// New creates an empty Manager. A nil logger falls back to slog.Default.
// A nil reg gets a fresh stats.Registry; pass your own when you need to
// read counters afterwards (per §6, a Registry is never a package-level
// singleton, so the caller always owns the one in use).
func New(logger *slog.Logger, reg *stats.Registry) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = stats.New()
	}
	return &Manager{
		logger:   logger,
		stats:    reg,
		wired:    make(map[string]*wiredHandle),
		wireless: make(map[string]*wirelessHandle),
	}
}

// Stats returns the Registry backing this Manager's per-device counters.
func (m *Manager) Stats() *stats.Registry { return m.stats }

// AddMBus registers a wired handle under id, communicating over port.
func (m *Manager) AddMBus(id string, port Port, cfg SerialConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.wired[id]; exists {
		return mbuserr.New(mbuserr.KindProtocol, "manager.AddMBus", fmt.Sprintf("handle %q already registered", id))
	}
	m.wired[id] = newWiredHandle(port, cfg, m.stats)
	m.logger.Info("wired handle added", "id", id, "baudrate", cfg.Baudrate)
	return nil
}

// AddWMBus registers a wireless handle under id. It carries no transport
// of its own; call IngestWMBusFrame as frames arrive from wherever the
// caller drives the radio pipeline (see radio.PacketBuffer).
func (m *Manager) AddWMBus(id string, cfg WMBusConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.wireless[id]; exists {
		return mbuserr.New(mbuserr.KindProtocol, "manager.AddWMBus", fmt.Sprintf("handle %q already registered", id))
	}
	m.wireless[id] = newWirelessHandle(cfg, m.stats)
	m.logger.Info("wireless handle added", "id", id, "frequency_hz", cfg.FrequencyHz)
	return nil
}

// IngestWMBusFrame records f as seen on the wireless handle id, for later
// ScanDevices calls to report. Unknown id is a no-op error rather than a
// panic, since frame arrival and handle registration can race in caller
// code that adds handles dynamically.
func (m *Manager) IngestWMBusFrame(id string, f wmbus.Frame) error {
	m.mu.Lock()
	h, ok := m.wireless[id]
	m.mu.Unlock()
	if !ok {
		return mbuserr.New(mbuserr.KindProtocol, "manager.IngestWMBusFrame", fmt.Sprintf("no wireless handle %q", id))
	}
	h.ingest(f)
	return nil
}

// ScanDevices probes every registered handle concurrently and merges
// whatever each one finds. One handle's transport failing does not lose
// another handle's results: every handle's error (if any) is collected
// via errors.Join rather than aborting the scan early, grounded on
// original_source/tests/mixed_device_tests.rs's expectation that a mixed
// wired+wireless scan tolerates a single bad handle.
func (m *Manager) ScanDevices() ([]Address, error) {
	m.mu.Lock()
	wired := make(map[string]*wiredHandle, len(m.wired))
	for id, h := range m.wired {
		wired[id] = h
	}
	wireless := make(map[string]*wirelessHandle, len(m.wireless))
	for id, h := range m.wireless {
		wireless[id] = h
	}
	m.mu.Unlock()

	type outcome struct {
		addrs []Address
		err   error
	}
	results := make(chan outcome, len(wired)+len(wireless))
	var wg sync.WaitGroup

	for id, h := range wired {
		wg.Add(1)
		go func(id string, h *wiredHandle) {
			defer wg.Done()
			selFrame, err := h.machine.SelectDevice(fullWildcardMask)
			if err != nil {
				results <- outcome{err: wrapScan(id, err)}
				return
			}
			if _, err := h.port.Write(frame.Pack(selFrame)); err != nil {
				h.machine.HandleError(err)
				results <- outcome{err: wrapScan(id, wrapTransport("manager.ScanDevices", "write select frame", err))}
				return
			}
			ack, err := readFrame(h.port, h.cfg.Timeout)
			if err != nil {
				h.machine.HandleError(err)
				// No response within the scan window means no device at
				// this wildcard, not a handle failure.
				results <- outcome{}
				return
			}
			if err := h.machine.ConfirmSelection(fullWildcardMask, ack); err != nil {
				results <- outcome{}
				return
			}
			results <- outcome{addrs: []Address{{Wired: fullWildcardMask}}}
		}(id, h)
	}
	for _, h := range wireless {
		wg.Add(1)
		go func(h *wirelessHandle) {
			defer wg.Done()
			results <- outcome{addrs: h.scan()}
		}(h)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Address
	var errs []error
	for r := range results {
		all = append(all, r.addrs...)
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return all, errors.Join(errs...)
}

// SendRequest dispatches a request to the wired handle id, running a full
// select + REQ_UD2/RSP_UD conversation (including any chained continuation
// frames) and returning every decoded record.
func (m *Manager) SendRequest(id, mask string) ([]vif.Record, error) {
	m.mu.Lock()
	h, ok := m.wired[id]
	m.mu.Unlock()
	if !ok {
		return nil, mbuserr.New(mbuserr.KindProtocol, "manager.SendRequest", fmt.Sprintf("no wired handle %q", id))
	}
	return h.sendRequest(mask)
}

// DisconnectAll resets every wired handle's protocol state and closes its
// port, and drops every wireless handle's discovered-device state. Errors
// closing individual ports are collected, not aborted on first failure.
func (m *Manager) DisconnectAll() error {
	m.mu.Lock()
	wired := m.wired
	m.wired = make(map[string]*wiredHandle)
	m.wireless = make(map[string]*wirelessHandle)
	m.mu.Unlock()

	var errs []error
	for id, h := range wired {
		if err := h.close(); err != nil {
			errs = append(errs, wrapScan(id, err))
		}
	}
	return errors.Join(errs...)
}

func wrapScan(id string, err error) error {
	return mbuserr.Wrap(mbuserr.KindTransport, "manager.ScanDevices", fmt.Sprintf("handle %q", id), err)
}
