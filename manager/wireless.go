package manager

import (
	"sync"

	"mbusgo/stats"
	"mbusgo/wmbus"
)

// wirelessHandle tracks devices discovered on one wM-Bus radio channel.
// It owns no transport itself — spec.md §1 keeps concrete radio SPI/GPIO
// bindings out of core — so discovery is push-based: whatever drives the
// radio.PacketBuffer/IrqQueue pipeline for this channel calls Ingest with
// every successfully parsed frame, and the handle remembers which devices
// it has seen.
type wirelessHandle struct {
	cfg   WMBusConfig
	stats *stats.Registry

	mu      sync.Mutex
	devices map[uint64]Address
}

func newWirelessHandle(cfg WMBusConfig, reg *stats.Registry) *wirelessHandle {
	return &wirelessHandle{cfg: cfg, stats: reg, devices: make(map[uint64]Address)}
}

func deviceKey(manufacturer uint16, deviceID uint32) uint64 {
	return uint64(manufacturer)<<32 | uint64(deviceID)
}

// ingest records f's sender as a known device and tallies it as a
// successfully received frame.
func (h *wirelessHandle) ingest(f wmbus.Frame) {
	h.mu.Lock()
	h.devices[deviceKey(f.Manufacturer, f.DeviceID)] = Address{
		Manufacturer: f.Manufacturer,
		DeviceID:     f.DeviceID,
	}
	h.mu.Unlock()
	h.stats.RecordFrame(stats.WirelessKey(f.Manufacturer, f.DeviceID), stats.OutcomeOK)
}

// scan returns every device seen so far, in no particular order.
func (h *wirelessHandle) scan() []Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Address, 0, len(h.devices))
	for _, addr := range h.devices {
		out = append(out, addr)
	}
	return out
}
