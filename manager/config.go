// Package manager implements the device manager facade of spec.md §4.10:
// a single entry point owning a heterogeneous collection of wired M-Bus
// and wireless wM-Bus handles, dispatching requests to the right one and
// merging mixed-device scan results without losing a healthy handle's
// results to an unhealthy one's error.
package manager

import "time"

// SerialConfig configures one wired handle, grounded on
// original_source/tests/mixed_device_tests.rs's SerialConfig literal
// (baudrate, timeout, auto_baud_detection, collision_config).
type SerialConfig struct {
	Baudrate          int
	Timeout           time.Duration
	AutoBaudDetection bool
}

// DefaultSerialConfig matches the teacher test's Default() baseline.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{Baudrate: 2400, Timeout: 5 * time.Second, AutoBaudDetection: false}
}

// WMBusConfig configures one wireless handle's radio parameters.
// Grounded on original_source/tests/mixed_device_tests.rs's
// test_configuration_builders, which pins every numeric literal below.
type WMBusConfig struct {
	FrequencyHz        uint32
	Bitrate            uint32
	RxTimeoutMs        uint32
	DiscoveryTimeoutMs uint32
}

// WMBusConfigBuilder is a fluent builder mirroring the Rust original's
// WMBusConfigBuilder, kept because several presets below are easiest to
// express as "start from a baseline, override one field".
type WMBusConfigBuilder struct {
	cfg WMBusConfig
}

// NewWMBusConfigBuilder starts from the zero value.
func NewWMBusConfigBuilder() *WMBusConfigBuilder {
	return &WMBusConfigBuilder{}
}

func (b *WMBusConfigBuilder) Frequency(hz uint32) *WMBusConfigBuilder {
	b.cfg.FrequencyHz = hz
	return b
}

func (b *WMBusConfigBuilder) Bitrate(bps uint32) *WMBusConfigBuilder {
	b.cfg.Bitrate = bps
	return b
}

func (b *WMBusConfigBuilder) RxTimeoutMs(ms uint32) *WMBusConfigBuilder {
	b.cfg.RxTimeoutMs = ms
	return b
}

func (b *WMBusConfigBuilder) DiscoveryTimeoutMs(ms uint32) *WMBusConfigBuilder {
	b.cfg.DiscoveryTimeoutMs = ms
	return b
}

func (b *WMBusConfigBuilder) Build() WMBusConfig { return b.cfg }

// EUSMode is the EN 13757-4 S-mode preset (868.950 MHz, 100 kbps).
func EUSMode() *WMBusConfigBuilder {
	return NewWMBusConfigBuilder().Frequency(868_950_000).Bitrate(100_000)
}

// EUTMode is the EN 13757-4 T-mode preset (868.300 MHz, 100 kbps).
func EUTMode() *WMBusConfigBuilder {
	return NewWMBusConfigBuilder().Frequency(868_300_000).Bitrate(100_000)
}

// EUNMode is the EN 13757-4 N-mode preset (869.525 MHz, 4.8 kbps).
func EUNMode() *WMBusConfigBuilder {
	return NewWMBusConfigBuilder().Frequency(869_525_000).Bitrate(4800)
}

// FastScan favours quick discovery over range: short discovery and rx
// timeouts, at the cost of missing weak/slow-to-respond devices.
func FastScan() *WMBusConfigBuilder {
	return NewWMBusConfigBuilder().DiscoveryTimeoutMs(10_000).RxTimeoutMs(2_000)
}

// LongRange favours thoroughness over speed: long discovery and rx
// timeouts, for sparse or distant deployments.
func LongRange() *WMBusConfigBuilder {
	return NewWMBusConfigBuilder().DiscoveryTimeoutMs(120_000).RxTimeoutMs(15_000)
}
