// Package keys implements mbuscrypto.KeyProvider: an in-memory provider
// seeded from a YAML config file, plus read-only SQLite- and Postgres-
// backed providers for fleets too large to hold in a config file.
package keys

import (
	"encoding/hex"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"mbusgo/mbuserr"
)

func deviceKey(manufacturer uint16, deviceID uint32) uint64 {
	return uint64(manufacturer)<<32 | uint64(deviceID)
}

// MemoryProvider is a concurrency-safe in-memory KeyProvider.
type MemoryProvider struct {
	mu   sync.RWMutex
	keys map[uint64][]byte
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{keys: make(map[uint64][]byte)}
}

// Set registers (or replaces) the key for one device.
func (m *MemoryProvider) Set(manufacturer uint16, deviceID uint32, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[deviceKey(manufacturer, deviceID)] = append([]byte{}, key...)
}

// Key implements mbuscrypto.KeyProvider.
func (m *MemoryProvider) Key(manufacturer uint16, deviceID uint32) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[deviceKey(manufacturer, deviceID)]
	return k, ok
}

// configEntry is one device's key as written in the YAML config file.
type configEntry struct {
	Manufacturer string `yaml:"manufacturer"` // 3-letter code, e.g. "ABC"
	DeviceID     uint32 `yaml:"device_id"`
	KeyHex       string `yaml:"key_hex"`
}

type configFile struct {
	Devices []configEntry `yaml:"devices"`
}

// LoadConfigFile parses a YAML key-configuration document (a top-level
// devices list, laid out as configFile and configEntry) into a
// MemoryProvider. manufacturer
// is given as its 3-letter code rather than the packed uint16 so config
// files stay human-readable.
func LoadConfigFile(data []byte, encodeManufacturer func(string) (uint16, error)) (*MemoryProvider, error) {
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.LoadConfigFile", "invalid YAML", err)
	}

	p := NewMemoryProvider()
	for i, entry := range cf.Devices {
		man, err := encodeManufacturer(entry.Manufacturer)
		if err != nil {
			return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.LoadConfigFile", fmt.Sprintf("entry %d: manufacturer", i), err)
		}
		key, err := hex.DecodeString(entry.KeyHex)
		if err != nil {
			return nil, mbuserr.Wrap(mbuserr.KindResource, "keys.LoadConfigFile", fmt.Sprintf("entry %d: key_hex", i), err)
		}
		p.Set(man, entry.DeviceID, key)
	}
	return p, nil
}
