package keys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeManufacturerStub(code string) (uint16, error) {
	var v uint16
	for _, c := range code {
		v = v<<5 | uint16(c-'A'+1)
	}
	return v, nil
}

func TestMemoryProviderSetAndKey(t *testing.T) {
	p := NewMemoryProvider()
	key := []byte("0123456789ABCDEF")
	p.Set(0x2C2D, 0x12345678, key)

	got, ok := p.Key(0x2C2D, 0x12345678)
	require.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = p.Key(0x2C2D, 0xFFFFFFFF)
	assert.False(t, ok)
}

func TestMemoryProviderSetCopiesKey(t *testing.T) {
	p := NewMemoryProvider()
	key := []byte{0x01, 0x02, 0x03}
	p.Set(1, 1, key)
	key[0] = 0xFF

	got, ok := p.Key(1, 1)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), got[0])
}

func TestLoadConfigFile(t *testing.T) {
	yamlDoc := []byte(`
devices:
  - manufacturer: ABC
    device_id: 305419896
    key_hex: "000102030405060708090a0b0c0d0e0f"
  - manufacturer: ZZZ
    device_id: 1
    key_hex: "ffffffffffffffffffffffffffffffff"
`)
	p, err := LoadConfigFile(yamlDoc, encodeManufacturerStub)
	require.NoError(t, err)

	man, _ := encodeManufacturerStub("ABC")
	key, ok := p.Key(man, 305419896)
	require.True(t, ok)
	wantKey, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	assert.Equal(t, wantKey, key)
}

func TestLoadConfigFileBadHexErrors(t *testing.T) {
	yamlDoc := []byte(`
devices:
  - manufacturer: ABC
    device_id: 1
    key_hex: "not-hex"
`)
	_, err := LoadConfigFile(yamlDoc, encodeManufacturerStub)
	assert.Error(t, err)
}

func TestLoadConfigFileBadYAMLErrors(t *testing.T) {
	_, err := LoadConfigFile([]byte("not: [valid yaml"), encodeManufacturerStub)
	assert.Error(t, err)
}

func TestLoadConfigFileEmptyDevicesOK(t *testing.T) {
	p, err := LoadConfigFile([]byte("devices: []"), encodeManufacturerStub)
	require.NoError(t, err)
	_, ok := p.Key(1, 1)
	assert.False(t, ok)
}

func TestDeviceKeyDistinctForDifferentManufacturers(t *testing.T) {
	a := deviceKey(1, 100)
	b := deviceKey(2, 100)
	assert.NotEqual(t, a, b)
}
