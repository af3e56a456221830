package mbuscrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mbusgo/wmbus"
)

var testDevice = DeviceInfo{
	Manufacturer: 0x2C2D,
	DeviceID:     0x12345678,
	Version:      1,
	DeviceType:   7,
	AccessNumber: 0x44,
}

func TestMode5CTRRoundTrip(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := []byte("0123456789ABCDEF0123456789ABCDEF")

	ct, err := EncryptFrame(plaintext, key, testDevice, wmbus.Mode5)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)

	pt, err := DecryptFrame(ct, key, testDevice, wmbus.Mode5)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestMode7CBCRoundTrip(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := make([]byte, 32)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ct, err := EncryptFrame(plaintext, key, testDevice, wmbus.Mode7)
	require.NoError(t, err)

	pt, err := DecryptFrame(ct, key, testDevice, wmbus.Mode7)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestMode7RejectsPartialBlock(t *testing.T) {
	key := make([]byte, KeyLen)
	_, err := EncryptFrame([]byte{0x01, 0x02, 0x03}, key, testDevice, wmbus.Mode7)
	assert.Error(t, err)
}

func TestMode9GCMRoundTrip(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := []byte("hello wmbus gcm payload")

	ct, err := EncryptFrame(plaintext, key, testDevice, wmbus.Mode9)
	require.NoError(t, err)

	pt, err := DecryptFrame(ct, key, testDevice, wmbus.Mode9)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestMode9GCMTamperedTagFails(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := []byte("hello wmbus gcm payload")

	ct, err := EncryptFrame(plaintext, key, testDevice, wmbus.Mode9)
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xFF

	_, err = DecryptFrame(ct, key, testDevice, wmbus.Mode9)
	assert.Error(t, err)
}

func TestELLECBRoundTrip(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := make([]byte, 32)
	for i := range plaintext {
		plaintext[i] = byte(i * 3)
	}

	ct, err := EncryptELL(plaintext, key)
	require.NoError(t, err)

	pt, err := DecryptELL(ct, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestWrongKeyLengthRejected(t *testing.T) {
	_, err := EncryptFrame([]byte("x"), make([]byte, 10), testDevice, wmbus.Mode5)
	assert.Error(t, err)
}

func TestCTRRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := make([]byte, KeyLen)
		for i := range key {
			key[i] = rapid.Byte().Draw(t, "kb")
		}
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "pt")

		ct, err := EncryptFrame(plaintext, key, testDevice, wmbus.Mode5)
		require.NoError(t, err)
		pt, err := DecryptFrame(ct, key, testDevice, wmbus.Mode5)
		require.NoError(t, err)
		require.Equal(t, plaintext, pt)
	})
}
