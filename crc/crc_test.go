package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mbusgo/internal/cpufeat"
)

func TestChecksumScalarVsAccelerated(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "data")
		scalar := Checksum(data, cpufeat.Features{})
		sse2 := Checksum(data, cpufeat.Features{SSE2: true})
		avx2 := Checksum(data, cpufeat.Features{AVX2: true})
		neon := Checksum(data, cpufeat.Features{NEON: true})
		require.Equal(t, scalar, sse2)
		require.Equal(t, scalar, avx2)
		require.Equal(t, scalar, neon)
	})
}

func TestBlockCRCKnownVector(t *testing.T) {
	// spec.md §8 scenario 6: a 22-byte payload split as block1 (10 data + 2
	// CRC) and block2 (8 data + 2 CRC), each independently verifiable.
	block1Data := []byte{0x44, 0x2D, 0x2C, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	block1 := AppendBlock(block1Data)
	require.True(t, VerifyBlock(block1))

	block2Data := []byte{0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}
	block2 := AppendBlock(block2Data)
	require.True(t, VerifyBlock(block2))

	// Flipping any data bit must invalidate the block.
	corrupt := append([]byte{}, block1...)
	corrupt[0] ^= 0x01
	assert.False(t, VerifyBlock(corrupt))
}

func TestBlockCRCRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
		require.True(t, VerifyBlock(AppendBlock(data)))
	})
}

func TestEnhancedCRCDistinctFromBlock(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	assert.NotEqual(t, Block(data), Enhanced(data))
}

func TestEnhancedCRCDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
		require.Equal(t, Enhanced(data), Enhanced(append([]byte{}, data...)))
	})
}
