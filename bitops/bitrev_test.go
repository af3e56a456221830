package bitops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReverse8KnownSyncWords(t *testing.T) {
	// spec.md §8: rev8(0xB3) == 0xCD (Type A), rev8(0xBC) == 0x3D (Type B).
	assert.Equal(t, byte(0xCD), Reverse8(0xB3))
	assert.Equal(t, byte(0x3D), Reverse8(0xBC))
}

func TestReverse8Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.Byte().Draw(t, "b")
		require.Equal(t, b, Reverse8(Reverse8(b)))
	})
}

func TestReverse16Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint16().Draw(t, "v")
		require.Equal(t, v, Reverse16(Reverse16(v)))
	})
}

func TestReverse32Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint32().Draw(t, "v")
		require.Equal(t, v, Reverse32(Reverse32(v)))
	})
}

func TestReverseBytesMatchesReverse8(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.Byte()).Draw(t, "in")
		want := make([]byte, len(in))
		for i, b := range in {
			want[i] = Reverse8(b)
		}
		got := ReverseBytes(append([]byte(nil), in...))
		require.Equal(t, want, got)
	})
}

func TestHexRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.Byte()).Draw(t, "in")
		out, err := DecodeHex(EncodeHex(in))
		require.NoError(t, err)
		if len(in) == 0 {
			require.Empty(t, out)
		} else {
			require.Equal(t, in, out)
		}
	})
}

func TestDecodeHexTolerateSpaces(t *testing.T) {
	got, err := DecodeHex("10 53 01 54 16")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x53, 0x01, 0x54, 0x16}, got)
}
