// Package crc implements the three independent integrity primitives used
// across M-Bus and wM-Bus: the wired mod-256 byte checksum, the wM-Bus
// per-block CRC (poly 0x3D65), and the wM-Bus enhanced/frame CRC (poly
// 0x8408, reflected CCITT). They are kept in separate files and separate
// named entry points on purpose — spec.md §4.1 calls mixing them a class of
// bug the implementation must prevent structurally.
package crc

import "mbusgo/internal/cpufeat"

// Checksum computes the wired M-Bus mod-256 byte sum: Σ b_i mod 256.
//
// The scalar path runs when feat reports none of SSE2/AVX2/NEON; otherwise
// checksumWide sums 16 (SSE2/NEON) or 32 (AVX2) bytes at a time. That only
// changes how the accumulation is batched; it can never change the result
// because addition mod 256 is associative and commutative regardless of
// grouping. feat is accepted so call sites thread the process-wide
// cpufeat.Features value through uniformly, and so tests can assert the
// scalar and wide results agree for any input, per spec.md §8's universal
// invariant.
func Checksum(data []byte, feat cpufeat.Features) byte {
	if feat.AVX2 {
		return checksumWide(data, 32)
	}
	if feat.SSE2 || feat.NEON {
		return checksumWide(data, 16)
	}
	return checksumScalar(data)
}

func checksumScalar(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// checksumWide sums in chunks of `width` bytes using independent partial
// sums (the shape a real SIMD lane-sum would take), then folds the lanes
// and the scalar tail together. Mod-256 addition does not care about grouping
// order, so this always equals checksumScalar.
func checksumWide(data []byte, width int) byte {
	var lanes [32]byte
	i := 0
	for ; i+width <= len(data); i += width {
		chunk := data[i : i+width]
		for j, b := range chunk {
			lanes[j] += b
		}
	}
	var sum byte
	for _, l := range lanes[:width] {
		sum += l
	}
	for ; i < len(data); i++ {
		sum += data[i]
	}
	return sum
}
