// Package wmbus implements the wireless M-Bus (EN 13757-4) frame codec:
// Type A / Type B framing, per-block CRC verification, manufacturer ID
// encode/decode, and encryption-mode detection from the CI field. It is the
// radio-side counterpart to package frame, grounded the same way on
// plane-watch-acars-parser's single-pass discriminator shape.
package wmbus

import (
	"fmt"

	"mbusgo/mbuserr"
)

// EncodeManufacturer packs a 3-letter manufacturer code (e.g. "ABC") into
// the 16-bit value used in the M field: three 5-bit codes (letter-'A'+1),
// big-endian within the 16-bit word. spec.md §8 scenario 5: "ABC" -> 0x0443,
// "ZZZ" -> 0x6B5A.
func EncodeManufacturer(code string) (uint16, error) {
	if len(code) != 3 {
		return 0, mbuserr.New(mbuserr.KindParsing, "wmbus.EncodeManufacturer", fmt.Sprintf("code must be 3 letters, got %q", code))
	}
	var v uint16
	for i := 0; i < 3; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return 0, mbuserr.New(mbuserr.KindParsing, "wmbus.EncodeManufacturer", fmt.Sprintf("byte %d: %q is not A-Z", i, c))
		}
		v = v<<5 | uint16(c-'A'+1)
	}
	return v, nil
}

// DecodeManufacturer is the inverse of EncodeManufacturer.
func DecodeManufacturer(v uint16) (string, error) {
	b := make([]byte, 3)
	for i := 2; i >= 0; i-- {
		digit := v & 0x1F
		if digit == 0 || digit > 26 {
			return "", mbuserr.New(mbuserr.KindParsing, "wmbus.DecodeManufacturer", fmt.Sprintf("5-bit group %d out of range: %d", i, digit))
		}
		b[i] = 'A' + byte(digit-1)
		v >>= 5
	}
	return string(b), nil
}

// manufacturerLE reads the little-endian on-wire M field.
func manufacturerLE(b0, b1 byte) uint16 {
	return uint16(b0) | uint16(b1)<<8
}

// putManufacturerLE writes v as a little-endian on-wire M field.
func putManufacturerLE(v uint16) (byte, byte) {
	return byte(v), byte(v >> 8)
}
