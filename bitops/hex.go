package bitops

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeHex renders data as uppercase hex, matching the wire-dump
// convention used throughout the golden test vectors in spec.md §8.
func EncodeHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

// DecodeHex parses a hex string, tolerating surrounding whitespace and
// interior spaces (the form "10 53 01 54 16" used in the spec's scenarios).
func DecodeHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bitops: decode hex: %w", err)
	}
	return b, nil
}

// IsHexDigit reports whether c is a valid hexadecimal digit.
func IsHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}
