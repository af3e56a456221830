package crc

import "sync"

// Enhanced computes the wM-Bus "enhanced"/whole-frame CRC: polynomial
// 0x8408 (the bit-reflected form of CCITT 0x1021), initial value 0x3791,
// LSB-first shift. It addresses a different layer than Block (whole-frame
// integrity at the radio layer, vs per-block integrity in the payload) and
// must never be substituted for it — see spec.md §9 design notes.
func Enhanced(data []byte) uint16 {
	table := enhancedTable()
	crc := uint16(0x3791)
	for _, b := range data {
		crc = (crc >> 8) ^ table[byte(crc)^b]
	}
	return crc
}

var (
	enhancedTableOnce sync.Once
	enhancedTableVal  [256]uint16
)

// enhancedTable lazily builds the 256-entry reflected-CCITT lookup table on
// first use.
func enhancedTable() *[256]uint16 {
	enhancedTableOnce.Do(func() {
		const poly = 0x8408
		for i := 0; i < 256; i++ {
			crc := uint16(i)
			for j := 0; j < 8; j++ {
				if crc&1 != 0 {
					crc = (crc >> 1) ^ poly
				} else {
					crc >>= 1
				}
			}
			enhancedTableVal[i] = crc
		}
	})
	return &enhancedTableVal
}
