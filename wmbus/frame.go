package wmbus

import (
	"errors"
	"fmt"

	"mbusgo/crc"
	"mbusgo/mbuserr"
)

// ErrNeedMore marks a parse that might succeed once more bytes arrive.
// Use errors.Is to test for it, mirroring package frame's ErrIncomplete.
var ErrNeedMore = errors.New("wmbus: need more data")

// FrameType discriminates the two wM-Bus framing modes (EN 13757-4 §5.2):
// Type A splits the payload into CRC-protected blocks, Type B CRC-protects
// the whole frame in one trailer.
type FrameType int

const (
	TypeA FrameType = iota
	TypeB
)

func (t FrameType) String() string {
	if t == TypeB {
		return "TypeB"
	}
	return "TypeA"
}

// EncryptionMode names the AES construction signalled by the configuration
// field, per spec.md's crypto component design.
type EncryptionMode int

const (
	ModeNone EncryptionMode = 0
	Mode5    EncryptionMode = 5
	Mode7    EncryptionMode = 7
	Mode9    EncryptionMode = 9
)

// CI field values relevant to framing. Long/Short/encrypted-long TPL carry a
// configuration word whose mode nibble selects the AES mode; the ELL CI
// range signals link-layer (ECB) encryption applied before the APL is even
// visible.
const (
	CILongTPL          = 0x72
	CIShortTPL         = 0x7A
	CIEncryptedLongTPL = 0x7B
	CINoneTPL          = 0x78
)

// isELL reports whether ci falls in the Extended Link Layer range (EN
// 13757-4 Annex, ELL-I..ELL-IV variants). The pack's retrieved sources do
// not enumerate every ELL sub-CI, so this recognises the commonly used
// 0x8A-0x8F block, a documented simplification (see DESIGN.md).
func isELL(ci byte) bool {
	return ci >= 0x8A && ci <= 0x8F
}

// Block is one CRC-protected chunk of a Type A frame's body (or, for Type
// B, the single whole-frame chunk).
type Block struct {
	Data []byte
	CRC  uint16
	OK   bool
}

// Frame is the parsed form of one wM-Bus telegram.
type Frame struct {
	Type           FrameType
	L              byte
	C              byte
	Manufacturer   uint16
	DeviceID       uint32
	Version        byte
	DeviceType     byte
	CI             byte
	Blocks         []Block
	Payload        []byte // concatenated, verified block data (header + APL)
	Encrypted      bool
	EncryptionMode EncryptionMode
	AllBlocksValid bool
}

// ToleranceContext carries the information a vendor CRC-tolerance hook
// needs to decide whether a failed block should be accepted anyway, per
// spec.md's vendor-extension design.
type ToleranceContext struct {
	FrameType   FrameType
	BlockIndex  int
	TotalBlocks int
	CRCExpected uint16
	CRCReceived uint16
}

// ToleranceFunc is consulted once per failing block. handled=false means
// "no opinion", which defaults to rejecting the block (tolerance is off by
// default, see DESIGN.md Open Question 3).
type ToleranceFunc func(manufacturer uint16, deviceID uint32, ctx ToleranceContext) (tolerate bool, handled bool)

const (
	block1DataLen     = 10
	block1TotalLen    = block1DataLen + 2
	fullBlockDataLen  = 16
	fullBlockTotalLen = fullBlockDataLen + 2
)

// PeekLength infers the total frame length (including the leading L byte
// itself) from as little of the buffer as possible, for the radio layer's
// length-inference loop (spec.md §4.7) which must decide whether to keep
// reading FIFO bytes before a full Frame can be parsed. It returns
// (0, false, err) for an L value that can never be valid, (0, false, nil)
// when more bytes are needed just to know L, and (total, true, nil) once
// the total is known — which happens as soon as a single byte is present,
// since L is wM-Bus's very first octet.
func PeekLength(data []byte) (total int, known bool, err error) {
	if len(data) < 1 {
		return 0, false, nil
	}
	l := data[0]
	if int(l) < block1DataLen+2 {
		return 0, false, malformed("length byte %d below minimum %d", l, block1DataLen+2)
	}
	return 1 + int(l), true, nil
}

// ParseWMBus parses one frame from data, which must already be bit-order
// normalised (MSB-first) by the radio layer — see package radio. data need
// not be fully present; a frame that needs more bytes than are available
// returns an error wrapping ErrNeedMore via mbuserr so callers can
// distinguish "keep buffering" from "drop and resync".
//
// Only Type A is distinguishable from the bytes the pack's retrieved
// sources describe in full; Type B's block layout (single whole-frame CRC
// instead of per-16-byte-block CRCs) is this package's resolution of a gap
// the retrieved original left unspecified. typeB selects it explicitly
// since nothing in a normalised byte stream alone signals Type B. See
// DESIGN.md.
func ParseWMBus(data []byte, typeB bool, tolerate ToleranceFunc) (Frame, error) {
	if len(data) < 1 {
		return Frame{}, needMore("need L field, have 0 bytes")
	}
	l := data[0]
	total := 1 + int(l)
	if int(l) < block1DataLen+2 {
		return Frame{}, malformed("length byte %d below minimum %d", l, block1DataLen+2)
	}
	if len(data) < total {
		return Frame{}, needMore("need %d bytes, have %d", total, len(data))
	}
	body := data[1:total]

	if typeB {
		return parseTypeB(l, body, tolerate)
	}
	return parseTypeA(l, body, tolerate)
}

func parseTypeA(l byte, body []byte, tolerate ToleranceFunc) (Frame, error) {
	blocks, ok := splitTypeABlocks(body)
	if !ok {
		return Frame{}, malformed("trailing block shorter than its own CRC trailer")
	}
	var man uint16
	var devID uint32
	if len(blocks) > 0 && len(blocks[0].Data) >= block1DataLen {
		man = manufacturerLE(blocks[0].Data[1], blocks[0].Data[2])
		devID = uint32(blocks[0].Data[3]) | uint32(blocks[0].Data[4])<<8 |
			uint32(blocks[0].Data[5])<<16 | uint32(blocks[0].Data[6])<<24
	}

	var payload []byte
	allValid := true
	for i := range blocks {
		withCRC := append(append([]byte{}, blocks[i].Data...), byteOf16(blocks[i].CRC)...)
		blocks[i].OK = crc.VerifyBlock(withCRC)
		if !blocks[i].OK {
			if tolerate != nil {
				if accept, handled := tolerate(man, devID, ToleranceContext{
					FrameType:   TypeA,
					BlockIndex:  i,
					TotalBlocks: len(blocks),
					CRCExpected: crc.Block(blocks[i].Data),
					CRCReceived: blocks[i].CRC,
				}); handled && accept {
					blocks[i].OK = true
				}
			}
			if !blocks[i].OK {
				allValid = false
			}
		}
		payload = append(payload, blocks[i].Data...)
	}

	f, err := headerFrame(l, TypeA, payload)
	if err != nil {
		return Frame{}, err
	}
	f.Blocks = blocks
	f.AllBlocksValid = allValid

	// An encrypted payload region's block CRCs are computed over ciphertext
	// the sender produced honestly; they carry no correctness signal for a
	// receiver without the key, so a failure here must not prevent the
	// frame from surfacing (spec.md §4.3 point 4).
	if !allValid && !f.Encrypted {
		return f, mbuserr.New(mbuserr.KindFraming, "wmbus.ParseWMBus", "one or more block CRCs failed")
	}
	return f, nil
}

func parseTypeB(l byte, body []byte, tolerate ToleranceFunc) (Frame, error) {
	if len(body) < 2 {
		return Frame{}, malformed("type B frame shorter than its own CRC trailer")
	}
	dataLen := len(body) - 2
	data := body[:dataLen]
	got := uint16(body[dataLen])<<8 | uint16(body[dataLen+1])
	want := crc.Block(data)
	ok := got == want
	if !ok && tolerate != nil {
		var man uint16
		var devID uint32
		if len(data) >= block1DataLen {
			man = manufacturerLE(data[1], data[2])
			devID = uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16 | uint32(data[6])<<24
		}
		if accept, handled := tolerate(man, devID, ToleranceContext{
			FrameType:   TypeB,
			BlockIndex:  0,
			TotalBlocks: 1,
			CRCExpected: want,
			CRCReceived: got,
		}); handled && accept {
			ok = true
		}
	}

	f, err := headerFrame(l, TypeB, data)
	if err != nil {
		return Frame{}, err
	}
	f.Blocks = []Block{{Data: data, CRC: got, OK: ok}}
	f.AllBlocksValid = ok
	if !ok && !f.Encrypted {
		return f, mbuserr.New(mbuserr.KindFraming, "wmbus.ParseWMBus", "whole-frame CRC failed")
	}
	return f, nil
}

// splitTypeABlocks divides body (everything after L) into block1 (10 data
// + 2 CRC) followed by zero or more blocks of up to 16 data + 2 CRC, the
// last one possibly shorter. This is the length-inference rule spec.md
// states for Type A: total after-L octets equal the L field, counting both
// data and CRC bytes.
func splitTypeABlocks(body []byte) ([]Block, bool) {
	var blocks []Block
	if len(body) < block1TotalLen {
		return nil, false
	}
	blocks = append(blocks, Block{
		Data: append([]byte{}, body[:block1DataLen]...),
		CRC:  uint16(body[block1DataLen])<<8 | uint16(body[block1DataLen+1]),
	})
	pos := block1TotalLen
	for pos < len(body) {
		remain := len(body) - pos
		if remain <= fullBlockTotalLen {
			if remain < 2 {
				return nil, false
			}
			dataLen := remain - 2
			blocks = append(blocks, Block{
				Data: append([]byte{}, body[pos:pos+dataLen]...),
				CRC:  uint16(body[pos+dataLen])<<8 | uint16(body[pos+dataLen+1]),
			})
			pos = len(body)
		} else {
			blocks = append(blocks, Block{
				Data: append([]byte{}, body[pos:pos+fullBlockDataLen]...),
				CRC:  uint16(body[pos+fullBlockDataLen])<<8 | uint16(body[pos+fullBlockDataLen+1]),
			})
			pos += fullBlockTotalLen
		}
	}
	return blocks, true
}

// headerFrame decodes the fixed 10-byte header (C, M, A, Version, Type, CI)
// that always opens block1's data, regardless of frame type, and detects
// encryption from the CI/configuration-field combination.
func headerFrame(l byte, ft FrameType, payload []byte) (Frame, error) {
	if len(payload) < block1DataLen {
		return Frame{}, malformed("payload shorter than fixed header")
	}
	c := payload[0]
	man := manufacturerLE(payload[1], payload[2])
	devID := uint32(payload[3]) | uint32(payload[4])<<8 | uint32(payload[5])<<16 | uint32(payload[6])<<24
	ver := payload[7]
	devType := payload[8]
	ci := payload[9]

	f := Frame{
		Type:         ft,
		L:            l,
		C:            c,
		Manufacturer: man,
		DeviceID:     devID,
		Version:      ver,
		DeviceType:   devType,
		CI:           ci,
		Payload:      payload,
	}

	switch {
	case isELL(ci):
		f.Encrypted = true
		f.EncryptionMode = ModeNone // link-layer encryption; APL mode is only known after ELL decode
	case (ci == CILongTPL || ci == CIShortTPL || ci == CIEncryptedLongTPL) && len(payload) >= block1DataLen+2:
		cfg := uint16(payload[block1DataLen])<<8 | uint16(payload[block1DataLen+1])
		mode := EncryptionMode((cfg >> 8) & 0x1F)
		if mode == Mode5 || mode == Mode7 || mode == Mode9 {
			f.Encrypted = true
			f.EncryptionMode = mode
		}
	}

	return f, nil
}

// PeekEncryption detects the encryption flag from as little of a frame as
// the radio layer's fast path needs: the CI byte, plus (for CILongTPL /
// CIShortTPL) the 2-byte configuration field right after it. data must
// include the leading L byte and have the configuration field directly
// after CI, with no block CRC in between (a Type A caller removes block
// 1's CRC first). known is false when not enough of the
// header has arrived yet to decide either way — the caller should try
// again once more bytes are buffered. This never requires block-CRC
// coverage, matching spec.md §4.7's rule that encrypted payloads are
// surfaced without waiting on checksum validation.
func PeekEncryption(data []byte) (encrypted bool, mode EncryptionMode, known bool) {
	if len(data) < 1+block1DataLen {
		return false, ModeNone, false
	}
	body := data[1:]
	ci := body[9]
	switch {
	case isELL(ci):
		return true, ModeNone, true
	case ci == CILongTPL || ci == CIShortTPL || ci == CIEncryptedLongTPL:
		if len(body) < block1DataLen+2 {
			return false, ModeNone, false
		}
		cfg := uint16(body[block1DataLen])<<8 | uint16(body[block1DataLen+1])
		m := EncryptionMode((cfg >> 8) & 0x1F)
		if m == Mode5 || m == Mode7 || m == Mode9 {
			return true, m, true
		}
		return false, ModeNone, true
	default:
		return false, ModeNone, true
	}
}

func byteOf16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func needMore(format string, args ...any) error {
	return mbuserr.Wrap(mbuserr.KindFraming, "wmbus.ParseWMBus", fmt.Sprintf(format, args...), ErrNeedMore)
}

func malformed(format string, args ...any) error {
	return mbuserr.New(mbuserr.KindFraming, "wmbus.ParseWMBus", fmt.Sprintf(format, args...))
}
