package radio

import (
	"mbusgo/bitops"
	"mbusgo/wmbus"
)

// State is PacketBuffer's assembly stage, per spec.md §4.7.
type State int

const (
	StateIdle State = iota
	StateAccumulatingUnknown
	StateAccumulatingKnown
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAccumulatingUnknown:
		return "Accumulating(expected=None)"
	case StateAccumulatingKnown:
		return "Accumulating(expected=Some(n))"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Stats counts packet-assembly outcomes, grounded on
// original_source/src/wmbus/radio/rfm69_packet.rs's PacketStats.
type Stats struct {
	PacketsReceived   uint64
	PacketsValid      uint64
	PacketsCRCError   uint64
	PacketsInvalidHdr uint64
	PacketsEncrypted  uint64
	FIFOOverruns      uint64
}

// PacketBuffer accumulates raw radio FIFO octets into one wM-Bus frame at
// a time: each pushed byte is bit-reversed exactly once, length inference
// runs via wmbus.PeekLength as soon as enough bytes are present, and an
// encrypted frame is recognised via its CI byte without waiting on full
// block-CRC coverage (the "fast path" spec.md §4.7 requires). Grounded on
// original_source/src/wmbus/radio/rfm69_packet.rs's PacketBuffer.
type PacketBuffer struct {
	typeB bool
	data  []byte
	state State
	total int
	stats Stats
}

// NewPacketBuffer creates an empty buffer for frames of the given type
// (Type A or Type B, as already resolved by the radio's sync-word match —
// see wmbus.ParseWMBus's doc comment for why that resolution happens
// upstream of this package).
func NewPacketBuffer(typeB bool) *PacketBuffer {
	return &PacketBuffer{typeB: typeB, state: StateIdle}
}

// Clear resets the buffer for the next packet without losing Stats.
func (b *PacketBuffer) Clear() {
	b.data = nil
	b.state = StateIdle
	b.total = 0
}

// PushByte adds one raw FIFO octet, bit-reversing it first (wM-Bus is
// MSB-first on the wire; most sub-GHz radio FIFOs shift out LSB-first).
func (b *PacketBuffer) PushByte(raw byte) {
	b.data = append(b.data, bitops.Reverse8(raw))
	if b.state == StateIdle {
		b.state = StateAccumulatingUnknown
	}
	b.inferLength()
}

// inferLength attempts to resolve the frame's total length via
// wmbus.PeekLength, advancing Accumulating(None) -> Accumulating(Some(n))
// once known, or clearing the buffer and counting an invalid-header stat
// if the length byte can never be valid — "do not hang" per spec.md §4.7.
func (b *PacketBuffer) inferLength() {
	if b.state == StateAccumulatingKnown || b.state == StateComplete {
		return
	}
	total, known, err := wmbus.PeekLength(b.data)
	if err != nil {
		b.stats.PacketsInvalidHdr++
		b.Clear()
		return
	}
	if !known {
		return
	}
	b.total = total
	b.state = StateAccumulatingKnown
}

// ShouldContinueFIFORead reports whether the radio layer should keep
// pulling bytes from the FIFO: true while the frame length is not yet
// known or fewer than the expected number of bytes are buffered, false
// once the expected byte count is in the buffer.
func (b *PacketBuffer) ShouldContinueFIFORead() bool {
	if b.state != StateAccumulatingKnown {
		return true
	}
	return len(b.data) < b.total
}

// IsComplete reports whether enough bytes have been accumulated to
// extract a full frame.
func (b *PacketBuffer) IsComplete() bool {
	return b.state == StateAccumulatingKnown && len(b.data) >= b.total
}

// IsEncrypted reports whether enough of the header is present to detect
// the wM-Bus CI-field encryption flag, for the fast path that skips
// block-CRC coverage on ciphertext (spec.md §4.7). It does not require
// IsComplete, and returns false until enough header bytes have arrived.
func (b *PacketBuffer) IsEncrypted() bool {
	data := b.data
	if !b.typeB && len(data) > 11 {
		// Type A: block 1's 2-byte CRC sits between CI and the
		// configuration field; drop it so PeekEncryption sees the
		// configuration field right after CI.
		head := append([]byte{}, data[:11]...)
		if len(data) > 13 {
			head = append(head, data[13:]...)
		}
		data = head
	}
	encrypted, _, _ := wmbus.PeekEncryption(data)
	return encrypted
}

// Extract parses and returns the accumulated frame once IsComplete is
// true, then clears the buffer (preserving Stats) for the next packet.
func (b *PacketBuffer) Extract(tolerate wmbus.ToleranceFunc) (wmbus.Frame, error) {
	if !b.IsComplete() {
		return wmbus.Frame{}, wmbus.ErrNeedMore
	}
	b.state = StateComplete
	f, err := wmbus.ParseWMBus(b.data, b.typeB, tolerate)
	b.stats.PacketsReceived++
	if err != nil {
		b.stats.PacketsCRCError++
		b.Clear()
		return wmbus.Frame{}, err
	}
	if f.Encrypted {
		b.stats.PacketsEncrypted++
	}
	if f.AllBlocksValid {
		b.stats.PacketsValid++
	}
	b.Clear()
	return f, nil
}

// Len returns the number of bytes currently accumulated.
func (b *PacketBuffer) Len() int { return len(b.data) }

// Stats returns a snapshot of this buffer's assembly statistics.
func (b *PacketBuffer) Stats() Stats { return b.stats }

// RecordFIFOOverrun lets the radio layer report a FIFO overrun it
// detected independently of this buffer's own bookkeeping.
func (b *PacketBuffer) RecordFIFOOverrun() { b.stats.FIFOOverruns++ }
