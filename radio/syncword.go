package radio

// Raw (pre-bit-reversal) wM-Bus sync-word octets as they appear on the
// air, before PacketBuffer.PushByte reverses them. Grounded on
// original_source/src/util/bitrev.rs's WMBUS_SYNC_A_RAW/WMBUS_SYNC_B_RAW
// and original_source/src/wmbus/radio/rfm69_packet.rs's SYNC_A/SYNC_B
// (the same values already reversed, which Reverse8 confirms: see
// bitops.TestReverse8KnownSyncWords).
const (
	syncARaw byte = 0xB3
	syncBRaw byte = 0xBC
)

// DetectFrameType matches a raw (not yet bit-reversed) sync-word byte
// read straight off the radio FIFO and reports which wM-Bus frame format
// it introduces. ok is false if raw matches neither known sync word, in
// which case the caller should keep listening rather than start
// accumulating a packet.
func DetectFrameType(raw byte) (typeB bool, ok bool) {
	switch raw {
	case syncARaw:
		return false, true
	case syncBRaw:
		return true, true
	default:
		return false, false
	}
}
