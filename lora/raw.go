package lora

// RawDecoder is the default fallback of §4.11: when nothing else claims a
// payload, it hands back the raw bytes untouched rather than failing.
type RawDecoder struct{}

// Name identifies the raw fallback decoder.
func (RawDecoder) Name() string { return "raw" }

// Decode always succeeds, returning payload verbatim with no named fields.
func (RawDecoder) Decode(payload []byte, _ uint8) (MeteringData, error) {
	return MeteringData{Raw: append([]byte(nil), payload...)}, nil
}

// AutoDetect never outright refuses a payload, but always defers to any
// decoder with a real opinion: ConfidenceLow loses to anything higher.
func (RawDecoder) AutoDetect([]byte, uint8) Confidence {
	return ConfidenceLow
}
