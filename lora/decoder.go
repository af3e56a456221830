// Package lora is the application-payload decoder facade of spec.md
// §4.11: a stable PayloadDecoder interface plus a registry the device
// manager can consult once a LoRaWAN payload has been delivered to it.
// Concrete vendor decoders (Dragino, Decentlab, and similar) are out of
// core by design — this package only defines the plug-in contract, a
// dispatch registry, and the raw-binary fallback.
package lora

// MeteringData is the decoded application-layer payload: named numeric
// fields plus the raw bytes that produced them, kept around for decoders
// a caller hasn't registered yet.
type MeteringData struct {
	Fields map[string]float64
	Raw    []byte
}

// Confidence grades how sure a decoder is that it recognizes a payload,
// from AutoDetect. The registry picks the highest-confidence match when
// no explicit device mapping exists.
type Confidence float64

const (
	ConfidenceNone    Confidence = 0.0
	ConfidenceLow     Confidence = 0.25
	ConfidenceMedium  Confidence = 0.5
	ConfidenceHigh    Confidence = 0.75
	ConfidenceCertain Confidence = 1.0
)

// PayloadDecoder is implemented by each LoRa application-payload decoder.
type PayloadDecoder interface {
	// Name returns the decoder's unique identifier (e.g. "dragino-lht65").
	Name() string

	// Decode interprets payload as received on the given LoRaWAN fPort.
	Decode(payload []byte, port uint8) (MeteringData, error)

	// AutoDetect estimates how likely payload/port belong to this
	// decoder's format, without fully decoding it.
	AutoDetect(payload []byte, port uint8) Confidence
}
