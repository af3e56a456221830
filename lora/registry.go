package lora

import (
	"sync"

	"mbusgo/mbuserr"
)

// Registry dispatches a LoRaWAN payload to the right PayloadDecoder: an
// explicit per-device mapping takes priority; otherwise every registered
// decoder's AutoDetect is consulted and the highest-confidence match
// wins, falling back to RawDecoder if nothing claims it at all.
//
// Grounded on internal/registry.Registry's byLabel-keyed dispatch shape,
// narrowed from that registry's four-method Parser/priority-sort design
// to PayloadDecoder's three methods: AutoDetect's graded Confidence
// already gives a total order, so there is no separate QuickCheck/
// Priority step to run before dispatch.
type Registry struct {
	mu       sync.RWMutex
	byDevice map[string]PayloadDecoder
	decoders []PayloadDecoder
	fallback PayloadDecoder
}

// New returns a Registry whose fallback is RawDecoder.
func New() *Registry {
	return &Registry{
		byDevice: make(map[string]PayloadDecoder),
		fallback: RawDecoder{},
	}
}

// RegisterForDevice pins deviceID to dec, skipping auto-detection for it.
func (r *Registry) RegisterForDevice(deviceID string, dec PayloadDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDevice[deviceID] = dec
}

// Register adds dec to the pool considered by auto-detection.
func (r *Registry) Register(dec PayloadDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders = append(r.decoders, dec)
}

// Decode resolves a decoder for deviceID (explicit mapping, else the
// highest-confidence auto-detect match, else RawDecoder) and runs it.
// It returns the decoder name alongside the result so callers can log
// which decoder actually handled the payload.
func (r *Registry) Decode(deviceID string, payload []byte, port uint8) (MeteringData, string, error) {
	dec := r.resolve(deviceID, payload, port)
	if dec == nil {
		return MeteringData{}, "", mbuserr.New(mbuserr.KindParsing, "lora.Decode", "no decoder available, not even fallback")
	}
	data, err := dec.Decode(payload, port)
	if err != nil {
		return MeteringData{}, dec.Name(), mbuserr.Wrap(mbuserr.KindParsing, "lora.Decode", dec.Name(), err)
	}
	return data, dec.Name(), nil
}

func (r *Registry) resolve(deviceID string, payload []byte, port uint8) PayloadDecoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if dec, ok := r.byDevice[deviceID]; ok {
		return dec
	}

	var best PayloadDecoder
	var bestConfidence Confidence
	for _, dec := range r.decoders {
		c := dec.AutoDetect(payload, port)
		if c > bestConfidence {
			best = dec
			bestConfidence = c
		}
	}
	if best != nil {
		return best
	}
	return r.fallback
}

// RegisteredDeviceIDs returns every device ID with an explicit mapping.
func (r *Registry) RegisteredDeviceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byDevice))
	for id := range r.byDevice {
		ids = append(ids, id)
	}
	return ids
}

// DecoderCount returns the number of decoders registered for auto-detect,
// excluding the fallback.
func (r *Registry) DecoderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decoders)
}
