// Package protocol implements the wired M-Bus (EN 13757-2) application
// protocol state machine: secondary-address selection, REQ_UD2/RSP_UD
// request-response cycling with FCB toggling, baud-rate auto-detection, and
// collision backoff. It drives package frame's codec but knows nothing of
// the transport bytes themselves arrive over.
package protocol

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/patrickmn/go-cache"

	"mbusgo/frame"
	"mbusgo/mbuserr"
	"mbusgo/vif"
)

// State is one node of the wired protocol's Idle/Selecting/Requesting/
// Receiving cycle.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateRequesting
	StateReceiving
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSelecting:
		return "Selecting"
	case StateRequesting:
		return "Requesting"
	case StateReceiving:
		return "Receiving"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// maxChainedFrames bounds how many "more records follow" long frames a
// single conversation will accept, per EN 13757-2's recommended cap.
const maxChainedFrames = 16

// recentAddressTTL controls how long a secondary-address selection is
// remembered, so a caller repeatedly talking to the same device can skip
// re-selecting it. Grounded on Regentag-go1090/mode_s/decoder.go's
// icao_cache (same "recently matched identifier" shape, applied to wired
// secondary addresses instead of ICAO addresses).
const recentAddressTTL = 30 * time.Second

// REQ_UD2's C-field function code, with FCB (bit 0x20) toggled per request.
const (
	cREQUD2Base = 0x5B
	cFCBBit     = 0x20
	cFCVBit     = 0x10
	// ciRSPUDMore is bit 4 of RSP_UD's CI byte (spec.md §6's 1-indexed
	// bit numbering, i.e. 0x08, not the base RSP_UD CI 0x72's own bit 4
	// at 0x10 which is already part of that fixed CI code).
	ciRSPUDMore = 0x08
)

// Machine drives one wired device's conversation. It is not safe for
// concurrent use by multiple goroutines; the spec assigns one Machine per
// device handle, with independent handles free to run on separate tasks.
type Machine struct {
	state       State
	address     byte
	fcb         bool
	chainCount  int
	recentAddrs *cache.Cache
}

// New returns a Machine in StateIdle.
func New() *Machine {
	return &Machine{
		state:       StateIdle,
		recentAddrs: cache.New(recentAddressTTL, recentAddressTTL/2),
	}
}

// Current returns the machine's current state.
func (m *Machine) Current() State { return m.state }

func (m *Machine) invalidTransition(op string, from State) error {
	return mbuserr.New(mbuserr.KindProtocol, op, fmt.Sprintf("invalid transition from %s", from))
}

// SelectDevice builds a secondary-address select frame (SND_UD, CI 0x52)
// for mask and transitions Idle -> Selecting. mask uses frame.PackSelect's
// 16-hex-digit encoding (device_id|manufacturer|version|device_type, 'F'
// wildcards allowed).
func (m *Machine) SelectDevice(mask string) (frame.Frame, error) {
	if m.state != StateIdle {
		return frame.Frame{}, m.invalidTransition("protocol.SelectDevice", m.state)
	}
	f, err := frame.PackSelect(mask)
	if err != nil {
		return frame.Frame{}, mbuserr.Wrap(mbuserr.KindProtocol, "protocol.SelectDevice", "pack select frame", err)
	}
	m.state = StateSelecting
	m.fcb = false
	m.chainCount = 0
	if cached, found := m.recentAddrs.Get(mask); found {
		m.address = cached.(byte)
	}
	return f, nil
}

// ConfirmSelection acknowledges that the device answered the select with
// an E5 (Ack) and transitions Selecting -> Idle, ready for RequestData.
// Any other response is an error; the caller should call Reset.
func (m *Machine) ConfirmSelection(mask string, resp frame.Frame) error {
	if m.state != StateSelecting {
		return m.invalidTransition("protocol.ConfirmSelection", m.state)
	}
	if resp.Kind != frame.KindAck {
		m.state = StateError
		return mbuserr.New(mbuserr.KindProtocol, "protocol.ConfirmSelection", "expected Ack response to select frame")
	}
	m.recentAddrs.SetDefault(mask, m.address)
	m.state = StateIdle
	return nil
}

// RequestData builds a REQ_UD2 short frame for addr, toggling FCB from the
// previous request to the same device, and transitions Idle -> Requesting,
// or Receiving -> Requesting to fetch the next frame of a chained response.
func (m *Machine) RequestData(addr byte) (frame.Frame, error) {
	if m.state != StateIdle && m.state != StateReceiving {
		return frame.Frame{}, m.invalidTransition("protocol.RequestData", m.state)
	}
	c := byte(cREQUD2Base) | cFCVBit
	if m.fcb {
		c |= cFCBBit
	}
	m.address = addr
	m.state = StateRequesting
	return frame.NewShort(c, addr), nil
}

// ReceiveData validates resp against the FCB this Machine last sent,
// decodes its payload into records, and transitions Requesting ->
// Receiving (if more records follow) or Requesting -> Idle (otherwise).
// An RSP_UD with no data bytes arrives in Control-frame form (L=3) and is
// accepted as a response with no records.
//
// More-records-follow is bit 4 of the RSP_UD's CI byte. On every path this
// toggles FCB for the next RequestData call, matching REQ_UD2's "toggle
// FCB between successive requests to the same device" rule.
func (m *Machine) ReceiveData(resp frame.Frame) ([]vif.Record, bool, error) {
	if m.state != StateRequesting && m.state != StateReceiving {
		return nil, false, m.invalidTransition("protocol.ReceiveData", m.state)
	}
	if resp.Kind != frame.KindLong && resp.Kind != frame.KindControl {
		m.state = StateError
		return nil, false, mbuserr.New(mbuserr.KindProtocol, "protocol.ReceiveData", "expected Long or Control (RSP_UD) frame")
	}

	m.chainCount++
	if m.chainCount > maxChainedFrames {
		m.state = StateError
		return nil, false, mbuserr.New(mbuserr.KindProtocol, "protocol.ReceiveData", fmt.Sprintf("exceeded %d chained frames in one conversation", maxChainedFrames))
	}

	records, err := decodeRecords(resp.Data)
	if err != nil {
		m.state = StateError
		return nil, false, mbuserr.Wrap(mbuserr.KindProtocol, "protocol.ReceiveData", "decode RSP_UD payload", err)
	}

	more := resp.CI&ciRSPUDMore != 0
	m.fcb = !m.fcb
	if more {
		m.state = StateReceiving
	} else {
		m.state = StateIdle
		m.chainCount = 0
	}
	return records, more, nil
}

// decodeRecords walks payload as a sequence of vif.Record entries,
// skipping 0x2F filler bytes wherever they appear, per §4.4.
func decodeRecords(payload []byte) ([]vif.Record, error) {
	var records []vif.Record
	rest := payload
	for len(rest) > 0 {
		if rest[0] == 0x2F {
			rest = rest[1:]
			continue
		}
		rec, next, err := vif.ParseRecord(rest)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		rest = next
	}
	return records, nil
}

// HandleError transitions any state to StateError. The caller must call
// Reset before issuing further requests.
func (m *Machine) HandleError(_ error) {
	m.state = StateError
}

// Reset returns the Machine to StateIdle regardless of its current state,
// clearing FCB and chain-count bookkeeping (but not the recent-address
// cache, which is keyed independently and naturally expires).
func (m *Machine) Reset() {
	m.state = StateIdle
	m.fcb = false
	m.chainCount = 0
}

// Backoff computes an exponential backoff with jitter for the given retry
// attempt (0-indexed), bounded by cfg's Initial/MaxBackoffMs.
func Backoff(cfg CollisionConfig, attempt int, rnd *rand.Rand) time.Duration {
	if cfg.InitialBackoffMs <= 0 {
		cfg.InitialBackoffMs = DefaultCollisionConfig.InitialBackoffMs
	}
	if cfg.MaxBackoffMs <= 0 {
		cfg.MaxBackoffMs = DefaultCollisionConfig.MaxBackoffMs
	}
	backoff := cfg.InitialBackoffMs
	for i := 0; i < attempt && backoff < cfg.MaxBackoffMs; i++ {
		backoff *= 2
	}
	if backoff > cfg.MaxBackoffMs {
		backoff = cfg.MaxBackoffMs
	}
	jitter := 0
	if rnd != nil {
		jitter = rnd.Intn(backoff/4 + 1)
	}
	return time.Duration(backoff+jitter) * time.Millisecond
}
