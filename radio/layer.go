package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"mbusgo/wmbus"
)

// FIFOReader pulls the next byte out of the radio's receive FIFO. ok is
// false when the FIFO is currently empty rather than an error condition;
// err is reserved for genuine transport failures. Concrete radio chips
// differ on exactly how a FIFO byte is fetched (a register read for some,
// a dedicated read-buffer command for others), so Layer takes this as an
// injected function rather than adding a seventh method to Port.
type FIFOReader func() (b byte, ok bool, err error)

// defaultPollInterval is how often Run checks for new IRQ events and FIFO
// bytes when the queue is empty.
const defaultPollInterval = time.Millisecond

// dedupWindow is how long a device/payload pairing is remembered, to drop
// retransmissions a sender repeats within one receive window (common in
// wM-Bus S-mode, which sends the same telegram multiple times to improve
// the odds of a clean reception).
const dedupWindow = 10 * time.Second

// Layer ties PacketBuffer, IrqQueue and a FIFOReader together into the
// per-channel consumer loop spec.md §4.7 describes: drain queued IRQ
// events, pull FIFO bytes while PreambleDetected/SyncwordValid/RxDone
// indicate a packet is arriving, and hand each fully assembled frame to
// onFrame once PacketBuffer reports it complete. It owns no transport of
// its own; Port/Sequencer access, if needed for calibration between
// packets, belongs to the caller driving this loop.
type Layer struct {
	packetBuf    *PacketBuffer
	irq          *IrqQueue
	readFIFO     FIFOReader
	tolerate     wmbus.ToleranceFunc
	onFrame      func(wmbus.Frame)
	pollInterval time.Duration
	seen         *cache.Cache
}

// NewLayer builds a Layer over buf and queue. Run calls onFrame with every
// frame it extracts, except duplicates suppressed within the dedup window;
// it is never called concurrently, and ProcessEvents does not call it
// (it returns its frames instead). tolerate may
// be nil, deferring to wmbus.ParseWMBus's own default.
func NewLayer(buf *PacketBuffer, queue *IrqQueue, readFIFO FIFOReader, tolerate wmbus.ToleranceFunc, onFrame func(wmbus.Frame)) *Layer {
	return &Layer{
		packetBuf:    buf,
		irq:          queue,
		readFIFO:     readFIFO,
		tolerate:     tolerate,
		onFrame:      onFrame,
		pollInterval: defaultPollInterval,
		seen:         cache.New(dedupWindow, dedupWindow/2),
	}
}

// duplicate reports whether f was already delivered within dedupWindow,
// recording it as seen either way.
func (l *Layer) duplicate(f wmbus.Frame) bool {
	key := fmt.Sprintf("%04x-%08x-%x", f.Manufacturer, f.DeviceID, f.Payload)
	if _, found := l.seen.Get(key); found {
		return true
	}
	l.seen.SetDefault(key, struct{}{})
	return false
}

// SetPollInterval overrides the delay Run waits between empty-queue polls.
func (l *Layer) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

// receiving reports whether ev signals that a packet is in flight and the
// FIFO should be drained for it.
func receiving(ev IrqEvent) bool {
	return ev.Mask.PreambleDetected() || ev.Mask.SyncwordValid() || ev.Mask.RxDone()
}

// ProcessEvents drains the FIFO for every event in evs that signals an
// in-flight packet, assembling bytes into the Layer's PacketBuffer and
// extracting every frame that completes along the way. It is exported
// separately from Run so the consumer loop can be driven by a test with
// canned events and a canned FIFOReader instead of a live radio.
func (l *Layer) ProcessEvents(evs []IrqEvent) ([]wmbus.Frame, error) {
	var frames []wmbus.Frame
	for _, ev := range evs {
		if ev.Mask.CrcErr() {
			l.packetBuf.RecordFIFOOverrun()
			l.packetBuf.Clear()
			continue
		}
		if !receiving(ev) {
			continue
		}
		for l.packetBuf.ShouldContinueFIFORead() {
			b, ok, err := l.readFIFO()
			if err != nil {
				return frames, wrapPortErr("radio.Layer.ProcessEvents", "read FIFO byte", err)
			}
			if !ok {
				break
			}
			l.packetBuf.PushByte(b)
		}
		if l.packetBuf.IsComplete() {
			f, err := l.packetBuf.Extract(l.tolerate)
			if err == nil && !l.duplicate(f) {
				frames = append(frames, f)
			}
		}
	}
	return frames, nil
}

// Run drains ev's IRQ queue and assembles packets until ctx is cancelled,
// calling onFrame for every frame that completes. It polls at
// pollInterval when the queue is empty rather than blocking, since
// IrqQueue has no blocking-wait primitive (spec.md §4.7 keeps IRQ
// delivery push-based from whatever interrupt context feeds Push).
func (l *Layer) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evs := l.irq.Drain()
			if len(evs) == 0 {
				continue
			}
			frames, err := l.ProcessEvents(evs)
			for _, f := range frames {
				if l.onFrame != nil {
					l.onFrame(f)
				}
			}
			if err != nil {
				return err
			}
		}
	}
}
