package manager

import (
	"errors"
	"io"
	"time"

	"mbusgo/frame"
	"mbusgo/mbuserr"
	"mbusgo/protocol"
	"mbusgo/stats"
	"mbusgo/vif"
)

// Port is the abstract byte transport a wired handle speaks over — a
// serial line in practice, but any io.ReadWriteCloser works. Concrete
// serial drivers are out of core per spec.md §1; callers supply their
// own (e.g. a *serial.Port, a net.Conn, or a test double).
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

// Address identifies a discovered device, wired or wireless.
type Address struct {
	// Wired is the non-empty select mask (frame.PackSelect format) for a
	// wired secondary address; empty for wireless addresses.
	Wired string
	// Manufacturer/DeviceID identify a wireless device; zero for wired.
	Manufacturer uint16
	DeviceID     uint32
}

// wiredHandle owns one serial port and the protocol state machine
// driving it. Not safe for concurrent use, matching protocol.Machine's
// own single-threaded-per-handle contract (spec.md §5).
type wiredHandle struct {
	port    Port
	cfg     SerialConfig
	machine *protocol.Machine
	stats   *stats.Registry
}

func newWiredHandle(port Port, cfg SerialConfig, reg *stats.Registry) *wiredHandle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSerialConfig().Timeout
	}
	return &wiredHandle{port: port, cfg: cfg, machine: protocol.New(), stats: reg}
}

// sendRequest runs one full select + REQ_UD2/RSP_UD conversation against
// mask, following every chained "more records follow" frame up to
// protocol.Machine's own hard cap.
func (h *wiredHandle) sendRequest(mask string) ([]vif.Record, error) {
	selFrame, err := h.machine.SelectDevice(mask)
	if err != nil {
		return nil, err
	}
	if _, err := h.port.Write(frame.Pack(selFrame)); err != nil {
		h.machine.HandleError(err)
		return nil, wrapTransport("manager.wiredHandle.sendRequest", "write select frame", err)
	}
	ack, err := readFrame(h.port, h.cfg.Timeout)
	if err != nil {
		h.machine.HandleError(err)
		return nil, err
	}
	if err := h.machine.ConfirmSelection(mask, ack); err != nil {
		return nil, err
	}

	// Once a device has answered a secondary-address select, REQ_UD2
	// addresses it at the broadcast secondary-selection address; the
	// Machine's recent-address cache is what lets a later SelectDevice
	// call for the same mask skip re-selecting.
	const addr = frame.BroadcastAddress

	var all []vif.Record
	for {
		req, err := h.machine.RequestData(addr)
		if err != nil {
			return all, err
		}
		if _, err := h.port.Write(frame.Pack(req)); err != nil {
			h.machine.HandleError(err)
			return all, wrapTransport("manager.wiredHandle.sendRequest", "write REQ_UD2", err)
		}
		resp, err := readFrame(h.port, h.cfg.Timeout)
		if err != nil {
			h.machine.HandleError(err)
			return all, err
		}
		records, more, err := h.machine.ReceiveData(resp)
		if err != nil {
			h.stats.RecordFrame(stats.WiredKey(mask), stats.OutcomeParseError)
			return all, err
		}
		h.stats.RecordFrame(stats.WiredKey(mask), stats.OutcomeOK)
		all = append(all, records...)
		if !more {
			return all, nil
		}
	}
}

func (h *wiredHandle) close() error {
	h.machine.Reset()
	return h.port.Close()
}

// readFrame reads bytes from port until frame.Parse succeeds, a
// malformed byte sequence is found, or timeout elapses. Reading runs on
// its own goroutine because a plain io.Reader has no cancellable
// deadline; on timeout the goroutine is abandoned rather than joined,
// the same trade-off doismellburning-samoyed/src/dlq.go makes waiting on
// a condition variable with a deadline.
func readFrame(port io.Reader, timeout time.Duration) (frame.Frame, error) {
	type result struct {
		f   frame.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var buf []byte
		tmp := make([]byte, 64)
		for {
			n, rerr := port.Read(tmp)
			if n > 0 {
				buf = append(buf, tmp[:n]...)
				f, _, perr := frame.Parse(buf)
				if perr == nil {
					ch <- result{f, nil}
					return
				}
				if !errors.Is(perr, frame.ErrIncomplete) {
					ch <- result{frame.Frame{}, perr}
					return
				}
			}
			if rerr != nil {
				ch <- result{frame.Frame{}, wrapTransport("manager.readFrame", "read from port", rerr)}
				return
			}
		}
	}()
	select {
	case r := <-ch:
		return r.f, r.err
	case <-time.After(timeout):
		return frame.Frame{}, mbuserr.New(mbuserr.KindTransport, "manager.readFrame", "timed out waiting for response")
	}
}

func wrapTransport(op, context string, err error) error {
	return mbuserr.Wrap(mbuserr.KindTransport, op, context, err)
}
