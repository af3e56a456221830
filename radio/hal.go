// Package radio implements the radio protocol layer: a minimal six-
// operation hardware port, an SX126x-style calibration sequencer built
// only from that port, an IRQ event queue, and the packet-assembly state
// machine that turns raw FIFO octets into wmbus.Frame values.
//
// Concrete hardware bindings (SPI/GPIO drivers for any specific chip) are
// out of scope per spec.md §1; only the Port interface and the
// sequencing logic built on top of it live here.
package radio

import (
	"mbusgo/mbuserr"
)

// Port is the minimal hardware abstraction spec.md §9 narrows the radio
// HAL down to: six operations, everything else (calibration sequences,
// IRQ routing) built as a library-level sequencer that only calls these.
// Grounded on original_source/src/wmbus/radio/hal/mod.rs's Hal trait.
type Port interface {
	WriteCommand(opcode byte, data []byte) error
	ReadCommand(opcode byte, buf []byte) error
	WriteRegister(addr uint16, data []byte) error
	ReadRegister(addr uint16, buf []byte) error
	GPIORead(pin byte) (bool, error)
	GPIOWrite(pin byte, value bool) error
}

// SleepFunc lets a Sequencer wait between polls without the Port itself
// needing a timing primitive; it is passed a duration in microseconds, so
// callers wrap time.Sleep rather than pass it directly.
type SleepFunc func(microseconds uint32)

func portErr(op, msg string) error {
	return mbuserr.New(mbuserr.KindTransport, op, msg)
}

func wrapPortErr(op, msg string, err error) error {
	return mbuserr.Wrap(mbuserr.KindTransport, op, msg, err)
}
