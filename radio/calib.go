package radio

import "time"

// CalibParam is one SX126x-style internal calibration routine, combinable
// by bitwise OR. Grounded on
// original_source/src/wmbus/radio/calib.rs's CalibParams bitflags.
type CalibParam byte

const (
	CalibRC64K    CalibParam = 1 << 0
	CalibRC13M    CalibParam = 1 << 1
	CalibPLL      CalibParam = 1 << 2
	CalibADCPulse CalibParam = 1 << 3
	CalibADCBulkN CalibParam = 1 << 4
	CalibADCBulkP CalibParam = 1 << 5
	CalibImage    CalibParam = 1 << 6
	CalibAll      CalibParam = 0x7F
)

// Contains reports whether every bit set in want is also set in p.
func (p CalibParam) Contains(want CalibParam) bool {
	return p&want == want
}

// calibrateOpcode is the SX126x "Calibrate" command opcode.
const calibrateOpcode = 0x89

// Sequencer drives calibration (and, in future, other multi-step radio
// procedures) using only Port's six operations plus a caller-supplied
// sleep primitive — it holds no hardware-specific state of its own.
type Sequencer struct {
	port  Port
	sleep SleepFunc
}

// NewSequencer builds a Sequencer over port. sleep may be nil, in which
// case WaitForCalibration busy-polls without any delay between reads.
func NewSequencer(port Port, sleep SleepFunc) *Sequencer {
	return &Sequencer{port: port, sleep: sleep}
}

// Calibrate starts the requested calibration routines. It returns as soon
// as the command is sent; calibration itself runs asynchronously in the
// radio hardware.
func (s *Sequencer) Calibrate(params CalibParam) error {
	if err := s.port.WriteCommand(calibrateOpcode, []byte{byte(params)}); err != nil {
		return wrapPortErr("radio.Sequencer.Calibrate", "write calibrate command", err)
	}
	return nil
}

// WaitForCalibration polls busyPin until it reads low (calibration done)
// or timeout elapses, per original_source/src/wmbus/radio/calib.rs's
// wait_for_calibration.
func (s *Sequencer) WaitForCalibration(busyPin byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		busy, err := s.port.GPIORead(busyPin)
		if err != nil {
			return wrapPortErr("radio.Sequencer.WaitForCalibration", "read busy pin", err)
		}
		if !busy {
			return nil
		}
		if time.Now().After(deadline) {
			return portErr("radio.Sequencer.WaitForCalibration", "timed out waiting for calibration")
		}
		if s.sleep != nil {
			s.sleep(100)
		}
	}
}

// calibTimeout picks a conservative wait bound for params, mirroring
// original_source/src/wmbus/radio/calib.rs's calibrate_and_wait table
// (full calibration 20ms, ADC calibrations 10ms, PLL 5ms, otherwise 3ms).
func calibTimeout(params CalibParam) time.Duration {
	switch {
	case params.Contains(CalibAll):
		return 20 * time.Millisecond
	case params.Contains(CalibADCPulse) || params.Contains(CalibADCBulkN) || params.Contains(CalibADCBulkP):
		return 10 * time.Millisecond
	case params.Contains(CalibPLL):
		return 5 * time.Millisecond
	default:
		return 3 * time.Millisecond
	}
}

// CalibrateAndWait combines Calibrate and WaitForCalibration with a
// timeout chosen from params, the recommended approach for most callers.
func (s *Sequencer) CalibrateAndWait(params CalibParam, busyPin byte) error {
	if err := s.Calibrate(params); err != nil {
		return err
	}
	return s.WaitForCalibration(busyPin, calibTimeout(params))
}
