package protocol

import "time"

// StandardBauds lists EN 13757-2 §4.2.8's eight defined wired M-Bus baud
// rates, in priority order for auto-detection: 2400 and 9600 are by far
// the most common installed rates, so they are tried first, followed by
// the rest of the standard in ascending order. Grounded on
// original_source/tests/baud_rate_adaptation_tests.rs's
// test_baud_rate_priority_order and test_standards_compliance.
var StandardBauds = []int{2400, 9600, 300, 600, 1200, 4800, 19200, 38400}

// Timeout returns the minimum response timeout for baud, scaled so lower
// baud rates (slower character times) get proportionally longer timeouts.
// 11 bit-times at baud, not rounded.
func Timeout(baud int) time.Duration {
	bitTime := time.Second / time.Duration(baud)
	return 11 * bitTime
}

// InterFrameDelay returns the minimum gap required between frames at baud:
// 33 bit-times, per spec.md §4.6.
func InterFrameDelay(baud int) time.Duration {
	bitTime := time.Second / time.Duration(baud)
	return 33 * bitTime
}

// sampleWindow is how many frames BaudDetector accumulates per candidate
// baud before deciding whether to commit to it.
const sampleWindow = 8

// commitThreshold is the CRC-success ratio needed to commit to the
// candidate currently being trialed.
const commitThreshold = 0.75

// BaudDetector iterates a priority list of baud rates, accumulating a
// rolling CRC-success ratio per baud over a sample window before
// committing to one.
type BaudDetector struct {
	candidates []int
	index      int
	successes  int
	attempts   int
}

// NewBaudDetector starts detection at the head of priority. An empty slice
// falls back to StandardBauds.
func NewBaudDetector(priority []int) *BaudDetector {
	if len(priority) == 0 {
		priority = StandardBauds
	}
	return &BaudDetector{candidates: priority}
}

// Current returns the baud rate currently being trialed.
func (d *BaudDetector) Current() int {
	return d.candidates[d.index]
}

// RecordResult feeds in whether a frame received at Current's baud passed
// its checksum. It returns (baud, true) once enough samples accumulate to
// commit, or advances to the next candidate baud when the window closes
// without reaching commitThreshold.
func (d *BaudDetector) RecordResult(crcOK bool) (int, bool) {
	d.attempts++
	if crcOK {
		d.successes++
	}
	if d.attempts < sampleWindow {
		return 0, false
	}

	ratio := float64(d.successes) / float64(d.attempts)
	if ratio >= commitThreshold {
		return d.Current(), true
	}

	d.index = (d.index + 1) % len(d.candidates)
	d.successes = 0
	d.attempts = 0
	return 0, false
}

// Reset restarts detection at the head of the candidate list.
func (d *BaudDetector) Reset() {
	d.index = 0
	d.successes = 0
	d.attempts = 0
}

// CollisionConfig bounds the collision-backoff behavior. Defaults are
// grounded on original_source/tests/baud_rate_adaptation_tests.rs's
// test_collision_config_default.
type CollisionConfig struct {
	MaxRetries         int
	InitialBackoffMs   int
	MaxBackoffMs       int
	CollisionThreshold int // collision rate %, above which a baud step-down is triggered
}

// DefaultCollisionConfig matches the retrieved pack's defaults exactly.
var DefaultCollisionConfig = CollisionConfig{
	MaxRetries:         5,
	InitialBackoffMs:   10,
	MaxBackoffMs:       500,
	CollisionThreshold: 2,
}

// CollisionStats tracks the rolling collision rate over a conversation, so
// the caller can decide to step down to a lower baud rate per spec.md
// §4.6's ">30% over a sliding window" rule. Grounded on
// original_source/tests/baud_rate_adaptation_tests.rs's
// test_collision_statistics.
type CollisionStats struct {
	TotalCollisions int
	SuccessfulComms int
	collisionRate   float64 // percent, recomputed by UpdateRate
}

// UpdateRate recomputes CollisionRate as a percentage of total attempts.
func (s *CollisionStats) UpdateRate() {
	total := s.TotalCollisions + s.SuccessfulComms
	if total == 0 {
		s.collisionRate = 0
		return
	}
	s.collisionRate = float64(s.TotalCollisions) / float64(total) * 100
}

// CollisionRate returns the most recently computed collision rate percent.
func (s *CollisionStats) CollisionRate() float64 { return s.collisionRate }

// IsHighCollisionRate reports whether CollisionRate strictly exceeds
// thresholdPercent.
func (s *CollisionStats) IsHighCollisionRate(thresholdPercent float64) bool {
	return s.collisionRate > thresholdPercent
}
