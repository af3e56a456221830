// Package cpufeat captures the host's relevant SIMD capabilities once at
// process start, so algorithm selection reads from a value instead of
// scattering build-tag/cfg branches through the codec packages.
package cpufeat

import "golang.org/x/sys/cpu"

// Features describes which accelerated byte-summation paths are available
// on the current host.
type Features struct {
	SSE2 bool
	AVX2 bool
	NEON bool
}

// detected is computed once at package init and never mutated afterwards.
var detected = Features{
	SSE2: cpu.X86.HasSSE2,
	AVX2: cpu.X86.HasAVX2,
	NEON: cpu.ARM64.HasASIMD,
}

// Detect returns the process-wide capability snapshot.
func Detect() Features {
	return detected
}

// Any reports whether at least one accelerated path is available.
func (f Features) Any() bool {
	return f.SSE2 || f.AVX2 || f.NEON
}
