// Package mbuserr provides the single unified error taxonomy used across
// the frame, wmbus, vif, mbuscrypto, protocol, radio, and vendorext
// packages (spec.md §7). It consolidates what spec.md's design notes call
// "exceptions/ad-hoc error enums with many variants" into one Kind.
// Warnings that do not abort a batch (an unknown VIF) are not errors of
// this package: package vif reports them per entry, as Entry.Ok == false.
package mbuserr

import "fmt"

// Kind names the layer an error originated in.
type Kind int

const (
	// KindTransport covers port open/read/write failures and timeouts.
	KindTransport Kind = iota
	// KindFraming covers invalid start/stop bytes, length mismatches,
	// truncated frames, checksum/CRC mismatches, invalid headers.
	KindFraming
	// KindParsing covers DIF/VIFE chain overrun, unknown DIF kind,
	// truncated values (unknown VIF is a warning, not this kind).
	KindParsing
	// KindCrypto covers missing keys, mode mismatches, GCM tag mismatch,
	// ECB length mismatch.
	KindCrypto
	// KindProtocol covers invalid state transitions and too many
	// multi-telegram continuations.
	KindProtocol
	// KindVendor covers a vendor extension returning an error (always
	// logged and treated as "use default tolerance").
	KindVendor
	// KindResource covers IRQ queue overruns and buffer-full conditions.
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindParsing:
		return "parsing"
	case KindCrypto:
		return "crypto"
	case KindProtocol:
		return "protocol"
	case KindVendor:
		return "vendor"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is the stable error type returned by every mbusgo package. Op
// names the operation that failed (e.g. "frame.Parse", "wmbus.ParseWMBus").
type Error struct {
	Kind    Kind
	Op      string
	Context string // human-readable context, e.g. "offset 4: unexpected byte 0x12"
	Err     error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Context != "" {
		msg += ": " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, context string) *Error {
	return &Error{Kind: kind, Op: op, Context: context}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, op, context string, err error) *Error {
	return &Error{Kind: kind, Op: op, Context: context, Err: err}
}

// Is supports errors.Is by comparing Kind whenever the target is also an
// *Error; the target's Op, Context and Err are ignored, so
// errors.Is(err, mbuserr.New(KindFraming, "", "")) matches any framing
// error. Any other target does not match here; errors.Is itself still
// walks Err through Unwrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
