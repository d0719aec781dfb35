package progjpeg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a decoding failure. The CLI and any caller that wants to
// react differently to different failure classes should switch on Kind
// rather than match error strings.
type Kind int

const (
	// UnexpectedEOF means the input ended mid-segment or mid-entropy-scan.
	UnexpectedEOF Kind = iota
	// BadMarker means a byte was expected to be 0xFF, or an unknown marker
	// code followed a 0xFF.
	BadMarker
	// MalformedSyntax covers structural violations: bad segment lengths,
	// duplicate SOI/SOF/EOI, missing DHT/DQT, bad component ids, and the
	// like.
	MalformedSyntax
	// Unsupported covers frame kinds and markers this decoder deliberately
	// does not implement: arithmetic, lossless, differential, hierarchical,
	// non-8-bit precision, DAC/DHP/EXP.
	Unsupported
	// BrokenCode means a Huffman decode consumed 16 bits without matching a
	// code.
	BrokenCode
	// BadRestart means a restart marker was expected and something else, or
	// the wrong RSTn index, was found.
	BadRestart
)

func (k Kind) String() string {
	switch k {
	case UnexpectedEOF:
		return "unexpected EOF"
	case BadMarker:
		return "bad marker"
	case MalformedSyntax:
		return "malformed syntax"
	case Unsupported:
		return "unsupported"
	case BrokenCode:
		return "broken huffman code"
	case BadRestart:
		return "bad restart marker"
	default:
		return "unknown error"
	}
}

// DecodeError is the concrete error type returned by every failure path in
// this package. Marker and Offset are best-effort context: Marker is the
// 0xFF-prefixed marker code active when the error was raised (0 if none),
// Offset is the byte offset into the input stream at that point (-1 if the
// underlying reader doesn't support it).
type DecodeError struct {
	Kind   Kind
	Marker uint8
	Offset int64
	cause  error
}

func (e *DecodeError) Error() string {
	if e.Marker != 0 {
		return fmt.Sprintf("progjpeg: %s (marker 0x%02x, offset %d): %v", e.Kind, e.Marker, e.Offset, e.cause)
	}
	return fmt.Sprintf("progjpeg: %s: %v", e.Kind, e.cause)
}

// Unwrap lets errors.Is / errors.As see through to the underlying cause, if
// any. DecodeError has no Cause method, so github.com/pkg/errors.Cause stops
// at the DecodeError itself.
func (e *DecodeError) Unwrap() error { return e.cause }

// newErr builds a DecodeError with no specific marker/offset context.
func newErr(kind Kind, msg string) error {
	return &DecodeError{Kind: kind, cause: errors.New(msg)}
}

// newErrf is newErr with Printf-style formatting.
func newErrf(kind Kind, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, cause: errors.Errorf(format, args...)}
}

// wrapErr attaches decode context (marker, offset) to an existing error,
// preserving the original as the wrapped cause per the errors.Wrap idiom.
func wrapErr(kind Kind, marker uint8, offset int64, cause error, context string) error {
	return &DecodeError{
		Kind:   kind,
		Marker: marker,
		Offset: offset,
		cause:  errors.Wrap(cause, context),
	}
}

// KindOf reports the Kind of err if it (or something it wraps) is a
// *DecodeError, and ok=false otherwise.
func KindOf(err error) (kind Kind, ok bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
