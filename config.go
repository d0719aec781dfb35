package progjpeg

import "log/slog"

// Config carries decode-time knobs absent from a bare invocation of Decode.
// A zero Config reproduces the distilled specification's documented
// behavior exactly: no resolution ceiling, no strict-mode rejections.
//
// Modeled on the shape of the encoder's Options (writer.go, now trimmed from
// this package): a small options struct passed alongside the stream rather
// than a long parameter list.
type Config struct {
	// MaxResolution rejects images whose Width*Height exceeds this value,
	// before any scan is decoded. Zero means unlimited. Production decoders
	// fed untrusted input need this; the distilled spec leaves it implicit.
	MaxResolution int

	// StrictMode turns recoverable oddities that this decoder otherwise
	// tolerates silently (e.g. trailing bytes after EOI) into hard errors.
	StrictMode bool

	// Logger, if non-nil, receives a debug-level record for every marker
	// encountered after SOI (marker code, byte offset) and, for markers that
	// carry a length field, a second record with the segment body length.
	// A nil Logger disables this tracing entirely rather than
	// discarding records at the handler, so the marker loop pays no
	// formatting cost when tracing is off.
	Logger *slog.Logger
}
