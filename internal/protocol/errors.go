package protocol

import "errors"

// Codec errors. Decode and Encode wrap exactly one of these so callers can
// classify failures with errors.Is.
var (
	// ErrDecode covers malformed JSON, a missing cmd and missing or mistyped fields.
	ErrDecode = errors.New("protocol: decode failed")

	// ErrUnknownCommand is returned for a cmd tag outside the command table.
	ErrUnknownCommand = errors.New("protocol: unknown command")

	// ErrUnsupported is returned for a known command that never travels device to server.
	ErrUnsupported = errors.New("protocol: no inbound shape for command")

	// ErrDomain is returned for well-formed values outside their domain,
	// such as a percentage above 100.
	ErrDomain = errors.New("protocol: value out of domain")
)
