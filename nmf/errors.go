package nmf

import "github.com/pkg/errors"

// Codec-level errors (spec §7: TruncatedInput, UnknownRecord, MalformedField,
// InvalidUtf8, UnknownEnum).
var (
	ErrTruncatedInput = errors.New("nmf: truncated input")
	ErrUnknownRecord  = errors.New("nmf: unknown record code")
	ErrMalformedField = errors.New("nmf: malformed field")
	ErrInvalidUTF8    = errors.New("nmf: invalid utf-8 in length-prefixed string")
	ErrUnknownEnum    = errors.New("nmf: unknown enum discriminant")

	// I/O errors surfaced by ParseStream.
	ErrStreamClosed = errors.New("nmf: stream closed")
	ErrStreamError  = errors.New("nmf: stream error")
)
