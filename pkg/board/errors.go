package board

import "errors"

// Code is a protocol-visible failure kind returned by Board operations.
// Codes are sentinel errors: compare with errors.Is or extract with CodeOf.
type Code string

const (
	// ErrOutOfBounds indicates a note footprint or pin point outside the board
	ErrOutOfBounds Code = "OUT_OF_BOUNDS"

	// ErrColourNotSupported indicates a colour missing from the board's colour list
	ErrColourNotSupported Code = "COLOUR_NOT_SUPPORTED"

	// ErrCompleteOverlap indicates an existing note already occupies the exact anchor
	ErrCompleteOverlap Code = "COMPLETE_OVERLAP"

	// ErrNoteNotFound indicates no note covers the requested point
	ErrNoteNotFound Code = "NOTE_NOT_FOUND"

	// ErrPinNotFound indicates no pin exists at the requested point
	ErrPinNotFound Code = "PIN_NOT_FOUND"

	// ErrInvalidFormat indicates malformed input
	ErrInvalidFormat Code = "INVALID_FORMAT"
)

// Error implements the error interface.
func (c Code) Error() string {
	return string(c)
}

// CodeOf extracts the Code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var code Code
	if errors.As(err, &code) {
		return code, true
	}
	return "", false
}
