package protocol

import "errors"

var (
	// ErrMalformedHeader is returned when a header or beacon fails to
	// parse or is missing required fields.
	ErrMalformedHeader = errors.New("protocol: malformed header")

	// ErrDelimiterNotFound is returned when a connection closes or the
	// header buffer fills before the delimiter appears.
	ErrDelimiterNotFound = errors.New("protocol: header delimiter not found")

	// ErrFileTooLarge is returned when a transfer announces or holds more
	// than MaxFileSize bytes.
	ErrFileTooLarge = errors.New("protocol: file exceeds size cap")

	// ErrChecksumMismatch is returned when received file bytes do not hash
	// to the checksum promised in the header.
	ErrChecksumMismatch = errors.New("protocol: checksum mismatch")
)
