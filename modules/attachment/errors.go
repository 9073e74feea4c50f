package attachment

import "errors"

// Sentinel errors for attachment operations.
var (
	// ErrFileNotFound is returned when the requested attachment does not exist.
	ErrFileNotFound = errors.New("attachment not found")

	// ErrInvalidFileID is returned when the attachment id is not a UUID.
	ErrInvalidFileID = errors.New("invalid attachment id")

	// ErrEmptyFile is returned when an upload carries no data.
	ErrEmptyFile = errors.New("empty file")
)
