package torrent

import "errors"

// Sentinel errors returned by the create and verify pipelines. I/O and
// serialization failures are wrapped with %w instead, so errors.Is reaches
// the underlying cause.
var (
	// ErrInputNotFound indicates the input path does not exist or cannot be accessed.
	ErrInputNotFound = errors.New("input path not found")

	// ErrEmptyInput indicates scanning yielded no files, typically because
	// exclusion patterns filtered everything out.
	ErrEmptyInput = errors.New("no files found to create torrent from")

	// ErrInvalidPieceLength indicates a user-supplied piece length exponent
	// outside the supported range.
	ErrInvalidPieceLength = errors.New("piece length must be between 15 and 28 (2^15 to 2^28 bytes)")

	// ErrOutputExists indicates the output file exists and overwriting was not requested.
	ErrOutputExists = errors.New("output file already exists")
)
