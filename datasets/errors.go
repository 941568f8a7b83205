package datasets

import "github.com/pkg/errors"

// Error taxonomy. Errors returned by this package wrap one of these and can
// be matched with errors.Is. None of them is retried internally.
var (
	// ErrInvalidConfiguration is returned for an unknown split, variant or
	// out-of-range construction parameter.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrArtifactMissing is returned when an index artifact is absent or
	// cannot be opened.
	ErrArtifactMissing = errors.New("index artifact missing")

	// ErrCorruptArtifact is returned when index artifacts cannot be decoded
	// or disagree with each other.
	ErrCorruptArtifact = errors.New("corrupt index artifact")

	// ErrIndexOutOfRange is returned when a sample index is not in [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrFrameUnavailable is returned when a frame image cannot be read or
	// decoded.
	ErrFrameUnavailable = errors.New("frame unavailable")
)
