package datasets

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"
)

// DefaultSegments is the default number of temporal segments.
const DefaultSegments = 3

// SegmentDataset splits every video into equal temporal segments and
// yields one frame per segment, as ten crops each, shaped
// (segments, 10, 3, size, size). All frames of a sample share the same
// crop pipeline.
type SegmentDataset struct {
	*videoDataset
	segments int
}

var (
	_ Dataset       = (*SegmentDataset)(nil)
	_ train.Dataset = (*SegmentDataset)(nil)
)

// NewSegmentDataset is like NewFrameDataset with segments frames per sample.
func NewSegmentDataset(dataRoot, fileRoot string, split Split, segments int, opts ...Option) (*SegmentDataset, error) {
	if segments < 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "segments must be >= 1, got %d", segments)
	}
	d, err := newVideoDataset("segments", dataRoot, fileRoot, split, opts)
	if err != nil {
		return nil, err
	}
	d.pickFrames = func(r *rand.Rand, count int) []int {
		return SegmentFrames(r, count, segments)
	}
	d.framesPerSample = segments
	d.sampleDims = []int{segments, NumCrops, NumChannels, d.imageSize, d.imageSize}
	return &SegmentDataset{videoDataset: d, segments: segments}, nil
}

// Segments returns the number of frames drawn per sample.
func (d *SegmentDataset) Segments() int { return d.segments }
