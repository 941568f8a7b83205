package datasets

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/ml/train"
)

// FrameDataset yields one uniformly drawn frame per video, as ten crops
// shaped (10, 3, size, size).
type FrameDataset struct {
	*videoDataset
}

var (
	_ Dataset       = (*FrameDataset)(nil)
	_ train.Dataset = (*FrameDataset)(nil)
)

// NewFrameDataset loads the split index of split from dataRoot and serves
// frames read from fileRoot.
func NewFrameDataset(dataRoot, fileRoot string, split Split, opts ...Option) (*FrameDataset, error) {
	d, err := newVideoDataset("frames", dataRoot, fileRoot, split, opts)
	if err != nil {
		return nil, err
	}
	d.pickFrames = func(r *rand.Rand, count int) []int {
		return []int{UniformFrame(r, count)}
	}
	d.framesPerSample = 1
	d.sampleDims = []int{NumCrops, NumChannels, d.imageSize, d.imageSize}
	return &FrameDataset{videoDataset: d}, nil
}
