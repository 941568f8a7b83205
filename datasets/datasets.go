// Package datasets serves sampled, augmented video-frame examples for
// action-recognition training and evaluation.
//
// A split (train or test) is described by three index-aligned artifacts
// produced offline: the video names, their extracted frame counts and
// their one-hot labels. They are loaded once into a SplitIndex and kept in
// memory for the lifetime of the dataset.
//
// Layout and intended usage:
//
// FrameDataset
//   - Picks one frame uniformly at random per video.
//   - Yields images shaped (10, 3, size, size): ten crops of the frame.
//
// SegmentDataset
//   - Splits each video into S equal temporal segments and picks one frame
//     per segment.
//   - Yields images shaped (S, 10, 3, size, size).
//
// Both return labels shaped (1, num_classes). In training mode the crop
// sizes are jittered per sample; in evaluation mode a fixed ten-crop is
// used so results are reproducible for a given frame choice.
//
// The datasets also implement gomlx's train.Dataset, yielding batches with
// an extra leading batch dimension.
package datasets

import (
	"context"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Dataset is the interface shared by FrameDataset and SegmentDataset.
type Dataset interface {
	Len() int
	NumClasses() int
	Index() *SplitIndex
	SampleDims() []int

	// Draw consumes the randomness for one sample: frame numbers and the
	// crop pipeline. Render turns a Draw into tensors without touching the
	// random source.
	Draw(i int) (*Draw, error)
	Render(draw *Draw) (image *tensors.Tensor, label *tensors.Tensor, err error)

	Sample(i int) (image *tensors.Tensor, label *tensors.Tensor, err error)
	Batch(ctx context.Context, indices []int) (images *tensors.Tensor, labels *tensors.Tensor, err error)
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}
