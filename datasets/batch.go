package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// floatsToTensor copies buf into a new float32 tensor shaped dims.
func floatsToTensor(buf []float32, dims ...int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, dims...))
	t.MutableFlatData(func(flatAny any) {
		copy(flatAny.([]float32), buf)
	})
	return t
}

// SampleBatchFlat stores a batch of samples in flat contiguous buffers.
// Images are laid out as (BatchSize, ImageDims...) and labels as
// (BatchSize, LabelDim).
type SampleBatchFlat struct {
	Images    []float32
	Labels    []float32
	BatchSize int
	ImageDims []int
	LabelDim  int
}

// MakeSampleBatchFlat flattens per-sample image and label buffers into a
// batch. Every image must hold exactly prod(imageDims) values and every
// label the same number of values.
func MakeSampleBatchFlat(images, labels [][]float32, imageDims []int) (*SampleBatchFlat, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("images and labels batch sizes don't match: %d != %d", len(images), len(labels))
	}
	imageSize := 1
	for _, d := range imageDims {
		imageSize *= d
	}
	if len(images) == 0 {
		return &SampleBatchFlat{ImageDims: imageDims}, nil
	}

	batchSize := len(images)
	labelDim := len(labels[0])
	flatImages := make([]float32, batchSize*imageSize)
	flatLabels := make([]float32, batchSize*labelDim)
	for i := range batchSize {
		if len(images[i]) != imageSize {
			return nil, fmt.Errorf("inconsistent image size at example %d: expected %d, got %d",
				i, imageSize, len(images[i]))
		}
		if len(labels[i]) != labelDim {
			return nil, fmt.Errorf("inconsistent label dimensions at example %d: expected %d, got %d",
				i, labelDim, len(labels[i]))
		}
		copy(flatImages[i*imageSize:], images[i])
		copy(flatLabels[i*labelDim:], labels[i])
	}

	return &SampleBatchFlat{
		Images:    flatImages,
		Labels:    flatLabels,
		BatchSize: batchSize,
		ImageDims: imageDims,
		LabelDim:  labelDim,
	}, nil
}

// ToGomlxTensors converts the batch to float32 gomlx tensors.
func (b *SampleBatchFlat) ToGomlxTensors() (images *tensors.Tensor, labels *tensors.Tensor) {
	dims := append([]int{b.BatchSize}, b.ImageDims...)
	images = floatsToTensor(b.Images, dims...)
	labels = floatsToTensor(b.Labels, b.BatchSize, b.LabelDim)
	return images, labels
}
