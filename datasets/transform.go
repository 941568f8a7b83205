package datasets

import (
	"image"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

const (
	// ScaleSize is the length the short side of every frame is rescaled to
	// before cropping.
	ScaleSize = 256

	// NumCrops is the number of views produced by the ten-crop.
	NumCrops = 10

	// NumChannels of the produced tensors (RGB).
	NumChannels = 3

	// DefaultImageSize is the side of the square crops fed to the model.
	DefaultImageSize = 224
)

// JitterSizes are the candidate crop heights and widths used for scale
// jittering during training.
var JitterSizes = []int{256, 224, 192, 168}

// TenCropPipeline rescales the short side of an image to ScaleSize, takes
// the four corner and center crops of CropHeight x CropWidth from the image
// and from its horizontal mirror, and resizes every crop to Size x Size.
type TenCropPipeline struct {
	ScaleSize  int
	CropHeight int
	CropWidth  int
	Size       int
}

// NewTenCropPipeline creates a pipeline cropping cropHeight x cropWidth
// regions and producing size x size crops.
func NewTenCropPipeline(cropHeight, cropWidth, size int) *TenCropPipeline {
	return &TenCropPipeline{
		ScaleSize:  ScaleSize,
		CropHeight: cropHeight,
		CropWidth:  cropWidth,
		Size:       size,
	}
}

// Crops returns the ten crops of img, resized to Size x Size. Order: top-left,
// top-right, bottom-left, bottom-right, center, then the same five on the
// mirrored image.
func (p *TenCropPipeline) Crops(img image.Image) []*image.NRGBA {
	scaled := ScaleShortSide(img, p.ScaleSize)
	crops := FiveCrop(scaled, p.CropHeight, p.CropWidth)
	crops = append(crops, FiveCrop(imaging.FlipH(scaled), p.CropHeight, p.CropWidth)...)
	for i, c := range crops {
		crops[i] = imaging.Resize(c, p.Size, p.Size, imaging.Linear)
	}
	return crops
}

// Apply runs the pipeline and returns the crops as a (10, 3, Size, Size)
// batch with values in [0, 1].
func (p *TenCropPipeline) Apply(img image.Image) *CropBatchFlat {
	crops := p.Crops(img)
	b := NewCropBatchFlat(len(crops), p.Size)
	for i, c := range crops {
		writeCHW(b.Crop(i), c)
	}
	return b
}

// ScaleShortSide resizes img so its shorter side equals size, keeping the
// aspect ratio.
func ScaleShortSide(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= b.Dy() {
		return imaging.Resize(img, size, 0, imaging.Linear)
	}
	return imaging.Resize(img, 0, size, imaging.Linear)
}

// FiveCrop returns the four corner crops and the center crop of img.
// The crop must fit inside img.
func FiveCrop(img image.Image, cropHeight, cropWidth int) []*image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	at := func(x, y int) *image.NRGBA {
		origin := b.Min.Add(image.Pt(x, y))
		return imaging.Crop(img, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cropWidth, cropHeight))})
	}
	// Halves round to even: a 173 pixel margin puts the crop at 86.
	left := int(math.RoundToEven(float64(w-cropWidth) / 2))
	top := int(math.RoundToEven(float64(h-cropHeight) / 2))
	return []*image.NRGBA{
		at(0, 0),
		at(w-cropWidth, 0),
		at(0, h-cropHeight),
		at(w-cropWidth, h-cropHeight),
		at(left, top),
	}
}

// writeCHW writes img into dst as 3 planes (R, G, B) of float32 in [0, 1].
func writeCHW(dst []float32, img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			o := y*w + x
			dst[o] = float32(px[0]) / 255
			dst[plane+o] = float32(px[1]) / 255
			dst[2*plane+o] = float32(px[2]) / 255
		}
	}
}

// Augmentation decides which pipeline a sample goes through.
type Augmentation interface {
	// Pipeline returns the pipeline for one sample, drawing from r if the
	// policy is random.
	Pipeline(r *rand.Rand) *TenCropPipeline
}

// FixedAugmentation always returns the same ten-crop at the output size.
// Used for evaluation.
type FixedAugmentation struct {
	pipeline *TenCropPipeline
}

// NewFixedAugmentation builds the evaluation pipeline once.
func NewFixedAugmentation(size int) *FixedAugmentation {
	return &FixedAugmentation{pipeline: NewTenCropPipeline(size, size, size)}
}

// Pipeline implements Augmentation. r is not used.
func (a *FixedAugmentation) Pipeline(*rand.Rand) *TenCropPipeline {
	return a.pipeline
}

// JitteredAugmentation draws crop width and height independently from
// Sizes for every sample, so crops may be non-square before the final
// resize.
type JitteredAugmentation struct {
	Sizes []int
	Size  int
}

// NewJitteredAugmentation uses JitterSizes as candidates.
func NewJitteredAugmentation(size int) *JitteredAugmentation {
	return &JitteredAugmentation{Sizes: JitterSizes, Size: size}
}

// Pipeline implements Augmentation.
func (a *JitteredAugmentation) Pipeline(r *rand.Rand) *TenCropPipeline {
	width := a.Sizes[r.Intn(len(a.Sizes))]
	height := a.Sizes[r.Intn(len(a.Sizes))]
	return NewTenCropPipeline(height, width, a.Size)
}

// CropBatchFlat stores the crops of one frame in a flat contiguous buffer,
// laid out as (Crops, Channels, Height, Width).
type CropBatchFlat struct {
	Buf      []float32
	Crops    int
	Channels int
	Height   int
	Width    int
}

// NewCropBatchFlat allocates a zeroed batch of crops x 3 x size x size.
func NewCropBatchFlat(crops, size int) *CropBatchFlat {
	return &CropBatchFlat{
		Buf:      make([]float32, crops*NumChannels*size*size),
		Crops:    crops,
		Channels: NumChannels,
		Height:   size,
		Width:    size,
	}
}

// Crop returns the slice of Buf holding crop i.
func (b *CropBatchFlat) Crop(i int) []float32 {
	n := b.Channels * b.Height * b.Width
	return b.Buf[i*n : (i+1)*n]
}

// Dims returns the shape of the batch.
func (b *CropBatchFlat) Dims() []int {
	return []int{b.Crops, b.Channels, b.Height, b.Width}
}

// ToGomlxTensor converts the batch to a float32 gomlx tensor.
func (b *CropBatchFlat) ToGomlxTensor() *tensors.Tensor {
	return floatsToTensor(b.Buf, b.Dims()...)
}
