package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/actionframes/metrics"
)

// Draw is the random part of one sample: the frames to read and the crop
// pipeline to run on each of them.
type Draw struct {
	Index    int
	Frames   []int
	Pipeline *TenCropPipeline
}

// videoDataset holds what FrameDataset and SegmentDataset share. The
// variants only differ in how frames are picked and in the sample shape.
type videoDataset struct {
	name      string
	variant   string
	index     *SplitIndex
	fileRoot  string
	imageSize int
	mode      Mode
	aug       Augmentation
	logger    *zap.Logger

	pickFrames      func(r *rand.Rand, count int) []int
	framesPerSample int
	sampleDims      []int

	// muRand protects rng, which is not safe for concurrent use.
	muRand sync.Mutex
	rng    *rand.Rand

	batchSize int
	workers   int
	infinite  bool

	// muOrder protects order, cursor and shuffle.
	muOrder sync.Mutex
	order   []int
	cursor  int
	shuffle *rand.Rand
}

// newVideoDataset validates the configuration, then loads the split index.
func newVideoDataset(variant, dataRoot, fileRoot string, split Split, opts []Option) (*videoDataset, error) {
	if !split.Valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown split %q (want %q or %q)", split, SplitTrain, SplitTest)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.imageSize < 1 || o.imageSize > ScaleSize {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "image size must be in [1, %d], got %d", ScaleSize, o.imageSize)
	}
	if o.batchSize < 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "batch size must be >= 1, got %d", o.batchSize)
	}
	if o.workers < 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "workers must be >= 1, got %d", o.workers)
	}
	o.fill()

	index, err := LoadSplitIndex(dataRoot, split)
	if err != nil {
		return nil, err
	}

	mode := modeForSplit(split)
	if o.mode != nil {
		mode = *o.mode
	}
	var aug Augmentation
	if mode == ModeTrain {
		aug = NewJitteredAugmentation(o.imageSize)
	} else {
		aug = NewFixedAugmentation(o.imageSize)
	}

	d := &videoDataset{
		name:      fmt.Sprintf("%s[%s]", variant, split),
		variant:   variant,
		index:     index,
		fileRoot:  fileRoot,
		imageSize: o.imageSize,
		mode:      mode,
		aug:       aug,
		logger:    o.logger,
		rng:       o.rng,
		batchSize: o.batchSize,
		workers:   o.workers,
		infinite:  o.infinite,
		order:     make([]int, index.Len()),
	}
	for i := range d.order {
		d.order[i] = i
	}
	d.logger.Info("dataset loaded",
		zap.String("name", d.name),
		zap.Int("videos", index.Len()),
		zap.Int("classes", index.NumClasses()),
		zap.Stringer("mode", mode),
		zap.Int("image_size", o.imageSize))
	return d, nil
}

// Name implements train.Dataset.
func (d *videoDataset) Name() string { return d.name }

// Len returns the number of videos in the split.
func (d *videoDataset) Len() int { return d.index.Len() }

// NumClasses returns the width of the labels.
func (d *videoDataset) NumClasses() int { return d.index.NumClasses() }

// Index returns the split index backing the dataset. It must not be modified.
func (d *videoDataset) Index() *SplitIndex { return d.index }

// Mode returns the augmentation mode.
func (d *videoDataset) Mode() Mode { return d.mode }

// ImageSize returns the side of the output crops.
func (d *videoDataset) ImageSize() int { return d.imageSize }

// SampleDims returns the shape of the image tensor of a single sample.
func (d *videoDataset) SampleDims() []int {
	return append([]int(nil), d.sampleDims...)
}

// Draw picks the frames and the crop pipeline of sample i.
func (d *videoDataset) Draw(i int) (*Draw, error) {
	video, err := d.index.Video(i)
	if err != nil {
		return nil, err
	}
	d.muRand.Lock()
	defer d.muRand.Unlock()
	frames := d.pickFrames(d.rng, video.FrameCount)
	return &Draw{
		Index:    i,
		Frames:   frames,
		Pipeline: d.aug.Pipeline(d.rng),
	}, nil
}

// Render loads the frames of draw and runs its pipeline. It does not use
// the random source, so rendering the same Draw twice gives identical
// tensors. A draw whose frame count or output size does not match the
// dataset is rejected with ErrInvalidConfiguration.
func (d *videoDataset) Render(draw *Draw) (image *tensors.Tensor, label *tensors.Tensor, err error) {
	imageBuf, labelBuf, err := d.renderFlat(draw)
	if err != nil {
		return nil, nil, err
	}
	return floatsToTensor(imageBuf, d.sampleDims...), floatsToTensor(labelBuf, 1, len(labelBuf)), nil
}

// Sample returns the image and label tensors of video i.
func (d *videoDataset) Sample(i int) (image *tensors.Tensor, label *tensors.Tensor, err error) {
	imageBuf, labelBuf, err := d.sampleFlat(i)
	if err != nil {
		return nil, nil, err
	}
	return floatsToTensor(imageBuf, d.sampleDims...), floatsToTensor(labelBuf, 1, len(labelBuf)), nil
}

func (d *videoDataset) sampleFlat(i int) (image []float32, label []float32, err error) {
	start := time.Now()
	defer func() {
		status := metrics.StatusOK
		if err != nil {
			status = metrics.StatusError
		}
		metrics.SamplesTotal.WithLabelValues(d.variant, d.mode.String(), status).Inc()
		metrics.SampleDuration.WithLabelValues(d.variant).Observe(time.Since(start).Seconds())
	}()

	draw, err := d.Draw(i)
	if err != nil {
		return nil, nil, err
	}
	return d.renderFlat(draw)
}

func (d *videoDataset) renderFlat(draw *Draw) ([]float32, []float32, error) {
	if draw == nil || draw.Pipeline == nil {
		return nil, nil, errors.Wrap(ErrInvalidConfiguration, "empty draw")
	}
	if len(draw.Frames) != d.framesPerSample {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "draw has %d frames, %s samples take %d",
			len(draw.Frames), d.variant, d.framesPerSample)
	}
	if draw.Pipeline.Size != d.imageSize {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "draw pipeline produces %dx%d crops, dataset image size is %d",
			draw.Pipeline.Size, draw.Pipeline.Size, d.imageSize)
	}
	video, err := d.index.Video(draw.Index)
	if err != nil {
		return nil, nil, err
	}

	perFrame := NumCrops * NumChannels * draw.Pipeline.Size * draw.Pipeline.Size
	image := make([]float32, len(draw.Frames)*perFrame)
	for s, frame := range draw.Frames {
		path := FramePath(d.fileRoot, video.Name, frame)
		img, err := LoadFrame(path)
		if err != nil {
			metrics.FrameErrorsTotal.Inc()
			d.logger.Debug("frame unavailable", zap.String("video", video.Name), zap.Int("frame", frame), zap.Error(err))
			return nil, nil, err
		}
		metrics.FramesLoadedTotal.Inc()
		crops := draw.Pipeline.Apply(img)
		copy(image[s*perFrame:], crops.Buf)
	}

	label := make([]float32, d.index.NumClasses())
	copy(label, d.index.Labels[draw.Index])
	return image, label, nil
}

// Batch loads the samples of indices concurrently and stacks them into
// images shaped (len(indices), SampleDims()...) and labels shaped
// (len(indices), NumClasses()). The first error stops the remaining loads.
func (d *videoDataset) Batch(ctx context.Context, indices []int) (images *tensors.Tensor, labels *tensors.Tensor, err error) {
	batch, err := d.batchFlat(ctx, indices)
	if err != nil {
		return nil, nil, err
	}
	images, labels = batch.ToGomlxTensors()
	return images, labels, nil
}

func (d *videoDataset) batchFlat(ctx context.Context, indices []int) (*SampleBatchFlat, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "empty batch")
	}
	images := make([][]float32, len(indices))
	labels := make([][]float32, len(indices))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for pos, idx := range indices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, lbl, err := d.sampleFlat(idx)
			if err != nil {
				return err
			}
			images[pos], labels[pos] = img, lbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MakeSampleBatchFlat(images, labels, d.sampleDims)
}

// Shuffle makes Yield go over the videos in a random order, reshuffled at
// every Reset, using a generator seeded with seed.
func (d *videoDataset) Shuffle(seed int64) {
	d.muOrder.Lock()
	defer d.muOrder.Unlock()
	d.shuffle = rand.New(rand.NewSource(seed))
	d.resetLocked()
}

// Reset implements train.Dataset. It restarts the epoch.
func (d *videoDataset) Reset() {
	d.muOrder.Lock()
	defer d.muOrder.Unlock()
	d.resetLocked()
}

func (d *videoDataset) resetLocked() {
	d.cursor = 0
	if d.shuffle != nil {
		d.shuffle.Shuffle(len(d.order), func(i, j int) {
			d.order[i], d.order[j] = d.order[j], d.order[i]
		})
	}
}

// nextIndices returns the indices of the next batch. The last batch of an
// epoch may be short; after it io.EOF is returned until Reset, unless the
// dataset is infinite.
func (d *videoDataset) nextIndices() ([]int, error) {
	d.muOrder.Lock()
	defer d.muOrder.Unlock()

	if len(d.order) == 0 {
		return nil, io.EOF
	}
	indices := make([]int, 0, d.batchSize)
	for len(indices) < d.batchSize {
		if d.cursor >= len(d.order) {
			if !d.infinite {
				break
			}
			d.resetLocked()
		}
		indices = append(indices, d.order[d.cursor])
		d.cursor++
	}
	if len(indices) == 0 {
		return nil, io.EOF
	}
	return indices, nil
}

// Yield implements train.Dataset. It returns one batch of images and one
// batch of labels.
func (d *videoDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices, err := d.nextIndices()
	if err != nil {
		return nil, nil, nil, err
	}
	batch, err := d.batchFlat(context.Background(), indices)
	if err != nil {
		return nil, nil, nil, err
	}
	in, la := batch.ToGomlxTensors()
	return d.name, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}
