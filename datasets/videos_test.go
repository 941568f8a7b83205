package datasets

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/Noofbiz/actionframes/metrics"
)

const testImageSize = 16

// fixtureRoots writes the train and test splits used by most tests and
// returns the artifact root and the frame root.
func fixtureRoots(t *testing.T) (dataRoot, fileRoot string) {
	t.Helper()
	dataRoot = filepath.Join(t.TempDir(), "index")
	fileRoot = filepath.Join(t.TempDir(), "frames")
	writeFixture(t, dataRoot, fileRoot, SplitTrain, []videoFixture{
		{name: "v_Archery_g01_c01", frames: 10, label: oneHot(0, 3)},
		{name: "v_Bowling_g01_c01", frames: 7, label: oneHot(1, 3)},
		{name: "v_Diving_g01_c01", frames: 4, label: oneHot(2, 3)},
		{name: "v_Archery_g02_c01", frames: 2, label: oneHot(0, 3)},
		{name: "v_Bowling_g02_c01", frames: 6, label: oneHot(1, 3)},
	})
	writeFixture(t, dataRoot, fileRoot, SplitTest, []videoFixture{
		{name: "v_Diving_g03_c01", frames: 5, label: oneHot(2, 3)},
		{name: "v_Archery_g03_c01", frames: 3, label: oneHot(0, 3)},
	})
	return dataRoot, fileRoot
}

func seeded(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func TestFrameDataset_SampleShapes(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	for _, split := range []Split{SplitTrain, SplitTest} {
		d, err := NewFrameDataset(dataRoot, fileRoot, split, WithImageSize(testImageSize), seeded(1))
		if err != nil {
			t.Fatalf("NewFrameDataset(%s) failed: %v", split, err)
		}
		if d.NumClasses() != 3 {
			t.Fatalf("expected 3 classes, got %d", d.NumClasses())
		}
		for i := 0; i < d.Len(); i++ {
			img, label, err := d.Sample(i)
			if err != nil {
				t.Fatalf("Sample(%d) failed: %v", i, err)
			}
			want := []int{NumCrops, NumChannels, testImageSize, testImageSize}
			if got := img.Shape().Dimensions; !reflect.DeepEqual(got, want) {
				t.Fatalf("image dims = %v, want %v", got, want)
			}
			if got := label.Shape().Dimensions; !reflect.DeepEqual(got, []int{1, 3}) {
				t.Fatalf("label dims = %v, want [1 3]", got)
			}
			gotLabel := label.Value().([][]float32)[0]
			if !reflect.DeepEqual(gotLabel, d.Index().Labels[i]) {
				t.Fatalf("label of %d = %v, want %v", i, gotLabel, d.Index().Labels[i])
			}
		}
	}
}

func TestSegmentDataset_SampleShapes(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewSegmentDataset(dataRoot, fileRoot, SplitTrain, DefaultSegments, WithImageSize(testImageSize), seeded(2))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	if d.Segments() != DefaultSegments {
		t.Fatalf("Segments() = %d", d.Segments())
	}
	// Entry 3 has only two frames, fewer than the segments.
	for i := 0; i < d.Len(); i++ {
		img, label, err := d.Sample(i)
		if err != nil {
			t.Fatalf("Sample(%d) failed: %v", i, err)
		}
		want := []int{DefaultSegments, NumCrops, NumChannels, testImageSize, testImageSize}
		if got := img.Shape().Dimensions; !reflect.DeepEqual(got, want) {
			t.Fatalf("image dims = %v, want %v", got, want)
		}
		if got := label.Value().([][]float32)[0]; !reflect.DeepEqual(got, d.Index().Labels[i]) {
			t.Fatalf("label of %d = %v, want %v", i, got, d.Index().Labels[i])
		}
	}
}

func TestSegmentDataset_TwoSegments(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "index")
	fileRoot := filepath.Join(t.TempDir(), "frames")
	writeFixture(t, dataRoot, fileRoot, SplitTrain, []videoFixture{
		{name: "vidA", frames: 10, label: []float32{1, 0}},
		{name: "vidB", frames: 5, label: []float32{0, 1}},
	})
	d, err := NewSegmentDataset(dataRoot, fileRoot, SplitTrain, 2, WithImageSize(testImageSize), seeded(3))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	for range 50 {
		draw, err := d.Draw(1)
		if err != nil {
			t.Fatalf("Draw failed: %v", err)
		}
		if f := draw.Frames[0]; f < 1 || f > 2 {
			t.Fatalf("first segment drew frame %d, want [1, 2]", f)
		}
		if f := draw.Frames[1]; f < 3 || f > 4 {
			t.Fatalf("second segment drew frame %d, want [3, 4]", f)
		}
	}
	_, label, err := d.Sample(1)
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if got := label.Value().([][]float32); !reflect.DeepEqual(got, [][]float32{{0, 1}}) {
		t.Fatalf("label = %v, want [[0 1]]", got)
	}
}

func TestRender_ReadsDrawnFrames(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewSegmentDataset(dataRoot, fileRoot, SplitTest, 2, WithImageSize(testImageSize), seeded(4))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	draw := &Draw{Index: 0, Frames: []int{2, 5}, Pipeline: NewTenCropPipeline(224, 224, testImageSize)}
	img, _, err := d.Render(draw)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// The fixture frames are solid, so every red value is frame*20/255.
	values := img.Value().([][][][][]float32)
	for s, frame := range draw.Frames {
		want := float32(frame*20) / 255
		got := values[s][3][0][5][7]
		if diff := got - want; diff > 0.02 || diff < -0.02 {
			t.Fatalf("segment %d red = %.3f, want ~%.3f", s, got, want)
		}
	}
}

func TestRender_RejectsMismatchedDraw(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	frames, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	segments, err := NewSegmentDataset(dataRoot, fileRoot, SplitTest, 2, WithImageSize(testImageSize))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	pipeline := NewTenCropPipeline(224, 224, testImageSize)
	tests := []struct {
		name string
		d    Dataset
		draw *Draw
	}{
		{"two frames for a single-frame sample", frames, &Draw{Index: 0, Frames: []int{1, 2}, Pipeline: pipeline}},
		{"no frames", frames, &Draw{Index: 0, Pipeline: pipeline}},
		{"one frame for two segments", segments, &Draw{Index: 0, Frames: []int{1}, Pipeline: pipeline}},
		{"three frames for two segments", segments, &Draw{Index: 0, Frames: []int{1, 2, 3}, Pipeline: pipeline}},
		{"smaller output size", frames, &Draw{Index: 0, Frames: []int{1}, Pipeline: NewTenCropPipeline(224, 224, 8)}},
		{"larger output size", segments, &Draw{Index: 0, Frames: []int{1, 2}, Pipeline: NewTenCropPipeline(224, 224, 32)}},
		{"no pipeline", frames, &Draw{Index: 0, Frames: []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.d.Render(tt.draw); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestEvalMode_Deterministic(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize), seeded(5))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	if d.Mode() != ModeEval {
		t.Fatalf("test split should default to eval mode, got %s", d.Mode())
	}
	draw, err := d.Draw(0)
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	first, _, err := d.Render(draw)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	second, _, err := d.Render(draw)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !reflect.DeepEqual(first.Value(), second.Value()) {
		t.Fatalf("rendering the same draw twice gave different tensors")
	}

	// Two datasets with the same seed produce the same samples.
	a, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize), seeded(5))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	b, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize), seeded(5))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	for i := 0; i < a.Len(); i++ {
		imgA, _, err := a.Sample(i)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		imgB, _, err := b.Sample(i)
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if !reflect.DeepEqual(imgA.Value(), imgB.Value()) {
			t.Fatalf("sample %d differs between equally seeded datasets", i)
		}
	}
}

func TestSeededDraws_Reproducible(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	a, err := NewSegmentDataset(dataRoot, fileRoot, SplitTrain, 3, WithImageSize(testImageSize), seeded(6))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	b, err := NewSegmentDataset(dataRoot, fileRoot, SplitTrain, 3, WithImageSize(testImageSize), seeded(6))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	for i := 0; i < a.Len(); i++ {
		da, err := a.Draw(i)
		if err != nil {
			t.Fatalf("Draw failed: %v", err)
		}
		db, err := b.Draw(i)
		if err != nil {
			t.Fatalf("Draw failed: %v", err)
		}
		if !reflect.DeepEqual(da.Frames, db.Frames) || *da.Pipeline != *db.Pipeline {
			t.Fatalf("draw %d differs between equally seeded datasets: %+v vs %+v", i, da, db)
		}
	}
}

func TestTrainMode_JittersCrops(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTrain, WithImageSize(testImageSize), seeded(7))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	if d.Mode() != ModeTrain {
		t.Fatalf("train split should default to train mode, got %s", d.Mode())
	}
	sizes := make(map[int]bool)
	for range 100 {
		draw, err := d.Draw(0)
		if err != nil {
			t.Fatalf("Draw failed: %v", err)
		}
		sizes[draw.Pipeline.CropHeight] = true
		sizes[draw.Pipeline.CropWidth] = true
		if draw.Pipeline.Size != testImageSize {
			t.Fatalf("pipeline output size %d", draw.Pipeline.Size)
		}
	}
	if len(sizes) < 2 {
		t.Fatalf("expected jittered crop sizes, got %v", sizes)
	}

	evalOnTrain, err := NewFrameDataset(dataRoot, fileRoot, SplitTrain, WithImageSize(testImageSize), WithMode(ModeEval))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	draw, err := evalOnTrain.Draw(0)
	if err != nil {
		t.Fatalf("Draw failed: %v", err)
	}
	if draw.Pipeline.CropHeight != testImageSize || draw.Pipeline.CropWidth != testImageSize {
		t.Fatalf("eval mode should crop %d, got %dx%d", testImageSize, draw.Pipeline.CropHeight, draw.Pipeline.CropWidth)
	}
}

func TestSample_IndexOutOfRange(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	for _, split := range []Split{SplitTrain, SplitTest} {
		frames, err := NewFrameDataset(dataRoot, fileRoot, split, WithImageSize(testImageSize))
		if err != nil {
			t.Fatalf("NewFrameDataset failed: %v", err)
		}
		segments, err := NewSegmentDataset(dataRoot, fileRoot, split, 2, WithImageSize(testImageSize))
		if err != nil {
			t.Fatalf("NewSegmentDataset failed: %v", err)
		}
		for _, d := range []Dataset{frames, segments} {
			for _, i := range []int{-1, d.Len(), d.Len() + 10} {
				if _, _, err := d.Sample(i); !errors.Is(err, ErrIndexOutOfRange) {
					t.Fatalf("%s: Sample(%d) returned %v, want ErrIndexOutOfRange", d.Name(), i, err)
				}
			}
		}
	}
}

func TestNewDataset_InvalidConfiguration(t *testing.T) {
	// Nothing exists under the roots: the split must be rejected before any
	// artifact is read.
	missing := filepath.Join(t.TempDir(), "nowhere")
	if _, err := NewFrameDataset(missing, missing, Split("validation")); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := NewSegmentDataset(missing, missing, Split(""), 3); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := NewSegmentDataset(missing, missing, SplitTrain, 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for 0 segments, got %v", err)
	}
	if _, err := NewFrameDataset(missing, missing, SplitTrain, WithImageSize(300)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for image size 300, got %v", err)
	}
	if _, err := NewFrameDataset(missing, missing, SplitTrain, WithBatchSize(0)); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for batch size 0, got %v", err)
	}
	if _, err := NewFrameDataset(missing, missing, SplitTrain); !errors.Is(err, ErrArtifactMissing) {
		t.Fatalf("expected ErrArtifactMissing, got %v", err)
	}
}

func TestSample_FrameUnavailable(t *testing.T) {
	dataRoot := filepath.Join(t.TempDir(), "index")
	fileRoot := filepath.Join(t.TempDir(), "frames")
	// Only the first frame of a ten-frame video exists on disk.
	writeFixture(t, dataRoot, fileRoot, SplitTest, []videoFixture{
		{name: "partial", frames: 10, label: oneHot(0, 1), written: 1},
	})
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	draw := &Draw{Index: 0, Frames: []int{4}, Pipeline: NewTenCropPipeline(224, 224, testImageSize)}
	if _, _, err := d.Render(draw); !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("expected ErrFrameUnavailable, got %v", err)
	}
	draw.Frames = []int{1}
	if _, _, err := d.Render(draw); err != nil {
		t.Fatalf("Render of the existing frame failed: %v", err)
	}
}

func TestSample_DirectoryRemoved(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(fileRoot, "v_Diving_g03_c01")); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if _, _, err := d.Sample(0); !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("expected ErrFrameUnavailable, got %v", err)
	}
	if _, _, err := d.Sample(1); err != nil {
		t.Fatalf("other videos should still load: %v", err)
	}
}

func TestBatch(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewSegmentDataset(dataRoot, fileRoot, SplitTrain, 2, WithImageSize(testImageSize), WithWorkers(3), seeded(8))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	indices := []int{4, 0, 2}
	images, labels, err := d.Batch(context.Background(), indices)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	want := []int{3, 2, NumCrops, NumChannels, testImageSize, testImageSize}
	if got := images.Shape().Dimensions; !reflect.DeepEqual(got, want) {
		t.Fatalf("images dims = %v, want %v", got, want)
	}
	got := labels.Value().([][]float32)
	for pos, idx := range indices {
		if !reflect.DeepEqual(got[pos], d.Index().Labels[idx]) {
			t.Fatalf("label at %d = %v, want %v", pos, got[pos], d.Index().Labels[idx])
		}
	}

	if _, _, err := d.Batch(context.Background(), []int{0, 99}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, _, err := d.Batch(context.Background(), nil); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for an empty batch, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := d.Batch(ctx, indices); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestYield_Epochs(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTrain, WithImageSize(testImageSize), WithBatchSize(2), seeded(9))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	var sizes []int
	for {
		spec, inputs, labels, err := d.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Yield failed: %v", err)
		}
		if spec != d.Name() {
			t.Fatalf("spec = %v, want %q", spec, d.Name())
		}
		if len(inputs) != 1 || len(labels) != 1 {
			t.Fatalf("expected one input and one label tensor")
		}
		sizes = append(sizes, inputs[0].Shape().Dimensions[0])
	}
	if !reflect.DeepEqual(sizes, []int{2, 2, 1}) {
		t.Fatalf("batch sizes = %v, want [2 2 1]", sizes)
	}
	if _, _, _, err := d.Yield(); err != io.EOF {
		t.Fatalf("expected io.EOF until Reset, got %v", err)
	}
	d.Reset()
	if _, _, _, err := d.Yield(); err != nil {
		t.Fatalf("Yield after Reset failed: %v", err)
	}
}

func TestYield_Infinite(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTest, WithImageSize(testImageSize), WithBatchSize(3), WithInfinite(true))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	for i := range 4 {
		_, inputs, _, err := d.Yield()
		if err != nil {
			t.Fatalf("Yield %d failed: %v", i, err)
		}
		if n := inputs[0].Shape().Dimensions[0]; n != 3 {
			t.Fatalf("infinite dataset yielded a batch of %d", n)
		}
	}
}

func TestShuffle_Permutation(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewFrameDataset(dataRoot, fileRoot, SplitTrain, WithImageSize(testImageSize), WithBatchSize(1))
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	d.Shuffle(42)
	var order []int
	for {
		indices, err := d.nextIndices()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("nextIndices failed: %v", err)
		}
		order = append(order, indices...)
	}
	sorted := append([]int(nil), order...)
	sort.Ints(sorted)
	if !reflect.DeepEqual(sorted, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("shuffled epoch %v is not a permutation of the videos", order)
	}
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestSample_Metrics(t *testing.T) {
	dataRoot, fileRoot := fixtureRoots(t)
	d, err := NewSegmentDataset(dataRoot, fileRoot, SplitTest, 2, WithImageSize(testImageSize))
	if err != nil {
		t.Fatalf("NewSegmentDataset failed: %v", err)
	}
	ok := metrics.SamplesTotal.WithLabelValues("segments", "eval", metrics.StatusOK)
	failed := metrics.SamplesTotal.WithLabelValues("segments", "eval", metrics.StatusError)
	okBefore, failedBefore := counterValue(t, ok), counterValue(t, failed)
	framesBefore := counterValue(t, metrics.FramesLoadedTotal)

	if _, _, err := d.Sample(0); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if _, _, err := d.Sample(-1); err == nil {
		t.Fatalf("expected an error for index -1")
	}
	if got := counterValue(t, ok) - okBefore; got != 1 {
		t.Fatalf("ok samples increased by %v, want 1", got)
	}
	if got := counterValue(t, failed) - failedBefore; got != 1 {
		t.Fatalf("failed samples increased by %v, want 1", got)
	}
	if got := counterValue(t, metrics.FramesLoadedTotal) - framesBefore; got < 2 {
		t.Fatalf("frames loaded increased by %v, want at least 2", got)
	}
}
