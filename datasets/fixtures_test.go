package datasets

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

const (
	frameWidth  = 40
	frameHeight = 30
)

// videoFixture describes one video written by writeFixture.
type videoFixture struct {
	name   string
	frames int
	label  []float32
	// written is the number of frame files actually written; 0 means all.
	written int
}

// writeFixture writes the index artifacts of split under dataRoot and the
// frames of every video under fileRoot. Each frame is a solid color whose
// red channel encodes the frame number.
func writeFixture(t *testing.T, dataRoot, fileRoot string, split Split, videos []videoFixture) {
	t.Helper()
	tables := &SplitTables{}
	for vi, v := range videos {
		tables.Names = append(tables.Names, v.name)
		tables.FrameCounts = append(tables.FrameCounts, v.frames)
		tables.Labels = append(tables.Labels, v.label)
		tables.Classes = append(tables.Classes, argmax(v.label)+1)

		written := v.frames
		if v.written > 0 {
			written = v.written
		}
		for f := 1; f <= written; f++ {
			writeFrame(t, FramePath(fileRoot, v.name, f), frameColor(vi, f))
		}
	}
	if err := WriteSplitIndex(dataRoot, split, tables); err != nil {
		t.Fatalf("WriteSplitIndex failed: %v", err)
	}
}

func frameColor(video, frame int) color.NRGBA {
	return color.NRGBA{R: uint8(frame * 20), G: uint8(video * 60), B: 128, A: 255}
}

// writeFrame writes a solid-color JPEG at path.
func writeFrame(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create frame dir: %v", err)
	}
	img := imaging.New(frameWidth, frameHeight, c)
	if err := imaging.Save(img, path, imaging.JPEGQuality(100)); err != nil {
		t.Fatalf("failed to write frame %s: %v", path, err)
	}
}

// splitImage returns a w x h image whose left half is left and right half
// is right.
func splitImage(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

func argmax(v []float32) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func oneHot(class, width int) []float32 {
	v := make([]float32, width)
	v[class] = 1
	return v
}
