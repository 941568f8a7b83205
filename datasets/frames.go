package datasets

import (
	"fmt"
	"image"
	"math/rand"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// FramePath returns <fileRoot>/<name>/frame%06d.jpg. Frames are 1-indexed.
func FramePath(fileRoot, name string, frame int) string {
	return filepath.Join(fileRoot, name, fmt.Sprintf("frame%06d.jpg", frame))
}

// LoadFrame decodes the image at path. The result is always converted to
// RGB by the transforms, whatever the stored color model.
func LoadFrame(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFrameUnavailable, path, err)
	}
	return img, nil
}

// UniformFrame draws a frame number uniformly from [1, count].
func UniformFrame(r *rand.Rand, count int) int {
	return 1 + r.Intn(count)
}

// SegmentFrames splits [1, count] into segments contiguous ranges of
// count/segments frames and draws one frame from each, in order.
//
// Videos shorter than segments get a segment length of 1 and frame numbers
// clamped to count, so the last frame is repeated: count=2, segments=3
// gives [1, 2, 2].
func SegmentFrames(r *rand.Rand, count, segments int) []int {
	segLen := count / segments
	if segLen < 1 {
		segLen = 1
	}
	frames := make([]int, segments)
	for i := range segments {
		frame := 1 + i*segLen + r.Intn(segLen)
		if frame > count {
			frame = count
		}
		frames[i] = frame
	}
	return frames
}
