package datasets

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Split names a partition of the dataset.
type Split string

const (
	// SplitTrain is the training partition, augmented by default.
	SplitTrain Split = "train"
	// SplitTest is the evaluation partition.
	SplitTest Split = "test"
)

// ParseSplit validates s as one of the known splits.
func ParseSplit(s string) (Split, error) {
	split := Split(s)
	if !split.Valid() {
		return "", errors.Wrapf(ErrInvalidConfiguration, "unknown split %q (want %q or %q)", s, SplitTrain, SplitTest)
	}
	return split, nil
}

// Valid reports whether the split is train or test.
func (s Split) Valid() bool {
	return s == SplitTrain || s == SplitTest
}

// Artifact kinds, used as the suffix of the artifact file names.
const (
	ArtifactName       = "name"
	ArtifactFrameCount = "nFrames"
	ArtifactLabel      = "label"
	ArtifactClass      = "index"
)

// ArtifactExt is the extension of the serialized index artifacts.
const ArtifactExt = ".gob"

// ArtifactPath returns <dataRoot>/<split>_<kind>.gob
func ArtifactPath(dataRoot string, split Split, kind string) string {
	return filepath.Join(dataRoot, string(split)+"_"+kind+ArtifactExt)
}

// Video is the record of a single entry of a SplitIndex.
type Video struct {
	Name       string
	FrameCount int
}

// SplitIndex holds the in-memory tables of one split. The three slices are
// index-aligned and must not be modified after construction; concurrent
// reads are safe.
type SplitIndex struct {
	Split       Split
	Names       []string
	FrameCounts []int
	Labels      [][]float32
}

// NewSplitIndex validates the tables and wraps them in a SplitIndex.
func NewSplitIndex(split Split, names []string, frameCounts []int, labels [][]float32) (*SplitIndex, error) {
	if !split.Valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown split %q", split)
	}
	if len(names) != len(frameCounts) || len(names) != len(labels) {
		return nil, errors.Wrapf(ErrCorruptArtifact, "split %s has %d names, %d frame counts and %d labels",
			split, len(names), len(frameCounts), len(labels))
	}
	for i, n := range frameCounts {
		if n < 1 {
			return nil, errors.Wrapf(ErrCorruptArtifact, "split %s: video %q (%d) has %d frames", split, names[i], i, n)
		}
	}
	if len(labels) > 0 {
		width := len(labels[0])
		if width == 0 {
			return nil, errors.Wrapf(ErrCorruptArtifact, "split %s: empty label vectors", split)
		}
		for i, l := range labels {
			if len(l) != width {
				return nil, errors.Wrapf(ErrCorruptArtifact, "split %s: label %d has width %d, expected %d",
					split, i, len(l), width)
			}
		}
	}
	return &SplitIndex{
		Split:       split,
		Names:       names,
		FrameCounts: frameCounts,
		Labels:      labels,
	}, nil
}

// LoadSplitIndex reads the name, frame-count and label artifacts of split
// from dataRoot. The split is validated before any file is touched.
func LoadSplitIndex(dataRoot string, split Split) (*SplitIndex, error) {
	if !split.Valid() {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "unknown split %q", split)
	}

	var names []string
	if err := readArtifact(ArtifactPath(dataRoot, split, ArtifactName), &names); err != nil {
		return nil, err
	}
	var frameCounts []int
	if err := readArtifact(ArtifactPath(dataRoot, split, ArtifactFrameCount), &frameCounts); err != nil {
		return nil, err
	}
	var labels [][]float32
	if err := readArtifact(ArtifactPath(dataRoot, split, ArtifactLabel), &labels); err != nil {
		return nil, err
	}
	return NewSplitIndex(split, names, frameCounts, labels)
}

func readArtifact(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArtifactMissing, path, err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrCorruptArtifact, path, err)
	}
	return nil
}

// Len returns the number of videos in the split.
func (s *SplitIndex) Len() int {
	return len(s.Names)
}

// NumClasses returns the width of the one-hot labels, 0 for an empty split.
func (s *SplitIndex) NumClasses() int {
	if len(s.Labels) == 0 {
		return 0
	}
	return len(s.Labels[0])
}

// Video returns the name and frame count of entry i.
func (s *SplitIndex) Video(i int) (Video, error) {
	if i < 0 || i >= len(s.Names) {
		return Video{}, errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", i, len(s.Names))
	}
	return Video{Name: s.Names[i], FrameCount: s.FrameCounts[i]}, nil
}
