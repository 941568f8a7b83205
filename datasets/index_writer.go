package datasets

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SplitFlag is the split assignment used by the annotation export:
// 1 marks a training video, 2 a test video.
type SplitFlag int

const (
	FlagTrain SplitFlag = 1
	FlagTest  SplitFlag = 2
)

// Split maps the flag to its Split.
func (f SplitFlag) Split() (Split, error) {
	switch f {
	case FlagTrain:
		return SplitTrain, nil
	case FlagTest:
		return SplitTest, nil
	}
	return "", errors.Wrapf(ErrInvalidConfiguration, "unknown split flag %d", int(f))
}

// ManifestEntry is one row of the annotation export.
type ManifestEntry struct {
	Name       string
	Class      int // 1-based class index
	FrameCount int
	Flag       SplitFlag
}

// SplitTables are the per-split tables serialized by WriteSplitIndex.
type SplitTables struct {
	Names       []string
	Classes     []int
	Labels      [][]float32
	FrameCounts []int
}

// Len returns the number of rows in the tables.
func (t *SplitTables) Len() int {
	return len(t.Names)
}

// BuildSplitTables builds one-hot labels for numClasses classes and
// partitions the entries at the boundary given by the number of training
// flags. Training entries must all precede test entries.
func BuildSplitTables(entries []ManifestEntry, numClasses int) (train, test *SplitTables, err error) {
	if numClasses < 1 {
		return nil, nil, errors.Wrapf(ErrInvalidConfiguration, "number of classes must be >= 1, got %d", numClasses)
	}

	numTrain := 0
	for i, e := range entries {
		if _, err := e.Flag.Split(); err != nil {
			return nil, nil, errors.Wrapf(err, "entry %d (%s)", i, e.Name)
		}
		if e.Flag == FlagTrain {
			numTrain++
		}
	}
	for i, e := range entries {
		inTrainPart := i < numTrain
		if inTrainPart != (e.Flag == FlagTrain) {
			return nil, nil, errors.Wrapf(ErrCorruptArtifact,
				"entry %d (%s) has flag %d but the first %d entries must be the training set", i, e.Name, e.Flag, numTrain)
		}
	}

	all := &SplitTables{
		Names:       make([]string, len(entries)),
		Classes:     make([]int, len(entries)),
		Labels:      make([][]float32, len(entries)),
		FrameCounts: make([]int, len(entries)),
	}
	for i, e := range entries {
		if e.Class < 1 || e.Class > numClasses {
			return nil, nil, errors.Wrapf(ErrCorruptArtifact, "entry %d (%s) has class %d, want [1, %d]",
				i, e.Name, e.Class, numClasses)
		}
		if e.FrameCount < 1 {
			return nil, nil, errors.Wrapf(ErrCorruptArtifact, "entry %d (%s) has %d frames", i, e.Name, e.FrameCount)
		}
		label := make([]float32, numClasses)
		label[e.Class-1] = 1
		all.Names[i] = e.Name
		all.Classes[i] = e.Class
		all.Labels[i] = label
		all.FrameCounts[i] = e.FrameCount
	}

	train = all.slice(0, numTrain)
	test = all.slice(numTrain, len(entries))
	return train, test, nil
}

func (t *SplitTables) slice(from, to int) *SplitTables {
	return &SplitTables{
		Names:       t.Names[from:to],
		Classes:     t.Classes[from:to],
		Labels:      t.Labels[from:to],
		FrameCounts: t.FrameCounts[from:to],
	}
}

// WriteSplitIndex serializes the tables of split under dataRoot, one
// artifact per table. Each file is written to a temporary name and renamed
// into place.
func WriteSplitIndex(dataRoot string, split Split, t *SplitTables) error {
	if !split.Valid() {
		return errors.Wrapf(ErrInvalidConfiguration, "unknown split %q", split)
	}
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dataRoot)
	}
	artifacts := []struct {
		kind  string
		value any
	}{
		{ArtifactName, t.Names},
		{ArtifactFrameCount, t.FrameCounts},
		{ArtifactLabel, t.Labels},
		{ArtifactClass, t.Classes},
	}
	for _, a := range artifacts {
		if err := writeArtifact(ArtifactPath(dataRoot, split, a.kind), a.value); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(path string, v any) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if err := gob.NewEncoder(tmpFile).Encode(v); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrapf(err, "close temp file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename temp file to %s", path)
	}
	return nil
}
