package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	// The export writes integral values as floats now and then ("12.0").
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// trimVideoExt turns "v_ApplyEyeMakeup_g08_c01.avi" into "v_ApplyEyeMakeup_g08_c01".
func trimVideoExt(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// manifestColumns are the required header columns of a manifest CSV.
var manifestColumns = []string{"name", "class", "nframes", "set"}

// ReadManifest reads a manifest CSV with the columns name, class, nFrames
// and set (in any order, case-insensitive). Rows keep their file order.
func ReadManifest(path string) ([]ManifestEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMissing, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptArtifact, "failed to read header of %s: %v", path, err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range manifestColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, errors.Wrapf(ErrCorruptArtifact, "required column %q not found in %s", col, path)
		}
	}

	var entries []ManifestEntry
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptArtifact, "%s row %d: %v", path, row, err)
		}
		row++

		e := ManifestEntry{Name: trimVideoExt(record[colIndex["name"]])}
		if e.Name == "" {
			return nil, errors.Wrapf(ErrCorruptArtifact, "%s row %d: empty name", path, row)
		}
		if e.Class, err = parseInt(record[colIndex["class"]]); err != nil {
			return nil, errors.Wrapf(ErrCorruptArtifact, "%s row %d: failed to parse class: %v", path, row, err)
		}
		if e.FrameCount, err = parseInt(record[colIndex["nframes"]]); err != nil {
			return nil, errors.Wrapf(ErrCorruptArtifact, "%s row %d: failed to parse nFrames: %v", path, row, err)
		}
		flag, err := parseInt(record[colIndex["set"]])
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptArtifact, "%s row %d: failed to parse set: %v", path, row, err)
		}
		e.Flag = SplitFlag(flag)
		entries = append(entries, e)
	}

	return entries, nil
}
