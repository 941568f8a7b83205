package main

// Example command that loads the single-frame and multi-segment datasets
// of a split, renders one sample of each, and pulls a batch through the
// gomlx train.Dataset interface.
//
// Usage:
//   go run ./example -data-root ../data -file-root ../frames
//
// Note: this example expects the split index artifacts (built with
// `framesets index`) under -data-root and the extracted frames under
// -file-root. If the index is missing the example prints an error and exits.

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/Noofbiz/actionframes/datasets"
)

func main() {
	dataRoot := flag.String("data-root", "../data", "directory holding the split index artifacts")
	fileRoot := flag.String("file-root", "../frames", "directory holding the extracted frames")
	split := flag.String("split", "test", "split to load")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	s, err := datasets.ParseSplit(*split)
	if err != nil {
		log.Fatal(err)
	}

	// Single-frame dataset: one sample is ten crops of one frame.
	frames, err := datasets.NewFrameDataset(*dataRoot, *fileRoot, s,
		datasets.WithRand(rand.New(rand.NewSource(*seed))),
		datasets.WithBatchSize(4))
	if err != nil {
		log.Fatalf("failed to load frame dataset: %v", err)
	}
	fmt.Printf("%s: %d videos, %d classes, mode %s\n", frames.Name(), frames.Len(), frames.NumClasses(), frames.Mode())
	if frames.Len() == 0 {
		return
	}

	draw, err := frames.Draw(0)
	if err != nil {
		log.Fatalf("failed to draw sample: %v", err)
	}
	img, label, err := frames.Render(draw)
	if err != nil {
		log.Fatalf("failed to render sample: %v", err)
	}
	fmt.Printf("  video %s, frame %v, crop %dx%d\n", frames.Index().Names[0], draw.Frames,
		draw.Pipeline.CropHeight, draw.Pipeline.CropWidth)
	fmt.Printf("  image shape: %v\n", img.Shape().Dimensions)
	fmt.Printf("  label shape: %v\n", label.Shape().Dimensions)

	// Multi-segment dataset: one frame per temporal segment.
	segments, err := datasets.NewSegmentDataset(*dataRoot, *fileRoot, s, datasets.DefaultSegments,
		datasets.WithRand(rand.New(rand.NewSource(*seed))))
	if err != nil {
		log.Fatalf("failed to load segment dataset: %v", err)
	}
	n := min(4, segments.Len())
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	fmt.Printf("Loading batch of %d %s samples...\n", n, segments.Name())
	images, labels, err := segments.Batch(context.Background(), indices)
	if err != nil {
		log.Fatalf("failed to build segment batch: %v", err)
	}
	fmt.Printf("  images shape: %v\n", images.Shape().Dimensions)
	fmt.Printf("  labels shape: %v\n", labels.Shape().Dimensions)

	// The same data through train.Dataset.
	frames.Shuffle(*seed)
	spec, inputs, targets, err := frames.Yield()
	if err != nil {
		log.Fatalf("failed to yield: %v", err)
	}
	fmt.Printf("Yield(%v): inputs %v, labels %v\n", spec, inputs[0].Shape().Dimensions, targets[0].Shape().Dimensions)

	fmt.Println("\nExample completed successfully!")
}
