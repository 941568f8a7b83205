package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Noofbiz/actionframes/datasets"
)

type inspectOptions struct {
	samples int
	outDir  string
	crops   bool
}

func newInspectCmd(a *app) *cobra.Command {
	var opts inspectOptions
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Draw samples from a split and plot where the frames fall",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, a, opts)
		},
	}
	cmd.Flags().IntVar(&opts.samples, "samples", 100, "number of samples to draw")
	cmd.Flags().StringVar(&opts.outDir, "out", "plots", "output directory for the histogram and crops")
	cmd.Flags().BoolVar(&opts.crops, "crops", false, "also save the ten crops of the first frame of the first sample")
	return cmd
}

// inspectReport summarizes one inspect run.
type inspectReport struct {
	Samples    int
	Positions  []float64 // relative position of every drawn frame, in (0, 1)
	SampleDims []int
	Elapsed    time.Duration
}

func runInspect(cmd *cobra.Command, a *app, opts inspectOptions) error {
	if opts.samples < 1 {
		return fmt.Errorf("--samples must be >= 1, got %d", opts.samples)
	}
	d, err := a.cfg.Open(a.log)
	if err != nil {
		return err
	}
	if d.Len() == 0 {
		return fmt.Errorf("split %s under %s is empty", a.cfg.Split, a.cfg.DataRoot)
	}

	report, first, err := drawSamples(cmd, d, opts.samples)
	if err != nil {
		return err
	}
	a.log.Info("samples rendered",
		zap.String("dataset", d.Name()),
		zap.Int("samples", report.Samples),
		zap.Ints("sample_dims", report.SampleDims),
		zap.Duration("elapsed", report.Elapsed),
		zap.Duration("per_sample", report.Elapsed/time.Duration(report.Samples)))

	if err := ensureDir(opts.outDir); err != nil {
		return err
	}
	histPath := filepath.Join(opts.outDir, "frame_positions.png")
	title := fmt.Sprintf("Relative frame positions: %s (%d samples)", d.Name(), report.Samples)
	if err := plotPositions(histPath, title, report.Positions); err != nil {
		return fmt.Errorf("failed to plot positions: %w", err)
	}
	a.log.Info("histogram written", zap.String("path", histPath))

	if opts.crops {
		paths, err := saveCrops(d, first, a.cfg.FileRoot, opts.outDir)
		if err != nil {
			return err
		}
		a.log.Info("crops written", zap.Strings("paths", paths))
	}
	return nil
}

// drawSamples draws and renders n samples spread evenly over the split and
// returns the draw of the first one.
func drawSamples(cmd *cobra.Command, d datasets.Dataset, n int) (*inspectReport, *datasets.Draw, error) {
	bar := progressbar.NewOptions(n,
		progressbar.OptionSetDescription("drawing samples"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)
	report := &inspectReport{SampleDims: d.SampleDims()}
	var first *datasets.Draw
	start := time.Now()
	for i := range n {
		if err := cmd.Context().Err(); err != nil {
			return nil, nil, err
		}
		idx := i * d.Len() / n
		if n > d.Len() {
			idx = i % d.Len()
		}
		draw, err := d.Draw(idx)
		if err != nil {
			return nil, nil, err
		}
		if _, _, err := d.Render(draw); err != nil {
			return nil, nil, err
		}
		if first == nil {
			first = draw
		}
		count := d.Index().FrameCounts[idx]
		for _, frame := range draw.Frames {
			report.Positions = append(report.Positions, (float64(frame)-0.5)/float64(count))
		}
		report.Samples++
		_ = bar.Add(1)
	}
	report.Elapsed = time.Since(start)
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	return report, first, nil
}

// saveCrops writes the ten crops of the first frame of draw as PNGs.
func saveCrops(d datasets.Dataset, draw *datasets.Draw, fileRoot, outDir string) ([]string, error) {
	name := d.Index().Names[draw.Index]
	img, err := datasets.LoadFrame(datasets.FramePath(fileRoot, name, draw.Frames[0]))
	if err != nil {
		return nil, err
	}
	var paths []string
	for i, crop := range draw.Pipeline.Crops(img) {
		path := filepath.Join(outDir, fmt.Sprintf("%s_frame%06d_crop%02d.png", name, draw.Frames[0], i))
		if err := imaging.Save(crop, path); err != nil {
			return nil, fmt.Errorf("failed to save crop %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
