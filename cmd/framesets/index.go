package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Noofbiz/actionframes/datasets"
)

type indexOptions struct {
	manifest    string
	classes     int
	checkFrames bool
}

func newIndexCmd(a *app) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the split index artifacts from a manifest CSV",
		Long: `Reads a manifest with the columns name, class, nFrames and set (1 = train,
2 = test; training rows first) and writes the name, frame-count, label and
class artifacts of both splits under --data-root.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "manifest CSV (required)")
	cmd.Flags().IntVar(&opts.classes, "classes", 0, "number of classes (0 = highest class in the manifest)")
	cmd.Flags().BoolVar(&opts.checkFrames, "check-frames", false, "verify that the first and last frame of every video exist under --file-root")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func runIndex(cmd *cobra.Command, a *app, opts indexOptions) error {
	entries, err := datasets.ReadManifest(opts.manifest)
	if err != nil {
		return err
	}
	classes := opts.classes
	if classes == 0 {
		for _, e := range entries {
			classes = max(classes, e.Class)
		}
	}
	a.log.Info("manifest read", zap.String("path", opts.manifest), zap.Int("videos", len(entries)), zap.Int("classes", classes))

	if opts.checkFrames {
		if err := checkFrames(cmd, a, entries); err != nil {
			return err
		}
	}

	train, test, err := datasets.BuildSplitTables(entries, classes)
	if err != nil {
		return err
	}
	for _, s := range []struct {
		split  datasets.Split
		tables *datasets.SplitTables
	}{{datasets.SplitTrain, train}, {datasets.SplitTest, test}} {
		if err := datasets.WriteSplitIndex(a.cfg.DataRoot, s.split, s.tables); err != nil {
			return err
		}
		a.log.Info("split index written",
			zap.String("split", string(s.split)),
			zap.Int("videos", s.tables.Len()),
			zap.String("data_root", a.cfg.DataRoot))
	}
	return nil
}

// checkFrames stats the first and last frame of every entry.
func checkFrames(cmd *cobra.Command, a *app, entries []datasets.ManifestEntry) error {
	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("checking frames"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)
	missing := 0
	for _, e := range entries {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		for _, frame := range []int{1, e.FrameCount} {
			path := datasets.FramePath(a.cfg.FileRoot, e.Name, frame)
			if _, err := os.Stat(path); err != nil {
				missing++
				a.log.Warn("frame missing", zap.String("video", e.Name), zap.String("path", path))
			}
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())
	if missing > 0 {
		return fmt.Errorf("%d frames missing under %s: %w", missing, a.cfg.FileRoot, datasets.ErrFrameUnavailable)
	}
	return nil
}
