package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Noofbiz/actionframes/config"
	"github.com/Noofbiz/actionframes/logger"
	"github.com/Noofbiz/actionframes/metrics"
)

// Version is the application version.
const Version = "0.1.0"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
	metrics    *http.Server

	// flag values, applied over cfg when set
	logLevel     string
	metricsAddr  string
	dataRoot     string
	fileRoot     string
	split        string
	variant      string
	imageSize    int
	segmentCount int
	seed         int64
	batchSize    int
	workers      int
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "framesets",
		Short:         "Build and inspect sampled video-frame datasets",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML config file overlaying the ACTIONFRAMES_* environment")
	f.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	f.StringVar(&a.dataRoot, "data-root", "data", "directory holding the split index artifacts")
	f.StringVar(&a.fileRoot, "file-root", "frames", "directory holding one sub-directory of frames per video")
	f.StringVar(&a.split, "split", "train", "split to load (train or test)")
	f.StringVar(&a.variant, "variant", config.VariantFrames, "dataset variant (frames or segments)")
	f.IntVar(&a.imageSize, "image-size", 224, "side of the output crops")
	f.IntVar(&a.segmentCount, "segments", 3, "number of temporal segments for the segments variant")
	f.Int64Var(&a.seed, "seed", 0, "random seed (unset seeds from the clock)")
	f.IntVar(&a.batchSize, "batch-size", 32, "batch size")
	f.IntVar(&a.workers, "workers", 0, "concurrent sample loads (0 = NumCPU)")

	root.AddCommand(newIndexCmd(a), newInspectCmd(a))
	return root
}

// setup loads the configuration, applies explicitly set flags over it and
// builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if f.Changed("data-root") {
		cfg.DataRoot = a.dataRoot
	}
	if f.Changed("file-root") {
		cfg.FileRoot = a.fileRoot
	}
	if f.Changed("split") {
		cfg.Split = a.split
	}
	if f.Changed("variant") {
		cfg.Variant = a.variant
	}
	if f.Changed("image-size") {
		cfg.ImageSize = a.imageSize
	}
	if f.Changed("segments") {
		cfg.SegmentCount = a.segmentCount
	}
	if f.Changed("seed") {
		cfg.Seed = &a.seed
	}
	if f.Changed("batch-size") {
		cfg.BatchSize = a.batchSize
	}
	if f.Changed("workers") {
		cfg.Workers = a.workers
	}
	a.cfg = cfg

	a.log, err = logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.StartServer(cfg.MetricsAddr, a.log)
	}
	return nil
}

func (a *app) teardown() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
