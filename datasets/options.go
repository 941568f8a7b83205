package datasets

import (
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Mode selects the augmentation policy.
type Mode int

const (
	// ModeTrain draws jittered crop sizes for every sample.
	ModeTrain Mode = iota
	// ModeEval uses a fixed ten-crop.
	ModeEval
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeEval:
		return "eval"
	}
	return "unknown"
}

// modeForSplit is the default mode: training data is augmented, test data
// is not.
func modeForSplit(s Split) Mode {
	if s == SplitTrain {
		return ModeTrain
	}
	return ModeEval
}

type options struct {
	imageSize int
	rng       *rand.Rand
	logger    *zap.Logger
	mode      *Mode
	batchSize int
	workers   int
	infinite  bool
}

func defaultOptions() options {
	return options{
		imageSize: DefaultImageSize,
		batchSize: 32,
		workers:   runtime.NumCPU(),
	}
}

// Option configures a dataset at construction.
type Option func(*options)

// WithImageSize sets the side of the square output crops. Default 224.
func WithImageSize(size int) Option {
	return func(o *options) { o.imageSize = size }
}

// WithRand sets the random source used for frame and crop-size draws.
// Pass a seeded generator for reproducible sampling. Default is seeded
// from the clock.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMode overrides the mode implied by the split.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = &m }
}

// WithBatchSize sets the number of samples returned by each Yield call.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithWorkers sets how many samples Batch and Yield load concurrently.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithInfinite makes Yield loop over the data forever instead of returning
// io.EOF at the end of an epoch.
func WithInfinite(infinite bool) Option {
	return func(o *options) { o.infinite = infinite }
}

func (o *options) fill() {
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}
