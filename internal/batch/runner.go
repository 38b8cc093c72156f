// Package batch discovers image files and drives each one through
// normalization and QR detection, producing one Outcome per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/normalize"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner processes directories of images. It is safe for concurrent use.
type Runner struct {
	cfg        Config
	normalizer ImageNormalizer
	detector   barcode.Detector
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// ImageNormalizer is the normalization step of the per-file pipeline.
type ImageNormalizer interface {
	Normalize(img image.Image) (*normalize.Result, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithNormalizer replaces the normalizer built from Config.Normalize.
func WithNormalizer(n ImageNormalizer) Option {
	return func(r *Runner) {
		if n != nil {
			r.normalizer = n
		}
	}
}

// WithMetrics records every outcome on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner validates cfg and builds a runner around detector.
func NewRunner(cfg Config, detector barcode.Detector, opts ...Option) (*Runner, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	n, err := normalize.New(cfg.Normalize)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:        cfg,
		normalizer: n,
		detector:   detector,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the runner configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run processes every file in dir whose extension matches one of patterns
// (the configured patterns when nil). emit, when non-nil, receives outcomes in
// enumeration order as soon as each is available. Per-file failures never
// abort the run; only an inaccessible directory or a cancelled context does.
func (r *Runner) Run(ctx context.Context, dir string, patterns []string, emit func(Outcome)) (*Result, error) {
	if patterns == nil {
		patterns = r.cfg.Patterns
	}

	files, err := discoverImageFiles(dir, patterns, r.cfg.ExcludePatterns, r.cfg.Recursive, r.cfg.Sort)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	logger.Info("batch started", "dir", dir, "files", len(files), "workers", r.cfg.Workers)

	res := &Result{
		RunID:    runID,
		Dir:      dir,
		Outcomes: make([]Outcome, 0, len(files)),
		Workers:  r.cfg.Workers,
	}
	collect := func(o Outcome) {
		res.Outcomes = append(res.Outcomes, o)
		if emit != nil {
			emit(o)
		}
	}

	start := time.Now()
	if r.cfg.Workers <= 1 || len(files) <= 1 {
		err = r.runSequential(ctx, logger, dir, files, collect)
	} else {
		err = r.runParallel(ctx, logger, dir, files, collect)
	}
	res.Duration = time.Since(start)

	if err != nil {
		logger.Warn("batch interrupted", "processed", len(res.Outcomes), "error", err)
		return res, err
	}

	stats := res.Stats()
	logger.Info("batch finished",
		"files", stats.Total,
		"decoded", stats.Decoded,
		"failed", stats.Failed,
		"duration", res.Duration)
	return res, nil
}

func (r *Runner) runSequential(ctx context.Context, logger *slog.Logger, root string, files []string, emit func(Outcome)) error {
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(r.processFile(ctx, logger, i, root, path))
	}
	return nil
}

// runParallel fans files out to a bounded errgroup and re-sequences the
// outcomes so emit still sees enumeration order. A run that produced an
// outcome for every file is complete even if ctx was cancelled afterwards.
func (r *Runner) runParallel(ctx context.Context, logger *slog.Logger, root string, files []string, emit func(Outcome)) error {
	results := make(chan Outcome, len(files))
	done := make(chan struct{})
	next := 0

	go func() {
		defer close(done)
		pending := make(map[int]Outcome)
		for o := range results {
			pending[o.Index] = o
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				emit(ready)
				next++
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results <- r.processFile(gctx, logger, i, root, path)
			return nil
		})
	}
	err := g.Wait()
	close(results)
	<-done

	if next == len(files) {
		return nil
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// ProcessFile runs the full per-file pipeline outside of a batch.
func (r *Runner) ProcessFile(ctx context.Context, path string) Outcome {
	return r.processFile(ctx, r.logger, 0, filepath.Dir(path), path)
}

// processFile loads, normalizes, optionally writes the debug image and
// detects. Every failure is captured in the returned Outcome. The debug image
// keeps path's location relative to root, so equal base names in different
// subdirectories do not collide.
func (r *Runner) processFile(ctx context.Context, logger *slog.Logger, index int, root, path string) Outcome {
	start := time.Now()
	out := r.pipeline(ctx, logger, index, root, path)
	out.Duration = time.Since(start)

	r.metrics.Observe(string(out.Cause), out.Normalized, out.Coverage, out.Inverted, out.Duration)

	if out.Decoded {
		logger.Debug("file decoded",
			"file", path, "coverage", out.Coverage, "inverted", out.Inverted, "duration", out.Duration)
	} else {
		logger.Warn("file not decoded",
			"file", path, "cause", string(out.Cause), "error", out.ErrorString(), "duration", out.Duration)
	}
	return out
}

func (r *Runner) pipeline(ctx context.Context, logger *slog.Logger, index int, root, path string) Outcome {
	out := Outcome{Index: index, Path: path}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		out.Cause, out.Err = CauseLoadError, err
		return out
	}

	norm, err := r.normalize(img)
	if err != nil {
		out.Cause, out.Err = CauseNormalizationError, err
		return out
	}
	out.Normalized = true
	out.Coverage = norm.Coverage
	out.Inverted = norm.Inverted

	if r.cfg.WriteDebug {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		debugPath, err := utils.SaveDebugImage(r.cfg.OutputDir, rel, norm.Image)
		if err != nil {
			logger.Warn("failed to write debug image", "file", path, "error", err)
		} else {
			out.DebugPath = debugPath
		}
	}

	text, err := r.detect(ctx, norm.Image)
	switch {
	case err == nil && text != "":
		out.Decoded, out.Value = true, text
	case err == nil:
		out.Cause, out.Err = CauseNoCodeFound, barcode.ErrNotFound
	case errors.Is(err, barcode.ErrNotFound):
		out.Cause, out.Err = CauseNoCodeFound, err
	default:
		out.Cause, out.Err = CauseDecodeError, err
	}
	return out
}

// normalize converts a normalizer panic into a NormalizationError.
func (r *Runner) normalize(img image.Image) (res *normalize.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("normalizer panic: %v", p)
		}
	}()
	return r.normalizer.Normalize(img)
}

// detect converts a detector panic into a DecodeError.
func (r *Runner) detect(ctx context.Context, img image.Image) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("detector panic: %v", p)
		}
	}()
	return r.detector.Detect(ctx, img)
}
