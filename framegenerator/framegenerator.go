package framegenerator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxRemoveWorkers = 100

// Extractor cuts a panorama into fixed size frames, one per playhead step.
type Extractor struct {
	cfg     Config
	backend ImageBackend
	logger  *zap.Logger
}

func NewExtractor(cfg Config, backend ImageBackend, logger *zap.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PixelsPerSecond == 0 {
		cfg.PixelsPerSecond = cfg.StepPixels * cfg.FrameRate
	}
	return &Extractor{cfg: cfg, backend: backend, logger: logger}, nil
}

func (e *Extractor) Config() Config { return e.cfg }

// Load opens the panorama and checks it can be cut at the configured resolution.
func (e *Extractor) Load(path string) (*Panorama, error) {
	c, err := e.backend.Open(path)
	if err != nil {
		return nil, err
	}

	if c.Grayscale() {
		return nil, fmt.Errorf("%w: %s is grayscale", ErrColorMode, path)
	}

	b := c.Bounds()
	p := &Panorama{Path: path, Canvas: c, Width: b.Dx(), Height: b.Dy()}

	if p.Height != e.cfg.FrameHeight() {
		return nil, fmt.Errorf("%w: %s is %d px high, frames are %d px", ErrWrongHeight, path, p.Height, e.cfg.FrameHeight())
	}
	if p.Width < e.cfg.FrameWidth() {
		return nil, fmt.Errorf("%w: %s is %d px wide, frames are %d px", ErrPanoramaTooNarrow, path, p.Width, e.cfg.FrameWidth())
	}
	if n := FrameCount(p.Width, e.cfg.StepPixels); n > maxFrameCount {
		return nil, fmt.Errorf("%w: %d frames", ErrTooManyFrames, n)
	}

	e.logger.Info("panorama loaded",
		zap.String("name", getFileNameWithoutExtension(path)),
		zap.Int("width", p.Width),
		zap.Int("height", p.Height),
	)
	return p, nil
}

func (e *Extractor) Plan(p *Panorama) Plan {
	n := FrameCount(p.Width, e.cfg.StepPixels)
	return Plan{
		PanoramaWidth:   p.Width,
		StepPixels:      e.cfg.StepPixels,
		FrameCount:      n,
		FrameRate:       e.cfg.FrameRate,
		PixelsPerSecond: e.cfg.PixelsPerSecond,
		Duration:        float64(n) / float64(e.cfg.FrameRate),
		FrameWidth:      e.cfg.FrameWidth(),
		FrameHeight:     e.cfg.FrameHeight(),
	}
}

// RenderFrame crops the frame with the given index out of p and draws the cursor on it.
// p itself is never drawn on.
func (e *Extractor) RenderFrame(p *Panorama, index int) (Canvas, Window, error) {
	if index < 0 || index >= FrameCount(p.Width, e.cfg.StepPixels) {
		return nil, Window{}, fmt.Errorf("%w: frame %d", ErrPlayheadOutOfRange, index)
	}

	w, err := ComputeWindow(index*e.cfg.StepPixels, p.Width, e.cfg.FrameWidth())
	if err != nil {
		return nil, Window{}, err
	}

	c := e.backend.Crop(p.Canvas, w.Box(e.cfg.FrameHeight()))
	if err := annotateFrame(e.backend, c, index, w, e.cfg); err != nil {
		return nil, Window{}, fmt.Errorf("annotate frame %d: %w", index, err)
	}
	return c, w, nil
}

func (e *Extractor) createFrame(p *Panorama, index int) error {
	start := time.Now()

	c, _, err := e.RenderFrame(p, index)
	if err != nil {
		FrameFailuresTotal.WithLabelValues("render").Inc()
		return err
	}

	path := framePath(e.cfg.OutputDir, index, e.cfg.Format)
	if err := e.backend.Save(c, path); err != nil {
		FrameFailuresTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("save frame %s: %w", path, err)
	}

	FramesRenderedTotal.Inc()
	FrameRenderDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Extract writes every frame of p into the output directory. Frames are
// rendered by up to cfg.Workers goroutines; names only depend on the frame index.
func (e *Extractor) Extract(ctx context.Context, p *Panorama) (*Result, error) {
	plan := e.Plan(p)
	res := &Result{Plan: plan}

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create frames dir: %w", err)
	}
	if e.cfg.CleanOutput {
		if err := removeFrames(ctx, e.cfg.OutputDir, e.cfg.Format); err != nil {
			return res, fmt.Errorf("clean frames dir: %w", err)
		}
	}

	e.logger.Info("extracting frames",
		zap.Int("frames", plan.FrameCount),
		zap.Int("step", plan.StepPixels),
		zap.Int("fps", plan.FrameRate),
		zap.Float64("duration_seconds", plan.Duration),
		zap.Int("workers", e.cfg.Workers),
		zap.String("output_dir", e.cfg.OutputDir),
	)

	var (
		finishedFrames atomic.Uint64
		startTime      = time.Now()
		mu             sync.Mutex
		missing        []int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for i := 0; i < plan.FrameCount; i++ {
		if gctx.Err() != nil {
			break
		}

		i := i
		g.Go(func() error {
			if err := e.createFrame(p, i); err != nil {
				if !e.cfg.ContinueOnError {
					return err
				}
				e.logger.Error("frame failed", zap.Int("frame", i), zap.Error(err))
				mu.Lock()
				missing = append(missing, i)
				mu.Unlock()
				return nil
			}

			f := finishedFrames.Add(1)
			if i%e.cfg.ProgressInterval == 0 {
				e.logger.Info("crop",
					zap.String("frame", FrameName(i, e.cfg.Format)),
					zap.Uint64("finished", f),
					zap.Int("total", plan.FrameCount),
					zap.Float64("avg_seconds_per_frame", time.Since(startTime).Seconds()/float64(f)),
				)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	res.Written = int(finishedFrames.Load())
	slices.Sort(missing)
	res.Missing = missing

	if err != nil {
		return res, err
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("%d of %d frames failed, missing indices %v", len(missing), plan.FrameCount, missing)
	}

	e.logger.Info("frames extracted",
		zap.Int("count", res.Written),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return res, nil
}

// removeFrames deletes frames left in dir by an earlier run.
func removeFrames(ctx context.Context, dir string, format string) error {
	files, err := filepath.Glob(framesGlob(dir, format))
	if err != nil {
		return err
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxRemoveWorkers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			return os.Remove(f)
		})
	}
	return g.Wait()
}
