package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/modelship/go-detect/annotations"
	"github.com/modelship/go-detect/detect"
	"github.com/modelship/go-detect/images"
	"github.com/modelship/go-detect/postprocess"
	"github.com/modelship/go-detect/slicing"
)

// Pipeline runs sliced detection over one image at a time: tile the image,
// detect per tile on a bounded worker pool, remap tile-local boxes into image
// coordinates, and merge cross-tile duplicates.
//
// The detector handle is shared across workers and must be loaded before the
// pipeline is constructed; its lifecycle stays with the caller. All per-run
// state is private to each Run call, so a Pipeline may serve concurrent runs.
type Pipeline struct {
	detector detect.Detector
	cfg      Config
	log      zerolog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a structured logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New builds a pipeline around a loaded detector.
//
// Arguments:
//   - detector: The detection adapter, shared across tile workers.
//   - cfg: The slicing and merge configuration.
//   - opts: Optional settings.
//
// Returns:
//   - *Pipeline: The ready pipeline.
//   - error: A ConfigError when cfg is invalid or detector is nil.
func New(detector detect.Detector, cfg Config, opts ...Option) (*Pipeline, error) {
	if detector == nil {
		return nil, &ConfigError{Field: "detector", Reason: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		detector: detector,
		cfg:      cfg,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Result is the output of one pipeline run.
type Result struct {
	// Annotations is the merged detection set, ordered by class ID then
	// descending confidence. Empty when nothing was found or every tile
	// failed.
	Annotations []annotations.Annotation
	// Failures lists tiles whose detector call failed or timed out.
	Failures []TileFailure
}

// tileOutcome carries one tile's detections or error from a worker back to
// the aggregation step.
type tileOutcome struct {
	dets []detect.RawDetection
	err  error
}

// Run executes sliced detection over one image.
//
// Per-tile failures are recorded in the result, never propagated: a run where
// every tile failed still returns an empty annotation list plus the failure
// list. Fatal errors (invalid image or configuration, cancellation) return an
// error and no partial output. Cancelling ctx lets in-flight tile calls
// finish but discards their results.
//
// Arguments:
//   - ctx: Cancels the run.
//   - img: The validated input image.
//
// Returns:
//   - *Result: Merged annotations plus per-tile failures.
//   - error: images.ErrInvalidImage, a ConfigError, or the context error.
func (p *Pipeline) Run(ctx context.Context, img images.Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	tiles, err := slicing.Grid(img.Width, img.Height, slicing.Options{
		SliceWidth:         p.cfg.SliceWidth,
		SliceHeight:        p.cfg.SliceHeight,
		OverlapWidthRatio:  p.cfg.OverlapWidthRatio,
		OverlapHeightRatio: p.cfg.OverlapHeightRatio,
		IncludeFullPass:    p.cfg.IncludeFullPass,
	})
	if err != nil {
		return nil, err
	}

	workers := p.workers(len(tiles))
	p.log.Debug().
		Int("image_width", img.Width).
		Int("image_height", img.Height).
		Int("tiles", len(tiles)).
		Int("workers", workers).
		Msg("dispatching sliced detection")

	outcomes := make([]tileOutcome, len(tiles))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.processTile(ctx, img, tiles[i])
			}
		}()
	}

dispatch:
	for i := range tiles {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)

	// Join barrier: merge only starts once every dispatched tile finished,
	// so the output does not depend on completion order.
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "run cancelled")
	}

	candidates := make([]annotations.Annotation, 0, len(tiles))
	var failures []TileFailure
	for i, outcome := range outcomes {
		if outcome.err != nil {
			p.log.Warn().
				Err(outcome.err).
				Int("tile_x", tiles[i].X).
				Int("tile_y", tiles[i].Y).
				Msg("tile detection failed")
			failures = append(failures, TileFailure{Tile: tiles[i], Err: outcome.err})
			continue
		}
		for _, d := range outcome.dets {
			if d.Confidence < p.cfg.ConfidenceThreshold {
				continue
			}
			if ann, ok := mapDetection(d, tiles[i], img.Width, img.Height); ok {
				candidates = append(candidates, ann)
			}
		}
	}

	merged := postprocess.Merge(candidates, postprocess.Config{
		IoUThreshold: p.cfg.NMSThreshold,
		ClassAware:   true,
	})

	p.log.Debug().
		Int("candidates", len(candidates)).
		Int("annotations", len(merged)).
		Int("failed_tiles", len(failures)).
		Msg("run complete")

	return &Result{Annotations: merged, Failures: failures}, nil
}

// processTile crops one tile and runs the detector over it.
func (p *Pipeline) processTile(ctx context.Context, img images.Image, tile slicing.Tile) tileOutcome {
	if err := ctx.Err(); err != nil {
		return tileOutcome{err: err}
	}

	region, err := slicing.CropTile(img.Pixels, tile)
	if err != nil {
		return tileOutcome{err: errors.Wrap(err, "crop tile")}
	}

	tctx := ctx
	if p.cfg.TileTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, p.cfg.TileTimeout)
		defer cancel()
	}

	dets, err := p.detector.Detect(tctx, region, p.cfg.ConfidenceThreshold)
	if err != nil {
		return tileOutcome{err: err}
	}
	return tileOutcome{dets: dets}
}

// workers sizes the tile pool: one worker for non-reentrant detectors,
// otherwise MaxConcurrency capped by the tile count, defaulting to the
// available hardware parallelism.
func (p *Pipeline) workers(tiles int) int {
	if !p.detector.Reentrant() {
		return 1
	}
	n := p.cfg.MaxConcurrency
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > tiles {
		n = tiles
	}
	if n < 1 {
		n = 1
	}
	return n
}
