package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelship/go-detect/annotations"
	"github.com/modelship/go-detect/detect"
	imgs "github.com/modelship/go-detect/images"
)

// regionID identifies a detector call by the origin and extent of the region
// it was handed. Origins are recovered from pixel values, so the mock below
// can tell tiles apart without knowing anything about the scheduler.
type regionID struct {
	X, Y, W, H int
}

// originEncodedImage paints every pixel with its own coordinates (R = x/8,
// G = y/8), letting a cropped region report where it came from. All test
// images keep tile origins divisible by 8 so the encoding is exact.
func originEncodedImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x / 8), G: uint8(y / 8), A: 255})
		}
	}
	return img
}

func identifyRegion(region image.Image) regionID {
	bounds := region.Bounds()
	c := color.NRGBAModel.Convert(region.At(bounds.Min.X, bounds.Min.Y)).(color.NRGBA)
	return regionID{X: int(c.R) * 8, Y: int(c.G) * 8, W: bounds.Dx(), H: bounds.Dy()}
}

// mockDetector serves canned detections keyed by region identity and tracks
// concurrency so tests can assert pool behavior.
type mockDetector struct {
	detections  map[regionID][]detect.RawDetection
	failures    map[regionID]error
	delay       time.Duration
	jitter      bool
	reentrant   bool
	calls       int32
	inFlight    int32
	maxInFlight int32
}

func (m *mockDetector) Detect(ctx context.Context, region image.Image, threshold float32) ([]detect.RawDetection, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&m.maxInFlight, max, cur) {
			break
		}
	}

	delay := m.delay
	if m.jitter {
		delay = time.Duration(rand.Intn(3)) * time.Millisecond
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	id := identifyRegion(region)
	if err := m.failures[id]; err != nil {
		return nil, err
	}
	return m.detections[id], nil
}

func (m *mockDetector) Reentrant() bool { return m.reentrant }

func hdConfig() Config {
	return Config{
		SliceWidth:          640,
		SliceHeight:         640,
		OverlapWidthRatio:   0.2,
		OverlapHeightRatio:  0.2,
		ConfidenceThreshold: 0.3,
		NMSThreshold:        0.45,
		MaxConcurrency:      4,
	}
}

func hdImage(t *testing.T) imgs.Image {
	t.Helper()
	img, err := imgs.NewImage(originEncodedImage(1280, 720))
	require.NoError(t, err)
	return img
}

// The 1280x720 / 640 / 0.2 grid tiles at x {0, 512, 640} and y {0, 80}.
func tileRegion(x, y int) regionID { return regionID{X: x, Y: y, W: 640, H: 640} }

func TestRunMapsDetectionsIntoImageCoordinates(t *testing.T) {
	detector := &mockDetector{
		reentrant: true,
		detections: map[regionID][]detect.RawDetection{
			tileRegion(0, 0): {
				{ClassID: 2, ClassName: "car", Confidence: 0.9, Box: imgs.Rect{X1: 100, Y1: 100, X2: 200, Y2: 180}},
			},
			tileRegion(640, 80): {
				{ClassID: 0, ClassName: "person", Confidence: 0.8, Box: imgs.Rect{X1: 50, Y1: 10, X2: 120, Y2: 200}},
			},
		},
	}

	p, err := New(detector, hdConfig())
	require.NoError(t, err)

	result, err := p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Annotations, 2)

	// Ordered by class ID.
	person, car := result.Annotations[0], result.Annotations[1]
	assert.Equal(t, "person", person.ClassName)
	assert.Equal(t, imgs.Rect{X1: 690, Y1: 90, X2: 760, Y2: 280}, person.Box)
	assert.Equal(t, annotations.SourceTile, person.Source)
	assert.Equal(t, float32(70*190), person.Area)

	assert.Equal(t, "car", car.ClassName)
	assert.Equal(t, imgs.Rect{X1: 100, Y1: 100, X2: 200, Y2: 180}, car.Box)
	assert.Equal(t, float32(0.9), car.Confidence)
}

func TestRunRecordsFailedTileAndKeepsOthers(t *testing.T) {
	detectorErr := errors.New("inference session crashed")
	detector := &mockDetector{
		reentrant: true,
		detections: map[regionID][]detect.RawDetection{
			tileRegion(0, 0): {
				{ClassID: 2, ClassName: "car", Confidence: 0.9, Box: imgs.Rect{X1: 10, Y1: 10, X2: 60, Y2: 60}},
			},
		},
		failures: map[regionID]error{
			tileRegion(512, 80): detectorErr,
		},
	}

	p, err := New(detector, hdConfig())
	require.NoError(t, err)

	result, err := p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 512, result.Failures[0].Tile.X)
	assert.Equal(t, 80, result.Failures[0].Tile.Y)
	assert.ErrorIs(t, result.Failures[0], detectorErr)

	require.Len(t, result.Annotations, 1)
	assert.Equal(t, "car", result.Annotations[0].ClassName)
}

func TestRunAllTilesFailedReturnsEmptyNotError(t *testing.T) {
	detectorErr := errors.New("model not loaded")
	detector := &mockDetector{
		reentrant: true,
		failures: map[regionID]error{
			{X: 0, Y: 0, W: 300, H: 200}: detectorErr,
		},
	}

	img, err := imgs.NewImage(originEncodedImage(300, 200))
	require.NoError(t, err)

	p, err := New(detector, hdConfig())
	require.NoError(t, err)

	result, err := p.Run(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, result.Annotations)
	require.Len(t, result.Failures, 1)
	assert.ErrorIs(t, result.Failures[0], detectorErr)
}

func TestRunDropsLowConfidenceBeforeMerge(t *testing.T) {
	detector := &mockDetector{
		reentrant: true,
		detections: map[regionID][]detect.RawDetection{
			tileRegion(0, 0): {
				{ClassID: 2, ClassName: "car", Confidence: 0.4, Box: imgs.Rect{X1: 10, Y1: 10, X2: 60, Y2: 60}},
				{ClassID: 2, ClassName: "car", Confidence: 0.6, Box: imgs.Rect{X1: 200, Y1: 200, X2: 260, Y2: 260}},
			},
		},
	}

	cfg := hdConfig()
	cfg.ConfidenceThreshold = 0.5
	p, err := New(detector, cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	require.Len(t, result.Annotations, 1)
	assert.Equal(t, float32(0.6), result.Annotations[0].Confidence)
}

func TestRunClipsBoxesToImageBounds(t *testing.T) {
	detector := &mockDetector{
		reentrant: true,
		detections: map[regionID][]detect.RawDetection{
			// Boxes poking past tile and image edges.
			tileRegion(640, 80): {
				{ClassID: 1, ClassName: "dog", Confidence: 0.9, Box: imgs.Rect{X1: 600, Y1: 600, X2: 700, Y2: 700}},
				{ClassID: 1, ClassName: "dog", Confidence: 0.8, Box: imgs.Rect{X1: -20, Y1: -90, X2: 40, Y2: 30}},
				// Entirely outside the image after clipping: dropped.
				{ClassID: 1, ClassName: "dog", Confidence: 0.7, Box: imgs.Rect{X1: 700, Y1: 100, X2: 800, Y2: 200}},
			},
		},
	}

	p, err := New(detector, hdConfig())
	require.NoError(t, err)

	result, err := p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	require.Len(t, result.Annotations, 2)

	for _, ann := range result.Annotations {
		assert.GreaterOrEqual(t, ann.Box.X1, float32(0))
		assert.GreaterOrEqual(t, ann.Box.Y1, float32(0))
		assert.LessOrEqual(t, ann.Box.X2, float32(1280))
		assert.LessOrEqual(t, ann.Box.Y2, float32(720))
		assert.Less(t, ann.Box.X1, ann.Box.X2)
		assert.Less(t, ann.Box.Y1, ann.Box.Y2)
		assert.Positive(t, ann.Area)
	}
}

func TestRunFullPassCatchesLargeObjects(t *testing.T) {
	// 1024x768 with 512 slices at 0.25 overlap tiles at x {0, 384, 512} and
	// y {0, 256}; the full pass sees the whole frame.
	detector := &mockDetector{
		reentrant: true,
		detections: map[regionID][]detect.RawDetection{
			{X: 0, Y: 0, W: 512, H: 512}: {
				{ClassID: 2, ClassName: "car", Confidence: 0.85, Box: imgs.Rect{X1: 10, Y1: 10, X2: 120, Y2: 90}},
			},
			{X: 0, Y: 0, W: 1024, H: 768}: {
				{ClassID: 5, ClassName: "bus", Confidence: 0.9, Box: imgs.Rect{X1: 100, Y1: 100, X2: 900, Y2: 700}},
			},
		},
	}

	cfg := Config{
		SliceWidth:          512,
		SliceHeight:         512,
		OverlapWidthRatio:   0.25,
		OverlapHeightRatio:  0.25,
		ConfidenceThreshold: 0.3,
		NMSThreshold:        0.45,
		IncludeFullPass:     true,
	}
	p, err := New(detector, cfg)
	require.NoError(t, err)

	img, err := imgs.NewImage(originEncodedImage(1024, 768))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, result.Annotations, 2)

	bySource := map[annotations.Source]annotations.Annotation{}
	for _, ann := range result.Annotations {
		bySource[ann.Source] = ann
	}
	assert.Equal(t, "car", bySource[annotations.SourceTile].ClassName)
	assert.Equal(t, "bus", bySource[annotations.SourceFull].ClassName)
}

func TestRunDeterministicUnderCompletionOrder(t *testing.T) {
	detections := map[regionID][]detect.RawDetection{
		tileRegion(0, 0): {
			{ClassID: 2, ClassName: "car", Confidence: 0.9, Box: imgs.Rect{X1: 500, Y1: 100, X2: 620, Y2: 200}},
			{ClassID: 0, ClassName: "person", Confidence: 0.7, Box: imgs.Rect{X1: 30, Y1: 30, X2: 80, Y2: 150}},
		},
		// Same car seen from the neighboring tile with equal confidence.
		tileRegion(512, 0): {
			{ClassID: 2, ClassName: "car", Confidence: 0.9, Box: imgs.Rect{X1: 0, Y1: 100, X2: 108, Y2: 200}},
		},
		tileRegion(640, 80): {
			{ClassID: 0, ClassName: "person", Confidence: 0.7, Box: imgs.Rect{X1: 300, Y1: 300, X2: 350, Y2: 420}},
		},
	}

	var baseline []annotations.Annotation
	for run := 0; run < 5; run++ {
		detector := &mockDetector{reentrant: true, jitter: true, detections: detections}
		p, err := New(detector, hdConfig())
		require.NoError(t, err)

		result, err := p.Run(context.Background(), hdImage(t))
		require.NoError(t, err)

		if baseline == nil {
			baseline = result.Annotations
			continue
		}
		assert.Equal(t, baseline, result.Annotations, "run %d diverged", run)
	}

	// The duplicated car collapsed to a single box.
	cars := 0
	for _, ann := range baseline {
		if ann.ClassName == "car" {
			cars++
		}
	}
	assert.Equal(t, 1, cars)
}

func TestRunCancellation(t *testing.T) {
	detector := &mockDetector{reentrant: true, delay: 250 * time.Millisecond}

	p, err := New(detector, hdConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := p.Run(ctx, hdImage(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestRunTileTimeoutRecordedAsFailure(t *testing.T) {
	detector := &mockDetector{
		reentrant: true,
		delay:     100 * time.Millisecond,
	}

	cfg := hdConfig()
	cfg.TileTimeout = 10 * time.Millisecond
	p, err := New(detector, cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	assert.Empty(t, result.Annotations)
	require.Len(t, result.Failures, 6)
	for _, f := range result.Failures {
		assert.ErrorIs(t, f, context.DeadlineExceeded)
	}
}

func TestRunSerializesNonReentrantDetector(t *testing.T) {
	detector := &mockDetector{reentrant: false, delay: time.Millisecond}

	cfg := hdConfig()
	cfg.MaxConcurrency = 8
	p, err := New(detector, cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	assert.Equal(t, int32(6), atomic.LoadInt32(&detector.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&detector.maxInFlight))
}

func TestRunBoundsConcurrency(t *testing.T) {
	detector := &mockDetector{reentrant: true, delay: 5 * time.Millisecond}

	cfg := hdConfig()
	cfg.MaxConcurrency = 2
	p, err := New(detector, cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), hdImage(t))
	require.NoError(t, err)
	assert.Equal(t, int32(6), atomic.LoadInt32(&detector.calls))
	assert.LessOrEqual(t, atomic.LoadInt32(&detector.maxInFlight), int32(2))
}

func TestRunRejectsInvalidImage(t *testing.T) {
	p, err := New(&mockDetector{reentrant: true}, hdConfig())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), imgs.Image{})
	require.Error(t, err)
	assert.ErrorIs(t, err, imgs.ErrInvalidImage)
}

func TestNewValidation(t *testing.T) {
	t.Run("nil detector", func(t *testing.T) {
		_, err := New(nil, hdConfig())
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "detector", cfgErr.Field)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := hdConfig()
		cfg.NMSThreshold = 1.5
		_, err := New(&mockDetector{}, cfg)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "nms_threshold", cfgErr.Field)
	})
}
