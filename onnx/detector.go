package onnx

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/modelship/go-detect/detect"
)

// initEnvironment runs once per process; onnxruntime keeps global state.
var initEnvironment sync.Once

// Detector runs a YOLOX model through onnxruntime. It implements
// detect.Detector.
//
// The session owns a single pre-allocated input/output tensor pair, so the
// detector is not reentrant: it reports that through Reentrant and the
// pipeline serializes calls accordingly. Load once, share the handle, and
// Close it when the owning service shuts down.
type Detector struct {
	cfg     Config
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	classes int
	closed  bool
}

// NewDetector loads the model and prepares a reusable inference session.
//
// Arguments:
//   - cfg: Model location and runtime options.
//
// Returns:
//   - *Detector: The loaded adapter.
//   - error: A missing runtime library, a missing model file, or a session
//     construction failure.
func NewDetector(cfg Config) (*Detector, error) {
	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = sharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}

	var initErr error
	initEnvironment.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "initialize onnxruntime environment")
	}

	numClasses := len(cfg.classNames())

	w, h := cfg.inputWidth(), cfg.inputHeight()
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(h), int64(w)))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	// One prediction row per grid cell across the YOLOX stride pyramid.
	preds := int64(numPredictions(w, h))
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, preds, int64(5+numClasses)))
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	}
	if cfg.InterOpThreads > 0 {
		options.SetInterOpNumThreads(cfg.InterOpThreads)
	}
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "create onnxruntime session")
	}

	return &Detector{
		cfg:     cfg,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		classes: numClasses,
	}, nil
}

// Detect runs inference over one pixel region.
//
// The region is resized to the model input, inferred, and the raw output
// decoded back into region-local boxes. Detections scoring below threshold
// are dropped, and near-identical boxes are suppressed before returning.
func (d *Detector) Detect(ctx context.Context, region image.Image, threshold float32) ([]detect.RawDetection, error) {
	if region == nil {
		return nil, errors.New("nil region")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("detector is closed")
	}

	if err := fillInput(region, d.input.GetData(), d.cfg.inputWidth(), d.cfg.inputHeight()); err != nil {
		return nil, errors.Wrap(err, "prepare input")
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run inference")
	}
	// The session itself cannot be interrupted; surface a timeout that fired
	// mid-run rather than returning stale results.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := region.Bounds()
	dets := decodeOutput(d.output.GetData(), decodeParams{
		classes:      d.classes,
		inputWidth:   d.cfg.inputWidth(),
		inputHeight:  d.cfg.inputHeight(),
		regionWidth:  bounds.Dx(),
		regionHeight: bounds.Dy(),
		threshold:    threshold,
		className:    d.cfg.className,
	})
	return suppress(dets, d.cfg.nmsThreshold()), nil
}

// Reentrant reports false: the session's tensor pair is shared state.
func (d *Detector) Reentrant() bool { return false }

// Close releases the session and its tensors.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return nil
}

// numPredictions is the row count of the decoded YOLOX head: one anchor per
// grid cell at strides 8, 16, and 32.
func numPredictions(inputWidth, inputHeight int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		total += (inputWidth / stride) * (inputHeight / stride)
	}
	return total
}
