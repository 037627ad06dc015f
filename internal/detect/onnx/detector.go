// Package onnx runs the YOLO-OBB card model through OpenCV's DNN module.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"card-scanner/internal/cvmat"
	"card-scanner/internal/detect"
	"card-scanner/internal/monitoring"
	"card-scanner/pkg/colorutil"
)

// Detector is a detect.Detector backed by an ONNX model. Create it with New
// and call Load before use; until Load succeeds Detect returns
// detect.ErrNotReady.
type Detector struct {
	path   string
	config detect.Config
	*detect.Lifecycle

	mu  sync.Mutex // serialises access to net
	net *gocv.Net
}

// New creates an unloaded detector for the model at path.
func New(path string, config detect.Config) *Detector {
	return &Detector{
		path:      path,
		config:    config,
		Lifecycle: detect.NewLifecycle("detector"),
	}
}

// Load reads the model and runs one warm-up inference. Failures move the
// detector into the error state and are also returned.
func (d *Detector) Load(ctx context.Context) error {
	d.Set(detect.StatusLoading, nil)

	if _, err := os.Stat(d.path); err != nil {
		err = fmt.Errorf("failed to open model: %w", err)
		d.Set(detect.StatusError, err)
		return err
	}

	net := gocv.ReadNetFromONNX(d.path)
	if net.Empty() {
		err := fmt.Errorf("failed to load model %s", d.path)
		d.Set(detect.StatusError, err)
		return err
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		d.Set(detect.StatusError, err)
		return fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		d.Set(detect.StatusError, err)
		return fmt.Errorf("failed to set target: %w", err)
	}

	d.mu.Lock()
	if d.net != nil {
		d.net.Close()
	}
	d.net = &net
	d.mu.Unlock()

	d.Set(detect.StatusWarming, nil)
	size := d.config.InputSize
	warm := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(warm.Pix); i += 4 {
		warm.Pix[i], warm.Pix[i+1], warm.Pix[i+2], warm.Pix[i+3] =
			colorutil.LetterboxGray.R, colorutil.LetterboxGray.G, colorutil.LetterboxGray.B, 255
	}
	if _, err := d.infer(ctx, warm); err != nil {
		err = fmt.Errorf("failed to warm up model: %w", err)
		d.Set(detect.StatusError, err)
		return err
	}

	d.Set(detect.StatusReady, nil)
	return nil
}

// Detect implements detect.Detector.
func (d *Detector) Detect(ctx context.Context, frame *image.RGBA) ([]detect.OrientedBox, error) {
	if !d.Ready() {
		return nil, detect.ErrNotReady
	}
	return d.infer(ctx, frame)
}

func (d *Detector) infer(ctx context.Context, frame *image.RGBA) ([]detect.OrientedBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, lb := detect.LetterboxImage(frame, d.config.InputSize)
	mat, err := cvmat.FromRGBA(input)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// 1/255 scaling, BGR -> RGB, no crop
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.config.InputSize, d.config.InputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	if d.net == nil {
		d.mu.Unlock()
		return nil, detect.ErrNotReady
	}
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	raw, err := detect.DecodeOBB(data, d.config.NumClasses, dims[2], d.config.ConfThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	boxes := make([]detect.OrientedBox, 0, len(raw))
	for _, box := range raw {
		boxes = append(boxes, lb.Unletterbox(box))
	}

	kept := detect.SuppressOriented(boxes, d.config.IoUThreshold, d.config.RotatedIoU, d.config.MaxDetections)
	if len(raw) > 0 {
		monitoring.Logf("detector: %d candidates, %d kept", len(raw), len(kept))
	}
	return kept, nil
}

// Precision implements detect.Detector.
func (d *Detector) Precision() detect.Precision {
	return detect.PrecisionModel
}

// Close releases the network and returns the detector to unloaded.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.net != nil {
		err = d.net.Close()
		d.net = nil
	}
	d.Set(detect.StatusUnloaded, nil)
	return err
}
