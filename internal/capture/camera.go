// Package capture reads frames from a camera or video stream.
package capture

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"card-scanner/internal/cvmat"
	"card-scanner/internal/scan"
)

// Camera is a scan.FrameSource over an OpenCV video capture.
type Camera struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// Open opens a capture device. A numeric device selects a local camera by
// index; anything else is passed to OpenCV as a file or stream URL.
// The caller must Close the camera.
func Open(device string) (*Camera, error) {
	var source interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		source = id
	}

	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %q is not opened", device)
	}

	return &Camera{capture: capture, frame: gocv.NewMat()}, nil
}

// Frame implements scan.FrameSource. A failed or empty read returns
// scan.ErrNoFrame so the controller simply tries again next tick.
func (c *Camera) Frame(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.CaptureFrame()
}

// CaptureFrame reads the next frame.
func (c *Camera) CaptureFrame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, fmt.Errorf("camera closed")
	}
	if !c.capture.Read(&c.frame) || c.frame.Empty() {
		return nil, scan.ErrNoFrame
	}
	return cvmat.ToRGBA(c.frame)
}

// Dimensions returns the capture frame size.
func (c *Camera) Dimensions() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return 0, 0
	}
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return nil
	}
	c.frame.Close()
	err := c.capture.Close()
	c.capture = nil
	return err
}
