// Package camera - OpenCV capture and drawing helpers. Everything here needs
// the gocv native libraries.
package camera

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/camdetect/frames"
)

// Webcam reads frames from an OpenCV capture device and converts them to
// RGB.
type Webcam struct {
	deviceID int
	capture  *gocv.VideoCapture

	mu     sync.Mutex
	bgr    gocv.Mat
	rgb    gocv.Mat
	id     int
	width  int
	height int
}

// OpenWebcam opens a capture device.
//
// Arguments:
//   - deviceID: The OpenCV device index.
//
// Returns:
//   - *Webcam: The open camera.
//   - error: If the device cannot be opened.
func OpenWebcam(deviceID int) (*Webcam, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture device %d", deviceID)
	}
	return &Webcam{
		deviceID: deviceID,
		capture:  capture,
		bgr:      gocv.NewMat(),
		rgb:      gocv.NewMat(),
		width:    int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:   int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Next reads one frame. Empty reads are retried until ctx is done.
func (w *Webcam) Next(ctx context.Context) (frames.Frame, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return frames.Frame{}, err
		}
		if ok := w.capture.Read(&w.bgr); !ok {
			return frames.Frame{}, errors.Errorf("cannot read device %d", w.deviceID)
		}
		if !w.bgr.Empty() {
			break
		}
	}

	if err := gocv.CvtColor(w.bgr, &w.rgb, gocv.ColorBGRToRGB); err != nil {
		return frames.Frame{}, errors.Wrap(err, "convert frame to rgb")
	}

	w.id++
	w.width, w.height = w.rgb.Cols(), w.rgb.Rows()
	return frames.Frame{
		ID:        w.id,
		Width:     w.width,
		Height:    w.height,
		Pix:       w.rgb.ToBytes(),
		Timestamp: time.Now(),
	}, nil
}

// Size is the resolution of the most recent frame, or the device's reported
// resolution before the first read.
func (w *Webcam) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Close releases the device and buffers.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return multierr.Combine(w.capture.Close(), w.bgr.Close(), w.rgb.Close())
}

// FrameToMat converts an RGB frame to a BGR Mat for display. The caller
// closes the Mat.
func FrameToMat(f frames.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	rgb, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "wrap frame")
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	if err := gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR); err != nil {
		bgr.Close()
		return gocv.NewMat(), errors.Wrap(err, "convert frame to bgr")
	}
	return bgr, nil
}
