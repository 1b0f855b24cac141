// Package controller - Per-frame orchestration of camera frames into the
// detection pipeline.
//
// A Controller is ticked once per rendered frame. At most one detection is in
// flight at a time, cycles are rate limited, and completed results are mapped
// back into camera coordinates and swapped in as the latest snapshot.
package controller

import (
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/frames"
	"github.com/nvr-ai/camdetect/geometry"
	"github.com/nvr-ai/camdetect/logging"
	"github.com/nvr-ai/camdetect/pipeline"
)

// DefaultDetectionRate is the detection cycle ceiling in Hz.
const DefaultDetectionRate = 100

var (
	// ErrFrameSizeMismatch is returned by Tick for a frame whose size differs
	// from the last CameraReady call.
	ErrFrameSizeMismatch = errors.New("frame size does not match camera")
	// ErrTerminated is returned by CameraReady after Shutdown.
	ErrTerminated = errors.New("controller terminated")
)

// Detector runs inference on model-sized pixel buffers.
type Detector interface {
	Submit(frameID int, buf []byte) (*pipeline.Future[detection.Results], error)
	InputSize() (width, height int)
}

// Listener is notified on the main context after each snapshot swap.
type Listener func(frameID int, region geometry.SizedRegion, results detection.Results)

// Config tunes a Controller.
type Config struct {
	// DetectionRate caps detection cycles per second.
	DetectionRate float64 `json:"detection_rate" yaml:"detection_rate"`
	// MinScore drops detections scoring below it before publishing.
	MinScore float32 `json:"min_score" yaml:"min_score"`
}

// DefaultConfig returns a 100 Hz, unfiltered configuration.
func DefaultConfig() Config {
	return Config{DetectionRate: DefaultDetectionRate}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !(c.DetectionRate > 0) {
		return errors.Errorf("detection rate must be positive, got %v", c.DetectionRate)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return errors.Errorf("min score must be within [0, 1], got %v", c.MinScore)
	}
	return nil
}

// Period is the minimum time between detection cycle starts.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.DetectionRate)
}

// Stats counts detection cycles.
type Stats struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	// Discarded counts results dropped because the camera changed while
	// they were in flight.
	Discarded int64 `json:"discarded"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for rate limiting.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) {
		ctl.clock = c
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(ctl *Controller) {
		ctl.logger = logger
	}
}

// WithPostprocessor appends fn to the chain applied to every snapshot after
// it is mapped into camera space.
func WithPostprocessor(fn detection.Postprocessor) Option {
	return func(ctl *Controller) {
		ctl.postprocessors = append(ctl.postprocessors, fn)
	}
}

// WithListener registers fn to receive every published snapshot.
func WithListener(fn Listener) Option {
	return func(ctl *Controller) {
		ctl.listeners = append(ctl.listeners, fn)
	}
}

// Controller orchestrates detection for one camera.
//
// Tick, CameraReady, CameraDisposed and Shutdown must be called from the
// render goroutine that also drains the detector's dispatch queue. Latest,
// State, InFlight and Stats may be called from anywhere.
type Controller struct {
	det       Detector
	cfg       Config
	period    time.Duration
	clock     clock.Clock
	logger    *zap.SugaredLogger
	listeners []Listener

	postprocessors []detection.Postprocessor

	state    atomic.Int32
	inFlight atomic.Bool
	latest   atomic.Pointer[detection.Results]

	// Owned by the render goroutine.
	generation int
	lastStart  time.Time
	hasStarted bool
	camera     geometry.SizedRegion
	roi        image.Rectangle
	transform  geometry.CropScaleTransform

	started   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

// New creates an Uninitialized controller feeding det.
//
// Arguments:
//   - det: The detector, usually a *pipeline.Pipeline.
//   - cfg: Rate and score settings.
//   - opts: Optional clock, logger and listeners.
//
// Returns:
//   - *Controller: The controller.
//   - error: If cfg is invalid or the detector input size is unusable.
func New(det Detector, cfg Config, opts ...Option) (*Controller, error) {
	if det == nil {
		return nil, errors.New("detector is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid controller config")
	}
	if w, h := det.InputSize(); w <= 0 || h <= 0 {
		return nil, errors.Errorf("invalid detector input size %dx%d", w, h)
	}

	c := &Controller{
		det:    det,
		cfg:    cfg,
		period: cfg.Period(),
		clock:  clock.New(),
		logger: logging.NewNop(),
	}
	if cfg.MinScore > 0 {
		c.postprocessors = append(c.postprocessors, detection.NewScoreFilter(cfg.MinScore))
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := make(detection.Results)
	c.latest.Store(&empty)
	c.state.Store(int32(Uninitialized))
	return c, nil
}

// State is the current lifecycle stage.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// InFlight reports whether a detection has been submitted and not yet
// completed.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Latest is the most recent published snapshot. It is never nil and must be
// treated as read-only; the controller replaces it, never mutates it.
func (c *Controller) Latest() detection.Results {
	return *c.latest.Load()
}

// Transform is the camera to detector mapping, valid after CameraReady.
func (c *Controller) Transform() geometry.CropScaleTransform {
	return c.transform
}

// ROI is the square region of the camera frame fed to the detector.
func (c *Controller) ROI() image.Rectangle {
	return c.roi
}

// Stats returns cycle counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Started:   c.started.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Discarded: c.discarded.Load(),
	}
}

// CameraReady records the camera resolution. When it changed, the centered
// square ROI and the crop/scale transform are rebuilt and any in-flight
// result is discarded on arrival.
//
// Arguments:
//   - width: Camera frame width in pixels.
//   - height: Camera frame height in pixels.
//
// Returns:
//   - error: ErrTerminated after Shutdown, or an invalid camera size.
func (c *Controller) CameraReady(width, height int) error {
	if c.State() == Terminated {
		return ErrTerminated
	}

	region := geometry.NewSizedRegion(width, height)
	if err := region.Validate(); err != nil {
		return errors.Wrap(err, "invalid camera size")
	}

	if region != c.camera {
		roi := frames.CenterSquare(width, height)
		inW, inH := c.det.InputSize()
		transform, err := geometry.NewCropScaleTransform(width, height, geometry.FromImageRect(roi), float32(inW), float32(inH))
		if err != nil {
			return errors.Wrap(err, "build crop/scale transform")
		}

		c.generation++
		c.camera = region
		c.roi = roi
		c.transform = transform
		c.logger.Infow("camera geometry updated",
			"camera", region.String(),
			"roi", roi.String(),
			"detector_input", geometry.NewSizedRegion(inW, inH).String(),
		)
	}

	if c.State() == Uninitialized {
		if c.inFlight.Load() {
			c.state.Store(int32(Detecting))
		} else {
			c.state.Store(int32(Ready))
		}
	}
	return nil
}

// CameraDisposed returns to Uninitialized. The last snapshot is kept and an
// in-flight result is discarded on arrival.
func (c *Controller) CameraDisposed() {
	if c.State() == Terminated {
		return
	}
	c.generation++
	c.camera = geometry.SizedRegion{}
	c.state.Store(int32(Uninitialized))
	c.logger.Infow("camera disposed")
}

// Tick offers a camera frame. A detection cycle starts only when the
// controller is Ready, nothing is in flight and more than one detection
// period has passed since the previous cycle started. While Ready, a frame
// that does not match the camera size is always an error.
//
// Arguments:
//   - f: The current camera frame.
//
// Returns:
//   - bool: Whether a detection cycle started.
//   - error: On a frame size mismatch or a failed submission. The
//     controller stays Ready and retries on a later tick.
func (c *Controller) Tick(f frames.Frame) (bool, error) {
	if c.State() != Ready {
		return false, nil
	}
	if f.Width != c.camera.Width || f.Height != c.camera.Height {
		return false, errors.Wrapf(ErrFrameSizeMismatch, "frame %d is %dx%d, camera is %s",
			f.ID, f.Width, f.Height, c.camera)
	}
	if c.inFlight.Load() {
		return false, nil
	}

	now := c.clock.Now()
	if c.hasStarted && now.Sub(c.lastStart) <= c.period {
		return false, nil
	}

	inW, inH := c.det.InputSize()
	buf, err := frames.CropResize(f, c.roi, inW, inH)
	if err != nil {
		return false, errors.Wrap(err, "prepare detector input")
	}

	future, err := c.det.Submit(f.ID, buf)
	if err != nil {
		c.logger.Warnw("detection submit failed", "frame", f.ID, "error", err)
		return false, errors.Wrap(err, "submit frame")
	}

	c.lastStart = now
	c.hasStarted = true
	c.inFlight.Store(true)
	c.state.Store(int32(Detecting))
	c.started.Inc()

	cycle := cycle{
		generation: c.generation,
		frameID:    f.ID,
		camera:     c.camera,
		transform:  c.transform,
	}
	future.Then(
		func(results detection.Results) { c.complete(cycle, results) },
		func(err error) { c.fail(cycle, err) },
	)
	return true, nil
}

// cycle is the geometry a detection was submitted with.
type cycle struct {
	generation int
	frameID    int
	camera     geometry.SizedRegion
	transform  geometry.CropScaleTransform
}

// finish clears the in-flight flag and reports whether the result belongs to
// the current camera geometry.
func (c *Controller) finish(cy cycle) bool {
	c.inFlight.Store(false)
	if c.State() == Detecting {
		c.state.Store(int32(Ready))
	}
	if c.State() == Terminated {
		return false
	}
	if cy.generation != c.generation {
		c.discarded.Inc()
		c.logger.Debugw("discarding stale detection result", "frame", cy.frameID)
		return false
	}
	return true
}

func (c *Controller) complete(cy cycle, results detection.Results) {
	if !c.finish(cy) {
		return
	}

	snapshot := c.toCamera(cy, results)
	c.latest.Store(&snapshot)
	c.completed.Inc()
	c.logger.Debugw("detection snapshot updated", "frame", cy.frameID, "detections", snapshot.Count())

	for _, fn := range c.listeners {
		fn(cy.frameID, cy.camera, snapshot)
	}
}

func (c *Controller) fail(cy cycle, err error) {
	if !c.finish(cy) {
		return
	}
	c.failed.Inc()
	c.logger.Warnw("detection failed, keeping previous snapshot", "frame", cy.frameID, "error", err)
}

// toCamera maps detector-space results into the camera frame the cycle was
// started with.
func (c *Controller) toCamera(cy cycle, results detection.Results) detection.Results {
	mapped := results.Remap(func(d detection.Detection) (detection.Detection, bool) {
		return detection.Detection{
			Category: d.Category,
			Score:    d.Score,
			Box:      cy.camera.ClampRect(cy.transform.ToSourceRect(d.Box)),
			Region:   cy.camera,
			FrameID:  cy.frameID,
		}, true
	})
	for _, fn := range c.postprocessors {
		mapped = fn(mapped)
	}
	return mapped
}

// Shutdown moves to Terminated. Later ticks are no-ops and late results are
// ignored. It is idempotent.
func (c *Controller) Shutdown() {
	if State(c.state.Swap(int32(Terminated))) != Terminated {
		c.logger.Infow("controller shut down", "cycles", c.started.Load())
	}
}
