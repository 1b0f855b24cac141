// Package onnxrt - ONNX Runtime backed detection model implementing
// pipeline.Runtime.
package onnxrt

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/logging"
	"github.com/nvr-ai/camdetect/pipeline"
)

// envMu guards the process-wide ORT environment.
var envMu sync.Mutex

func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}
	return nil
}

// Session runs an SSD model with preallocated tensors. It is not safe for
// concurrent use; the pipeline worker is its only caller.
type Session struct {
	cfg     Config
	logger  *zap.SugaredLogger
	session *ort.AdvancedSession

	input   *ort.Tensor[uint8]
	boxes   *ort.Tensor[float32]
	classes *ort.Tensor[float32]
	scores  *ort.Tensor[float32]
	count   *ort.Tensor[float32]
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New loads the model and binds input and output tensors.
//
// Order of operations:
//  1. Validate the config and check the library and model files exist.
//  2. Initialize the ORT environment once per process.
//  3. Allocate the uint8 NHWC input and the four float32 outputs.
//  4. Create the session with the configured thread pools.
//
// Arguments:
//   - cfg: Model and runtime configuration.
//   - opts: Optional logger.
//
// Returns:
//   - *Session: A ready session; Close releases it.
//   - error: If any step fails. Partially created tensors are destroyed.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid onnx runtime config")
	}

	s := &Session{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	libPath := SharedLibPath(cfg.SharedLibraryPath)
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	if info, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	} else if info.Size() == 0 {
		return nil, errors.Errorf("model file is empty: %s", cfg.ModelPath)
	}

	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	if err := s.allocate(); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "create session options"), s.Close())
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "set intra-op threads"), s.Close())
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "set inter-op threads"), s.Close())
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		cfg.OutputNames,
		[]ort.ArbitraryTensor{s.input},
		[]ort.ArbitraryTensor{s.boxes, s.classes, s.scores, s.count},
		options,
	)
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "create onnxruntime session"), s.Close())
	}
	s.session = session

	s.logger.Infow("onnx model loaded",
		"model", cfg.ModelPath,
		"library", libPath,
		"input", s.InputShape().String(),
		"max_detections", cfg.MaxDetections,
	)
	return s, nil
}

func (s *Session) allocate() error {
	n := int64(s.cfg.MaxDetections)
	var err error

	s.input, err = ort.NewEmptyTensor[uint8](ort.NewShape(1, int64(s.cfg.InputHeight), int64(s.cfg.InputWidth), 3))
	if err != nil {
		return errors.Wrap(err, "allocate input tensor")
	}
	if s.boxes, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n, 4)); err != nil {
		return errors.Wrap(err, "allocate boxes tensor")
	}
	if s.classes, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n)); err != nil {
		return errors.Wrap(err, "allocate classes tensor")
	}
	if s.scores, err = ort.NewEmptyTensor[float32](ort.NewShape(1, n)); err != nil {
		return errors.Wrap(err, "allocate scores tensor")
	}
	if s.count, err = ort.NewEmptyTensor[float32](ort.NewShape(1)); err != nil {
		return errors.Wrap(err, "allocate count tensor")
	}
	return nil
}

// InputShape is the model's NHWC input without the batch dimension.
func (s *Session) InputShape() pipeline.Shape {
	return pipeline.Shape{Width: s.cfg.InputWidth, Height: s.cfg.InputHeight, Channels: 3}
}

// SetInput copies an RGB buffer into the input tensor.
func (s *Session) SetInput(data []byte) error {
	if s.input == nil {
		return errors.New("session closed")
	}
	dst := s.input.GetData()
	if len(data) != len(dst) {
		return errors.Wrapf(pipeline.ErrInvalidInputSize, "got %d bytes, want %d", len(data), len(dst))
	}
	copy(dst, data)
	return nil
}

// Invoke runs the model.
func (s *Session) Invoke() error {
	if s.session == nil {
		return errors.New("session closed")
	}
	return errors.Wrap(s.session.Run(), "run onnxruntime session")
}

// Outputs copies the output tensors so the next Invoke cannot overwrite
// them.
func (s *Session) Outputs() (detection.Outputs, error) {
	if s.session == nil {
		return detection.Outputs{}, errors.New("session closed")
	}
	out := detection.Outputs{
		Boxes:   append([]float32(nil), s.boxes.GetData()...),
		Classes: append([]float32(nil), s.classes.GetData()...),
		Scores:  append([]float32(nil), s.scores.GetData()...),
	}
	if c := s.count.GetData(); len(c) > 0 {
		out.Count = c[0]
	}
	return out, nil
}

// Close destroys the session and its tensors. It is safe to call more than
// once.
func (s *Session) Close() error {
	var err error
	if s.session != nil {
		err = multierr.Append(err, s.session.Destroy())
		s.session = nil
	}
	if s.input != nil {
		err = multierr.Append(err, s.input.Destroy())
		s.input = nil
	}
	for _, t := range []**ort.Tensor[float32]{&s.boxes, &s.classes, &s.scores, &s.count} {
		if *t != nil {
			err = multierr.Append(err, (*t).Destroy())
			*t = nil
		}
	}
	return errors.Wrap(err, "close onnx session")
}
