// Package pipeline - Asynchronous single-worker inference over a Runtime.
//
// Frames are submitted from the render loop and processed strictly in order
// by one worker goroutine. Each submission returns a Future whose
// continuations run on a dispatch.Executor, never on the worker.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/dispatch"
	"github.com/nvr-ai/camdetect/geometry"
	"github.com/nvr-ai/camdetect/logging"
	"github.com/nvr-ai/camdetect/profiler"
)

// DefaultMaxDetections is the number of output slots of SSD MobileNet v1.
const DefaultMaxDetections = 10

// Config tunes a Pipeline.
type Config struct {
	// MaxDetections is the number of output slots decoded per inference.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// QueueSize bounds pending tasks. Zero means unbounded.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// DefaultConfig returns the configuration used by the camera demo.
func DefaultConfig() Config {
	return Config{MaxDetections: DefaultMaxDetections}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxDetections <= 0 {
		return errors.Errorf("max detections must be positive, got %d", c.MaxDetections)
	}
	if c.QueueSize < 0 {
		return errors.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	return nil
}

// Stats summarizes pipeline activity.
type Stats struct {
	ID        string                  `json:"id"`
	Submitted int64                   `json:"submitted"`
	Processed int64                   `json:"processed"`
	Failed    int64                   `json:"failed"`
	Rejected  int64                   `json:"rejected"`
	Pending   int                     `json:"pending"`
	Inference profiler.OperationStats `json:"inference"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProfiler records inference and decode timings into prof.
func WithProfiler(prof *profiler.Profiler) Option {
	return func(p *Pipeline) {
		p.profiler = prof
	}
}

// WithID overrides the generated pipeline identifier used in logs.
func WithID(id string) Option {
	return func(p *Pipeline) {
		p.id = id
	}
}

// Pipeline owns a Runtime and serializes all inference on one worker.
type Pipeline struct {
	id       string
	rt       Runtime
	exec     dispatch.Executor
	table    detection.Table
	cfg      Config
	shape    Shape
	region   geometry.SizedRegion
	logger   *zap.SugaredLogger
	profiler *profiler.Profiler

	tasks    *taskQueue
	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
	wg       sync.WaitGroup

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// New creates a pipeline around rt. The pipeline takes ownership of rt and
// closes it on Stop.
//
// Arguments:
//   - rt: The inference runtime.
//   - exec: Where future continuations run.
//   - table: Category table used to resolve raw class ids.
//   - cfg: Pipeline configuration.
//   - opts: Optional logger, profiler and id.
//
// Returns:
//   - *Pipeline: The pipeline, not yet started.
//   - error: If the configuration or runtime input shape is invalid.
func New(rt Runtime, exec dispatch.Executor, table detection.Table, cfg Config, opts ...Option) (*Pipeline, error) {
	if rt == nil {
		return nil, errors.New("runtime is required")
	}
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if table == nil {
		table = detection.COCO
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}

	shape := rt.InputShape()
	region := geometry.NewSizedRegion(shape.Width, shape.Height)
	if err := region.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid runtime input shape %s", shape)
	}
	if shape.Channels <= 0 {
		return nil, errors.Errorf("invalid runtime input shape %s", shape)
	}

	p := &Pipeline{
		id:     uuid.NewString(),
		rt:     rt,
		exec:   exec,
		table:  table,
		cfg:    cfg,
		shape:  shape,
		region: region,
		logger: logging.NewNop(),
		tasks:  newTaskQueue(cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.profiler == nil {
		p.profiler = profiler.New(profiler.Options{Logger: p.logger})
	}
	p.logger = p.logger.With("pipeline", p.id)
	return p, nil
}

// ID identifies the pipeline in logs.
func (p *Pipeline) ID() string {
	return p.id
}

// InputShape is the runtime's input geometry.
func (p *Pipeline) InputShape() Shape {
	return p.shape
}

// InputSize is the model input width and height in pixels.
func (p *Pipeline) InputSize() (int, int) {
	return p.shape.Width, p.shape.Height
}

// Start launches the worker. Cancelling ctx stops the pipeline.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrPipelineShutdown
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	p.wg.Add(1)
	go p.work()

	go func() {
		select {
		case <-ctx.Done():
			if err := p.Stop(); err != nil {
				p.logger.Warnw("stopping pipeline after context cancellation", "error", err)
			}
		case <-p.done:
		}
	}()

	p.logger.Infow("pipeline started", "input", p.shape.String(), "max_detections", p.cfg.MaxDetections)
	return nil
}

// Submit enqueues one frame for inference.
//
// The buffer must hold exactly InputShape().Len() interleaved bytes; it is
// copied, so the caller may reuse it. A size mismatch is reported
// synchronously and nothing is enqueued.
//
// Arguments:
//   - frameID: Identifier copied onto every detection of this frame.
//   - buf: Pixel buffer at the model input resolution.
//
// Returns:
//   - *Future[detection.Results]: Resolved on the executor with the frame's results.
//   - error: ErrInvalidInputSize, ErrQueueFull or ErrPipelineShutdown.
func (p *Pipeline) Submit(frameID int, buf []byte) (*Future[detection.Results], error) {
	if p.stopped.Load() {
		return nil, ErrPipelineShutdown
	}
	if want := p.shape.Len(); len(buf) != want {
		return nil, errors.Wrapf(ErrInvalidInputSize, "got %d bytes, want %d (%s)", len(buf), want, p.shape)
	}

	t := task{
		frameID: frameID,
		data:    append([]byte(nil), buf...),
		future:  NewFuture[detection.Results](p.exec),
	}
	if err := p.tasks.push(t); err != nil {
		return nil, err
	}
	p.submitted.Inc()
	return t.future, nil
}

func (p *Pipeline) work() {
	defer p.wg.Done()

	for {
		t, ok := p.tasks.pop()
		if !ok {
			return
		}

		results, err := p.process(t)
		if err != nil {
			p.failed.Inc()
			p.logger.Warnw("inference failed", "frame", t.frameID, "error", err)
			t.future.Reject(err)
			continue
		}
		p.processed.Inc()
		p.logger.Debugw("inference complete", "frame", t.frameID, "detections", results.Count())
		t.future.Resolve(results)
	}
}

func (p *Pipeline) process(t task) (results detection.Results, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = &InferenceFailure{FrameID: t.frameID, Cause: errors.Errorf("runtime panic: %v", r)}
		}
	}()

	if err := p.rt.SetInput(t.data); err != nil {
		return nil, &InferenceFailure{FrameID: t.frameID, Cause: errors.Wrap(err, "set input")}
	}

	finish := p.profiler.StartOperation("inference")
	err = p.rt.Invoke()
	finish()
	if err != nil {
		return nil, &InferenceFailure{FrameID: t.frameID, Cause: errors.Wrap(err, "invoke")}
	}

	out, err := p.rt.Outputs()
	if err != nil {
		return nil, &InferenceFailure{FrameID: t.frameID, Cause: errors.Wrap(err, "read outputs")}
	}

	finish = p.profiler.StartOperation("decode")
	results, err = detection.Decode(out, p.table, p.region, t.frameID, p.cfg.MaxDetections)
	finish()
	if err != nil {
		return nil, &InferenceFailure{FrameID: t.frameID, Cause: err}
	}
	return results, nil
}

// Stop shuts the pipeline down. The task being processed, if any, finishes;
// every queued task's future is rejected with ErrPipelineShutdown. The
// runtime is closed once the worker has exited. Stop is idempotent and
// returns the runtime's close error from the first call.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.done)

		pending := p.tasks.close()
		p.wg.Wait()

		for _, t := range pending {
			t.future.Reject(ErrPipelineShutdown)
		}
		p.rejected.Add(int64(len(pending)))

		if err := p.rt.Close(); err != nil {
			p.stopErr = errors.Wrap(err, "close runtime")
		}
		p.logger.Infow("pipeline stopped",
			"processed", p.processed.Load(),
			"failed", p.failed.Load(),
			"rejected", len(pending),
		)
	})
	return p.stopErr
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	inference, _ := p.profiler.Snapshot("inference")
	return Stats{
		ID:        p.id,
		Submitted: p.submitted.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Pending:   p.tasks.len(),
		Inference: inference,
	}
}
