package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/config"
	"github.com/nvr-ai/camdetect/controller"
	"github.com/nvr-ai/camdetect/dispatch"
	"github.com/nvr-ai/camdetect/frames"
	"github.com/nvr-ai/camdetect/pipeline"
)

type loopDeps struct {
	cfg    config.Config
	source frames.Source
	paced  bool
	ctl    *controller.Controller
	queue  *dispatch.Queue
	pipe   *pipeline.Pipeline
	view   *window
	logger *zap.SugaredLogger
}

// loop is the render context: it owns the controller and drains the
// dispatch queue once per frame.
func loop(ctx context.Context, d loopDeps) error {
	var pace <-chan time.Time
	if d.paced {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / d.cfg.Camera.FPS))
		defer ticker.Stop()
		pace = ticker.C
	}

	var stats <-chan time.Time
	if d.cfg.Log.StatsInterval > 0 {
		ticker := time.NewTicker(d.cfg.Log.StatsInterval)
		defer ticker.Stop()
		stats = ticker.C
	}

	width, height := 0, 0
	for {
		frame, err := d.source.Next(ctx)
		switch {
		case errors.Is(err, frames.ErrEndOfStream):
			d.logger.Infow("frame source ended")
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return errors.Wrap(err, "read frame")
		}

		if frame.Width != width || frame.Height != height {
			if err := d.ctl.CameraReady(frame.Width, frame.Height); err != nil {
				return err
			}
			width, height = frame.Width, frame.Height
		}

		if _, err := d.ctl.Tick(frame); err != nil {
			d.logger.Warnw("detection cycle not started", "frame", frame.ID, "error", err)
		}
		d.queue.Drain()

		if d.view != nil {
			quit, err := d.view.show(frame, d.ctl)
			if err != nil {
				d.logger.Warnw("rendering frame failed", "frame", frame.ID, "error", err)
			}
			if quit {
				return nil
			}
		}

		select {
		case <-stats:
			d.logger.Infow("detection stats",
				"controller", d.ctl.Stats(),
				"pipeline", d.pipe.Stats(),
				"state", d.ctl.State().String(),
				"detections", d.ctl.Latest().Count(),
			)
		default:
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-pace:
			}
		}
	}
}
