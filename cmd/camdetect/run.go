package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/camdetect/broadcast"
	"github.com/nvr-ai/camdetect/camera"
	"github.com/nvr-ai/camdetect/config"
	"github.com/nvr-ai/camdetect/controller"
	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/dispatch"
	"github.com/nvr-ai/camdetect/frames"
	"github.com/nvr-ai/camdetect/geometry"
	"github.com/nvr-ai/camdetect/logging"
	"github.com/nvr-ai/camdetect/onnxrt"
	"github.com/nvr-ai/camdetect/pipeline"
	"github.com/nvr-ai/camdetect/profiler"
)

// loadConfig layers defaults, the YAML file, the .env file, CAMDETECT_*
// variables and finally explicit flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(c.String(flagEnv)); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if c.IsSet(flagModel) {
		cfg.Runtime.ModelPath = c.String(flagModel)
	}
	if c.IsSet(flagDevice) {
		cfg.Camera.DeviceID = c.Int(flagDevice)
	}
	if c.IsSet(flagFrames) {
		cfg.Camera.FrameDir = c.String(flagFrames)
	}
	if c.IsSet(flagLoop) {
		cfg.Camera.Loop = c.Bool(flagLoop)
	}
	if c.IsSet(flagSynthetic) {
		cfg.Camera.Synthetic = c.Bool(flagSynthetic)
	}
	if c.IsSet(flagRate) {
		cfg.Controller.DetectionRate = c.Float64(flagRate)
	}
	if c.IsSet(flagMinScore) {
		cfg.Controller.MinScore = float32(c.Float64(flagMinScore))
	}
	if c.IsSet(flagShowWindow) {
		cfg.Camera.ShowWindow = c.Bool(flagShowWindow)
	}
	if c.IsSet(flagListen) {
		cfg.Listen = c.String(flagListen)
	}
	if c.IsSet(flagDebug) {
		cfg.Log.Debug = c.Bool(flagDebug)
	}

	return cfg, errors.Wrap(cfg.Validate(), "invalid configuration")
}

// openSource picks the frame source. Paced sources are replayed at the
// configured FPS; a live camera paces itself.
func openSource(cfg config.CameraConfig) (src frames.Source, paced bool, err error) {
	switch {
	case cfg.Synthetic:
		return frames.NewSyntheticSource(cfg.Width, cfg.Height, 0), true, nil
	case cfg.FrameDir != "":
		dir, err := frames.NewDirectorySource(cfg.FrameDir, cfg.Loop)
		if err != nil {
			return nil, false, err
		}
		return dir, true, nil
	default:
		cam, err := camera.OpenWebcam(cfg.DeviceID)
		if err != nil {
			return nil, false, err
		}
		return cam, false, nil
	}
}

func run(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("camdetect", cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, paced, err := openSource(cfg.Camera)
	if err != nil {
		return errors.Wrap(err, "open frame source")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(source))

	rt, err := onnxrt.New(cfg.Runtime, onnxrt.WithLogger(logger.Named("onnxrt")))
	if err != nil {
		return errors.Wrap(err, "load model")
	}

	queue := dispatch.New(dispatch.WithLogger(logger.Named("dispatch")))
	prof := profiler.New(profiler.Options{Logger: logger.Named("profiler")})

	pipe, err := pipeline.New(rt, queue, detection.COCO, cfg.Pipeline,
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithProfiler(prof),
	)
	if err != nil {
		return multierr.Append(errors.Wrap(err, "create pipeline"), rt.Close())
	}
	if err := pipe.Start(ctx); err != nil {
		return multierr.Append(err, pipe.Stop())
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(pipe.Stop))

	ctlOpts := []controller.Option{controller.WithLogger(logger.Named("controller"))}
	if cfg.Listen != "" {
		hub, shutdown := serveSnapshots(cfg.Listen, logger.Named("broadcast"))
		defer multierr.AppendInvoke(&err, multierr.Invoke(shutdown))
		ctlOpts = append(ctlOpts, controller.WithListener(func(frameID int, region geometry.SizedRegion, results detection.Results) {
			if _, err := hub.Publish(frameID, region, results); err != nil {
				logger.Warnw("publishing snapshot failed", "error", err)
			}
		}))
	}

	ctl, err := controller.New(pipe, cfg.Controller, ctlOpts...)
	if err != nil {
		return err
	}
	defer ctl.Shutdown()

	if cfg.Log.StatsInterval > 0 {
		prof.Start(ctx, cfg.Log.StatsInterval)
		defer prof.Stop()
	}

	var view *window
	if cfg.Camera.ShowWindow {
		view = newWindow("camdetect")
		defer multierr.AppendInvoke(&err, multierr.Close(view))
	}

	logger.Infow("starting detection loop",
		"model", cfg.Runtime.ModelPath,
		"rate_hz", cfg.Controller.DetectionRate,
		"listen", cfg.Listen,
	)
	return loop(ctx, loopDeps{
		cfg:    cfg,
		source: source,
		paced:  paced,
		ctl:    ctl,
		queue:  queue,
		pipe:   pipe,
		view:   view,
		logger: logger,
	})
}

// serveSnapshots starts the WebSocket feed on addr. The returned function
// stops the server and disconnects viewers.
func serveSnapshots(addr string, logger *zap.SugaredLogger) (*broadcast.Hub, func() error) {
	hub := broadcast.NewHub(broadcast.WithLogger(logger))
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("snapshot server failed", "addr", addr, "error", err)
		}
	}()
	logger.Infow("serving snapshots", "addr", addr, "path", "/ws")

	return hub, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return multierr.Combine(hub.Close(), server.Shutdown(ctx))
	}
}
