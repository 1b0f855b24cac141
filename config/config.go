// Package config - Application configuration loaded from YAML, a .env file
// and CAMDETECT_* environment variables.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/camdetect/controller"
	"github.com/nvr-ai/camdetect/onnxrt"
	"github.com/nvr-ai/camdetect/pipeline"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CAMDETECT_"

// Config represents the complete application configuration.
type Config struct {
	Pipeline   pipeline.Config   `json:"pipeline" yaml:"pipeline"`
	Runtime    onnxrt.Config     `json:"runtime" yaml:"runtime"`
	Controller controller.Config `json:"controller" yaml:"controller"`
	Camera     CameraConfig      `json:"camera" yaml:"camera"`
	Log        LogConfig         `json:"log" yaml:"log"`
	// Listen is the address of the WebSocket snapshot feed; empty disables it.
	Listen string `json:"listen" yaml:"listen"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	// DeviceID is the OpenCV capture device, used when FrameDir is empty.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// FrameDir replays frame-<n> images instead of opening a device.
	FrameDir string `json:"frame_dir" yaml:"frame_dir"`
	// Loop restarts FrameDir playback at the end.
	Loop bool `json:"loop" yaml:"loop"`
	// Synthetic generates test frames of Width x Height instead of a camera.
	Synthetic bool `json:"synthetic" yaml:"synthetic"`
	Width     int  `json:"width" yaml:"width"`
	Height    int  `json:"height" yaml:"height"`
	// FPS paces file and synthetic playback.
	FPS float64 `json:"fps" yaml:"fps"`
	// ShowWindow renders frames and boxes in an OpenCV window.
	ShowWindow bool `json:"show_window" yaml:"show_window"`
}

// LogConfig controls logging and periodic status reports.
type LogConfig struct {
	Debug bool `json:"debug" yaml:"debug"`
	// StatsInterval is how often pipeline statistics are logged; 0 disables.
	StatsInterval time.Duration `json:"stats_interval" yaml:"stats_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pipeline:   pipeline.DefaultConfig(),
		Runtime:    onnxrt.DefaultConfig(),
		Controller: controller.DefaultConfig(),
		Camera: CameraConfig{
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Log: LogConfig{StatsInterval: 10 * time.Second},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
//
// Arguments:
//   - path: The YAML file, or "".
//
// Returns:
//   - Config: The merged configuration, not yet validated.
//   - error: If the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrapf(err, "parse config file %s", path)
	}
	return cfg, nil
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

// ApplyEnv overrides fields from CAMDETECT_* variables.
//
//	CAMDETECT_MODEL       runtime.model_path
//	CAMDETECT_ORT_LIB     runtime.shared_library_path
//	CAMDETECT_DEVICE      camera.device_id
//	CAMDETECT_FRAMES      camera.frame_dir
//	CAMDETECT_RATE        controller.detection_rate
//	CAMDETECT_MIN_SCORE   controller.min_score
//	CAMDETECT_LISTEN      listen
//	CAMDETECT_DEBUG       log.debug
func (c *Config) ApplyEnv() error {
	lookup := func(name string) (string, bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		return v, ok && v != ""
	}

	if v, ok := lookup("MODEL"); ok {
		c.Runtime.ModelPath = v
	}
	if v, ok := lookup("ORT_LIB"); ok {
		c.Runtime.SharedLibraryPath = v
	}
	if v, ok := lookup("FRAMES"); ok {
		c.Camera.FrameDir = v
	}
	if v, ok := lookup("LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("DEVICE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%sDEVICE", EnvPrefix)
		}
		c.Camera.DeviceID = n
	}
	if v, ok := lookup("RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "%sRATE", EnvPrefix)
		}
		c.Controller.DetectionRate = f
	}
	if v, ok := lookup("MIN_SCORE"); ok {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return errors.Wrapf(err, "%sMIN_SCORE", EnvPrefix)
		}
		c.Controller.MinScore = float32(f)
	}
	if v, ok := lookup("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%sDEBUG", EnvPrefix)
		}
		c.Log.Debug = b
	}
	return nil
}

// Validate checks every section and their consistency.
func (c Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return errors.Wrap(err, "pipeline")
	}
	if err := c.Runtime.Validate(); err != nil {
		return errors.Wrap(err, "runtime")
	}
	if err := c.Controller.Validate(); err != nil {
		return errors.Wrap(err, "controller")
	}
	if c.Pipeline.MaxDetections > c.Runtime.MaxDetections {
		return errors.Errorf("pipeline decodes %d slots but the model emits %d",
			c.Pipeline.MaxDetections, c.Runtime.MaxDetections)
	}
	if !(c.Camera.FPS > 0) {
		return errors.Errorf("camera fps must be positive, got %v", c.Camera.FPS)
	}
	if c.Camera.Synthetic && (c.Camera.Width < 2 || c.Camera.Height < 2) {
		return errors.Errorf("invalid synthetic camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.DeviceID < 0 {
		return errors.Errorf("invalid camera device %d", c.Camera.DeviceID)
	}
	if c.Log.StatsInterval < 0 {
		return errors.New("stats interval must not be negative")
	}
	return nil
}
