package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Pipeline.MaxDetections)
	assert.Equal(t, 300, cfg.Runtime.InputWidth)
	assert.InDelta(t, 100, cfg.Controller.DetectionRate, 1e-9)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeFile(t, "camdetect.yaml", `
controller:
  detection_rate: 5
  min_score: 0.25
camera:
  frame_dir: /data/clip
  loop: true
log:
  stats_interval: 2s
listen: ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 5, cfg.Controller.DetectionRate, 1e-9)
	assert.InDelta(t, 0.25, cfg.Controller.MinScore, 1e-6)
	assert.Equal(t, "/data/clip", cfg.Camera.FrameDir)
	assert.True(t, cfg.Camera.Loop)
	assert.Equal(t, 2*time.Second, cfg.Log.StatsInterval)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "image_tensor:0", cfg.Runtime.InputName, "untouched sections keep defaults")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "typo.yaml", "controler:\n  detection_rate: 5\n"))
	assert.Error(t, err, "unknown keys are rejected")

	cfg, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CAMDETECT_MODEL", "/models/ssd.onnx")
	t.Setenv("CAMDETECT_DEVICE", "2")
	t.Setenv("CAMDETECT_RATE", "12.5")
	t.Setenv("CAMDETECT_MIN_SCORE", "0.4")
	t.Setenv("CAMDETECT_DEBUG", "true")
	t.Setenv("CAMDETECT_LISTEN", "")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/models/ssd.onnx", cfg.Runtime.ModelPath)
	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.InDelta(t, 12.5, cfg.Controller.DetectionRate, 1e-9)
	assert.InDelta(t, 0.4, cfg.Controller.MinScore, 1e-6)
	assert.True(t, cfg.Log.Debug)
	assert.Empty(t, cfg.Listen, "empty variables are ignored")

	t.Setenv("CAMDETECT_RATE", "fast")
	assert.Error(t, cfg.ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	t.Setenv("CAMDETECT_FRAMES", "")
	os.Unsetenv("CAMDETECT_FRAMES")
	path := writeFile(t, ".env", "CAMDETECT_FRAMES=/tmp/frames\n")
	require.NoError(t, LoadDotEnv(path))

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/tmp/frames", cfg.Camera.FrameDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.Controller.DetectionRate = 0 }},
		{"more slots than the model", func(c *Config) { c.Pipeline.MaxDetections = 20 }},
		{"no model", func(c *Config) { c.Runtime.ModelPath = "" }},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"tiny synthetic", func(c *Config) { c.Camera.Synthetic = true; c.Camera.Width = 1 }},
		{"negative device", func(c *Config) { c.Camera.DeviceID = -1 }},
		{"negative queue", func(c *Config) { c.Pipeline.QueueSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
