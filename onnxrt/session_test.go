package onnxrt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nvr-ai/camdetect/detection"
	"github.com/nvr-ai/camdetect/geometry"
	"github.com/nvr-ai/camdetect/pipeline"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.ModelPath = "" }},
		{"tiny input", func(c *Config) { c.InputWidth = 1 }},
		{"no slots", func(c *Config) { c.MaxDetections = 0 }},
		{"no input name", func(c *Config) { c.InputName = "" }},
		{"missing outputs", func(c *Config) { c.OutputNames = c.OutputNames[:3] }},
		{"negative threads", func(c *Config) { c.InterOpThreads = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSharedLibPath(t *testing.T) {
	assert.Equal(t, "/opt/ort.so", SharedLibPath("/opt/ort.so"))

	t.Setenv(LibraryPathEnv, "/env/ort.so")
	assert.Equal(t, "/env/ort.so", SharedLibPath(""))

	t.Setenv(LibraryPathEnv, "")
	assert.Contains(t, SharedLibPath(""), "third_party/")
}

func TestNewFailsBeforeLoadingNativeCode(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfake.so")
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0o600))

	cfg := DefaultConfig()
	cfg.SharedLibraryPath = filepath.Join(dir, "missing.so")
	_, err := New(cfg)
	assert.ErrorContains(t, err, "library not found")

	cfg.SharedLibraryPath = lib
	cfg.ModelPath = filepath.Join(dir, "missing.onnx")
	_, err = New(cfg)
	assert.ErrorContains(t, err, "model not found")

	empty := filepath.Join(dir, "empty.onnx")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	cfg.ModelPath = empty
	_, err = New(cfg)
	assert.ErrorContains(t, err, "model file is empty")
}

// TestSessionRunsModel needs a real onnxruntime library and the SSD
// MobileNet v1 model; it is skipped otherwise.
func TestSessionRunsModel(t *testing.T) {
	cfg := DefaultConfig()
	if p := os.Getenv("CAMDETECT_MODEL"); p != "" {
		cfg.ModelPath = p
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		t.Skipf("model not available: %v", err)
	}
	if _, err := os.Stat(SharedLibPath("")); err != nil {
		t.Skipf("onnxruntime library not available: %v", err)
	}

	s, err := New(cfg, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	var rt pipeline.Runtime = s
	shape := rt.InputShape()
	assert.Equal(t, pipeline.Shape{Width: 300, Height: 300, Channels: 3}, shape)

	require.Error(t, rt.SetInput(make([]byte, 3)))
	require.NoError(t, rt.SetInput(make([]byte, shape.Len())))
	require.NoError(t, rt.Invoke())

	out, err := rt.Outputs()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Slots(), cfg.MaxDetections)

	_, err = detection.Decode(out, detection.COCO, geometry.NewSizedRegion(shape.Width, shape.Height), 1, cfg.MaxDetections)
	assert.NoError(t, err)
}
