package onnxrt

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LibraryPathEnv overrides the platform default shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// Config describes an SSD style detection model and how to run it.
type Config struct {
	// ModelPath is the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath locates the onnxruntime library. Empty selects
	// SharedLibPath("").
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// InputWidth and InputHeight are the fixed NHWC input size.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`
	// MaxDetections is the number of output slots the model emits.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// InputName is the uint8 image input node.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputNames are the boxes, classes, scores and count nodes, in that
	// order.
	OutputNames []string `json:"output_names" yaml:"output_names"`
	// IntraOpThreads and InterOpThreads size the ORT thread pools; 0 lets
	// the runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DefaultConfig matches the TensorFlow SSD MobileNet v1 export converted with
// tf2onnx: a 300x300 uint8 image and ten detection slots.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/ssd_mobilenet_v1.onnx",
		InputWidth:    300,
		InputHeight:   300,
		MaxDetections: 10,
		InputName:     "image_tensor:0",
		OutputNames: []string{
			"detection_boxes:0",
			"detection_classes:0",
			"detection_scores:0",
			"num_detections:0",
		},
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.InputWidth < 2 || c.InputHeight < 2 {
		return errors.Errorf("invalid input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.MaxDetections <= 0 {
		return errors.Errorf("max detections must be positive, got %d", c.MaxDetections)
	}
	if c.InputName == "" {
		return errors.New("input name is required")
	}
	if len(c.OutputNames) != 4 {
		return errors.Errorf("need 4 output names (boxes, classes, scores, count), got %d", len(c.OutputNames))
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	return nil
}

// SharedLibPath resolves the onnxruntime shared library: override if set,
// then $ONNXRUNTIME_SHARED_LIBRARY_PATH, then a per-platform default under
// third_party/.
func SharedLibPath(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env
	}
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		return "third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
