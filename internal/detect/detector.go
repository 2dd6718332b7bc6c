package detect

import (
	"errors"

	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
)

// ErrEngineUnavailable is returned by NewYOLO when the binary was built
// without an inference engine.
var ErrEngineUnavailable = errors.New("detector engine not compiled in (build with -tags gocv)")

// Detector maps a captured frame to detections normalized to the frame.
type Detector interface {
	// Detect runs inference on frame. inputSize is the square network input
	// the frame is resized to.
	Detect(frame *capture.Frame, inputSize int) ([]tracker.DetectionBox, error)

	// Close releases model resources.
	Close() error
}

// Config holds configuration options for detection.
type Config struct {
	// ModelPath points at a YOLOv5 ONNX export.
	ModelPath string
	// Confidence is the minimum objectness*class score (0.0-1.0).
	Confidence float64
	// IoU is the non-maximum suppression overlap threshold.
	IoU float64
	// MaxDetections caps the boxes returned per frame.
	MaxDetections int
	// Classes restricts output to these class ids. Empty keeps all.
	Classes []int
	// UseCUDA asks the engine for the CUDA backend.
	UseCUDA bool
}

// DefaultConfig returns a Config with the defaults used for person tracking.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "yolov5s320Half.onnx",
		Confidence:    0.4,
		IoU:           0.4,
		MaxDetections: 5,
		Classes:       []int{0},
	}
}
