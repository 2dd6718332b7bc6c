//go:build gocv

package detect

import (
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/FocusTracker/internal/capture"
	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/bryanchriswhite/FocusTracker/internal/tracker"
	"gocv.io/x/gocv"
)

// YOLO runs a YOLOv5 ONNX export through the OpenCV DNN module.
type YOLO struct {
	cfg Config
	net gocv.Net
	mu  sync.Mutex
}

// NewYOLO loads the model at cfg.ModelPath.
func NewYOLO(cfg Config) (Detector, error) {
	log := logger.WithComponent("yolo")

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load onnx model %q", cfg.ModelPath)
	}

	if cfg.UseCUDA {
		if err := net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			log.Warn().Err(err).Msg("CUDA backend unavailable, staying on default")
		} else if err := net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			log.Warn().Err(err).Msg("CUDA target unavailable, staying on default")
		}
	}

	log.Info().
		Str("model", cfg.ModelPath).
		Bool("cuda", cfg.UseCUDA).
		Msg("Model loaded")
	return &YOLO{cfg: cfg, net: net}, nil
}

// Detect resizes the frame to inputSize x inputSize, runs the network and
// returns boxes normalized to the frame.
func (y *YOLO) Detect(frame *capture.Frame, inputSize int) ([]tracker.DetectionBox, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	bgra, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC4, frame.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer bgra.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(bgra, &bgr, gocv.ColorBGRAToBGR)

	blob := gocv.BlobFromImage(bgr, 1.0/255.0, image.Pt(inputSize, inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "images")
	out := y.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	raw, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	return Postprocess(raw, dims[1], dims[2], inputSize, y.cfg)
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
