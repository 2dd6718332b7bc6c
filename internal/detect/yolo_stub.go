//go:build !gocv

package detect

// NewYOLO reports ErrEngineUnavailable; rebuild with -tags gocv to link
// the OpenCV DNN engine.
func NewYOLO(cfg Config) (Detector, error) {
	return nil, ErrEngineUnavailable
}
