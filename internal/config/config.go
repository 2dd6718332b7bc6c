package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Gating modes for the modifier key.
const (
	ModifierToggled = "toggled" // lock keys such as capslock
	ModifierHeld    = "held"
	ModifierAlways  = "always"
)

// Config represents the application configuration
type Config struct {
	Capture    CaptureConfig    `json:"capture" yaml:"capture" mapstructure:"capture"`
	Aim        AimConfig        `json:"aim" yaml:"aim" mapstructure:"aim"`
	Mask       MaskConfig       `json:"mask" yaml:"mask" mapstructure:"mask"`
	Keys       KeysConfig       `json:"keys" yaml:"keys" mapstructure:"keys"`
	Detector   DetectorConfig   `json:"detector" yaml:"detector" mapstructure:"detector"`
	Activation ActivationConfig `json:"activation" yaml:"activation" mapstructure:"activation"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`

	LogLevel   string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	PrettyLogs bool   `json:"pretty_logs" yaml:"pretty_logs" mapstructure:"pretty_logs"`
	CPSDisplay bool   `json:"cps_display" yaml:"cps_display" mapstructure:"cps_display"`
}

// CaptureConfig sizes the capture region and its buffers.
type CaptureConfig struct {
	Width     int `json:"width" yaml:"width" mapstructure:"width"`
	Height    int `json:"height" yaml:"height" mapstructure:"height"`
	RingSize  int `json:"ring_size" yaml:"ring_size" mapstructure:"ring_size"`
	TargetFPS int `json:"target_fps" yaml:"target_fps" mapstructure:"target_fps"`
}

// AimConfig controls target selection.
type AimConfig struct {
	Sensitivity   float64 `json:"sensitivity" yaml:"sensitivity" mapstructure:"sensitivity"`
	Headshot      bool    `json:"headshot" yaml:"headshot" mapstructure:"headshot"`
	PreferCenter  bool    `json:"prefer_center" yaml:"prefer_center" mapstructure:"prefer_center"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`
}

// MaskConfig blanks the bottom-left corner of each frame.
type MaskConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Width   int  `json:"width" yaml:"width" mapstructure:"width"`
	Height  int  `json:"height" yaml:"height" mapstructure:"height"`
}

// KeysConfig names the quit key and the key gating aim output.
type KeysConfig struct {
	Quit         string `json:"quit" yaml:"quit" mapstructure:"quit"`
	Modifier     string `json:"modifier" yaml:"modifier" mapstructure:"modifier"`
	ModifierMode string `json:"modifier_mode" yaml:"modifier_mode" mapstructure:"modifier_mode"`
}

// DetectorConfig configures the YOLO model.
type DetectorConfig struct {
	ModelPath     string  `json:"model_path" yaml:"model_path" mapstructure:"model_path"`
	InputSize     int     `json:"input_size" yaml:"input_size" mapstructure:"input_size"`
	Confidence    float64 `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
	IoU           float64 `json:"iou" yaml:"iou" mapstructure:"iou"`
	MaxDetections int     `json:"max_detections" yaml:"max_detections" mapstructure:"max_detections"`
	Classes       []int   `json:"classes" yaml:"classes" mapstructure:"classes"`
	CUDA          bool    `json:"cuda" yaml:"cuda" mapstructure:"cuda"`
}

// ActivationConfig controls how often window activation is retried.
type ActivationConfig struct {
	Retries int           `json:"retries" yaml:"retries" mapstructure:"retries"`
	Backoff time.Duration `json:"backoff" yaml:"backoff" mapstructure:"backoff"`
}

// ServerConfig configures the preview and telemetry server.
type ServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" yaml:"port" mapstructure:"port"`
	// PreviewFPS caps the MJPEG preview rate.
	PreviewFPS int `json:"preview_fps" yaml:"preview_fps" mapstructure:"preview_fps"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Width:    320,
			Height:   320,
			RingSize: 512,
		},
		Aim: AimConfig{
			Sensitivity:  0.4,
			Headshot:     true,
			PreferCenter: true,
		},
		Mask: MaskConfig{
			Width:  80,
			Height: 200,
		},
		Keys: KeysConfig{
			Quit:         "q",
			Modifier:     "capslock",
			ModifierMode: ModifierToggled,
		},
		Detector: DetectorConfig{
			ModelPath:     "yolov5s320Half.onnx",
			InputSize:     320,
			Confidence:    0.4,
			IoU:           0.4,
			MaxDetections: 5,
			Classes:       []int{0},
		},
		Activation: ActivationConfig{
			Retries: 30,
			Backoff: 3 * time.Second,
		},
		Server: ServerConfig{
			Port:       8080,
			PreviewFPS: 15,
		},
		LogLevel:   "info",
		PrettyLogs: true,
		CPSDisplay: true,
	}
}

// Validate checks ranges and enumerations. Key names are checked by the
// caller, which owns the key parser.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		add("capture size must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.RingSize < 1 {
		add("capture.ring_size must be at least 1, got %d", c.Capture.RingSize)
	}
	if c.Capture.TargetFPS < 0 {
		add("capture.target_fps must not be negative, got %d", c.Capture.TargetFPS)
	}
	if c.Aim.Sensitivity <= 0 {
		add("aim.sensitivity must be positive, got %v", c.Aim.Sensitivity)
	}
	if c.Aim.MinConfidence < 0 || c.Aim.MinConfidence > 1 {
		add("aim.min_confidence must be within [0, 1], got %v", c.Aim.MinConfidence)
	}
	if c.Mask.Enabled && (c.Mask.Width <= 0 || c.Mask.Height <= 0) {
		add("mask size must be positive when enabled, got %dx%d", c.Mask.Width, c.Mask.Height)
	}
	switch c.Keys.ModifierMode {
	case ModifierToggled, ModifierHeld, ModifierAlways:
	default:
		add("keys.modifier_mode must be one of %s, %s, %s; got %q", ModifierToggled, ModifierHeld, ModifierAlways, c.Keys.ModifierMode)
	}
	if c.Detector.InputSize <= 0 {
		add("detector.input_size must be positive, got %d", c.Detector.InputSize)
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		add("detector.confidence must be within [0, 1], got %v", c.Detector.Confidence)
	}
	if c.Detector.IoU < 0 || c.Detector.IoU > 1 {
		add("detector.iou must be within [0, 1], got %v", c.Detector.IoU)
	}
	if c.Detector.MaxDetections < 0 {
		add("detector.max_detections must not be negative, got %d", c.Detector.MaxDetections)
	}
	if c.Activation.Retries < 1 {
		add("activation.retries must be at least 1, got %d", c.Activation.Retries)
	}
	if c.Activation.Backoff < 0 {
		add("activation.backoff must not be negative, got %v", c.Activation.Backoff)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port out of range: %d", c.Server.Port)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
