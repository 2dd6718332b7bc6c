package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newTestManager(t *testing.T, path string) *Manager {
	t.Helper()
	m, err := newManager(path, viper.New())
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	return m
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero width", func(c *Config) { c.Capture.Width = 0 }, "capture size"},
		{"ring size", func(c *Config) { c.Capture.RingSize = 0 }, "ring_size"},
		{"sensitivity", func(c *Config) { c.Aim.Sensitivity = 0 }, "sensitivity"},
		{"mask size", func(c *Config) { c.Mask = MaskConfig{Enabled: true} }, "mask size"},
		{"modifier mode", func(c *Config) { c.Keys.ModifierMode = "sometimes" }, "modifier_mode"},
		{"confidence", func(c *Config) { c.Detector.Confidence = 1.5 }, "detector.confidence"},
		{"retries", func(c *Config) { c.Activation.Retries = 0 }, "activation.retries"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestNewManagerCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m := newTestManager(t, path)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if m.GetConfigPath() != path || m.GetConfigDir() != filepath.Dir(path) {
		t.Fatalf("unexpected paths %s, %s", m.GetConfigPath(), m.GetConfigDir())
	}

	cfg, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := Default()
	if cfg.Capture != want.Capture || cfg.Aim != want.Aim || cfg.Keys != want.Keys || cfg.Activation != want.Activation {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if len(cfg.Detector.Classes) != 1 || cfg.Detector.Classes[0] != 0 {
		t.Fatalf("expected person class by default, got %v", cfg.Detector.Classes)
	}
}

func TestSetSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m := newTestManager(t, path)

	sets := map[string]string{
		"aim.sensitivity":    "0.7",
		"mask.enabled":       "true",
		"keys.quit":          "F10",
		"activation.backoff": "500ms",
		"detector.classes":   "0, 2",
		"capture.width":      "640",
	}
	for k, v := range sets {
		if err := m.Set(k, v); err != nil {
			t.Fatalf("Set(%s, %s): %v", k, v, err)
		}
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := newTestManager(t, path).Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Aim.Sensitivity != 0.7 || !cfg.Mask.Enabled || cfg.Keys.Quit != "F10" || cfg.Capture.Width != 640 {
		t.Fatalf("reloaded config missing updates: %+v", cfg)
	}
	if cfg.Activation.Backoff != 500*time.Millisecond {
		t.Fatalf("expected 500ms backoff, got %v", cfg.Activation.Backoff)
	}
	if len(cfg.Detector.Classes) != 2 || cfg.Detector.Classes[1] != 2 {
		t.Fatalf("expected classes [0 2], got %v", cfg.Detector.Classes)
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "config.yaml"))

	if err := m.Set("no.such.key", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if err := m.Set("capture.width", "wide"); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := m.Set("capture.width", "-5"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected validation error, got %v", err)
	}

	cfg, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Capture.Width != 320 {
		t.Fatalf("rejected value must not stick, width is %d", cfg.Capture.Width)
	}
}

func TestKeysAreSortedAndComplete(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "config.yaml"))
	keys := m.Keys()
	if len(keys) != len(defaultValues(Default())) {
		t.Fatalf("expected every default key, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted at %d: %s > %s", i, keys[i-1], keys[i])
		}
	}
}

func readFile(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return v
}

func TestEnvOverridesAreNotPersisted(t *testing.T) {
	t.Setenv("FOCUSTRACKER_AIM_SENSITIVITY", "0.9")
	path := filepath.Join(t.TempDir(), "config.yaml")

	m := newTestManager(t, path)
	cfg, err := m.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.Aim.Sensitivity != 0.9 {
		t.Fatalf("expected env override 0.9 in effective config, got %v", cfg.Aim.Sensitivity)
	}
	if got := readFile(t, path).GetFloat64("aim.sensitivity"); got != Default().Aim.Sensitivity {
		t.Fatalf("fresh file should hold the default sensitivity, got %v", got)
	}

	if err := m.Set("aim.prefer_center", "false"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := readFile(t, path)
	if got := saved.GetFloat64("aim.sensitivity"); got != Default().Aim.Sensitivity {
		t.Fatalf("Save persisted the env override: sensitivity %v", got)
	}
	if saved.GetBool("aim.prefer_center") {
		t.Fatalf("Save lost the explicit Set of aim.prefer_center")
	}
}

func TestSaveKeepsFileValuesOverEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	first := newTestManager(t, path)
	if err := first.Set("capture.width", "480"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := first.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("FOCUSTRACKER_CAPTURE_WIDTH", "640")
	m := newTestManager(t, path)
	if err := m.Set("keys.quit", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := readFile(t, path)
	if got := saved.GetInt("capture.width"); got != 480 {
		t.Fatalf("expected file width 480 to survive, got %d", got)
	}
	if got := saved.GetString("keys.quit"); got != "x" {
		t.Fatalf("expected quit key x, got %q", got)
	}
}
