package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/FocusTracker/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned by Set for keys that are not part of Config.
var ErrUnknownKey = errors.New("unknown configuration key")

// EnvPrefix prefixes environment overrides, e.g. FOCUSTRACKER_AIM_SENSITIVITY.
const EnvPrefix = "FOCUSTRACKER"

// Manager handles configuration
type Manager struct {
	configPath string
	// v is the effective view: defaults, file, environment, bound flags.
	v *viper.Viper
	// file holds only defaults, the file and Set calls. Save writes it.
	file     *viper.Viper
	defaults map[string]any
	mu       sync.RWMutex
}

// DefaultPath returns $HOME/.config/focustracker/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "focustracker", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty, into the
// global viper instance so that flags bound by the CLI take precedence. A
// missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return newManager(path, viper.GetViper())
}

func newManager(path string, v *viper.Viper) (*Manager, error) {
	log := logger.WithComponent("config")

	m := &Manager{
		configPath: path,
		v:          v,
		file:       viper.New(),
		defaults:   defaultValues(Default()),
	}
	for key, value := range m.defaults {
		v.SetDefault(key, value)
		m.file.SetDefault(key, value)
	}
	for _, fv := range []*viper.Viper{v, m.file} {
		fv.SetConfigFile(path)
		fv.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
		log.Info().Str("path", path).Msg("Config file not found, creating new config")
		if err := m.write(Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := m.file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	log.Info().Str("path", path).Msg("Config loaded")
	return m, nil
}

// defaultValues flattens cfg into dotted viper keys.
func defaultValues(cfg *Config) map[string]any {
	return map[string]any{
		"capture.width":           cfg.Capture.Width,
		"capture.height":          cfg.Capture.Height,
		"capture.ring_size":       cfg.Capture.RingSize,
		"capture.target_fps":      cfg.Capture.TargetFPS,
		"aim.sensitivity":         cfg.Aim.Sensitivity,
		"aim.headshot":            cfg.Aim.Headshot,
		"aim.prefer_center":       cfg.Aim.PreferCenter,
		"aim.min_confidence":      cfg.Aim.MinConfidence,
		"mask.enabled":            cfg.Mask.Enabled,
		"mask.width":              cfg.Mask.Width,
		"mask.height":             cfg.Mask.Height,
		"keys.quit":               cfg.Keys.Quit,
		"keys.modifier":           cfg.Keys.Modifier,
		"keys.modifier_mode":      cfg.Keys.ModifierMode,
		"detector.model_path":     cfg.Detector.ModelPath,
		"detector.input_size":     cfg.Detector.InputSize,
		"detector.confidence":     cfg.Detector.Confidence,
		"detector.iou":            cfg.Detector.IoU,
		"detector.max_detections": cfg.Detector.MaxDetections,
		"detector.classes":        cfg.Detector.Classes,
		"detector.cuda":           cfg.Detector.CUDA,
		"activation.retries":      cfg.Activation.Retries,
		"activation.backoff":      cfg.Activation.Backoff,
		"server.enabled":          cfg.Server.Enabled,
		"server.port":             cfg.Server.Port,
		"server.preview_fps":      cfg.Server.PreviewFPS,
		"log_level":               cfg.LogLevel,
		"pretty_logs":             cfg.PrettyLogs,
		"cps_display":             cfg.CPSDisplay,
	}
}

// Keys returns every configuration key in sorted order.
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.defaults))
	for k := range m.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the effective configuration: defaults, then file, then
// environment, then bound flags.
func (m *Manager) Get() (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.decode()
}

func (m *Manager) decode() (*Config, error) {
	return decode(m.v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Set parses value according to the type of key and stores it, both in the
// effective view and in the file-level settings Save writes. The change is
// rejected if either resulting configuration does not validate.
func (m *Manager) Set(key, value string) error {
	def, ok := m.defaults[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	parsed, err := parseValue(def, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, prevFile := m.v.Get(key), m.file.Get(key)
	m.v.Set(key, parsed)
	m.file.Set(key, parsed)

	err = validate(m.v)
	if err == nil {
		err = validate(m.file)
	}
	if err != nil {
		m.v.Set(key, prev)
		m.file.Set(key, prevFile)
		return err
	}
	return nil
}

func validate(v *viper.Viper) error {
	cfg, err := decode(v)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func parseValue(like any, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch like.(type) {
	case int:
		return strconv.Atoi(value)
	case float64:
		return strconv.ParseFloat(value, 64)
	case bool:
		return strconv.ParseBool(value)
	case time.Duration:
		return time.ParseDuration(value)
	case []int:
		out := []int{}
		if value == "" {
			return out, nil
		}
		for _, part := range strings.Split(value, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return value, nil
	}
}

// Save writes the file-level settings to disk as YAML. Environment and
// flag overrides are never persisted.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg, err := decode(m.file)
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return m.write(cfg)
}

func (m *Manager) write(cfg *Config) error {
	log := logger.WithComponent("config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Debug().Str("path", m.configPath).Msg("Config saved")
	return nil
}

// GetViper returns the underlying viper instance.
func (m *Manager) GetViper() *viper.Viper {
	return m.v
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
