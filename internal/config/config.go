package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/panoflat/panoflat/internal/logger"
	"gopkg.in/yaml.v3"
)

// Interpolation selects the source sampling kernel
type Interpolation string

const (
	InterpolationNearest  Interpolation = "nearest"
	InterpolationBilinear Interpolation = "bilinear"
)

// ImageFormat selects the frame artifact encoding
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// CameraConfig describes the camera path swept across the panorama.
// All angles are degrees; the projection core works in radians.
type CameraConfig struct {
	StartYawDeg float64 `json:"start_yaw_deg" yaml:"start_yaw_deg"`
	SweepDeg    float64 `json:"sweep_deg" yaml:"sweep_deg"`
	PitchDeg    float64 `json:"pitch_deg" yaml:"pitch_deg"`
	HFovDeg     float64 `json:"h_fov_deg" yaml:"h_fov_deg"`
}

// OutputConfig describes where and how frame artifacts are written
type OutputConfig struct {
	Dir         string      `json:"dir" yaml:"dir"`
	Format      ImageFormat `json:"format" yaml:"format"`
	JPEGQuality int         `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Config represents the application configuration
type Config struct {
	FrameCount    int           `json:"frame_count" yaml:"frame_count"`
	OutputWidth   int           `json:"output_width" yaml:"output_width"`
	OutputHeight  int           `json:"output_height" yaml:"output_height"`
	Concurrency   int           `json:"concurrency" yaml:"concurrency"` // 0 means host core count
	Interpolation Interpolation `json:"interpolation" yaml:"interpolation"`
	Camera        CameraConfig  `json:"camera" yaml:"camera"`
	Output        OutputConfig  `json:"output" yaml:"output"`
	StatusAddr    string        `json:"status_addr,omitempty" yaml:"status_addr,omitempty"`
	LogLevel      string        `json:"log_level" yaml:"log_level"`
}

// Validate checks the configuration eagerly, before any work is scheduled
func (c *Config) Validate() error {
	if c.FrameCount <= 0 {
		return fmt.Errorf("frame_count must be positive, got %d", c.FrameCount)
	}
	if c.OutputWidth <= 0 || c.OutputHeight <= 0 {
		return fmt.Errorf("output dimensions must be positive, got %dx%d", c.OutputWidth, c.OutputHeight)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.Camera.HFovDeg <= 0 || c.Camera.HFovDeg >= 180 {
		return fmt.Errorf("h_fov_deg must be in (0, 180), got %g", c.Camera.HFovDeg)
	}
	if c.Camera.PitchDeg < -90 || c.Camera.PitchDeg > 90 {
		return fmt.Errorf("pitch_deg must be in [-90, 90], got %g", c.Camera.PitchDeg)
	}
	switch c.Interpolation {
	case InterpolationNearest, InterpolationBilinear:
	default:
		return fmt.Errorf("unsupported interpolation: %q (use 'nearest' or 'bilinear')", c.Interpolation)
	}
	switch c.Output.Format {
	case FormatPNG, FormatJPEG:
	default:
		return fmt.Errorf("unsupported output format: %q (use 'png' or 'jpeg')", c.Output.Format)
	}
	if c.Output.Format == FormatJPEG && (c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be in [1, 100], got %d", c.Output.JPEGQuality)
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	// Set default configuration path
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "panoflat")
	defaultConfigPath := filepath.Join(configDir, "config.yaml")

	// Use provided config file or default
	actualConfigPath := defaultConfigPath
	if configFile != "" {
		actualConfigPath = configFile
	} else if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	// Try to read config file
	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			// Config file not found, create it with defaults
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Int("frame_count", m.config.FrameCount).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration: a full horizontal sweep at
// eye level, matching what a naive "turn around once" camera would do.
// The +180 endpoint is excluded by the path evaluator, so the sweep has
// no duplicate first/last frame.
func Defaults() *Config {
	return &Config{
		FrameCount:    360,
		OutputWidth:   1280,
		OutputHeight:  720,
		Concurrency:   0,
		Interpolation: InterpolationBilinear,
		Camera: CameraConfig{
			StartYawDeg: -180,
			SweepDeg:    360,
			PitchDeg:    0,
			HFovDeg:     60,
		},
		Output: OutputConfig{
			Dir:         "frames",
			Format:      FormatPNG,
			JPEGQuality: 90,
		},
		LogLevel: "info",
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Update replaces the current configuration and persists it
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path of the backing config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
