package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidateRejections(t *testing.T) {
	mutations := map[string]func(*Config){
		"zero frame count":      func(c *Config) { c.FrameCount = 0 },
		"negative frame count":  func(c *Config) { c.FrameCount = -1 },
		"zero width":            func(c *Config) { c.OutputWidth = 0 },
		"zero height":           func(c *Config) { c.OutputHeight = 0 },
		"negative concurrency":  func(c *Config) { c.Concurrency = -1 },
		"fov zero":              func(c *Config) { c.Camera.HFovDeg = 0 },
		"fov 180":               func(c *Config) { c.Camera.HFovDeg = 180 },
		"pitch above range":     func(c *Config) { c.Camera.PitchDeg = 91 },
		"pitch below range":     func(c *Config) { c.Camera.PitchDeg = -91 },
		"unknown interpolation": func(c *Config) { c.Interpolation = "cubic" },
		"unknown format":        func(c *Config) { c.Output.Format = "gif" },
		"jpeg quality too low":  func(c *Config) { c.Output.Format = FormatJPEG; c.Output.JPEGQuality = 0 },
		"jpeg quality too high": func(c *Config) { c.Output.Format = FormatJPEG; c.Output.JPEGQuality = 101 },
	}

	for name, mutate := range mutations {
		cfg := Defaults()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := Defaults()
	cfg.Concurrency = 0 // means host core count
	require.NoError(t, cfg.Validate())

	cfg.Camera.PitchDeg = 90
	require.NoError(t, cfg.Validate())
	cfg.Camera.PitchDeg = -90
	require.NoError(t, cfg.Validate())
}

func TestManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.Equal(t, 360, cfg.FrameCount)
	assert.Equal(t, FormatPNG, cfg.Output.Format)
	assert.Equal(t, path, mgr.GetConfigPath())
}

func TestManagerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.FrameCount = 42
	cfg.Camera.SweepDeg = 90
	require.NoError(t, mgr.Update(&cfg))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	got := reloaded.Get()
	assert.Equal(t, 42, got.FrameCount)
	assert.Equal(t, 90.0, got.Camera.SweepDeg)
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	mgr, err := NewManager(path)
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.FrameCount = 0
	require.Error(t, mgr.Update(&cfg))
}
