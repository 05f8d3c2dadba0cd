package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpulife/internal/core"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("gpulife", nil)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
	assert.Equal(t, 0.4, cfg.SeedProbability)
	assert.Equal(t, 100*time.Millisecond, cfg.Interval)
	assert.Equal(t, "software", cfg.Backend)

	opts := cfg.SimulationOptions()
	assert.Equal(t, core.Size{W: 32, H: 32}, opts.Size)
	assert.EqualValues(t, 8, opts.TileSize)
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse("gpulife", []string{"-width", "64", "-density", "0.25", "-interval", "5ms", "-tile", "4"})
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 0.25, cfg.SeedProbability)
	assert.Equal(t, 5*time.Millisecond, cfg.Interval)
	assert.EqualValues(t, 4, cfg.TileSize)
}

func TestParseFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "life.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
width: 48
height: 24
interval: 250ms
log_level: debug
`), 0o644))

	cfg, err := Parse("gpulife", []string{"-config", path, "-width", "16"})
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width, "explicit flag wins over the file")
	assert.Equal(t, 24, cfg.Height)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("gpulife", []string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseHelp(t *testing.T) {
	_, err := Parse("gpulife", []string{"-h"})
	assert.True(t, IsHelp(err))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"zero width", func(c *Config) { c.Width = 0 }, "width"},
		{"density", func(c *Config) { c.SeedProbability = 1.5 }, "seed_probability"},
		{"tile too large", func(c *Config) { c.TileSize = 1 << 20 }, "tile_size"},
		{"tile zero", func(c *Config) { c.TileSize = 0 }, "tile_size"},
		{"no backend", func(c *Config) { c.Backend = "" }, "backend"},
		{"surface", func(c *Config) { c.SurfaceSize = 0 }, "surface_size"},
		{"scale", func(c *Config) { c.Scale = 0 }, "scale"},
		{"workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"snapshots without dir", func(c *Config) { c.SnapshotEvery = 10 }, "snapshot_dir"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.edit(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, core.ErrConfiguration)
			var cerr *core.ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}
