package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gpulife/internal/gpu"
)

func headlessConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewConfig()
	cfg.Width, cfg.Height = 8, 8
	cfg.Interval = time.Millisecond
	cfg.SurfaceSize = 16
	cfg.TileSize = 4
	return cfg
}

func TestHeadlessStopsAtTickLimit(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.MaxTicks = 4
	cfg.SnapshotEvery = 2
	cfg.SnapshotDir = t.TempDir()

	h, err := NewHeadless(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Run(ctx))
	assert.EqualValues(t, 4, h.Simulation().Scheduler().Tick())

	for _, name := range []string{"frame-000002.png", "frame-000004.png"} {
		_, err := os.Stat(filepath.Join(cfg.SnapshotDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(cfg.SnapshotDir, "frame-000001.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, h.Close())
}

func TestHeadlessStopsOnCancel(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"

	h, err := NewHeadless(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Run(ctx))
}

func TestHeadlessUnknownBackend(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Backend = "vulkan-please"
	_, err := NewHeadless(cfg, nil)
	assert.ErrorIs(t, err, gpu.ErrDeviceUnavailable)
}

func TestHeadlessRejectsConfig(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Height = -1
	_, err := NewHeadless(cfg, nil)
	assert.Error(t, err)
}
