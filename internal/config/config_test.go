package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/identify"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.InputSize)
	assert.Equal(t, 16, cfg.GridSize)
	assert.Equal(t, 0.6, cfg.AcceptThreshold)
	assert.Equal(t, 0.55, cfg.PlausibleThreshold)

	sc := cfg.Scan()
	assert.Equal(t, 150*time.Millisecond, sc.Interval)
	assert.Equal(t, 2*time.Second, sc.Cooldown)
	assert.Equal(t, 2, sc.NoMatchResetTicks)
	assert.True(t, sc.AutoScan)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"grid_size": 8, "cooldown_ms": 3000, "rotated_nms": true}`), 0o644))

	t.Setenv("CARDSCAN_COOLDOWN_MS", "500")
	t.Setenv("CARDSCAN_OCR", "true")
	t.Setenv("CARDSCAN_CATALOG_PATH", "/data/catalog.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())

	assert.Equal(t, 8, cfg.GridSize)
	assert.Equal(t, 192, cfg.Descriptor().Len())
	assert.True(t, cfg.Detect().RotatedIoU)
	assert.Equal(t, 500*time.Millisecond, cfg.Scan().Cooldown)
	assert.True(t, cfg.OCR)
	assert.Equal(t, "/data/catalog.json", cfg.CatalogPath)
}

func TestPlausibleThresholdReachesIdentifier(t *testing.T) {
	t.Setenv("CARDSCAN_PLAUSIBLE_THRESHOLD", "0.95")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	require.Equal(t, 0.95, cfg.PlausibleThreshold)

	opts := cfg.Identify()
	assert.Equal(t, 0.95, opts.PlausibleThreshold)

	id := identify.New(nil, opts)
	assert.False(t, id.Plausible(identify.Candidate{Similarity: 0.60}))
	assert.True(t, id.Plausible(identify.Candidate{Similarity: 0.96}))
}

func TestLoadRejects(t *testing.T) {
	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("CARDSCAN_GRID_SIZE", "sixteen")
		_, err := Load(filepath.Join(t.TempDir(), "none.json"))
		assert.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"grid_size":`), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"input_size": 600}`), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "input_size")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.AcceptThreshold = 1.2 }},
		{"negative iou", func(c *Config) { c.IoUThreshold = -0.1 }},
		{"tiny grid", func(c *Config) { c.GridSize = 1 }},
		{"zero interval", func(c *Config) { c.TickIntervalMS = 0 }},
		{"no reset ticks", func(c *Config) { c.NoMatchResetTicks = 0 }},
	}
	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.GridSize = 8
	require.NoError(t, cfg.Save())

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, back.GridSize)
}
