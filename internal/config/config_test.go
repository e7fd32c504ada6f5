package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NRITYA_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 0, cfg.CameraID)
	assert.Equal(t, 10.0, cfg.MarginMM)
	assert.Equal(t, 0, cfg.DropFrames)
	assert.Equal(t, 4, cfg.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
	assert.False(t, cfg.Tray)
	assert.Empty(t, cfg.TrackerCmd)
	assert.Equal(t, filepath.Join(dir, "plugins"), cfg.PluginDir)
	assert.Equal(t, filepath.Join(dir, "nritya.db"), cfg.DatabasePath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NRITYA_DATA_DIR", t.TempDir())
	t.Setenv("NRITYA_ADDR", "127.0.0.1:9000")
	t.Setenv("NRITYA_MARGIN_MM", "25.5")
	t.Setenv("NRITYA_DROP_FRAMES", "3")
	t.Setenv("NRITYA_TRACKER_CMD", "python3 tracker.py --openni")
	t.Setenv("NRITYA_PLUGIN_DIR", "/opt/nritya/plugins")
	t.Setenv("NRITYA_TRAY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 25.5, cfg.MarginMM)
	assert.Equal(t, 3, cfg.DropFrames)
	assert.Equal(t, []string{"python3", "tracker.py", "--openni"}, cfg.TrackerCmd)
	assert.Equal(t, "/opt/nritya/plugins", cfg.PluginDir)
	assert.True(t, cfg.Tray)
}

func TestLoad_ZeroMargin(t *testing.T) {
	t.Setenv("NRITYA_DATA_DIR", t.TempDir())
	t.Setenv("NRITYA_MARGIN_MM", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.MarginMM)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unparsable value", func(t *testing.T) {
		t.Setenv("NRITYA_DATA_DIR", t.TempDir())
		t.Setenv("NRITYA_CAMERA_ID", "front")

		_, err := Load()
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "parse env:"))
	})

	t.Run("negative margin", func(t *testing.T) {
		t.Setenv("NRITYA_DATA_DIR", t.TempDir())
		t.Setenv("NRITYA_MARGIN_MM", "-1")

		_, err := Load()
		assert.ErrorContains(t, err, "NRITYA_MARGIN_MM")
	})

	t.Run("negative drop frames", func(t *testing.T) {
		t.Setenv("NRITYA_DATA_DIR", t.TempDir())
		t.Setenv("NRITYA_DROP_FRAMES", "-1")

		_, err := Load()
		assert.ErrorContains(t, err, "NRITYA_DROP_FRAMES")
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Setenv("NRITYA_DATA_DIR", t.TempDir())
		t.Setenv("NRITYA_QUEUE_SIZE", "0")

		_, err := Load()
		assert.ErrorContains(t, err, "NRITYA_QUEUE_SIZE")
	})
}
