package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestReadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Read()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.GetInt("api.httpport"))
	require.Equal(t, "info", cfg.GetString("logging.level"))
	require.Equal(t, 4096, cfg.GetInt("store.capacity"))
	require.Equal(t, time.Second, cfg.GetDuration("store.tickPeriod"))
	require.True(t, cfg.GetBool("telemetry.prometheus.enable"))
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("store:\n  capacity: 128\n  segmentFile: /var/lib/shmtimer/timerd.seg\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timerd.yaml"), yaml, 0o600))
	chdir(t, dir)

	cfg, err := Read()
	require.NoError(t, err)
	require.Equal(t, 128, cfg.GetInt("store.capacity"))
	require.Equal(t, "/var/lib/shmtimer/timerd.seg", cfg.GetString("store.segmentFile"))
	// Untouched keys keep their defaults.
	require.Equal(t, 64, cfg.GetInt("store.payloadSize"))
}
