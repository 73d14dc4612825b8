package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfigFile(t *testing.T, path, logLevel string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("log_level: "+logLevel+"\n"), 0o644))
}

func TestWatcherReloadInvokesCallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localcloud.yaml")
	writeConfigFile(t, path, "info")
	t.Setenv("LOCALCLOUD_CONFIG", path)

	initial, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "info", initial.LogLevel)

	w, err := NewWatcher(initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) { reloaded <- cfg })

	writeConfigFile(t, path, "debug")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "debug", w.Current().LogLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback was not invoked")
	}
}

func TestWatcherInertOutsideDevelopment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localcloud.yaml")
	writeConfigFile(t, path, "info")
	t.Setenv("LOCALCLOUD_CONFIG", path)

	w, err := NewWatcher(&Config{Environment: "production", LogLevel: "info"}, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	called := make(chan struct{}, 1)
	w.OnChange(func(*Config) { called <- struct{}{} })
	writeConfigFile(t, path, "debug")

	select {
	case <-called:
		t.Fatal("inert watcher must not reload")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, "info", w.Current().LogLevel)
}
