package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fsgate/internal/allowlist"
	"github.com/ppiankov/fsgate/internal/logging"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, allowlist.DefaultEnvVar, cfg.AllowedDirsEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AuditLog)
	assert.Equal(t, DefaultHost, cfg.HTTP.Host)
	assert.Equal(t, DefaultPort, cfg.HTTP.Port)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
allowed_dirs_env: FSGATE_DIRS
log_level: debug
audit_log: /var/log/fsgate/audit.jsonl
http:
  host: 0.0.0.0
  port: 8080
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "FSGATE_DIRS", cfg.AllowedDirsEnv)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/log/fsgate/audit.jsonl", cfg.AuditLog)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log_level: warn\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, allowlist.DefaultEnvVar, cfg.AllowedDirsEnv)
	assert.Equal(t, DefaultPort, cfg.HTTP.Port)
}

func TestPortEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "http:\n  port: 8080\n")
	t.Setenv(PortEnvVar, "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		port string
	}{
		{"bad yaml", "log_level: [", ""},
		{"bad level", "log_level: loud\n", ""},
		{"port out of range", "http:\n  port: 70000\n", ""},
		{"bad port env", "", "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(PortEnvVar, tt.port)
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, tt.body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestAuditLogHomeExpanded(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "audit_log: ~/fsgate/audit.jsonl\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "fsgate", "audit.jsonl"), cfg.AuditLog)
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.LogLevel = "error"
	cfg.HTTP.Port = 4000
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", loaded.LogLevel)
	assert.Equal(t, 4000, loaded.HTTP.Port)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(DefaultPath()))
	assert.Equal(t, AppName, filepath.Base(filepath.Dir(DefaultPath())))
}

func TestReloaderAppliesChanges(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log_level: info\n")

	var (
		mu     sync.Mutex
		levels []string
	)
	logger, _ := logging.NewTest()
	r, err := NewReloader(path, func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, cfg.LogLevel)
	}, logger)
	require.NoError(t, err)
	r.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	writeConfig(t, path, "log_level: debug\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReloaderKeepsSettingsOnParseError(t *testing.T) {
	t.Setenv(PortEnvVar, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log_level: info\n")

	applied := make(chan *Config, 4)
	logger, buf := logging.NewTest()
	r, err := NewReloader(path, func(cfg *Config) { applied <- cfg }, logger)
	require.NoError(t, err)
	t.Cleanup(func() { r.watcher.Close() })

	writeConfig(t, path, "log_level: [")
	r.reload()

	assert.Empty(t, applied)
	assert.Contains(t, buf.String(), "config reload failed")
}
