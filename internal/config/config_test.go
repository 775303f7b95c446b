package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	cfg, v, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(homeDir, ".st", "sessions"), cfg.SessionsDir)
	assert.Equal(t, filepath.Join(homeDir, ".st", "alerts.db"), cfg.LedgerPath)
	assert.Equal(t, BackendTOML, cfg.StoreBackend)
	assert.Equal(t, time.Minute, cfg.WatchdogInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, cfg.SessionsDir, v.GetString(SessionsDirKey))
}

func TestLoadConfigFileThenEnvOverrides(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	require.NoError(t, os.MkdirAll(filepath.Join(homeDir, ".st"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, ".st", "config.toml"), []byte(strings.Join([]string{
		"[sessions]",
		"dir = \"/srv/st/sessions\"",
		"",
		"[store]",
		"backend = \"Redis\"",
		"",
		"[redis]",
		"addr = \"cache:6379\"",
		"",
		"[watchdog]",
		"interval = \"30s\"",
		"",
	}, "\n")), 0o600))
	t.Setenv("ST_REDIS_ADDR", "override:6380")
	t.Setenv("ST_LOG_LEVEL", "debug")

	cfg, v, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/st/sessions", cfg.SessionsDir)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "override:6380", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.WatchdogInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "override:6380", v.GetString(RedisAddrKey))
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "backend", env: map[string]string{"ST_STORE_BACKEND": "etcd"}, wantErr: "unknown store backend"},
		{name: "interval", env: map[string]string{"ST_WATCHDOG_INTERVAL": "0s"}, wantErr: "watchdog.interval must be positive"},
		{name: "log level", env: map[string]string{"ST_LOG_LEVEL": "loud"}, wantErr: "unknown log level"},
		{name: "bad duration", env: map[string]string{"ST_WATCHDOG_INTERVAL": "soon"}, wantErr: "parse env"},
		{name: "redis without addr", env: map[string]string{"ST_STORE_BACKEND": "redis", "ST_REDIS_ADDR": " "}, wantErr: "redis backend requires"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, _, err := Load("")
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
