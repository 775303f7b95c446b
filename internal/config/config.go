// Package config resolves runtime settings from ~/.st/config.toml and ST_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/session-tokens/internal/logging"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

const (
	SessionsDirKey      = "sessions.dir"
	StoreBackendKey     = "store.backend"
	RedisAddrKey        = "redis.addr"
	RedisPasswordKey    = "redis.password"
	RedisDBKey          = "redis.db"
	RedisPrefixKey      = "redis.prefix"
	LedgerPathKey       = "ledger.path"
	WatchdogIntervalKey = "watchdog.interval"
	LogLevelKey         = "log.level"

	BackendTOML  = "toml"
	BackendRedis = "redis"

	configDir  = ".st"
	configName = "config"
	configType = "toml"
)

type Config struct {
	SessionsDir      string        `env:"ST_SESSIONS_DIR"`
	StoreBackend     string        `env:"ST_STORE_BACKEND"`
	RedisAddr        string        `env:"ST_REDIS_ADDR"`
	RedisPassword    string        `env:"ST_REDIS_PASSWORD"`
	RedisDB          int           `env:"ST_REDIS_DB"`
	RedisPrefix      string        `env:"ST_REDIS_PREFIX"`
	LedgerPath       string        `env:"ST_LEDGER_PATH"`
	WatchdogInterval time.Duration `env:"ST_WATCHDOG_INTERVAL"`
	LogLevel         string        `env:"ST_LOG_LEVEL"`
}

// Load reads the config file at path, or ~/.st/config.toml when path is
// empty, then applies environment overrides. A missing default file is not an
// error. The returned viper instance carries the resolved values.
func Load(path string) (Config, *viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, nil, fmt.Errorf("resolve home directory: %w", err)
	}
	base := filepath.Join(homeDir, configDir)

	v := viper.New()
	setDefaults(v, base)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(base)
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return Config{}, nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		SessionsDir:      v.GetString(SessionsDirKey),
		StoreBackend:     v.GetString(StoreBackendKey),
		RedisAddr:        v.GetString(RedisAddrKey),
		RedisPassword:    v.GetString(RedisPasswordKey),
		RedisDB:          v.GetInt(RedisDBKey),
		RedisPrefix:      v.GetString(RedisPrefixKey),
		LedgerPath:       v.GetString(LedgerPathKey),
		WatchdogInterval: v.GetDuration(WatchdogIntervalKey),
		LogLevel:         v.GetString(LogLevelKey),
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}

	v.Set(SessionsDirKey, cfg.SessionsDir)
	v.Set(StoreBackendKey, cfg.StoreBackend)
	v.Set(RedisAddrKey, cfg.RedisAddr)
	v.Set(RedisPasswordKey, cfg.RedisPassword)
	v.Set(RedisDBKey, cfg.RedisDB)
	v.Set(RedisPrefixKey, cfg.RedisPrefix)
	v.Set(LedgerPathKey, cfg.LedgerPath)
	v.Set(WatchdogIntervalKey, cfg.WatchdogInterval)
	v.Set(LogLevelKey, cfg.LogLevel)

	return cfg, v, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendTOML, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendRedis && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("redis backend requires %s", RedisAddrKey)
	}
	if c.WatchdogInterval <= 0 {
		return fmt.Errorf("%s must be positive", WatchdogIntervalKey)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

func setDefaults(v *viper.Viper, base string) {
	v.SetDefault(SessionsDirKey, filepath.Join(base, "sessions"))
	v.SetDefault(StoreBackendKey, BackendTOML)
	v.SetDefault(RedisAddrKey, "localhost:6379")
	v.SetDefault(RedisDBKey, 0)
	v.SetDefault(RedisPrefixKey, "st:session:")
	v.SetDefault(LedgerPathKey, filepath.Join(base, "alerts.db"))
	v.SetDefault(WatchdogIntervalKey, time.Minute)
	v.SetDefault(LogLevelKey, "info")
}
