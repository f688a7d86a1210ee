// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "sessionvault", cfg.Logger.ServiceName)
	assert.True(t, cfg.Cache.Enabled)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.Equal(t, time.Minute, cfg.Store.ReevaluateInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.Store.DefaultTTL)
	assert.Equal(t, 40, cfg.Replay.MinKeyDelayMs)
	assert.Equal(t, "default", cfg.Capture.DefaultProfile)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("logger.level", "debug")
	v.Set("database.url", "postgres://localhost:5432/vault")
	v.Set("replay.min_key_delay_ms", 10)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "postgres://localhost:5432/vault", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Replay.MinKeyDelayMs)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero reevaluate interval",
			mutate:  func(c *Config) { c.Store.ReevaluateInterval = 0 },
			wantErr: "store.reevaluate_interval",
		},
		{
			name:    "zero default ttl",
			mutate:  func(c *Config) { c.Store.DefaultTTL = 0 },
			wantErr: "store.default_ttl",
		},
		{
			name:    "zero key delay",
			mutate:  func(c *Config) { c.Replay.MinKeyDelayMs = 0 },
			wantErr: "replay.min_key_delay_ms",
		},
		{
			name:    "negative jitter",
			mutate:  func(c *Config) { c.Replay.KeyDelayJitterMs = -1 },
			wantErr: "replay.key_delay_jitter_ms",
		},
		{
			name:    "cache enabled without dir",
			mutate:  func(c *Config) { c.Cache.Dir = "" },
			wantErr: "cache.dir",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("store.reevaluate_interval", "0s")

	_, err := NewConfigFromViper(v)
	assert.Error(t, err)
}
