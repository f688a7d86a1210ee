// -- cmd/root_test.go --
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/config"
)

func TestNewRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	require.NotNil(t, root)
	assert.Equal(t, "sessionvault", root.Use)

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"capture", "sessions", "credentials", "replay", "sync"} {
		assert.Contains(t, names, want)
	}
}

func TestLoadConfigExplicitMissingFileFails(t *testing.T) {
	// An explicitly named missing file is a hard error; only the implicit
	// search path tolerates absence.
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("logger:\n  level: debug\ncapture:\n  default_profile: tester\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "tester", cfg.Capture.DefaultProfile)
	// Untouched settings keep their defaults.
	assert.Equal(t, 40, cfg.Replay.MinKeyDelayMs)
}

func TestAppMemoryOnly(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Database.URL = ""
	setAppConfig(cfg)

	app := newApp(context.Background())
	t.Cleanup(app.Close)

	sess := app.assembler.Assemble("profile-1", "https://example.com", schemas.Snapshot{
		Cookies: []schemas.Cookie{{Name: "session_id", Value: "abc"}},
	}, nil)
	require.NotNil(t, sess)

	got, ok := app.sessions.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "example.com", got.Domain)

	// Without backends every durable write is a no-op.
	assert.False(t, app.gateway.SaveSession(context.Background(), sess))
}

func TestReplayInjectStampsLastUsed(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("logger:\n  level: error\n  log_file: %s\ncache:\n  enabled: true\n  dir: %s\n",
		filepath.Join(dir, "vault.log"), filepath.Join(dir, "cache"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	setAppConfig(cfg)

	seed := newApp(context.Background())
	sess := seed.assembler.Assemble("profile-1", "https://example.com", schemas.Snapshot{
		LocalStorage: map[string]string{"auth_token": "opaque"},
	}, nil)
	require.True(t, seed.gateway.SaveSession(context.Background(), sess))
	require.Nil(t, sess.LastUsed)
	seed.Close()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", cfgPath, "replay", "inject", "--session", sess.ID})
	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), string(schemas.PlanSessionInjection))

	// Generating the plan stamped and persisted the last-used time.
	check := newApp(context.Background())
	t.Cleanup(check.Close)
	got, ok := check.sessions.Get(sess.ID)
	require.True(t, ok)
	assert.NotNil(t, got.LastUsed)
}
