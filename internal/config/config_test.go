package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/relay-chat/internal/config"
)

// isolate runs the test in an empty directory so no stray relay-chat.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultAddress, cfg.Address)
	assert.Equal(t, config.DefaultUsername, cfg.Username)
	assert.False(t, cfg.UsernameSet)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.Retry)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Profile)
}

func TestLoad_PositionalArgs(t *testing.T) {
	isolate(t)

	cfg, err := config.Load([]string{"Ann", "ws://localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", cfg.Username)
	assert.True(t, cfg.UsernameSet)
	assert.Equal(t, "ws://localhost:9000", cfg.Address)

	_, err = config.Load([]string{"Ann", "ws://a", "extra"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoad_Flags(t *testing.T) {
	isolate(t)

	cfg, err := config.Load([]string{
		"--codec", "protobuf",
		"--retry-initial", "100ms",
		"--retry-max", "2s",
		"--log-level", "debug",
		"--log-pretty",
		"-u", "Bob",
	})
	require.NoError(t, err)
	assert.Equal(t, "protobuf", cfg.Codec)
	assert.Equal(t, config.RetryConfig{Initial: 100 * time.Millisecond, Max: 2 * time.Second}, cfg.Retry)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "Bob", cfg.Username)
	assert.True(t, cfg.UsernameSet)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("RELAYCHAT_ADDRESS", "wss://relay.example")
	t.Setenv("RELAYCHAT_RETRY_INITIAL", "250ms")
	t.Setenv("RELAYCHAT_LOG_LEVEL", "error")

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example", cfg.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, "error", cfg.Log.Level)

	cfg, err = config.Load([]string{"--address", "ws://flag"})
	require.NoError(t, err)
	assert.Equal(t, "ws://flag", cfg.Address, "flags win over env")
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	yaml := "address: ws://from-file\nusername: Cat\nretry:\n  initial: 1s\n  max: 30s\nlog:\n  level: info\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay-chat.yaml"), []byte(yaml), 0o600))

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-file", cfg.Address)
	assert.Equal(t, "Cat", cfg.Username)
	assert.True(t, cfg.UsernameSet)
	assert.Equal(t, config.RetryConfig{Initial: time.Second, Max: 30 * time.Second}, cfg.Retry)
	assert.Equal(t, "info", cfg.Log.Level)

	t.Setenv("RELAYCHAT_USERNAME", "Dog")
	cfg, err = config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "Dog", cfg.Username, "env wins over file")
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec: proto\n"), 0o600))

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "proto", cfg.Codec)

	_, err = config.Load([]string{"--config", filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)

	tests := map[string][]string{
		"unknown codec":   {"--codec", "xml"},
		"empty address":   {"--address", ""},
		"negative retry":  {"--retry-initial", "-1s"},
		"max below start": {"--retry-initial", "2s", "--retry-max", "1s"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(args)
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	isolate(t)

	_, err := config.Load([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
