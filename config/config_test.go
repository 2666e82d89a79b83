package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	var got *Config
	cmd := NewCommand(func(_ context.Context, cfg *Config) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestDefaults(t *testing.T) {
	cfg, err := execute(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "./typerace.db", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.Countdown)
	assert.True(t, cfg.StrictProgress)
	assert.True(t, cfg.ServerClock)
	assert.Equal(t, 10, cfg.CreateLimit)
	assert.Equal(t, 30, cfg.JoinLimit)
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.Equal(t, DefaultTexts(), cfg.Texts)
}

func TestFlags(t *testing.T) {
	cfg, err := execute(t, "--port", "9000", "--countdown", "5s", "--strict-progress=false", "--session-secret", "s3cret", "--create-limit", "0")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Countdown)
	assert.False(t, cfg.StrictProgress)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, 0, cfg.CreateLimit)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("TYPERACE_PORT", "7000")
	t.Setenv("TYPERACE_SERVER_CLOCK", "false")

	cfg, err := execute(t)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.False(t, cfg.ServerClock)

	cfg, err = execute(t, "--port", "7100")
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port, "flags win over the environment")
}

func TestValidation(t *testing.T) {
	_, err := execute(t, "--port", "70000")
	assert.ErrorContains(t, err, "invalid port")

	_, err = execute(t, "--countdown", "0s")
	assert.ErrorContains(t, err, "invalid countdown")

	_, err = execute(t, "--join-limit", "-1")
	assert.ErrorContains(t, err, "rate limits")

	_, err = execute(t, "extra")
	assert.Error(t, err)
}

func TestConfigFileTexts(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "typerace.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"texts": {"45": ["quick brown fox"], "90": ["a", "b"]}}`), 0o600))

	cfg, err := execute(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, map[int][]string{
		45: {"quick brown fox"},
		90: {"a", "b"},
	}, cfg.Texts)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"texts": {"soon": ["x"]}}`), 0o600))
	_, err = execute(t, "--config", bad)
	assert.ErrorContains(t, err, "invalid text tier")

	_, err = execute(t, "--config", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read config file")
}
