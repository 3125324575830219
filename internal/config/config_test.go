package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alexandradec/infostop2/internal/config"
	"github.com/alexandradec/infostop2/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetArgs strips the test binary's own flags so they do not leak into the
// daemon flag set.
func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"infostopd"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "infostopd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetArgs(t)
	t.Setenv("INFOSTOPD_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Eps)
	assert.Equal(t, 0.01, cfg.Lambda)
	assert.Equal(t, 2.0, cfg.Beta)
	assert.Equal(t, 1.0, cfg.Mu)
	assert.Equal(t, "default", cfg.GridKey)
	assert.Equal(t, 512, cfg.BatchSize)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Telemetry)
	assert.False(t, cfg.Reset)
}

func TestLoadFromFile(t *testing.T) {
	resetArgs(t)
	path := writeConfigFile(t, `
eps = 75.0
lambda = 0.02
beta = 3.0
mu = 1.5
grid_key = "copenhagen"
batch_size = 128
snapshot_db = "/tmp/snapshots.db"
telemetry = true
telemetry_db = "/tmp/telemetry.db"
log_level = "debug"
`)
	t.Setenv("INFOSTOPD_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 75.0, cfg.Eps)
	assert.Equal(t, 0.02, cfg.Lambda)
	assert.Equal(t, 3.0, cfg.Beta)
	assert.Equal(t, 1.5, cfg.Mu)
	assert.Equal(t, "copenhagen", cfg.GridKey)
	assert.Equal(t, 128, cfg.BatchSize)
	assert.Equal(t, "/tmp/snapshots.db", cfg.SnapshotDB)
	assert.True(t, cfg.Telemetry)
	assert.Equal(t, "/tmp/telemetry.db", cfg.TelemetryDB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalidFile(t *testing.T) {
	resetArgs(t)
	path := writeConfigFile(t, `eps = [not toml`)
	t.Setenv("INFOSTOPD_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadInvalidLogLevel(t *testing.T) {
	resetArgs(t)
	path := writeConfigFile(t, `log_level = "loud"`)
	t.Setenv("INFOSTOPD_CONFIG", path)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"negative eps", `eps = -1.0`},
		{"negative lambda", `lambda = -0.5`},
		{"zero beta", `beta = 0.0`},
		{"zero batch size", `batch_size = 0`},
		{"empty grid key", `grid_key = ""`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetArgs(t)
			t.Setenv("INFOSTOPD_CONFIG", writeConfigFile(t, tc.content))

			_, err := config.Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	resetArgs(t, "--eps", "120", "--grid-key", "aarhus", "--log-level", "debug")
	t.Setenv("INFOSTOPD_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 120.0, cfg.Eps)
	assert.Equal(t, "aarhus", cfg.GridKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesDefaults(t *testing.T) {
	resetArgs(t)
	t.Setenv("INFOSTOPD_CONFIG", "")
	t.Setenv("INFOSTOPD_GRID_KEY", "odense")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "odense", cfg.GridKey)
}

func TestLogLevelIsValid(t *testing.T) {
	for _, level := range []config.LogLevel{
		config.LogLevelDebug,
		config.LogLevelInfo,
		config.LogLevelWarning,
		config.LogLevelError,
	} {
		assert.True(t, level.IsValid(), level.String())
	}

	assert.False(t, config.LogLevel("loud").IsValid())
	assert.False(t, config.LogLevel("").IsValid())
}
