package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vals map[string]string) func(string) string {
	return func(key string) string { return vals[key] }
}

func TestLoadEnvDefaults(t *testing.T) {
	t.Parallel()

	cfg := loadEnv(envFrom(nil))

	assert.Equal(t, 0, cfg.MaxConcurrentBacktests)
	assert.Equal(t, DefaultConcurrencyTTLSec, cfg.ConcurrencyTTLSec)
	assert.Equal(t, filepath.Join("user_data", "state"), cfg.StateDir)
	assert.Equal(t, filepath.Join("user_data", "state", "circuit_breaker.json"), cfg.CircuitBreakerFile)
	assert.False(t, cfg.AllowRunWhenBreaker)
	assert.Nil(t, cfg.MaxBacktestDrawdown)
	assert.Equal(t, filepath.Join("user_data", "registry", "strategies_registry.sqlite"), cfg.DBPath)
	assert.Nil(t, cfg.LiveMaxConcurrentTrades)
	assert.Nil(t, cfg.LiveMaxPerMarketExposure)
}

func TestLoadEnvFullConfig(t *testing.T) {
	t.Parallel()

	cfg := loadEnv(envFrom(map[string]string{
		EnvMaxConcurrentBacktests: "4",
		EnvConcurrencyTTLSec:      "120",
		EnvStateDir:               "/var/lab/state",
		EnvCircuitBreakerFile:     "/etc/lab/cb.json",
		EnvAllowWhenBreaker:       "true",
		EnvMaxBacktestDrawdown:    "0.2",
		EnvDBPath:                 "/var/lab/registry.sqlite",
		EnvLiveMaxTrades:          "5",
		EnvLiveMaxExposure:        "25",
	}))

	assert.Equal(t, 4, cfg.MaxConcurrentBacktests)
	assert.Equal(t, 120, cfg.ConcurrencyTTLSec)
	assert.Equal(t, "/var/lab/state", cfg.StateDir)
	assert.Equal(t, "/etc/lab/cb.json", cfg.CircuitBreakerFile)
	assert.True(t, cfg.AllowRunWhenBreaker)
	require.NotNil(t, cfg.MaxBacktestDrawdown)
	assert.InDelta(t, 0.2, *cfg.MaxBacktestDrawdown, 1e-9)
	assert.Equal(t, "/var/lab/registry.sqlite", cfg.DBPath)
	require.NotNil(t, cfg.LiveMaxConcurrentTrades)
	assert.Equal(t, 5, *cfg.LiveMaxConcurrentTrades)
	require.NotNil(t, cfg.LiveMaxPerMarketExposure)
	assert.InDelta(t, 25, *cfg.LiveMaxPerMarketExposure, 1e-9)
}

func TestLoadEnvBadValuesFallBack(t *testing.T) {
	t.Parallel()

	cfg := loadEnv(envFrom(map[string]string{
		EnvMaxConcurrentBacktests: "four",
		EnvConcurrencyTTLSec:      "soon",
		EnvMaxBacktestDrawdown:    "a fifth",
		EnvLiveMaxTrades:          "3.5",
	}))

	assert.Equal(t, 0, cfg.MaxConcurrentBacktests)
	assert.Equal(t, DefaultConcurrencyTTLSec, cfg.ConcurrencyTTLSec)
	assert.Nil(t, cfg.MaxBacktestDrawdown)
	assert.Nil(t, cfg.LiveMaxConcurrentTrades)
}

func TestLoadEnvBreakerFileTracksStateDir(t *testing.T) {
	t.Parallel()

	cfg := loadEnv(envFrom(map[string]string{
		EnvStateDir: "/data/state",
	}))
	assert.Equal(t, filepath.Join("/data/state", "circuit_breaker.json"), cfg.CircuitBreakerFile)
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"True", true},
		{" TRUE ", true},
		{"yes", false},
		{"on", false},
		{"0", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("in="+tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseBool(tt.in))
		})
	}
}

func TestLoadFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_concurrent_backtests: 2
concurrency_ttl_sec: 300
state_dir: /lab/state
allow_run_when_cb: true
max_backtest_drawdown_pct: 0.15
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxConcurrentBacktests)
	assert.Equal(t, 300, cfg.ConcurrencyTTLSec)
	assert.Equal(t, "/lab/state", cfg.StateDir)
	assert.True(t, cfg.AllowRunWhenBreaker)
	require.NotNil(t, cfg.MaxBacktestDrawdown)
	assert.InDelta(t, 0.15, *cfg.MaxBacktestDrawdown, 1e-9)
}

func TestLoadFileJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "risk.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"max_concurrent_backtests": 3,
		"db_path": "/lab/registry.sqlite"
	}`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConcurrentBacktests)
	assert.Equal(t, "/lab/registry.sqlite", cfg.DBPath)
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultConcurrencyTTLSec, cfg.ConcurrencyTTLSec)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("{]: not yaml or json"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
