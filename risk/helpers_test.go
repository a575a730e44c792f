package risk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/riskgate/registry"
)

// newTestManager builds a Manager over a temp state dir with no registry and
// no caps; mutate adjusts the config before construction.
func newTestManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()

	dir := t.TempDir()
	cfg := Config{
		ConcurrencyTTLSec:  DefaultConcurrencyTTLSec,
		StateDir:           filepath.Join(dir, "state"),
		CircuitBreakerFile: filepath.Join(dir, "state", "circuit_breaker.json"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, zap.NewNop())
}

// seedDrawdown writes a registry with a single backtest run carrying the
// given max_drawdown_account value and returns the database path.
func seedDrawdown(t *testing.T, value float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registry.sqlite")
	reg, err := registry.Open(path)
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.RecordRun(registry.Run{
		ID:         "bt1",
		Kind:       KindBacktest,
		StartedUTC: "2024-01-01T00:00:00Z",
	}))
	require.NoError(t, reg.RecordMetric("bt1", MetricMaxDrawdownAccount, value))
	return path
}

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }
