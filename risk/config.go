package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment keys read by LoadEnv.
const (
	EnvMaxConcurrentBacktests = "RISK_MAX_CONCURRENT_BACKTESTS"
	EnvConcurrencyTTLSec      = "RISK_CONCURRENCY_TTL_SEC"
	EnvStateDir               = "RISK_STATE_DIR"
	EnvCircuitBreakerFile     = "RISK_CIRCUIT_BREAKER_FILE"
	EnvAllowWhenBreaker       = "RISK_ALLOW_WHEN_CB"
	EnvMaxBacktestDrawdown    = "RISK_MAX_BACKTEST_DRAWDOWN_PCT"
	EnvDBPath                 = "RISK_DB_PATH"
	EnvLiveMaxTrades          = "RISK_LIVE_MAX_CONCURRENT_TRADES"
	EnvLiveMaxExposure        = "RISK_LIVE_MAX_PER_MARKET_EXPOSURE_PCT"
)

const DefaultConcurrencyTTLSec = 900

// Config is the immutable risk configuration for one Manager. Optional caps
// are pointers so "not configured" stays distinct from an explicit zero.
type Config struct {
	// MaxConcurrentBacktests caps "backtest" leases; <=0 means unbounded.
	MaxConcurrentBacktests int `json:"max_concurrent_backtests" yaml:"max_concurrent_backtests"`

	// ConcurrencyTTLSec is the age after which a lease file is stale.
	ConcurrencyTTLSec int `json:"concurrency_ttl_sec" yaml:"concurrency_ttl_sec"`

	StateDir           string `json:"state_dir" yaml:"state_dir"`
	CircuitBreakerFile string `json:"circuit_breaker_file" yaml:"circuit_breaker_file"`

	// AllowRunWhenBreaker disables the breaker's blocking effect (still logged).
	AllowRunWhenBreaker bool `json:"allow_run_when_cb" yaml:"allow_run_when_cb"`

	// MaxBacktestDrawdown blocks new backtests when the most recent recorded
	// drawdown (normalized to a 0..1 fraction) meets or exceeds it.
	MaxBacktestDrawdown *float64 `json:"max_backtest_drawdown_pct" yaml:"max_backtest_drawdown_pct"`

	// DBPath is the metrics registry; "" disables drawdown checks and
	// incident persistence.
	DBPath string `json:"db_path" yaml:"db_path"`

	LiveMaxConcurrentTrades  *int     `json:"live_max_concurrent_trades" yaml:"live_max_concurrent_trades"`
	LiveMaxPerMarketExposure *float64 `json:"live_max_per_market_exposure_pct" yaml:"live_max_per_market_exposure_pct"`
}

// DefaultConfig returns the configuration used when nothing is set: state and
// registry paths under ./user_data, 15 minute lease TTL, no caps.
func DefaultConfig() Config {
	userData := filepath.Join(".", "user_data")
	stateDir := filepath.Join(userData, "state")
	return Config{
		ConcurrencyTTLSec:  DefaultConcurrencyTTLSec,
		StateDir:           stateDir,
		CircuitBreakerFile: filepath.Join(stateDir, "circuit_breaker.json"),
		DBPath:             filepath.Join(userData, "registry", "strategies_registry.sqlite"),
	}
}

// LoadEnv builds a Config from the process environment. Every field falls
// back to its default on absence or parse failure; loading never fails.
func LoadEnv() Config {
	return loadEnv(os.Getenv)
}

func loadEnv(get func(string) string) Config {
	cfg := DefaultConfig()

	if n, ok := parseInt(get(EnvMaxConcurrentBacktests)); ok {
		cfg.MaxConcurrentBacktests = n
	}
	if n, ok := parseInt(get(EnvConcurrencyTTLSec)); ok {
		cfg.ConcurrencyTTLSec = n
	}
	if v := get(EnvStateDir); v != "" {
		cfg.StateDir = v
		// The breaker file default tracks the state dir unless set explicitly.
		cfg.CircuitBreakerFile = filepath.Join(v, "circuit_breaker.json")
	}
	if v := get(EnvCircuitBreakerFile); v != "" {
		cfg.CircuitBreakerFile = v
	}
	cfg.AllowRunWhenBreaker = parseBool(get(EnvAllowWhenBreaker))
	if f, ok := parseFloat(get(EnvMaxBacktestDrawdown)); ok {
		cfg.MaxBacktestDrawdown = &f
	}
	if v := get(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if n, ok := parseInt(get(EnvLiveMaxTrades)); ok {
		cfg.LiveMaxConcurrentTrades = &n
	}
	if f, ok := parseFloat(get(EnvLiveMaxExposure)); ok {
		cfg.LiveMaxPerMarketExposure = &f
	}

	return cfg
}

// LoadFile reads a Config from a YAML or JSON file on top of the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if jerr := json.Unmarshal(data, &cfg); jerr != nil {
			return Config{}, fmt.Errorf("parse config (tried YAML and JSON): %w", jerr)
		}
	}
	if cfg.ConcurrencyTTLSec <= 0 {
		cfg.ConcurrencyTTLSec = DefaultConcurrencyTTLSec
	}
	return cfg, nil
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseFloat(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseBool accepts "1" and "true" (any case, trimmed). Everything else,
// including other truthy-looking strings, is false.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true":
		return true
	}
	return false
}
