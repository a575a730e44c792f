// Package risk gates compute-intensive and capital-affecting runs for the
// strategy lab. It decides admission before a run starts (circuit breaker,
// drawdown, live guardrails), hands out filesystem-backed concurrency leases
// shared across processes, and records risk incidents.
//
// Blocked is a normal outcome here, not an error: every operation returns a
// decision plus a reason string and swallows internal failures into safe
// defaults. The only fail-closed path is an unreadable circuit breaker.
package risk

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskgate/pkg/logger"
)

// Run kinds with gate-specific behavior. Callers may pass other kinds; they
// are leased for observability but never capped.
const (
	KindBacktest = "backtest"
	KindHyperopt = "hyperopt"
	KindLive     = "live"
)

// MetricMaxDrawdownAccount is the registry metric key read by the drawdown guard.
const MetricMaxDrawdownAccount = "max_drawdown_account"

// Manager is the admission gate. It holds no mutable state of its own; all
// shared state lives on the filesystem and in the registry so independent
// processes see the same picture.
type Manager struct {
	cfg Config
	log *zap.Logger
}

// RunContext is caller-supplied state about the prospective run. Nil or
// zero-value fields simply skip the corresponding guardrail.
type RunContext struct {
	// OpenTrades is the caller-reported count of currently open trades.
	OpenTrades *int

	// MarketExposure maps market name to exposure; values above 1 are read
	// as percentages.
	MarketExposure map[string]float64
}

// New constructs a Manager. A nil logger silences the manager without
// changing behavior.
func New(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{cfg: cfg, log: log}
	m.log.Debug("risk_manager_initialized",
		zap.Int("max_concurrent_backtests", cfg.MaxConcurrentBacktests),
		zap.Int("concurrency_ttl_sec", cfg.ConcurrencyTTLSec),
		zap.String("state_dir", cfg.StateDir),
		zap.String("circuit_breaker_file", cfg.CircuitBreakerFile),
		zap.String("db_path", cfg.DBPath),
	)
	return m
}

// Config returns the manager's (immutable) configuration.
func (m *Manager) Config() Config { return m.cfg }

// PreRunCheck decides whether a prospective run may start. It returns the
// decision and, when blocked, a human-readable reason. Checks run in a fixed
// order and the first failing one wins; internal lookup failures never block
// except for the circuit breaker, which fails closed.
func (m *Manager) PreRunCheck(kind, strategy, timeframe string, rc RunContext, correlationID string) (bool, string) {
	log := logger.WithCorrelation(m.log, correlationID)
	log.Info("pre_run_check",
		zap.String("kind", kind),
		zap.String("strategy", strategy),
		zap.String("timeframe", timeframe),
		zap.Int("max_concurrent_backtests", m.cfg.MaxConcurrentBacktests),
		zap.Float64p("max_backtest_drawdown_pct", m.cfg.MaxBacktestDrawdown),
		zap.Intp("live_max_concurrent_trades", m.cfg.LiveMaxConcurrentTrades),
		zap.Float64p("live_max_per_market_exposure_pct", m.cfg.LiveMaxPerMarketExposure),
	)

	if active, reason := m.CircuitBreakerActive(correlationID); active && !m.cfg.AllowRunWhenBreaker {
		log.Warn("circuit_breaker_block", zap.String("reason", reason))
		return m.decide(kind, false, "circuit_breaker", fmt.Sprintf("circuit_breaker_active: %s", reason))
	}

	if kind == KindBacktest && m.cfg.MaxBacktestDrawdown != nil {
		threshold := max(0, *m.cfg.MaxBacktestDrawdown)
		if dd, ok := m.recentBacktestDrawdown(correlationID); ok && abs(dd) >= threshold {
			log.Warn("max_dd_block", zap.Float64("recent_dd", dd))
			return m.decide(kind, false, "drawdown", fmt.Sprintf("recent_drawdown_exceeded: %g", dd))
		}
	}

	if kind == KindLive {
		if blocked, reason := m.liveTradesExceeded(rc, log); blocked {
			return m.decide(kind, false, "live_trades", reason)
		}
		if blocked, reason := m.liveExposureExceeded(rc, log); blocked {
			return m.decide(kind, false, "live_exposure", reason)
		}
	}

	return m.decide(kind, true, "", "")
}

func (m *Manager) decide(kind string, allowed bool, check, reason string) (bool, string) {
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
		gateBlocks.WithLabelValues(check).Inc()
	}
	gateDecisions.WithLabelValues(kind, outcome).Inc()
	return allowed, reason
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
