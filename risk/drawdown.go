package risk

import (
	"os"

	"go.uber.org/zap"

	"github.com/rustyeddy/riskgate/pkg/logger"
	"github.com/rustyeddy/riskgate/registry"
)

// recentBacktestDrawdown returns the most recent recorded max_drawdown_account
// metric, normalized to a fraction with its sign preserved. Missing database,
// missing tables, missing rows, and query errors are all the same "no signal"
// outcome; this check may fail open, never closed.
func (m *Manager) recentBacktestDrawdown(correlationID string) (float64, bool) {
	log := logger.WithCorrelation(m.log, correlationID).With(
		zap.String("op", "recent_backtest_drawdown"))

	db := m.cfg.DBPath
	if db == "" {
		return 0, false
	}
	if _, err := os.Stat(db); err != nil {
		log.Debug("dd_check_skipped_no_db", zap.String("db_path", db))
		return 0, false
	}

	reg, err := registry.Open(db)
	if err != nil {
		log.Error("dd_check_db_error", zap.String("db_path", db), zap.Error(err))
		return 0, false
	}
	defer reg.Close()

	val, ok, err := reg.LatestMetric(KindBacktest, MetricMaxDrawdownAccount)
	if err != nil {
		log.Error("dd_check_db_error", zap.String("db_path", db), zap.Error(err))
		return 0, false
	}
	if !ok {
		log.Debug("dd_check_no_metric_found")
		return 0, false
	}

	// Stored either as a fraction (0.25) or a percent (25); normalize to a
	// fraction, keeping the original sign.
	f := normalizeFraction(val)
	if val < 0 {
		f = -f
	}
	return f, true
}
