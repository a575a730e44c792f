package risk

import (
	"fmt"

	"go.uber.org/zap"
)

// normalizeFraction maps a mixed percent/fraction value onto 0..1: anything
// with absolute value above 1 is read as a percentage. Applied identically to
// configured thresholds and observed exposures so heterogeneous callers agree.
func normalizeFraction(x float64) float64 {
	a := abs(x)
	if a > 1 {
		a /= 100
	}
	return a
}

// liveTradesExceeded enforces the open-trade cap for live runs. A missing
// caller-reported count never blocks.
func (m *Manager) liveTradesExceeded(rc RunContext, log *zap.Logger) (bool, string) {
	if m.cfg.LiveMaxConcurrentTrades == nil || rc.OpenTrades == nil {
		return false, ""
	}
	limit := max(0, *m.cfg.LiveMaxConcurrentTrades)
	open := *rc.OpenTrades
	if open < limit {
		return false, ""
	}
	log.Warn("live_concurrent_trades_block",
		zap.Int("open_trades", open), zap.Int("max", *m.cfg.LiveMaxConcurrentTrades))
	return true, fmt.Sprintf("live_concurrent_trades_exceeded: %d/%d", open, *m.cfg.LiveMaxConcurrentTrades)
}

// liveExposureExceeded blocks when any single market's exposure is above the
// configured per-market cap. The reason reports the exposure as supplied and
// the threshold as normalized; strictly-above keeps exactly-at-cap allowed.
func (m *Manager) liveExposureExceeded(rc RunContext, log *zap.Logger) (bool, string) {
	if m.cfg.LiveMaxPerMarketExposure == nil || len(rc.MarketExposure) == 0 {
		return false, ""
	}
	threshold := normalizeFraction(*m.cfg.LiveMaxPerMarketExposure)
	for market, raw := range rc.MarketExposure {
		if normalizeFraction(raw) > threshold {
			log.Warn("live_per_market_exposure_block",
				zap.String("market", market),
				zap.Float64("exposure", raw),
				zap.Float64("threshold", threshold))
			return true, fmt.Sprintf("per_market_exposure_exceeded:%s:%g>%g", market, raw, threshold)
		}
	}
	return false, ""
}
