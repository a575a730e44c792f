package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/pkg/id"
	"github.com/rustyeddy/riskgate/risk"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the pre-run admission check",
	Long: `Evaluate whether a prospective run would be admitted, without
acquiring a lease. Exits non-zero when the run would be blocked.

The --context flag takes the caller context as a JSON document, e.g.
  '{"open_trades_count": 3, "market_exposure_pct": {"BTC/USDT": 30}}'

Examples:
  riskgate check --kind backtest --strategy EmaCross --timeframe 1h
  riskgate check --kind live --context '{"open_trades_count": 5}'`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var (
	checkKind        string
	checkStrategy    string
	checkTimeframe   string
	checkContextJSON string
	checkCorrelation string
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkKind, "kind", "k", "backtest", "run kind (backtest|hyperopt|live|...)")
	checkCmd.Flags().StringVarP(&checkStrategy, "strategy", "s", "", "strategy name (for logging)")
	checkCmd.Flags().StringVarP(&checkTimeframe, "timeframe", "t", "", "timeframe (for logging)")
	checkCmd.Flags().StringVar(&checkContextJSON, "context", "", "caller context as JSON")
	checkCmd.Flags().StringVar(&checkCorrelation, "correlation-id", "", "correlation id (default: generated)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}

	rc, err := parseRunContext(checkContextJSON)
	if err != nil {
		return err
	}

	cid := checkCorrelation
	if cid == "" {
		cid = id.NewCorrelation()
	}

	allowed, reason := m.PreRunCheck(checkKind, checkStrategy, checkTimeframe, rc, cid)
	if !allowed {
		return fmt.Errorf("blocked: %s", reason)
	}
	fmt.Println("allowed")
	return nil
}

// parseRunContext decodes the heterogeneous caller context. Non-numeric
// values are dropped rather than rejected; callers feed this from loosely
// typed sources and a bad entry should not turn into a failed check.
func parseRunContext(raw string) (risk.RunContext, error) {
	var rc risk.RunContext
	if raw == "" {
		return rc, nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return rc, fmt.Errorf("parse context JSON: %w", err)
	}

	if v, ok := doc["open_trades_count"].(float64); ok {
		n := int(v)
		rc.OpenTrades = &n
	}
	if exp, ok := doc["market_exposure_pct"].(map[string]any); ok {
		out := make(map[string]float64, len(exp))
		for market, v := range exp {
			if f, ok := v.(float64); ok {
				out[market] = f
			}
		}
		if len(out) > 0 {
			rc.MarketExposure = out
		}
	}
	return rc, nil
}
