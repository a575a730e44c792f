package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/pkg/logger"
	"github.com/rustyeddy/riskgate/risk"
)

var rootCmd = &cobra.Command{
	Use:   "riskgate",
	Short: "Risk gating and run-concurrency control for strategy runs",
	Long: `Riskgate decides whether a backtest, hyperopt, or live run may start
and coordinates how many may run at once across independent processes.

It provides tools for:
  - Checking pre-run admission (circuit breaker, drawdown, live guardrails)
  - Managing the operator circuit breaker (kill switch)
  - Inspecting active run leases with stale-lease reclamation
  - Recording risk incidents to the strategy registry
  - Running a command under a gated concurrency lease

Complete documentation is available at https://github.com/rustyeddy/riskgate`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		// Best-effort .env load so RISK_* keys can live next to the repo.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, YAML or JSON (default: RISK_* environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
}

// newManager builds the risk manager from the --config file or, absent one,
// the environment.
func newManager() (*risk.Manager, error) {
	cfg := risk.LoadEnv()
	if cfgFile != "" {
		var err error
		cfg, err = risk.LoadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return risk.New(cfg, logger.New(logLevel)), nil
}
