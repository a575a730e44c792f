package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/pkg/id"
	"github.com/rustyeddy/riskgate/registry"
	"github.com/rustyeddy/riskgate/risk"
)

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Run a command under a gated concurrency lease",
	Long: `Run an external command (a backtest engine, a hyperopt sweep, a live
bot) behind the risk gate: pre-run admission first, then a concurrency lease
that is released when the command exits, however it exits.

The run is recorded in the registry when one is configured, and a failed
command is logged as an incident.

Examples:
  riskgate run --kind backtest --strategy EmaCross -- freqtrade backtesting ...
  riskgate run --kind live --metrics-addr :9101 -- ./livebot --config live.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runKind        string
	runStrategy    string
	runTimeframe   string
	runMetricsAddr string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runKind, "kind", "k", "backtest", "run kind (backtest|hyperopt|live|...)")
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "strategy name (for logging)")
	runCmd.Flags().StringVarP(&runTimeframe, "timeframe", "t", "", "timeframe (for logging)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	cid := id.NewCorrelation()

	allowed, reason := m.PreRunCheck(runKind, runStrategy, runTimeframe, risk.RunContext{}, cid)
	if !allowed {
		return fmt.Errorf("run blocked: %s", reason)
	}

	allowed, reason, lease := m.AcquireRunSlot(runKind, cid)
	if !allowed {
		return fmt.Errorf("run blocked: %s", reason)
	}
	defer m.ReleaseRunSlot(lease, cid)

	if runMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() { _ = http.ListenAndServe(runMetricsAddr, mux) }()
	}

	runID := id.New()
	recordRun(m, registry.Run{
		ID:         runID,
		Kind:       runKind,
		StartedUTC: time.Now().UTC().Format(time.RFC3339),
		Status:     "running",
	})

	child := exec.Command(args[0], args[1:]...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin
	runErr := child.Run()

	status := "completed"
	if runErr != nil {
		status = "failed"
	}
	recordRun(m, registry.Run{
		ID:          runID,
		Kind:        runKind,
		StartedUTC:  "",
		FinishedUTC: time.Now().UTC().Format(time.RFC3339),
		Status:      status,
	})

	if runErr != nil {
		m.LogIncident(runID, risk.SeverityError,
			fmt.Sprintf("gated %s command failed: %v", runKind, runErr), "", cid)
		return fmt.Errorf("command failed: %w", runErr)
	}
	return nil
}

// recordRun upserts the run row best-effort; a missing or broken registry
// never fails the gated command.
func recordRun(m *risk.Manager, run registry.Run) {
	dbPath := m.Config().DBPath
	if dbPath == "" {
		return
	}
	reg, err := registry.Open(dbPath)
	if err != nil {
		return
	}
	defer reg.Close()
	_ = reg.RecordRun(run)
}
