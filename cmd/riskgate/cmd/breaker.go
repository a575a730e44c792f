package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/risk"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Operate the global circuit breaker (kill switch)",
	Long: `Inspect or change the circuit breaker file that blocks all gated runs.

Subcommands:
  status  - Show whether the breaker is active
  enable  - Activate the breaker, optionally with an expiry
  disable - Deactivate the breaker, keeping the last reason on record

Examples:
  riskgate breaker status
  riskgate breaker enable --reason "registry migration" --minutes 90
  riskgate breaker disable`,
}

var breakerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show circuit breaker state",
	Args:  cobra.NoArgs,
	RunE:  runBreakerStatus,
}

var breakerEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Activate the circuit breaker",
	Args:  cobra.NoArgs,
	RunE:  runBreakerEnable,
}

var breakerDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Deactivate the circuit breaker",
	Args:  cobra.NoArgs,
	RunE:  runBreakerDisable,
}

var (
	breakerStateDir string
	breakerFile     string
	breakerReason   string
	breakerMinutes  int
	breakerUntil    string
)

func init() {
	rootCmd.AddCommand(breakerCmd)
	breakerCmd.AddCommand(breakerStatusCmd)
	breakerCmd.AddCommand(breakerEnableCmd)
	breakerCmd.AddCommand(breakerDisableCmd)

	breakerCmd.PersistentFlags().StringVar(&breakerStateDir, "state-dir", "", "state directory (default from config)")
	breakerCmd.PersistentFlags().StringVar(&breakerFile, "file", "", "path to circuit_breaker.json (overrides --state-dir)")
	breakerEnableCmd.Flags().StringVar(&breakerReason, "reason", "manual", "reason for enabling")
	breakerEnableCmd.Flags().IntVar(&breakerMinutes, "minutes", 0, "enable duration in minutes (0 = indefinite)")
	breakerEnableCmd.Flags().StringVar(&breakerUntil, "until", "", "enable until ISO timestamp (overrides --minutes)")
}

// breakerPath resolves the breaker file from flags, falling back to the
// configured location.
func breakerPath() string {
	if breakerFile != "" {
		return breakerFile
	}
	if breakerStateDir != "" {
		return filepath.Join(breakerStateDir, "circuit_breaker.json")
	}
	cfg := risk.LoadEnv()
	if cfgFile != "" {
		if c, err := risk.LoadFile(cfgFile); err == nil {
			cfg = c
		}
	}
	return cfg.CircuitBreakerFile
}

func runBreakerStatus(cmd *cobra.Command, args []string) error {
	path := breakerPath()
	st, err := risk.ReadBreakerState(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Circuit Breaker: inactive (no file)")
			return nil
		}
		return fmt.Errorf("read breaker state: %w", err)
	}

	label := "inactive"
	if st.Active {
		label = "ACTIVE"
	}
	fmt.Printf("Circuit Breaker: %s | reason=%s | until=%s\n", label, st.Reason, st.UntilISO)
	return nil
}

func runBreakerEnable(cmd *cobra.Command, args []string) error {
	st := risk.BreakerState{Active: true, Reason: breakerReason}
	switch {
	case breakerUntil != "":
		until, err := risk.ParseUntilISO(breakerUntil)
		if err != nil {
			return err
		}
		st.UntilISO = until
	case breakerMinutes > 0:
		st.UntilISO = time.Now().UTC().Add(time.Duration(breakerMinutes) * time.Minute).Format(time.RFC3339)
	}

	path := breakerPath()
	if err := risk.WriteBreakerState(path, st); err != nil {
		return fmt.Errorf("write breaker state: %w", err)
	}
	fmt.Printf("Circuit Breaker enabled. File: %s\n", path)
	return nil
}

func runBreakerDisable(cmd *cobra.Command, args []string) error {
	path := breakerPath()
	st, err := risk.ReadBreakerState(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Circuit Breaker already inactive.")
			return nil
		}
		// A corrupt file still gets rewritten inactive.
		st = risk.BreakerState{}
	}
	st.Active = false
	if err := risk.WriteBreakerState(path, st); err != nil {
		return fmt.Errorf("write breaker state: %w", err)
	}
	fmt.Println("Circuit Breaker disabled.")
	return nil
}
