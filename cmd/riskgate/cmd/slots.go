package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/risk"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Count active run leases",
	Long: `Count non-stale run leases per kind. Counting also reclaims leases
older than the configured TTL, so this doubles as a cleanup pass.

Examples:
  riskgate slots
  riskgate slots --kind backtest`,
	Args: cobra.NoArgs,
	RunE: runSlots,
}

var slotsKind string

func init() {
	rootCmd.AddCommand(slotsCmd)

	slotsCmd.Flags().StringVarP(&slotsKind, "kind", "k", "", "run kind (default: all known kinds)")
}

func runSlots(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}

	kinds := []string{risk.KindBacktest, risk.KindHyperopt, risk.KindLive}
	if slotsKind != "" {
		kinds = []string{slotsKind}
	}
	for _, kind := range kinds {
		fmt.Printf("%s: %d\n", kind, m.CountActiveLeases(kind))
	}
	return nil
}
