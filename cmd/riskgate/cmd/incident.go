package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskgate/pkg/id"
	"github.com/rustyeddy/riskgate/registry"
)

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Record and inspect risk incidents",
	Long: `Record a risk incident or list recent ones from the registry.

Examples:
  riskgate incident log --severity error --description "backtest OOM killed" --run-id 01J...
  riskgate incident list --limit 20`,
}

var incidentLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Record an incident",
	Args:  cobra.NoArgs,
	RunE:  runIncidentLog,
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent incidents",
	Args:  cobra.NoArgs,
	RunE:  runIncidentList,
}

var (
	incidentRunID       string
	incidentSeverity    string
	incidentDescription string
	incidentExcerpt     string
	incidentLimit       int
)

func init() {
	rootCmd.AddCommand(incidentCmd)
	incidentCmd.AddCommand(incidentLogCmd)
	incidentCmd.AddCommand(incidentListCmd)

	incidentLogCmd.Flags().StringVar(&incidentRunID, "run-id", "", "run the incident belongs to")
	incidentLogCmd.Flags().StringVar(&incidentSeverity, "severity", "warning", "severity (info|warning|error|critical)")
	incidentLogCmd.Flags().StringVar(&incidentDescription, "description", "", "what happened")
	incidentLogCmd.Flags().StringVar(&incidentExcerpt, "log-excerpt", "", "path to a saved log excerpt")
	incidentLogCmd.MarkFlagRequired("description")

	incidentListCmd.Flags().IntVar(&incidentLimit, "limit", 20, "max incidents to show (0 = all)")
}

func runIncidentLog(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}

	m.LogIncident(incidentRunID, incidentSeverity, incidentDescription, incidentExcerpt, id.NewCorrelation())
	return nil
}

func runIncidentList(cmd *cobra.Command, args []string) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	dbPath := m.Config().DBPath
	if dbPath == "" {
		return fmt.Errorf("no registry database configured")
	}

	reg, err := registry.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer reg.Close()

	incidents, err := reg.ListIncidents(incidentLimit)
	if err != nil {
		return fmt.Errorf("list incidents: %w", err)
	}
	if len(incidents) == 0 {
		fmt.Println("No incidents recorded.")
		return nil
	}
	for _, inc := range incidents {
		fmt.Printf("%s  %-8s  run=%s  %s\n", inc.CreatedUTC, inc.Severity, inc.RunID, inc.Description)
	}
	return nil
}
