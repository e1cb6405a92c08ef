package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/keeper-security/ksm-connect/internal/audit"
	"github.com/keeper-security/ksm-connect/internal/config"
	"github.com/spf13/cobra"
)

var (
	auditLimit       int
	auditType        string
	auditCorrelation string
	auditSince       time.Duration
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit events",
	Long: `Show recent entries from the audit log.

Every resolution, selection, credential access and session launch is
recorded with a per-host correlation ID, so the full history of one
connection attempt can be pulled with --correlation.

Examples:
  # The last 20 events
  ksm-connect audit

  # Launches from the past day
  ksm-connect audit --type SESSION_LAUNCH --since 24h

  # Everything that happened for one connection attempt
  ksm-connect audit --correlation 4f1c9a52-6a78-4c18-9d3e-8a3f2b7c5d10`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum number of events to show")
	auditCmd.Flags().StringVar(&auditType, "type", "", "filter by event type (e.g. SESSION_LAUNCH, RESOLVE)")
	auditCmd.Flags().StringVar(&auditCorrelation, "correlation", "", "filter by correlation ID")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only show events newer than this (e.g. 24h)")
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := audit.NewLogger(auditConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer logger.Close()

	query := audit.Query{
		Limit:         auditLimit,
		CorrelationID: auditCorrelation,
	}
	if auditType != "" {
		query.EventTypes = []audit.EventType{audit.EventType(strings.ToUpper(auditType))}
	}
	if auditSince > 0 {
		query.StartTime = time.Now().Add(-auditSince)
	}

	events, err := logger.Search(query)
	if err != nil {
		return fmt.Errorf("failed to search audit log: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No audit events match.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tRESULT\tRESOURCE\tCORRELATION")
	for _, event := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Format(time.RFC3339),
			event.Type,
			event.Result,
			event.Resource,
			event.CorrelationID,
		)
	}
	w.Flush()

	return nil
}
