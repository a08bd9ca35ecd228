package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Audit command flags
var (
	auditLimit int
	auditSince string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events to show")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Show events since duration (e.g. 24h)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		var since time.Time
		if auditSince != "" {
			d, err := time.ParseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid --since duration: %w", err)
			}
			since = time.Now().Add(-d)
		}

		events, err := v.AuditLogger().ListEvents(auditLimit, since)
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events")
			return nil
		}

		for _, event := range events {
			line := fmt.Sprintf("%s  %-16s %s", event.Timestamp, event.Operation, event.Result)
			if event.Error != nil {
				line += fmt.Sprintf("  %s: %s", event.Error.Code, event.Error.Message)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		result, err := v.AuditLogger().Verify()
		if err != nil {
			return fmt.Errorf("failed to verify audit log: %w", err)
		}

		fmt.Printf("Events checked: %d\n", result.EventCount)
		if result.Valid {
			fmt.Println("Audit chain is intact")
			return nil
		}
		fmt.Printf("Audit chain BROKEN at event %d\n", result.FirstBroken)
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
		return fmt.Errorf("audit log failed verification")
	},
}
