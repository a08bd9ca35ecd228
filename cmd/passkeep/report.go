package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/pkg/analyzer"
)

// Report command flags
var (
	reportJSON      bool
	reportStaleDays int
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output as JSON")
	reportCmd.Flags().IntVar(&reportStaleDays, "stale-days", analyzer.DefaultStaleDays,
		"Rotation window in days before a password counts as stale (0 disables)")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analyze vault security",
	Long:  `Score the vault for weak, reused, and stale passwords.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		exported, err := v.Export()
		if err != nil {
			return fmt.Errorf("failed to read vault: %w", err)
		}

		calc := analyzer.NewCalculator().WithStaleDays(reportStaleDays)
		report, err := calc.Analyze(derefRecords(exported))
		if err != nil {
			return fmt.Errorf("failed to analyze vault: %w", err)
		}

		if reportJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Security score: %d/100 (%d records)\n\n", report.Overall, report.RecordCount)
		fmt.Printf("  Strength:   %2d/40\n", report.Components.Strength)
		fmt.Printf("  Uniqueness: %2d/30\n", report.Components.Uniqueness)
		fmt.Printf("  Freshness:  %2d/30\n", report.Components.Freshness)

		if len(report.Issues) > 0 {
			fmt.Printf("\nIssues:\n")
			for _, issue := range report.Issues {
				target := issue.Title
				if len(issue.Titles) > 0 {
					target = strings.Join(issue.Titles, ", ")
				}
				fmt.Printf("  [%s] %s: %s\n", issue.Severity, target, issue.Description)
			}
		}
		if len(report.Suggestions) > 0 {
			fmt.Printf("\nSuggestions:\n")
			for _, s := range report.Suggestions {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}
