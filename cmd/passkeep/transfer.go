package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/pkg/audit"
	"github.com/passkeep/passkeep/pkg/porter"
	"github.com/passkeep/passkeep/pkg/vault"
)

// Export command flags
var (
	exportFormat string
	exportOutput string
	exportForce  bool
)

// Import command flags
var (
	importFormat string
	importDryRun bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().BoolVarP(&exportForce, "force", "f", false, "Skip the plaintext warning prompt")

	importCmd.Flags().StringVar(&importFormat, "format", "json",
		"Input format: "+strings.Join(porter.ValidFormats(), ", "))
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without writing")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all records in plaintext",
	Long:  `Export every record, including passwords, as JSON or CSV. Handle the output like the secrets it contains.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		if !exportForce && exportOutput != "" {
			if !cli.Confirm(fmt.Sprintf("Write all passwords in plaintext to %s?", exportOutput)) {
				fmt.Println("Aborted")
				return nil
			}
		}

		exported, err := v.Export()
		if err != nil {
			return fmt.Errorf("failed to export records: %w", err)
		}
		records := derefRecords(exported)

		var data []byte
		switch exportFormat {
		case "json":
			data, err = porter.ExportJSON(records)
		case "csv":
			data, err = porter.ExportCSV(records)
		default:
			return fmt.Errorf("unsupported export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		if exportOutput == "" {
			_, err = os.Stdout.Write(data)
		} else {
			err = os.WriteFile(exportOutput, data, 0600)
		}
		if err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		_ = v.AuditLogger().LogSuccess(audit.OpExport, "")
		if exportOutput != "" {
			fmt.Printf("Exported %d records to %s\n", len(records), exportOutput)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import records from an export file",
	Long: `Import records from a passkeep export or a competitor's export.

Records clashing with existing vault contents (same title and username,
or an identical password) are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parser, err := porter.GetParser(porter.Format(importFormat))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		result, err := parser.Parse(data)
		if err != nil {
			return err
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
		}
		for _, skipped := range result.Skipped {
			fmt.Fprintf(os.Stderr, "skipped %q: %s\n", skipped.Title, skipped.Reason)
		}
		if len(result.Records) == 0 {
			return fmt.Errorf("no importable records in %s", args[0])
		}

		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		exported, err := v.Export()
		if err != nil {
			return fmt.Errorf("failed to read vault: %w", err)
		}
		plan := porter.PlanImport(derefRecords(exported), result.Records)

		for _, dup := range plan.Duplicates {
			fmt.Fprintf(os.Stderr, "duplicate %q: clashes with %q (%s)\n",
				dup.Record.Title, dup.Existing, dup.Reason)
		}
		if importDryRun {
			fmt.Printf("Dry run: %s\n", plan.Summary())
			return nil
		}

		for i := range plan.New {
			rec := plan.New[i]
			// Imported IDs come from foreign tools; let the vault assign.
			rec.ID = ""
			if _, err := v.Create(&rec); err != nil {
				return fmt.Errorf("failed to import %q: %w", rec.Title, err)
			}
		}
		_ = v.AuditLogger().LogSuccess(audit.OpImport, "")
		fmt.Printf("Imported: %s\n", plan.Summary())
		return nil
	},
}

func derefRecords(records []*vault.Record) []vault.Record {
	out := make([]vault.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}
	return out
}
