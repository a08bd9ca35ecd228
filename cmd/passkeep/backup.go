package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/pkg/audit"
	"github.com/passkeep/passkeep/pkg/backup"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/porter"
)

// Backup command flags
var backupWithAudit bool

// Restore command flags
var (
	restoreDryRun bool
	restoreVerify bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().BoolVar(&backupWithAudit, "with-audit", false, "Include audit logs in the archive")

	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored without writing")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify", false, "Only verify the archive integrity")
}

var backupCmd = &cobra.Command{
	Use:   "backup [file]",
	Short: "Write an encrypted backup archive",
	Long:  `Write every record into a single encrypted archive. The archive has its own password and salt, independent of the master password.`,
	Args:  cobra.ExactArgs(1),
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

		opts := backup.Options{}
		if backupWithAudit {
			opts.AuditFiles, err = readAuditFiles(v.AuditLogger().Path())
			if err != nil {
				return err
			}
		}

		password, err := cli.ReadPasswordConfirmed(
			"Enter backup password: ", "Confirm backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}
		defer f.Close()

		if err := backup.Write(f, derefRecords(exported), password, opts); err != nil {
			os.Remove(args[0])
			return err
		}
		_ = v.AuditLogger().LogSuccess(audit.OpBackup, "")
		fmt.Printf("Backed up %d records to %s\n", len(exported), args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Restore records from a backup archive",
	Long: `Decrypt a backup archive and merge its records into the vault.
Records clashing with existing vault contents are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := cli.ReadPassword("Enter backup password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open backup file: %w", err)
		}
		defer f.Close()

		if restoreVerify {
			result := backup.Verify(f, password)
			if !result.Valid {
				return fmt.Errorf("backup verification failed: %s", result.Error)
			}
			fmt.Printf("Backup is valid: %d records, created %s\n",
				result.RecordCount, result.CreatedAt.Format("2006-01-02 15:04"))
			return nil
		}

		archive, err := backup.Read(f, password)
		if err != nil {
			return err
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
		plan := porter.PlanImport(derefRecords(exported), archive.Records)

		for _, dup := range plan.Duplicates {
			fmt.Fprintf(os.Stderr, "skipping %q: clashes with %q (%s)\n",
				dup.Record.Title, dup.Existing, dup.Reason)
		}
		if restoreDryRun {
			fmt.Printf("Dry run: %s\n", plan.Summary())
			return nil
		}

		for i := range plan.New {
			rec := plan.New[i]
			if _, err := v.Create(&rec); err != nil {
				return fmt.Errorf("failed to restore %q: %w", rec.Title, err)
			}
		}
		_ = v.AuditLogger().LogSuccess(audit.OpRestore, "")
		fmt.Printf("Restored: %s\n", plan.Summary())
		return nil
	},
}

// readAuditFiles collects the JSONL audit logs under the audit directory.
func readAuditFiles(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit directory: %w", err)
	}

	files := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read audit file: %w", err)
		}
		files[entry.Name()] = data
	}
	return files, nil
}
