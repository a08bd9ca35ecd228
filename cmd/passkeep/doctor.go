package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doctorRepair bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "Rebuild vault metadata when it is missing or corrupt")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check vault files for corruption",
	Long: `Verify the vault files without unlocking: salt and metadata
presence, database integrity, and file permissions. With --repair the
metadata file is rebuilt from the database; key material is never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := sess.Vault()

		result, err := v.CheckIntegrity()
		if err != nil {
			return fmt.Errorf("failed to check vault: %w", err)
		}

		mark := func(ok bool) string {
			if ok {
				return "ok"
			}
			return "FAIL"
		}
		fmt.Printf("Salt file:    %s\n", mark(result.SaltExists))
		fmt.Printf("Metadata:     %s\n", mark(result.MetaValid))
		fmt.Printf("Database:     %s\n", mark(result.DBExists && result.DBIntegrity))
		fmt.Printf("Permissions:  %s\n", mark(result.PermissionsValid))

		if result.Valid {
			fmt.Println("Vault is healthy")
			return nil
		}

		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		if !doctorRepair {
			return fmt.Errorf("vault has problems; run 'passkeep doctor --repair' or restore from a backup")
		}

		if err := v.Repair(); err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}
		fmt.Println("Metadata rebuilt; run 'passkeep doctor' again to confirm")
		return nil
	},
}
