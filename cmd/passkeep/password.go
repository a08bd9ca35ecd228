package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/pkg/analyzer"
	"github.com/passkeep/passkeep/pkg/crypto"
)

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordChangeCmd)
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the master password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the master password",
	Long: `Re-wrap the vault key under a new master password. Records are not
re-encrypted, so the change is fast regardless of vault size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		current, err := cli.ReadPassword("Enter current master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(current)

		next, err := cli.ReadPasswordConfirmed(
			"Enter new master password: ", "Confirm new master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(next)

		if a := analyzer.Assess(string(next)); a.Level == analyzer.LevelWeak {
			fmt.Printf("Warning: the new password scores %d/100 (%s)\n", a.Score, a.LevelName)
			if !cli.Confirm("Use it anyway?") {
				return fmt.Errorf("aborted")
			}
		}

		if err := v.ChangeMasterPassword(string(current), string(next)); err != nil {
			return err
		}
		fmt.Println("Master password changed")
		return nil
	},
}
