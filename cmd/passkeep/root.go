package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/internal/config"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/vault"
)

var (
	vaultPath string
	cfg       *config.Config
	sess      *vault.Session
)

var rootCmd = &cobra.Command{
	Use:   "passkeep",
	Short: "passkeep is an encrypted password manager",
	Long:  `A local-first password manager with an encrypted SQLite vault.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if vaultPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			vaultPath = filepath.Join(home, ".passkeep")
		}

		var err error
		cfg, err = config.LoadOrDefault(vaultPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		sess = vault.NewSession(vault.New(vaultPath), cfg.LockoutPolicy())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault directory (default ~/.passkeep)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}

// ensureUnlocked prompts for the master password when the session is
// locked and reports lockout state without consuming an attempt.
func ensureUnlocked() error {
	switch sess.State() {
	case vault.StateSetupRequired:
		return fmt.Errorf("no vault at %s: run 'passkeep init' first", vaultPath)
	case vault.StateLockedOut:
		return fmt.Errorf("vault is locked out for %s after repeated failures",
			sess.Vault().RemainingCooldown().Round(time.Second))
	case vault.StateUnlocked:
		return nil
	}

	password, err := cli.ReadPassword("Enter master password: ")
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(password)

	if err := sess.Unlock(string(password)); err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}
	return nil
}

// requireVault unlocks the session and hands back the open vault.
func requireVault() (*vault.Vault, error) {
	if err := ensureUnlocked(); err != nil {
		return nil, err
	}
	return sess.Require()
}

// clipboardClearWindow converts the configured clear delay. Zero
// disables clearing.
func clipboardClearWindow(c *config.Config) time.Duration {
	return time.Duration(c.ClipboardClearSeconds) * time.Second
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sess.State() != vault.StateSetupRequired {
			return fmt.Errorf("vault already exists at %s", vaultPath)
		}

		fmt.Printf("Initializing vault at %s\n", vaultPath)
		password, err := cli.ReadPasswordConfirmed(
			"Enter master password: ", "Confirm master password: ")
		if err != nil {
			return err
		}
		defer crypto.SecureWipe(password)

		if err := sess.Setup(string(password)); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}
		defer sess.Lock()

		fmt.Println("Vault initialized successfully")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault state",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := sess.State()
		fmt.Printf("Vault:  %s\n", vaultPath)
		fmt.Printf("State:  %s\n", state)
		switch state {
		case vault.StateLockedOut:
			fmt.Printf("Retry in: %s\n", sess.Vault().RemainingCooldown().Round(time.Second))
		case vault.StateLocked:
			if attempts := sess.Vault().FailedAttempts(); attempts > 0 {
				fmt.Printf("Failed attempts: %d\n", attempts)
			}
		}
		return nil
	},
}
