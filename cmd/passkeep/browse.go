package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/tui"
)

func init() {
	rootCmd.AddCommand(browseCmd)
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse records interactively",
	Long:  `Open a full-screen record browser with filtering, detail view, and clipboard copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		model := tui.New(v).WithClipboardClear(clipboardClearWindow(cfg))
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("failed to run browser: %w", err)
		}
		return nil
	},
}
