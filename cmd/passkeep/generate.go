package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/pkg/analyzer"
	"github.com/passkeep/passkeep/pkg/generator"
)

// Generate command flags
var (
	generateLength    int
	generateCount     int
	generateNoSymbols bool
	generateNoDigits  bool
	generateNoUpper   bool
	generateExclude   string
	generateCopy      bool
	generateScore     bool
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", 0, "Password length (default from config)")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 1, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoDigits, "no-digits", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&generateNoUpper, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().StringVar(&generateExclude, "exclude", "", "Characters to exclude (e.g. \"0O1lI\")")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy the first password to the clipboard")
	generateCmd.Flags().BoolVar(&generateScore, "score", false, "Show the strength score next to each password")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random passwords",
	Long: `Generate cryptographically random passwords.

Examples:
  # One password with the configured defaults
  passkeep generate

  # A 32-character password without symbols
  passkeep generate -l 32 --no-symbols

  # Five passwords, avoiding ambiguous characters
  passkeep generate -n 5 --exclude "0O1lI"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCount < 1 || generateCount > 100 {
			return fmt.Errorf("count must be between 1 and 100, got %d", generateCount)
		}

		opts := generator.Options{
			Length:  cfg.Generator.Length,
			Upper:   cfg.Generator.Upper && !generateNoUpper,
			Digits:  cfg.Generator.Digits && !generateNoDigits,
			Symbols: cfg.Generator.Symbols && !generateNoSymbols,
			Exclude: generateExclude,
		}
		if generateLength > 0 {
			opts.Length = generateLength
		}

		var first string
		for i := 0; i < generateCount; i++ {
			password, err := generator.Generate(opts)
			if err != nil {
				return fmt.Errorf("failed to generate password: %w", err)
			}
			if i == 0 {
				first = password
			}
			if generateScore {
				a := analyzer.Assess(password)
				fmt.Printf("%s  (%d/100 %s)\n", password, a.Score, a.LevelName)
			} else {
				fmt.Println(password)
			}
		}

		if generateCopy {
			fmt.Fprintln(os.Stderr, "First password copied to clipboard")
			if err := cli.CopyToClipboard(first, clipboardClearWindow(cfg)); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}
		return nil
	},
}
