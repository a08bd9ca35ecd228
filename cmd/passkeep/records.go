package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/passkeep/passkeep/internal/cli"
	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/generator"
	"github.com/passkeep/passkeep/pkg/vault"
)

// Add command flags
var (
	addUsername string
	addURL      string
	addNotes    string
	addCategory string
	addTags     string
	addFavorite bool
	addGenerate bool
	addCustom   []string
)

// Get command flags
var (
	getShow bool
	getCopy bool
	getJSON bool
)

// List command flags
var (
	listCategory  string
	listTag       string
	listFavorites bool
	listQuery     string
)

// Edit command flags
var (
	editUsername string
	editURL      string
	editNotes    string
	editCategory string
	editTags     string
	editPassword bool
)

// Delete command flags
var deleteForce bool

func init() {
	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Account username")
	addCmd.Flags().StringVar(&addURL, "url", "", "Account URL")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	addCmd.Flags().StringVar(&addCategory, "category", vault.CategoryLogin, "Category (login, card, identity, note, wifi, other)")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags (e.g. work,email)")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "Mark as favorite")
	addCmd.Flags().BoolVarP(&addGenerate, "generate", "g", false, "Generate the password instead of prompting")
	addCmd.Flags().StringArrayVar(&addCustom, "custom", nil, "Custom field (key=value, can be repeated)")

	getCmd.Flags().BoolVar(&getShow, "show", false, "Print the password")
	getCmd.Flags().BoolVarP(&getCopy, "copy", "c", false, "Copy the password to the clipboard")
	getCmd.Flags().BoolVar(&getJSON, "json", false, "Output as JSON (includes the password)")

	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Show favorites only")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, username, and URL")

	editCmd.Flags().StringVarP(&editUsername, "username", "u", "", "New username")
	editCmd.Flags().StringVar(&editURL, "url", "", "New URL")
	editCmd.Flags().StringVar(&editNotes, "notes", "", "New notes")
	editCmd.Flags().StringVar(&editCategory, "category", "", "New category")
	editCmd.Flags().StringVar(&editTags, "tags", "", "New comma-separated tags")
	editCmd.Flags().BoolVarP(&editPassword, "password", "p", false, "Prompt for a new password")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a record to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		rec := &vault.Record{
			Title:    args[0],
			Username: addUsername,
			URL:      addURL,
			Notes:    addNotes,
			Category: addCategory,
			Favorite: addFavorite,
			Tags:     splitTags(addTags),
		}
		if len(addCustom) > 0 {
			rec.Custom = make(map[string]string, len(addCustom))
			for _, pair := range addCustom {
				key, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid custom field %q (use key=value)", pair)
				}
				rec.Custom[key] = value
			}
		}

		if addGenerate {
			opts := generator.Options{
				Length:  cfg.Generator.Length,
				Upper:   cfg.Generator.Upper,
				Digits:  cfg.Generator.Digits,
				Symbols: cfg.Generator.Symbols,
			}
			rec.Password, err = generator.Generate(opts)
			if err != nil {
				return err
			}
		} else {
			password, err := cli.ReadPasswordConfirmed(
				"Enter password: ", "Confirm password: ")
			if err != nil {
				return err
			}
			rec.Password = string(password)
			crypto.SecureWipe(password)
		}

		stored, err := v.Create(rec)
		if err != nil {
			return fmt.Errorf("failed to add record: %w", err)
		}
		fmt.Printf("Added %q (%s)\n", stored.Title, stored.ID)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [title]",
	Short: "Show a record",
	Long:  `Show a record by title. The title may be a glob pattern matching exactly one record.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		rec, err := findRecord(v, args[0])
		if err != nil {
			return err
		}

		if getJSON {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Title:     %s\n", rec.Title)
		if rec.Username != "" {
			fmt.Printf("Username:  %s\n", rec.Username)
		}
		if getShow {
			fmt.Printf("Password:  %s\n", rec.Password)
		}
		if rec.URL != "" {
			fmt.Printf("URL:       %s\n", rec.URL)
		}
		fmt.Printf("Category:  %s\n", rec.Category)
		if len(rec.Tags) > 0 {
			fmt.Printf("Tags:      %s\n", strings.Join(rec.Tags, ", "))
		}
		if rec.Notes != "" {
			fmt.Printf("Notes:     %s\n", rec.Notes)
		}
		for key, value := range rec.Custom {
			fmt.Printf("%-9s  %s\n", key+":", value)
		}
		fmt.Printf("Updated:   %s\n", rec.UpdatedAt.Local().Format(time.RFC3339))

		if getCopy {
			_ = v.TouchLastUsed(rec.ID)
			fmt.Fprintln(os.Stderr, "Password copied to clipboard")
			if err := cli.CopyToClipboard(rec.Password, clipboardClearWindow(cfg)); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		records, err := v.List(vault.ListOptions{
			Category:      listCategory,
			Tag:           listTag,
			FavoritesOnly: listFavorites,
			Query:         listQuery,
		})
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No records found")
			return nil
		}

		for _, rec := range records {
			marker := " "
			if rec.Favorite {
				marker = "*"
			}
			line := fmt.Sprintf("%s %-30s %-10s", marker, rec.Title, rec.Category)
			if rec.Username != "" {
				line += " " + rec.Username
			}
			fmt.Println(strings.TrimRight(line, " "))
		}
		fmt.Printf("\n%d records\n", len(records))
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [title]",
	Short: "Edit a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		rec, err := findRecord(v, args[0])
		if err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("username") {
			rec.Username = editUsername
			changed = true
		}
		if cmd.Flags().Changed("url") {
			rec.URL = editURL
			changed = true
		}
		if cmd.Flags().Changed("notes") {
			rec.Notes = editNotes
			changed = true
		}
		if cmd.Flags().Changed("category") {
			rec.Category = editCategory
			changed = true
		}
		if cmd.Flags().Changed("tags") {
			rec.Tags = splitTags(editTags)
			changed = true
		}
		if editPassword {
			password, err := cli.ReadPasswordConfirmed(
				"Enter new password: ", "Confirm new password: ")
			if err != nil {
				return err
			}
			rec.Password = string(password)
			crypto.SecureWipe(password)
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to change: pass at least one field flag")
		}

		if _, err := v.Update(rec); err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		fmt.Printf("Updated %q\n", rec.Title)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [pattern]",
	Short: "Delete records",
	Long:  `Delete records by title. Glob patterns may match multiple records.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := requireVault()
		if err != nil {
			return err
		}
		defer sess.Lock()

		records, err := v.List(vault.ListOptions{})
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		titles, byTitle := indexTitles(records)

		matches, err := cli.MatchTitles(args[0], titles)
		if err != nil {
			return err
		}
		if !deleteForce {
			question := fmt.Sprintf("Delete %d record(s): %s?", len(matches), strings.Join(matches, ", "))
			if !cli.Confirm(question) {
				fmt.Println("Aborted")
				return nil
			}
		}

		for _, title := range matches {
			if err := v.Delete(byTitle[title].ID); err != nil {
				return fmt.Errorf("failed to delete %q: %w", title, err)
			}
			fmt.Printf("Deleted %q\n", title)
		}
		return nil
	},
}

// findRecord resolves a title pattern to a single record with secrets.
func findRecord(v *vault.Vault, pattern string) (*vault.Record, error) {
	records, err := v.List(vault.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	titles, byTitle := indexTitles(records)

	title, err := cli.MatchOne(pattern, titles)
	if err != nil {
		return nil, err
	}
	return v.Get(byTitle[title].ID)
}

func indexTitles(records []*vault.Record) ([]string, map[string]*vault.Record) {
	titles := make([]string, 0, len(records))
	byTitle := make(map[string]*vault.Record, len(records))
	for _, rec := range records {
		titles = append(titles, rec.Title)
		byTitle[rec.Title] = rec
	}
	return titles, byTitle
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
