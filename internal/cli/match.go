// Package cli provides shared helpers for passkeep commands.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MatchTitles resolves a title or glob pattern against existing record
// titles. Without glob characters it requires an exact, case-insensitive
// match; with them it returns every matching title.
func MatchTitles(pattern string, titles []string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		for _, title := range titles {
			if strings.EqualFold(title, pattern) {
				return []string{title}, nil
			}
		}
		return nil, fmt.Errorf("record %q not found", pattern)
	}

	var matches []string
	lowered := strings.ToLower(pattern)
	for _, title := range titles {
		ok, err := filepath.Match(lowered, strings.ToLower(title))
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, title)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no records match pattern %q", pattern)
	}
	return matches, nil
}

// MatchOne resolves a pattern that must name exactly one record.
func MatchOne(pattern string, titles []string) (string, error) {
	matches, err := MatchTitles(pattern, titles)
	if err != nil {
		return "", err
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("pattern %q matches %d records: %s",
			pattern, len(matches), strings.Join(matches, ", "))
	}
	return matches[0], nil
}
