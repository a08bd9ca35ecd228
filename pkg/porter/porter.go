// Package porter moves records in and out of the vault. It provides the
// native JSON and CSV exchange formats plus parsers for Bitwarden JSON,
// LastPass CSV, and 1Password CSV exports.
package porter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/passkeep/passkeep/pkg/vault"
)

// Format identifies an exchange format.
type Format string

const (
	FormatJSON        Format = "json"
	FormatCSV         Format = "csv"
	FormatBitwarden   Format = "bitwarden"
	FormatLastPass    Format = "lastpass"
	Format1Password   Format = "1password"
	maxImportWarnings        = 100
)

// ValidFormats returns the accepted import format names.
func ValidFormats() []string {
	return []string{
		string(FormatJSON),
		string(FormatCSV),
		string(FormatBitwarden),
		string(FormatLastPass),
		string(Format1Password),
	}
}

// ParseResult carries the outcome of parsing one export file.
type ParseResult struct {
	// Records are the successfully parsed entries.
	Records []vault.Record
	// Warnings are non-fatal issues encountered while parsing.
	Warnings []string
	// Skipped lists items dropped with a reason.
	Skipped []SkippedItem
}

// SkippedItem is an entry that could not be imported.
type SkippedItem struct {
	Title  string
	Reason string
}

// Parser reads one exchange format into records.
type Parser interface {
	Parse(data []byte) (*ParseResult, error)
	Format() Format
}

// GetParser returns the parser for a format name.
func GetParser(format Format) (Parser, error) {
	switch format {
	case FormatJSON:
		return &JSONParser{}, nil
	case FormatCSV:
		return &CSVParser{}, nil
	case FormatBitwarden:
		return &BitwardenParser{}, nil
	case FormatLastPass:
		return &LastPassParser{}, nil
	case Format1Password:
		return &OnePasswordParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import format: %s", format)
	}
}

func (r *ParseResult) warnf(format string, args ...any) {
	if len(r.Warnings) >= maxImportWarnings {
		return
	}
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ParseResult) skip(title, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{Title: title, Reason: reason})
}

// normalizeValue prepares a value for comparison: trimmed and NFC.
func normalizeValue(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// fallbackTitle derives a title from a URL hostname, or numbers the
// item when no URL is available.
func fallbackTitle(url string, counter int) string {
	if host := hostnameOf(url); host != "" {
		return host
	}
	return fmt.Sprintf("imported item %d", counter)
}

func hostnameOf(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	if idx := strings.IndexAny(url, "/:"); idx != -1 {
		url = url[:idx]
	}
	return strings.TrimPrefix(url, "www.")
}

// decodeHTMLEntities reverses the HTML encoding some exports apply to
// special characters.
func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

// sanitizeURL clears values the record validator would reject so one
// malformed link does not sink the whole row.
func sanitizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return ""
	}
	if len(url) > vault.MaxURLLength {
		return ""
	}
	return url
}

// sanitizeTag rewrites a source tag into the accepted tag alphabet.
func sanitizeTag(tag string) string {
	tag = norm.NFC.String(strings.TrimSpace(tag))
	var b strings.Builder
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '/' || r == '\\':
			b.WriteRune('-')
		}
	}
	return truncate(b.String(), vault.MaxTagLength)
}

// clampTitle truncates a title to the record limit.
func clampTitle(title string) string {
	return truncate(normalizeValue(title), vault.MaxTitleLength)
}

// truncate cuts s to at most limit bytes, backing up to a rune
// boundary so a multibyte character is never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
