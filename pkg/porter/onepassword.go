package porter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/passkeep/passkeep/pkg/vault"
)

// OnePasswordParser parses 1Password CSV export files. Expected columns:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

func (p *OnePasswordParser) Format() Format {
	return Format1Password
}

func (p *OnePasswordParser) Parse(data []byte) (*ParseResult, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, fmt.Errorf("missing required column: Title")
	}

	result := &ParseResult{}
	counter := 1
	rowNum := 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.warnf("row %d: failed to parse: %v", rowNum, err)
			continue
		}
		get := func(name string) string {
			if idx, ok := col[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		website := get("website")
		rec := vault.Record{
			Title:    clampTitle(get("title")),
			Username: get("username"),
			Password: get("password"),
			URL:      sanitizeURL(website),
			Notes:    get("notes"),
			Category: vault.CategoryLogin,
			Favorite: parseBool(get("favorite")),
		}
		if otp := get("otpauth"); otp != "" {
			rec.Custom = map[string]string{"totp": otp}
		}
		if tags := get("tags"); tags != "" {
			rec.Tags = cleanTags(strings.Split(tags, ";"))
		}

		// Archived items are excluded the same way 1Password's own
		// migration tooling excludes them.
		if parseBool(get("archived")) {
			result.skip(rec.Title, "archived")
			continue
		}
		if rec.Title == "" {
			rec.Title = fallbackTitle(website, counter)
			counter++
		}
		if isBlank(rec.Password) {
			result.skip(rec.Title, "no importable secret")
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}
