package porter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/passkeep/passkeep/pkg/vault"
)

// LastPassParser parses LastPass CSV export files. Expected columns:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// lastPassNoteURL marks secure notes in LastPass exports.
const lastPassNoteURL = "http://sn"

func (p *LastPassParser) Format() Format {
	return FormatLastPass
}

func (p *LastPassParser) Parse(data []byte) (*ParseResult, error) {
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
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
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
				return decodeHTMLEntities(strings.TrimSpace(row[idx]))
			}
			return ""
		}

		name := get("name")
		url := get("url")
		password := get("password")
		extra := get("extra")

		rec := vault.Record{
			Title:    clampTitle(name),
			Username: get("username"),
			Password: password,
			Notes:    extra,
			Category: vault.CategoryLogin,
			Favorite: get("fav") == "1",
		}
		if url == lastPassNoteURL {
			// Secure note: the body lives in the extra column.
			rec.Category = vault.CategoryNote
			if rec.Password == "" {
				rec.Password = extra
			}
		} else {
			rec.URL = sanitizeURL(url)
		}
		if totp := get("totp"); totp != "" {
			rec.Custom = map[string]string{"totp": totp}
		}
		if grouping := get("grouping"); grouping != "" {
			rec.Tags = cleanTags(strings.FieldsFunc(grouping, func(r rune) bool {
				return r == '\\' || r == '/'
			}))
		}

		if rec.Title == "" {
			rec.Title = fallbackTitle(url, counter)
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
