package porter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

// ExportVersion is the native export envelope version.
const ExportVersion = "1.0.0"

// utf8BOM is stripped from CSV input before parsing.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// exportEnvelope is the native JSON export wrapper.
type exportEnvelope struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Records    []vault.Record `json:"records"`
}

// csvHeader is the native CSV column set. Tags are joined with ";".
var csvHeader = []string{
	"title", "username", "password", "url", "notes",
	"category", "favorite", "tags", "created_at", "updated_at",
}

// ExportJSON renders records as the native JSON envelope. The output
// contains plaintext secrets and must be handled accordingly.
func ExportJSON(records []vault.Record) ([]byte, error) {
	env := exportEnvelope{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Records:    records,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportCSV renders records as the native CSV table. Custom fields are
// not representable in CSV and are dropped.
func ExportCSV(records []vault.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Title,
			rec.Username,
			rec.Password,
			rec.URL,
			rec.Notes,
			rec.Category,
			strconv.FormatBool(rec.Favorite),
			strings.Join(rec.Tags, ";"),
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// JSONParser reads the native JSON envelope. A bare record array is
// accepted for hand-built files.
type JSONParser struct{}

func (p *JSONParser) Format() Format {
	return FormatJSON
}

func (p *JSONParser) Parse(data []byte) (*ParseResult, error) {
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		var bare []vault.Record
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("failed to parse JSON export: %w", err)
		}
		env.Records = bare
	}

	result := &ParseResult{}
	for i, rec := range env.Records {
		rec.Title = clampTitle(rec.Title)
		if rec.Title == "" {
			result.skip(fmt.Sprintf("record %d", i+1), "missing title")
			continue
		}
		if isBlank(rec.Password) {
			result.skip(rec.Title, "missing password")
			continue
		}
		rec.URL = sanitizeURL(rec.URL)
		rec.Tags = cleanTags(rec.Tags)
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// CSVParser reads the native CSV table by header name, so column order
// does not matter and unknown columns are ignored.
type CSVParser struct{}

func (p *CSVParser) Format() Format {
	return FormatCSV
}

func (p *CSVParser) Parse(data []byte) (*ParseResult, error) {
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
		return nil, fmt.Errorf("missing required column: title")
	}

	result := &ParseResult{}
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

		title := clampTitle(get("title"))
		if title == "" {
			result.skip(fmt.Sprintf("row %d", rowNum), "missing title")
			continue
		}
		password := get("password")
		if isBlank(password) {
			result.skip(title, "missing password")
			continue
		}

		rec := vault.Record{
			Title:    title,
			Username: get("username"),
			Password: password,
			URL:      sanitizeURL(get("url")),
			Notes:    get("notes"),
			Category: strings.ToLower(get("category")),
			Favorite: parseBool(get("favorite")),
		}
		if tags := get("tags"); tags != "" {
			rec.Tags = cleanTags(strings.Split(tags, ";"))
		}
		if created := parseTime(get("created_at")); !created.IsZero() {
			rec.CreatedAt = created
		}
		if updated := parseTime(get("updated_at")); !updated.IsZero() {
			rec.UpdatedAt = updated
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// cleanTags sanitizes, deduplicates, and caps a tag list.
func cleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = sanitizeTag(tag)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		out = append(out, tag)
		if len(out) == vault.MaxTagCount {
			break
		}
	}
	return out
}
