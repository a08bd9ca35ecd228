package porter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/passkeep/passkeep/pkg/vault"
)

// BitwardenParser parses Bitwarden JSON export files. Item type codes:
// 1 login, 2 secure note, 3 card, 4 identity.
type BitwardenParser struct{}

const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

type bitwardenExport struct {
	Items   []bitwardenItem   `json:"items"`
	Folders []bitwardenFolder `json:"folders"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	FolderID *string                `json:"folderId"`
	Favorite bool                   `json:"favorite"`
	Login    *bitwardenLogin        `json:"login"`
	Card     *bitwardenCard         `json:"card"`
	Identity *bitwardenIdentity     `json:"identity"`
	Fields   []bitwardenCustomField `json:"fields"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

type bitwardenIdentity struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	SSN       string `json:"ssn"`
}

type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

func (p *BitwardenParser) Format() Format {
	return FormatBitwarden
}

func (p *BitwardenParser) Parse(data []byte) (*ParseResult, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden export: %w", err)
	}

	folders := make(map[string]string, len(export.Folders))
	for _, f := range export.Folders {
		folders[f.ID] = f.Name
	}

	result := &ParseResult{}
	counter := 1
	for _, item := range export.Items {
		rec, reason := p.convert(item, folders, &counter)
		if reason != "" {
			result.skip(item.Name, reason)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func (p *BitwardenParser) convert(item bitwardenItem, folders map[string]string, counter *int) (vault.Record, string) {
	rec := vault.Record{
		Title:    clampTitle(item.Name),
		Notes:    item.Notes,
		Favorite: item.Favorite,
		Custom:   map[string]string{},
	}
	if item.FolderID != nil {
		if tag := sanitizeTag(folders[*item.FolderID]); tag != "" {
			rec.Tags = []string{tag}
		}
	}

	switch item.Type {
	case bitwardenTypeLogin:
		rec.Category = vault.CategoryLogin
		if item.Login == nil {
			return rec, "login item without login data"
		}
		rec.Username = item.Login.Username
		rec.Password = item.Login.Password
		if len(item.Login.URIs) > 0 {
			rec.URL = sanitizeURL(item.Login.URIs[0].URI)
		}
		if item.Login.TOTP != "" {
			rec.Custom["totp"] = item.Login.TOTP
		}
	case bitwardenTypeSecureNote:
		rec.Category = vault.CategoryNote
		// Secure notes carry their content in Notes; the payload
		// requires a non-empty secret, so the note doubles as one.
		rec.Password = item.Notes
	case bitwardenTypeCard:
		rec.Category = vault.CategoryCard
		if item.Card == nil {
			return rec, "card item without card data"
		}
		rec.Password = item.Card.Number
		rec.Username = item.Card.CardholderName
		if item.Card.Code != "" {
			rec.Custom["cvv"] = item.Card.Code
		}
		if item.Card.ExpMonth != "" || item.Card.ExpYear != "" {
			rec.Custom["expiry"] = strings.TrimPrefix(item.Card.ExpMonth+"/"+item.Card.ExpYear, "/")
		}
		if item.Card.Brand != "" {
			rec.Custom["brand"] = item.Card.Brand
		}
	case bitwardenTypeIdentity:
		rec.Category = vault.CategoryIdentity
		if item.Identity == nil {
			return rec, "identity item without identity data"
		}
		id := item.Identity
		rec.Username = id.Username
		// Identities have no single secret; the SSN is the closest
		// thing, falling back to the email.
		switch {
		case id.SSN != "":
			rec.Password = id.SSN
		case id.Email != "":
			rec.Password = id.Email
		default:
			return rec, "identity without importable secret"
		}
		if name := strings.TrimSpace(id.FirstName + " " + id.LastName); name != "" {
			rec.Custom["name"] = name
		}
		if id.Company != "" {
			rec.Custom["company"] = id.Company
		}
		if id.Phone != "" {
			rec.Custom["phone"] = id.Phone
		}
	default:
		return rec, fmt.Sprintf("unsupported item type %d", item.Type)
	}

	for _, field := range item.Fields {
		key := sanitizeCustomKey(field.Name)
		if key == "" || field.Value == "" {
			continue
		}
		if _, exists := rec.Custom[key]; !exists {
			rec.Custom[key] = field.Value
		}
	}
	if len(rec.Custom) == 0 {
		rec.Custom = nil
	}

	if rec.Title == "" {
		rec.Title = fallbackTitle(rec.URL, *counter)
		*counter++
	}
	if isBlank(rec.Password) {
		return rec, "no importable secret"
	}
	return rec, ""
}

// sanitizeCustomKey rewrites a source field name into the accepted
// custom-field key alphabet.
func sanitizeCustomKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		return ""
	}
	if len(out) > vault.MaxCustomKeyLen {
		out = out[:vault.MaxCustomKeyLen]
	}
	return out
}
