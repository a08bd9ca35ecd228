// Package vault provides encrypted password record storage over SQLite.
package vault

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation limits for record fields.
const (
	MaxTitleLength    = 256         // Maximum title length
	MaxUsernameLength = 256         // Maximum username length
	MaxSecretSize     = 64 * 1024   // 64 KB maximum secret value size
	MaxNotesSize      = 10 * 1024   // 10 KB maximum notes size
	MaxURLLength      = 2048        // Maximum URL length (RFC 3986)
	MaxTagCount       = 10          // Maximum number of tags
	MaxTagLength      = 64          // Maximum length of each tag
	MinTagLength      = 1           // Minimum length of each tag
	MaxCustomFields   = 50          // Maximum number of custom fields
	MaxCustomKeyLen   = 64          // Maximum custom field key length
	MaxCustomValSize  = 4 * 1024    // 4 KB maximum custom field value size
)

// Record validation errors.
var (
	ErrTitleRequired    = errors.New("vault: record title must not be empty")
	ErrSecretRequired   = errors.New("vault: record secret value must not be empty")
	ErrTitleTooLong     = errors.New("vault: record title too long")
	ErrUsernameTooLong  = errors.New("vault: username too long")
	ErrSecretTooLarge   = errors.New("vault: secret value too large")
	ErrNotesTooLarge    = errors.New("vault: notes too large")
	ErrURLTooLong       = errors.New("vault: url too long")
	ErrURLInvalid       = errors.New("vault: invalid url format")
	ErrTooManyTags      = errors.New("vault: too many tags")
	ErrTagInvalid       = errors.New("vault: invalid tag format")
	ErrCategoryInvalid  = errors.New("vault: invalid category")
	ErrTooManyCustom    = errors.New("vault: too many custom fields")
	ErrCustomKeyInvalid = errors.New("vault: invalid custom field key")
	ErrCustomTooLarge   = errors.New("vault: custom field value too large")
)

// Well-known categories. CategoryOther accepts anything the UI layer of a
// client might invent; the store only rejects unprintable garbage.
const (
	CategoryLogin    = "login"
	CategoryCard     = "card"
	CategoryIdentity = "identity"
	CategoryNote     = "note"
	CategoryWifi     = "wifi"
	CategoryOther    = "other"
)

// Record is a single password record. Title and Password are required;
// everything else is optional. Timestamps are monotonic: UpdatedAt never
// precedes CreatedAt.
type Record struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Username   string            `json:"username,omitempty"`
	Password   string            `json:"password"`
	URL        string            `json:"url,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Category   string            `json:"category"`
	Favorite   bool              `json:"favorite"`
	Tags       []string          `json:"tags,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
}

// recordPayload is the encrypted portion of a record as stored on disk.
// Plaintext columns (category, favorite, tags, timestamps) stay outside
// so list and filter queries never need the secret value.
type recordPayload struct {
	Title    string            `json:"title"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password"`
	URL      string            `json:"url,omitempty"`
	Notes    string            `json:"notes,omitempty"`
	Custom   map[string]string `json:"custom,omitempty"`
}

// NewRecord returns a record with a fresh UUID and creation timestamps.
func NewRecord(title, password string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:        uuid.NewString(),
		Title:     title,
		Password:  password,
		Category:  CategoryLogin,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// tagRegex validates tag format: alphanumeric, underscore, hyphen only.
var tagRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// categoryRegex validates categories: lowercase identifier.
var categoryRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// customKeyRegex validates custom field keys: snake_case.
var customKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks all record invariants. Empty title or secret value is
// always an error; every other check is a bounds or format check.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if r.Password == "" {
		return ErrSecretRequired
	}
	if len(r.Title) > MaxTitleLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrTitleTooLong, len(r.Title), MaxTitleLength)
	}
	if len(r.Username) > MaxUsernameLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrUsernameTooLong, len(r.Username), MaxUsernameLength)
	}
	if len(r.Password) > MaxSecretSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrSecretTooLarge, len(r.Password), MaxSecretSize)
	}
	if len(r.Notes) > MaxNotesSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrNotesTooLarge, len(r.Notes), MaxNotesSize)
	}

	if r.URL != "" {
		if len(r.URL) > MaxURLLength {
			return fmt.Errorf("%w: %d characters exceeds maximum of %d", ErrURLTooLong, len(r.URL), MaxURLLength)
		}
		parsed, err := url.Parse(r.URL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrURLInvalid, err)
		}
		// http/https only; rejects javascript: and friends
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%w: only http and https schemes are allowed", ErrURLInvalid)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%w: URL must have a host", ErrURLInvalid)
		}
	}

	if r.Category != "" && !categoryRegex.MatchString(r.Category) {
		return fmt.Errorf("%w: %q must match [a-z][a-z0-9_-]*", ErrCategoryInvalid, r.Category)
	}

	if len(r.Tags) > MaxTagCount {
		return fmt.Errorf("%w: %d tags exceeds maximum of %d", ErrTooManyTags, len(r.Tags), MaxTagCount)
	}
	for _, tag := range r.Tags {
		if len(tag) < MinTagLength || len(tag) > MaxTagLength {
			return fmt.Errorf("%w: tag %q must be %d-%d characters", ErrTagInvalid, tag, MinTagLength, MaxTagLength)
		}
		if !tagRegex.MatchString(tag) {
			return fmt.Errorf("%w: tag %q must match [a-zA-Z0-9_-]", ErrTagInvalid, tag)
		}
	}

	if len(r.Custom) > MaxCustomFields {
		return fmt.Errorf("%w: %d fields exceeds maximum of %d", ErrTooManyCustom, len(r.Custom), MaxCustomFields)
	}
	for k, v := range r.Custom {
		if len(k) > MaxCustomKeyLen || !customKeyRegex.MatchString(k) {
			return fmt.Errorf("%w: %q must be snake_case, at most %d characters", ErrCustomKeyInvalid, k, MaxCustomKeyLen)
		}
		if len(v) > MaxCustomValSize {
			return fmt.Errorf("%w: field %q is %d bytes, maximum is %d", ErrCustomTooLarge, k, len(v), MaxCustomValSize)
		}
	}

	return nil
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Custom != nil {
		c.Custom = make(map[string]string, len(r.Custom))
		for k, v := range r.Custom {
			c.Custom[k] = v
		}
	}
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

// touch advances UpdatedAt without ever moving it before CreatedAt.
func (r *Record) touch(now time.Time) {
	if now.Before(r.CreatedAt) {
		now = r.CreatedAt
	}
	r.UpdatedAt = now
}
