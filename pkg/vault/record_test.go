package vault

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validRecord() *Record {
	return NewRecord("Example Login", "a-long-enough-secret")
}

func TestNewRecordDefaults(t *testing.T) {
	rec := NewRecord("Title", "secret")
	if rec.ID == "" {
		t.Error("NewRecord() should assign an id")
	}
	if rec.Category != CategoryLogin {
		t.Errorf("NewRecord() category = %q, want %q", rec.Category, CategoryLogin)
	}
	if rec.CreatedAt.IsZero() || !rec.UpdatedAt.Equal(rec.CreatedAt) {
		t.Error("NewRecord() timestamps should be set and equal")
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr error
	}{
		{"valid", func(r *Record) {}, nil},
		{"blank title", func(r *Record) { r.Title = "   " }, ErrTitleRequired},
		{"empty secret", func(r *Record) { r.Password = "" }, ErrSecretRequired},
		{"title too long", func(r *Record) { r.Title = strings.Repeat("x", MaxTitleLength+1) }, ErrTitleTooLong},
		{"username too long", func(r *Record) { r.Username = strings.Repeat("u", MaxUsernameLength+1) }, ErrUsernameTooLong},
		{"notes too large", func(r *Record) { r.Notes = strings.Repeat("n", MaxNotesSize+1) }, ErrNotesTooLarge},
		{"url too long", func(r *Record) { r.URL = "https://example.com/" + strings.Repeat("a", MaxURLLength) }, ErrURLTooLong},
		{"url bad scheme", func(r *Record) { r.URL = "ftp://example.com" }, ErrURLInvalid},
		{"url no host", func(r *Record) { r.URL = "https://" }, ErrURLInvalid},
		{"bad category", func(r *Record) { r.Category = "Not A Category" }, ErrCategoryInvalid},
		{"too many tags", func(r *Record) { r.Tags = make([]string, MaxTagCount+1); for i := range r.Tags { r.Tags[i] = "t" } }, ErrTooManyTags},
		{"bad tag", func(r *Record) { r.Tags = []string{"has space"} }, ErrTagInvalid},
		{"bad custom key", func(r *Record) { r.Custom = map[string]string{"Not-Snake": "v"} }, ErrCustomKeyInvalid},
		{"custom too large", func(r *Record) { r.Custom = map[string]string{"big": strings.Repeat("v", MaxCustomValSize+1)} }, ErrCustomTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordTouchMonotonic(t *testing.T) {
	rec := validRecord()
	created := rec.CreatedAt

	// A clock behind CreatedAt clamps to CreatedAt
	rec.touch(created.Add(-time.Minute))
	if rec.UpdatedAt.Before(created) {
		t.Error("touch() moved UpdatedAt before CreatedAt")
	}

	// A normal clock advances UpdatedAt
	later := created.Add(time.Minute)
	rec.touch(later)
	if !rec.UpdatedAt.Equal(later) {
		t.Errorf("touch() = %v, want %v", rec.UpdatedAt, later)
	}
}

func TestRecordClone(t *testing.T) {
	rec := validRecord()
	rec.Tags = []string{"one"}
	rec.Custom = map[string]string{"pin": "1234"}
	now := time.Now()
	rec.LastUsedAt = &now

	clone := rec.Clone()
	clone.Tags[0] = "changed"
	clone.Custom["pin"] = "0000"
	*clone.LastUsedAt = now.Add(time.Hour)

	if rec.Tags[0] != "one" {
		t.Error("Clone() shares the tags slice")
	}
	if rec.Custom["pin"] != "1234" {
		t.Error("Clone() shares the custom map")
	}
	if !rec.LastUsedAt.Equal(now) {
		t.Error("Clone() shares the last-used pointer")
	}
}

func TestHasTag(t *testing.T) {
	rec := validRecord()
	rec.Tags = []string{"work", "email"}
	if !rec.HasTag("email") {
		t.Error("HasTag(email) = false, want true")
	}
	if rec.HasTag("personal") {
		t.Error("HasTag(personal) = true, want false")
	}
}
