package porter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/passkeep/passkeep/pkg/vault"
)

func TestClampTitleMultibyte(t *testing.T) {
	long := strings.Repeat("あ", vault.MaxTitleLength)
	got := clampTitle(long)
	if len(got) > vault.MaxTitleLength {
		t.Errorf("title length = %d, exceeds limit", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("title = %q, truncation split a rune", got)
	}
}

func TestSanitizeTagLengthCap(t *testing.T) {
	long := strings.Repeat("a", vault.MaxTagLength+10)
	if got := sanitizeTag(long); len(got) != vault.MaxTagLength {
		t.Errorf("tag length = %d, want %d", len(got), vault.MaxTagLength)
	}
}

func TestTruncateShortInputUntouched(t *testing.T) {
	if got := truncate("café", 10); got != "café" {
		t.Errorf("truncate() = %q, want input unchanged", got)
	}
}
