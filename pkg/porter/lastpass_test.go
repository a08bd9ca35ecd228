package porter

import (
	"testing"

	"github.com/passkeep/passkeep/pkg/vault"
)

const lastPassSample = `url,username,password,totp,extra,name,grouping,fav
https://example.com,alice,pw-alice,,a note,Example,Work\Web,1
http://sn,,,,"secret note body",My Note,Personal,0
https://empty.example,,,,,Empty Row,,0
https://nameless.example,bob,pw-bob,JBSWY3DP,,,,0
`

func TestLastPassParse(t *testing.T) {
	result, err := (&LastPassParser{}).Parse([]byte(lastPassSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3: %+v", len(result.Records), result.Records)
	}

	login := result.Records[0]
	if login.Title != "Example" || login.Password != "pw-alice" || !login.Favorite {
		t.Errorf("login = %+v", login)
	}
	if login.Notes != "a note" {
		t.Errorf("notes = %q", login.Notes)
	}
	if len(login.Tags) != 2 || login.Tags[0] != "Work" || login.Tags[1] != "Web" {
		t.Errorf("tags = %v, want nested grouping split", login.Tags)
	}

	note := result.Records[1]
	if note.Category != vault.CategoryNote {
		t.Errorf("category = %q, want note", note.Category)
	}
	if note.Password != "secret note body" || note.URL != "" {
		t.Errorf("note = %+v", note)
	}

	nameless := result.Records[2]
	if nameless.Title != "nameless.example" {
		t.Errorf("fallback title = %q", nameless.Title)
	}
	if nameless.Custom["totp"] != "JBSWY3DP" {
		t.Errorf("totp = %v", nameless.Custom)
	}

	if len(result.Skipped) != 1 || result.Skipped[0].Title != "Empty Row" {
		t.Errorf("skipped = %+v", result.Skipped)
	}
}

func TestLastPassDecodesEntities(t *testing.T) {
	data := "url,username,password,totp,extra,name,grouping,fav\n" +
		"https://example.com,a&amp;b,pw&quot;x,,,Entities,,0\n"
	result, err := (&LastPassParser{}).Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := result.Records[0]
	if got.Username != "a&b" {
		t.Errorf("username = %q, want a&b", got.Username)
	}
	if got.Password != `pw"x` {
		t.Errorf("password = %q", got.Password)
	}
}

func TestLastPassMissingNameColumn(t *testing.T) {
	if _, err := (&LastPassParser{}).Parse([]byte("url,password\nx,y\n")); err == nil {
		t.Fatal("expected error for missing name column")
	}
}
