package backup

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

var testArchivePassword = []byte("backup-archive-password")

func testRecords() []vault.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return []vault.Record{
		{ID: "id-1", Title: "Mail", Username: "alice", Password: "pw-mail", Category: vault.CategoryLogin, CreatedAt: now, UpdatedAt: now},
		{ID: "id-2", Title: "Router", Password: "pw-router", Category: vault.CategoryWifi, CreatedAt: now, UpdatedAt: now},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	audit := map[string][]byte{"2026-08.jsonl": []byte(`{"op":"unlock"}` + "\n")}
	if err := Write(&buf, testRecords(), testArchivePassword, Options{AuditFiles: audit}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	archive, err := Read(bytes.NewReader(buf.Bytes()), testArchivePassword)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if archive.Header.RecordCount != 2 || !archive.Header.IncludesAudit {
		t.Errorf("header = %+v", archive.Header)
	}
	if len(archive.Records) != 2 || archive.Records[0].Password != "pw-mail" {
		t.Errorf("records = %+v", archive.Records)
	}
	if string(archive.Audit["2026-08.jsonl"]) != `{"op":"unlock"}`+"\n" {
		t.Errorf("audit contents lost: %q", archive.Audit)
	}
}

func TestWriteRejectsEmptyPassword(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testRecords(), nil, Options{}); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("err = %v, want ErrEmptyPassword", err)
	}
}

func TestReadWrongPassword(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testRecords(), testArchivePassword, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err := Read(bytes.NewReader(buf.Bytes()), []byte("wrong-password"))
	if !errors.Is(err, ErrIntegrityFailed) {
		t.Fatalf("err = %v, want ErrIntegrityFailed", err)
	}
}

func TestReadDetectsTampering(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testRecords(), testArchivePassword, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-40] ^= 0x01

	if _, err := Read(bytes.NewReader(raw), testArchivePassword); !errors.Is(err, ErrIntegrityFailed) {
		t.Fatalf("err = %v, want ErrIntegrityFailed", err)
	}
}

func TestReadRejectsWrongMagic(t *testing.T) {
	data := append([]byte("NOT_BKUP"), make([]byte, 64)...)
	if _, err := Read(bytes.NewReader(data), testArchivePassword); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("err = %v, want ErrInvalidMagic", err)
	}
}

func TestReadRejectsTruncated(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("short")), testArchivePassword); err == nil {
		t.Fatal("expected error for truncated archive")
	}
}

func TestVerify(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	opts := Options{Now: func() time.Time { return created }}
	if err := Write(&buf, testRecords(), testArchivePassword, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	result := Verify(bytes.NewReader(buf.Bytes()), testArchivePassword)
	if !result.Valid {
		t.Fatalf("verify failed: %s", result.Error)
	}
	if result.RecordCount != 2 || !result.CreatedAt.Equal(created) {
		t.Errorf("result = %+v", result)
	}

	bad := Verify(bytes.NewReader(buf.Bytes()), []byte("wrong"))
	if bad.Valid || bad.Error == "" {
		t.Errorf("bad verify = %+v, want invalid with error", bad)
	}
}

func TestArchiveSaltIsFresh(t *testing.T) {
	var first, second bytes.Buffer
	if err := Write(&first, testRecords(), testArchivePassword, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(&second, testRecords(), testArchivePassword, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	a, err := Read(bytes.NewReader(first.Bytes()), testArchivePassword)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b, err := Read(bytes.NewReader(second.Bytes()), testArchivePassword)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if bytes.Equal(a.Header.KDF.Salt, b.Header.KDF.Salt) {
		t.Error("archive salts repeat across backups")
	}
}
