package vault

import (
	"errors"
	"testing"
	"time"
)

const testPassword = "test-master-password"

// newTestVault initializes an unlocked vault in a temp directory.
func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v := New(t.TempDir() + "/vault")
	if err := v.Init(testPassword); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(v.Lock)
	return v
}

func TestInitAndUnlock(t *testing.T) {
	dir := t.TempDir() + "/vault"
	v := New(dir)

	if v.Exists() {
		t.Fatal("Exists() = true before Init")
	}
	if err := v.Init(testPassword); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if !v.Exists() {
		t.Error("Exists() = false after Init")
	}
	if v.IsLocked() {
		t.Error("vault should be unlocked after Init")
	}

	// Double init is rejected
	if err := New(dir).Init(testPassword); !errors.Is(err, ErrVaultAlreadyExists) {
		t.Errorf("second Init() = %v, want ErrVaultAlreadyExists", err)
	}

	v.Lock()
	if !v.IsLocked() {
		t.Error("vault should be locked after Lock")
	}

	// Reopen with a fresh handle
	v2 := New(dir)
	if err := v2.Unlock("wrong password!"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Unlock() with wrong password = %v, want ErrInvalidPassword", err)
	}
	if err := v2.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	defer v2.Lock()
	if err := v2.Unlock(testPassword); !errors.Is(err, ErrVaultAlreadyUnlocked) {
		t.Errorf("double Unlock() = %v, want ErrVaultAlreadyUnlocked", err)
	}
}

func TestInitRejectsShortPassword(t *testing.T) {
	v := New(t.TempDir() + "/vault")
	if err := v.Init("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Init() with short password = %v, want ErrPasswordTooShort", err)
	}
}

func TestUnlockNonexistentVault(t *testing.T) {
	v := New(t.TempDir() + "/vault")
	if err := v.Unlock(testPassword); !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("Unlock() = %v, want ErrVaultNotFound", err)
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	v := newTestVault(t)

	rec := NewRecord("GitHub", "hunter2-but-longer")
	rec.Username = "octocat"
	rec.URL = "https://github.com/login"
	rec.Notes = "work account"
	rec.Tags = []string{"work", "dev"}
	rec.Custom = map[string]string{"totp_secret": "JBSWY3DPEHPK3PXP"}

	stored, err := v.Create(rec)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if stored.ID == "" {
		t.Error("Create() did not assign an id")
	}
	if stored.UpdatedAt.Before(stored.CreatedAt) {
		t.Error("UpdatedAt precedes CreatedAt after Create")
	}

	got, err := v.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Title != "GitHub" || got.Username != "octocat" || got.Password != "hunter2-but-longer" {
		t.Errorf("Get() returned %+v, fields do not round-trip", got)
	}
	if got.URL != "https://github.com/login" || got.Notes != "work account" {
		t.Errorf("Get() lost url/notes: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" {
		t.Errorf("Get() tags = %v, want [work dev]", got.Tags)
	}
	if got.Custom["totp_secret"] != "JBSWY3DPEHPK3PXP" {
		t.Errorf("Get() custom fields = %v", got.Custom)
	}
}

func TestCreateValidation(t *testing.T) {
	v := newTestVault(t)

	if _, err := v.Create(NewRecord("", "secret-value")); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("Create() without title = %v, want ErrTitleRequired", err)
	}
	if _, err := v.Create(NewRecord("No Secret", "")); !errors.Is(err, ErrSecretRequired) {
		t.Errorf("Create() without secret = %v, want ErrSecretRequired", err)
	}

	bad := NewRecord("Bad URL", "secret-value")
	bad.URL = "javascript:alert(1)"
	if _, err := v.Create(bad); !errors.Is(err, ErrURLInvalid) {
		t.Errorf("Create() with javascript url = %v, want ErrURLInvalid", err)
	}
}

func TestUpdateKeepsTimestampsMonotonic(t *testing.T) {
	v := newTestVault(t)

	stored, err := v.Create(NewRecord("Rotate Me", "old-password-1"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	stored.Password = "new-password-2"
	// A client clock running behind must not move UpdatedAt backwards
	stored.UpdatedAt = stored.CreatedAt.Add(-time.Hour)
	updated, err := v.Update(stored)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("UpdatedAt precedes CreatedAt after Update")
	}
	if !updated.CreatedAt.Equal(stored.CreatedAt) {
		t.Error("Update() changed CreatedAt")
	}

	got, err := v.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Password != "new-password-2" {
		t.Errorf("Get() password = %q after update", got.Password)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	v := newTestVault(t)
	rec := NewRecord("Ghost", "secret-value")
	if _, err := v.Update(rec); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Update() on missing record = %v, want ErrRecordNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	v := newTestVault(t)
	stored, err := v.Create(NewRecord("Temp", "secret-value"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := v.Delete(stored.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := v.Get(stored.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() after delete = %v, want ErrRecordNotFound", err)
	}
	if err := v.Delete(stored.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("second Delete() = %v, want ErrRecordNotFound", err)
	}
}

func TestListFiltersAndClearsSecrets(t *testing.T) {
	v := newTestVault(t)

	a := NewRecord("Alpha Bank", "secret-alpha")
	a.Category = CategoryCard
	a.Favorite = true
	a.Tags = []string{"finance"}
	b := NewRecord("Beta Mail", "secret-beta")
	b.Username = "user@beta.example"
	c := NewRecord("Gamma Wifi", "secret-gamma")
	c.Category = CategoryWifi
	for _, rec := range []*Record{a, b, c} {
		if _, err := v.Create(rec); err != nil {
			t.Fatalf("Create(%s) error: %v", rec.Title, err)
		}
	}

	all, err := v.List(ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(all))
	}
	// Sorted by title, secrets cleared
	if all[0].Title != "Alpha Bank" || all[2].Title != "Gamma Wifi" {
		t.Errorf("List() order: %s, %s, %s", all[0].Title, all[1].Title, all[2].Title)
	}
	for _, rec := range all {
		if rec.Password != "" {
			t.Errorf("List() leaked password for %s", rec.Title)
		}
	}

	cards, err := v.List(ListOptions{Category: CategoryCard})
	if err != nil {
		t.Fatalf("List(category) error: %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "Alpha Bank" {
		t.Errorf("List(category=card) = %v", titles(cards))
	}

	favs, err := v.List(ListOptions{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("List(favorites) error: %v", err)
	}
	if len(favs) != 1 || favs[0].Title != "Alpha Bank" {
		t.Errorf("List(favorites) = %v", titles(favs))
	}

	tagged, err := v.List(ListOptions{Tag: "finance"})
	if err != nil {
		t.Fatalf("List(tag) error: %v", err)
	}
	if len(tagged) != 1 {
		t.Errorf("List(tag=finance) = %v", titles(tagged))
	}

	found, err := v.List(ListOptions{Query: "beta"})
	if err != nil {
		t.Fatalf("List(query) error: %v", err)
	}
	if len(found) != 1 || found[0].Title != "Beta Mail" {
		t.Errorf("List(query=beta) = %v", titles(found))
	}
}

func TestExportIncludesSecrets(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Create(NewRecord("Exported", "keep-this-secret")); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	records, err := v.Export()
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if len(records) != 1 || records[0].Password != "keep-this-secret" {
		t.Error("Export() should include secret values")
	}
}

func TestFavoriteAndLastUsed(t *testing.T) {
	v := newTestVault(t)
	stored, err := v.Create(NewRecord("Pinned", "secret-value"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := v.SetFavorite(stored.ID, true); err != nil {
		t.Fatalf("SetFavorite() error: %v", err)
	}
	if err := v.TouchLastUsed(stored.ID); err != nil {
		t.Fatalf("TouchLastUsed() error: %v", err)
	}

	got, err := v.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Favorite {
		t.Error("favorite flag not persisted")
	}
	if got.LastUsedAt == nil {
		t.Error("last-used time not persisted")
	}

	if err := v.SetFavorite("no-such-id", true); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("SetFavorite() on missing record = %v, want ErrRecordNotFound", err)
	}
}

func TestLockedVaultRefusesOperations(t *testing.T) {
	v := newTestVault(t)
	stored, err := v.Create(NewRecord("Locked Out", "secret-value"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	v.Lock()

	if _, err := v.Get(stored.ID); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Get() on locked vault = %v, want ErrVaultLocked", err)
	}
	if _, err := v.List(ListOptions{}); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("List() on locked vault = %v, want ErrVaultLocked", err)
	}
	if _, err := v.Create(NewRecord("X", "secret-value")); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Create() on locked vault = %v, want ErrVaultLocked", err)
	}
	if err := v.Delete(stored.ID); !errors.Is(err, ErrVaultLocked) {
		t.Errorf("Delete() on locked vault = %v, want ErrVaultLocked", err)
	}
}

func TestChangeMasterPassword(t *testing.T) {
	dir := t.TempDir() + "/vault"
	v := New(dir)
	if err := v.Init(testPassword); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	stored, err := v.Create(NewRecord("Survivor", "survives-rotation"))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := v.ChangeMasterPassword("not the old one", "new-master-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("ChangeMasterPassword() with wrong old = %v, want ErrInvalidPassword", err)
	}
	if err := v.ChangeMasterPassword(testPassword, "new-master-password"); err != nil {
		t.Fatalf("ChangeMasterPassword() error: %v", err)
	}
	v.Lock()

	v2 := New(dir)
	if err := v2.Unlock(testPassword); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Unlock() with old password = %v, want ErrInvalidPassword", err)
	}
	if err := v2.Unlock("new-master-password"); err != nil {
		t.Fatalf("Unlock() with new password error: %v", err)
	}
	defer v2.Lock()

	got, err := v2.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() after rotation error: %v", err)
	}
	if got.Password != "survives-rotation" {
		t.Errorf("record secret lost across password change: %q", got.Password)
	}
}

func TestCheckIntegrity(t *testing.T) {
	v := newTestVault(t)
	v.Lock()

	result, err := v.CheckIntegrity()
	if err != nil {
		t.Fatalf("CheckIntegrity() error: %v", err)
	}
	if !result.Valid {
		t.Errorf("CheckIntegrity() invalid on fresh vault: %v", result.Errors)
	}
	if !result.SaltExists || !result.MetaValid || !result.DBExists || !result.DBIntegrity {
		t.Errorf("CheckIntegrity() = %+v, want all components valid", result)
	}
}

func titles(records []*Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Title
	}
	return out
}
