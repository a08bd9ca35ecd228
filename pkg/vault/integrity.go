package vault

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/passkeep/passkeep/pkg/crypto"
)

// IntegrityResult contains the outcome of a vault integrity check.
type IntegrityResult struct {
	Valid            bool     `json:"valid"`
	SaltExists       bool     `json:"salt_exists"`
	MetaValid        bool     `json:"meta_valid"`
	DBExists         bool     `json:"db_exists"`
	DBIntegrity      bool     `json:"db_integrity"`
	PermissionsValid bool     `json:"permissions_valid"`
	Errors           []string `json:"errors,omitempty"`
}

// CheckIntegrity verifies the vault files without unlocking:
//  1. Salt file exists with the correct size
//  2. vault.meta is valid JSON with a version
//  3. The database exists, passes PRAGMA integrity_check, and has the
//     expected tables
//  4. File permissions are owner-only
func (v *Vault) CheckIntegrity() (*IntegrityResult, error) {
	result := &IntegrityResult{Valid: true, PermissionsValid: true}

	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if info, err := os.Stat(v.path); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			result.PermissionsValid = false
			fail("vault directory has insecure permissions: %04o (expected 0700)", perm)
		}
	}

	saltPath := filepath.Join(v.path, SaltFileName)
	if info, err := os.Stat(saltPath); err != nil {
		fail("salt file not found: %s", saltPath)
	} else {
		result.SaltExists = true
		if info.Size() != crypto.SaltLength {
			fail("salt file has incorrect size: expected %d, got %d", crypto.SaltLength, info.Size())
		}
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			result.PermissionsValid = false
			fail("salt file has insecure permissions: %04o (expected 0600)", perm)
		}
	}

	metaPath := filepath.Join(v.path, MetaFileName)
	if info, err := os.Stat(metaPath); err != nil {
		fail("metadata file not found: %s", metaPath)
	} else {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			result.PermissionsValid = false
			fail("metadata file has insecure permissions: %04o (expected 0600)", perm)
		}
		data, err := os.ReadFile(metaPath)
		if err != nil {
			fail("failed to read metadata file: %v", err)
		} else {
			var meta VaultMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				fail("metadata file is not valid JSON: %v", err)
			} else if meta.Version == "" {
				fail("metadata file missing version field")
			} else {
				result.MetaValid = true
			}
		}
	}

	dbPath := filepath.Join(v.path, DBFileName)
	info, err := os.Stat(dbPath)
	if err != nil {
		fail("database file not found: %s", dbPath)
		return result, nil
	}
	result.DBExists = true
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		result.PermissionsValid = false
		fail("database file has insecure permissions: %04o (expected 0600)", perm)
	}

	db, err := openDB(dbPath)
	if err != nil {
		fail("failed to open database: %v", err)
		return result, nil
	}
	defer db.Close()

	var check string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&check); err != nil {
		fail("database integrity check failed: %v", err)
		return result, nil
	}
	if check != "ok" {
		fail("database integrity check returned: %s", check)
		return result, nil
	}

	for _, table := range []string{"vault_keys", "records"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			fail("required table not found: %s", table)
		}
	}

	if len(result.Errors) == 0 {
		result.DBIntegrity = true
	}
	return result, nil
}

// Repair recreates a missing or corrupted vault.meta from the database.
// Key material and records are never touched; anything beyond the
// metadata file requires restoring from a backup.
func (v *Vault) Repair() error {
	metaPath := filepath.Join(v.path, MetaFileName)
	if data, err := os.ReadFile(metaPath); err == nil {
		var meta VaultMeta
		if json.Unmarshal(data, &meta) == nil && meta.Version != "" {
			return nil // Already valid
		}
	}

	db, err := openDB(filepath.Join(v.path, DBFileName))
	if err != nil {
		return fmt.Errorf("vault: cannot repair without valid database: %w", err)
	}
	defer db.Close()

	var createdAt time.Time
	err = db.QueryRow("SELECT created_at FROM vault_keys WHERE id = 1").Scan(&createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrKeysNotFound
		}
		return fmt.Errorf("vault: cannot determine vault creation time: %w", err)
	}

	meta := VaultMeta{Version: FormatVersion, CreatedAt: createdAt}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaJSON, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write metadata file: %w", err)
	}
	return nil
}
