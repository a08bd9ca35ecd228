// Package vault provides encrypted password record storage over SQLite.
//
// The on-disk layout follows an envelope scheme: a random data encryption
// key (DEK) encrypts every record payload, and the DEK itself is stored
// wrapped by a key encryption key (KEK) derived from the master password
// with Argon2id. A separate PBKDF2 verifier allows constant-time master
// password checks without touching the DEK.
package vault

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/passkeep/passkeep/pkg/audit"
	"github.com/passkeep/passkeep/pkg/crypto"

	_ "modernc.org/sqlite"
)

// Vault directory layout and permissions.
const (
	SaltFileName = "vault.salt"
	MetaFileName = "vault.meta"
	DBFileName   = "vault.db"
	LockFileName = "vault.lock"
	FileMode     = 0600 // Owner read/write only
	DirMode      = 0700 // Owner read/write/execute only

	// DEKLength is the data encryption key size (256 bits).
	DEKLength = 32

	// FormatVersion is written to vault.meta.
	FormatVersion = "1.0.0"
)

// Errors returned by vault operations.
var (
	ErrVaultAlreadyExists   = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound        = errors.New("vault: vault not found at this path")
	ErrVaultLocked          = errors.New("vault: vault is locked")
	ErrVaultAlreadyUnlocked = errors.New("vault: vault is already unlocked")
	ErrInvalidPassword      = errors.New("vault: invalid master password")
	ErrSaltNotFound         = errors.New("vault: salt file not found")
	ErrKeysNotFound         = errors.New("vault: key material not found in database")
	ErrRecordNotFound       = errors.New("vault: record not found")
	ErrRecordExists         = errors.New("vault: record already exists")
	ErrVaultCorrupted       = errors.New("vault: vault is corrupted")
	ErrLockedOut            = errors.New("vault: too many failed unlock attempts")
	ErrPasswordTooShort     = errors.New("vault: master password must be at least 8 characters")
	ErrPasswordTooLong      = errors.New("vault: master password must be at most 128 characters")
)

// Master password length bounds.
const (
	MinMasterPasswordLength = 8
	MaxMasterPasswordLength = 128
)

// VaultMeta holds plaintext vault metadata.
type VaultMeta struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault manages the encrypted record store.
type Vault struct {
	path   string        // Vault directory (e.g. ~/.passkeep)
	dek    []byte        // Decrypted DEK, held in memory while unlocked
	db     *sql.DB       // SQLite connection, open while unlocked
	mu     sync.RWMutex  // Guards dek/db and write operations
	audit  *audit.Logger // Audit logger
	policy LockoutPolicy // Failed-attempt lockout policy
}

// New creates a Vault handle for the given directory. Nothing is opened
// until Init or Unlock is called.
func New(path string) *Vault {
	return &Vault{
		path:   path,
		audit:  audit.NewLogger(filepath.Join(path, "audit")),
		policy: DefaultLockoutPolicy(),
	}
}

// SetLockoutPolicy overrides the failed-attempt lockout policy.
// Must be called before Unlock.
func (v *Vault) SetLockoutPolicy(p LockoutPolicy) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.policy = p
}

// Path returns the vault directory.
func (v *Vault) Path() string {
	return v.path
}

// Exists reports whether a vault has been initialized at the path.
func (v *Vault) Exists() bool {
	_, err := os.Stat(filepath.Join(v.path, SaltFileName))
	return err == nil
}

// IsLocked reports whether the DEK is absent from memory.
func (v *Vault) IsLocked() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dek == nil
}

// ValidateMasterPassword enforces the master password length bounds.
func ValidateMasterPassword(password string) error {
	if len(password) < MinMasterPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxMasterPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Init initializes a new vault and leaves it unlocked:
//  1. Generate and persist the KEK salt
//  2. Derive the KEK from the master password
//  3. Generate the DEK and wrap it with the KEK
//  4. Compute the PBKDF2 verifier
//  5. Create the database schema and store the key material
//  6. Write vault.meta
func (v *Vault) Init(masterPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Exists() {
		return ErrVaultAlreadyExists
	}
	if err := ValidateMasterPassword(masterPassword); err != nil {
		return err
	}

	if err := os.MkdirAll(v.path, DirMode); err != nil {
		return fmt.Errorf("vault: failed to create vault directory: %w", err)
	}

	kekSalt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	saltPath := filepath.Join(v.path, SaltFileName)
	if err := os.WriteFile(saltPath, kekSalt, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write salt file: %w", err)
	}

	kek := crypto.DeriveKey([]byte(masterPassword), kekSalt)
	defer crypto.SecureWipe(kek)

	dek := make([]byte, DEKLength)
	if _, err := rand.Read(dek); err != nil {
		return fmt.Errorf("vault: failed to generate DEK: %w", err)
	}

	wrappedDEK, dekNonce, err := crypto.Encrypt(kek, dek)
	if err != nil {
		return fmt.Errorf("vault: failed to wrap DEK: %w", err)
	}

	verifier, verifierSalt, err := crypto.HashMasterPassword([]byte(masterPassword), nil)
	if err != nil {
		return fmt.Errorf("vault: failed to hash master password: %w", err)
	}

	dbPath := filepath.Join(v.path, DBFileName)
	db, err := openDB(dbPath)
	if err != nil {
		return err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return fmt.Errorf("vault: failed to create tables: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO vault_keys(id, wrapped_dek, dek_nonce, verifier_hash, verifier_salt) VALUES(1, ?, ?, ?, ?)`,
		wrappedDEK, dekNonce, verifier, verifierSalt)
	if err != nil {
		db.Close()
		return fmt.Errorf("vault: failed to store key material: %w", err)
	}

	meta := VaultMeta{Version: FormatVersion, CreatedAt: time.Now().UTC()}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		db.Close()
		return fmt.Errorf("vault: failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(v.path, MetaFileName), metaJSON, FileMode); err != nil {
		db.Close()
		return fmt.Errorf("vault: failed to write metadata file: %w", err)
	}
	if err := os.Chmod(dbPath, FileMode); err != nil {
		db.Close()
		return fmt.Errorf("vault: failed to set database permissions: %w", err)
	}

	// First master password creation unlocks the vault immediately.
	v.dek = dek
	v.db = db

	if err := v.audit.SetKey(dek); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize audit logger: %v\n", err)
	} else {
		_ = v.audit.LogSuccess(audit.OpVaultInit, "")
	}

	return nil
}

// Unlock verifies the master password and loads the DEK into memory.
// Failed attempts are counted in the persistent lock state; once the
// threshold is crossed, further attempts are refused for a cooldown
// period even across process restarts.
func (v *Vault) Unlock(masterPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.Exists() {
		return ErrVaultNotFound
	}
	if v.dek != nil {
		return ErrVaultAlreadyUnlocked
	}

	if remaining := v.remainingCooldown(); remaining > 0 {
		return fmt.Errorf("%w: locked out for %v", ErrLockedOut, remaining.Round(time.Second))
	}

	kekSalt, err := os.ReadFile(filepath.Join(v.path, SaltFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSaltNotFound
		}
		return fmt.Errorf("vault: failed to read salt file: %w", err)
	}
	if len(kekSalt) != crypto.SaltLength {
		return ErrVaultCorrupted
	}

	db, err := openDB(filepath.Join(v.path, DBFileName))
	if err != nil {
		return err
	}

	var wrappedDEK, dekNonce, verifier, verifierSalt []byte
	err = db.QueryRow(`SELECT wrapped_dek, dek_nonce, verifier_hash, verifier_salt FROM vault_keys WHERE id = 1`).
		Scan(&wrappedDEK, &dekNonce, &verifier, &verifierSalt)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrKeysNotFound
		}
		return fmt.Errorf("vault: failed to read key material: %w", err)
	}

	if !crypto.VerifyMasterPassword([]byte(masterPassword), verifier, verifierSalt) {
		db.Close()
		cooldown, recordErr := v.recordFailedAttempt()
		if recordErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record unlock attempt: %v\n", recordErr)
		}
		if cooldown > 0 {
			return fmt.Errorf("%w: locked out for %v", ErrLockedOut, cooldown.Round(time.Second))
		}
		return ErrInvalidPassword
	}

	kek := crypto.DeriveKey([]byte(masterPassword), kekSalt)
	defer crypto.SecureWipe(kek)

	dek, err := crypto.Decrypt(kek, wrappedDEK, dekNonce)
	if err != nil {
		db.Close()
		// Verifier passed but the DEK does not unwrap: the key material
		// rows no longer belong together.
		return fmt.Errorf("%w: DEK unwrap failed: %v", ErrVaultCorrupted, err)
	}

	v.dek = dek
	v.db = db

	if err := v.clearLockState(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to clear lock state: %v\n", err)
	}

	if err := v.audit.SetKey(dek); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize audit logger: %v\n", err)
	} else {
		_ = v.audit.LogSuccess(audit.OpVaultUnlock, "")
	}

	v.warnInsecurePermissions()
	return nil
}

// Lock destroys the DEK in memory and closes the database.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek != nil {
		_ = v.audit.LogSuccess(audit.OpVaultLock, "")
		crypto.SecureWipe(v.dek)
		v.dek = nil
	}
	if v.db != nil {
		v.db.Close()
		v.db = nil
	}
}

// ChangeMasterPassword re-wraps the DEK under a KEK derived from the new
// password and replaces the verifier. The vault must be unlocked; the old
// password is re-verified to guard against an abandoned terminal.
func (v *Vault) ChangeMasterPassword(oldPassword, newPassword string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return ErrVaultLocked
	}
	if err := ValidateMasterPassword(newPassword); err != nil {
		return err
	}

	var verifier, verifierSalt []byte
	err := v.db.QueryRow(`SELECT verifier_hash, verifier_salt FROM vault_keys WHERE id = 1`).
		Scan(&verifier, &verifierSalt)
	if err != nil {
		return fmt.Errorf("vault: failed to read key material: %w", err)
	}
	if !crypto.VerifyMasterPassword([]byte(oldPassword), verifier, verifierSalt) {
		_ = v.audit.LogError(audit.OpPasswordChange, "", "AUTH_FAILED", "old master password rejected")
		return ErrInvalidPassword
	}

	newSalt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	newKEK := crypto.DeriveKey([]byte(newPassword), newSalt)
	defer crypto.SecureWipe(newKEK)

	wrappedDEK, dekNonce, err := crypto.Encrypt(newKEK, v.dek)
	if err != nil {
		return fmt.Errorf("vault: failed to wrap DEK: %w", err)
	}
	newVerifier, newVerifierSalt, err := crypto.HashMasterPassword([]byte(newPassword), nil)
	if err != nil {
		return fmt.Errorf("vault: failed to hash master password: %w", err)
	}

	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE vault_keys SET wrapped_dek = ?, dek_nonce = ?, verifier_hash = ?, verifier_salt = ? WHERE id = 1`,
		wrappedDEK, dekNonce, newVerifier, newVerifierSalt)
	if err != nil {
		return fmt.Errorf("vault: failed to update key material: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vault: failed to commit transaction: %w", err)
	}

	// Salt file is replaced only after the database row committed; a
	// crash in between is repaired by restoring the backup.
	if err := os.WriteFile(filepath.Join(v.path, SaltFileName), newSalt, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write salt file: %w", err)
	}

	_ = v.audit.LogSuccess(audit.OpPasswordChange, "")
	return nil
}

// AuditLogger exposes the audit logger for CLI subcommands.
func (v *Vault) AuditLogger() *audit.Logger {
	return v.audit
}

// openDB opens the SQLite database in single-connection mode, which is
// the appropriate setting for a CLI where concurrent access is rare.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// createTables creates the schema.
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vault_keys (
			id INTEGER PRIMARY KEY,
			wrapped_dek BLOB NOT NULL,
			dek_nonce BLOB NOT NULL,
			verifier_hash BLOB NOT NULL,
			verifier_salt BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Hybrid layout: the sensitive payload (title, username, password,
	// url, notes, custom fields) is a single sealed blob; category,
	// favorite, tags and timestamps stay plaintext for filtering.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			category TEXT NOT NULL DEFAULT 'login',
			favorite INTEGER NOT NULL DEFAULT 0,
			tags TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			last_used_at TIMESTAMP
		)
	`)
	return err
}

// warnInsecurePermissions prints advisory warnings for files readable by
// group or other. Advisory only; never blocks an operation.
func (v *Vault) warnInsecurePermissions() {
	if info, err := os.Stat(v.path); err == nil {
		if perm := info.Mode().Perm(); perm&0077 != 0 {
			fmt.Fprintf(os.Stderr, "warning: vault directory has insecure permissions %04o (expected 0700)\n", perm)
		}
	}
	for _, name := range []string{SaltFileName, MetaFileName, DBFileName} {
		if info, err := os.Stat(filepath.Join(v.path, name)); err == nil {
			if perm := info.Mode().Perm(); perm&0077 != 0 {
				fmt.Fprintf(os.Stderr, "warning: %s has insecure permissions %04o (expected 0600)\n", name, perm)
			}
		}
	}
}
