package vault

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/passkeep/passkeep/pkg/audit"
	"github.com/passkeep/passkeep/pkg/crypto"
)

// seal encrypts a record payload with the DEK, nonce prepended.
func (v *Vault) seal(payload recordPayload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to marshal payload: %w", err)
	}
	return crypto.Seal(v.dek, data)
}

// unseal decrypts a record payload blob.
func (v *Vault) unseal(blob []byte) (recordPayload, error) {
	var payload recordPayload
	data, err := crypto.Open(v.dek, blob)
	if err != nil {
		return payload, fmt.Errorf("vault: failed to decrypt record: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("vault: failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

func marshalTags(tags []string) sql.NullString {
	if len(tags) == 0 {
		return sql.NullString{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func unmarshalTags(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s.String), &tags); err != nil {
		return nil
	}
	return tags
}

// Create validates and stores a new record. A missing ID is assigned;
// a supplied ID (e.g. from import or sync) is kept. Returns the stored
// record with its final timestamps.
func (v *Vault) Create(rec *Record) (*Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return nil, ErrVaultLocked
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Category == "" {
		rec.Category = CategoryLogin
	}
	if err := rec.Validate(); err != nil {
		_ = v.audit.LogError(audit.OpRecordCreate, rec.ID, "INVALID_RECORD", err.Error())
		return nil, err
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.touch(now)

	blob, err := v.seal(recordPayload{
		Title:    rec.Title,
		Username: rec.Username,
		Password: rec.Password,
		URL:      rec.URL,
		Notes:    rec.Notes,
		Custom:   rec.Custom,
	})
	if err != nil {
		_ = v.audit.LogError(audit.OpRecordCreate, rec.ID, "ENCRYPT_FAILED", err.Error())
		return nil, err
	}

	var lastUsed sql.NullTime
	if rec.LastUsedAt != nil {
		lastUsed = sql.NullTime{Time: *rec.LastUsedAt, Valid: true}
	}

	_, err = v.db.Exec(`
		INSERT INTO records (id, payload, category, favorite, tags, created_at, updated_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, blob, rec.Category, boolToInt(rec.Favorite), marshalTags(rec.Tags),
		rec.CreatedAt, rec.UpdatedAt, lastUsed)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			_ = v.audit.LogError(audit.OpRecordCreate, rec.ID, "DUPLICATE_ID", err.Error())
			return nil, ErrRecordExists
		}
		_ = v.audit.LogError(audit.OpRecordCreate, rec.ID, "DB_ERROR", err.Error())
		return nil, fmt.Errorf("vault: failed to save record: %w", err)
	}

	_ = v.audit.LogSuccess(audit.OpRecordCreate, rec.ID)
	return rec.Clone(), nil
}

// Get retrieves a record by id, including the decrypted secret value.
func (v *Vault) Get(id string) (*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dek == nil {
		return nil, ErrVaultLocked
	}

	row := v.db.QueryRow(`
		SELECT id, payload, category, favorite, tags, created_at, updated_at, last_used_at
		FROM records WHERE id = ?`, id)
	rec, err := v.scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = v.audit.LogError(audit.OpRecordGet, id, "NOT_FOUND", "record not found")
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	_ = v.audit.LogSuccess(audit.OpRecordGet, id)
	return rec, nil
}

// Update validates and replaces an existing record. UpdatedAt advances
// monotonically: it never moves before CreatedAt and never backwards.
func (v *Vault) Update(rec *Record) (*Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return nil, ErrVaultLocked
	}
	if rec.Category == "" {
		rec.Category = CategoryLogin
	}
	if err := rec.Validate(); err != nil {
		_ = v.audit.LogError(audit.OpRecordUpdate, rec.ID, "INVALID_RECORD", err.Error())
		return nil, err
	}

	var createdAt, prevUpdated time.Time
	err := v.db.QueryRow(`SELECT created_at, updated_at FROM records WHERE id = ?`, rec.ID).
		Scan(&createdAt, &prevUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = v.audit.LogError(audit.OpRecordUpdate, rec.ID, "NOT_FOUND", "record not found")
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("vault: failed to read record: %w", err)
	}

	// Creation time is immutable; the stored value wins over whatever
	// the caller carried.
	rec.CreatedAt = createdAt
	rec.touch(time.Now().UTC())
	if rec.UpdatedAt.Before(prevUpdated) {
		rec.UpdatedAt = prevUpdated
	}

	blob, err := v.seal(recordPayload{
		Title:    rec.Title,
		Username: rec.Username,
		Password: rec.Password,
		URL:      rec.URL,
		Notes:    rec.Notes,
		Custom:   rec.Custom,
	})
	if err != nil {
		_ = v.audit.LogError(audit.OpRecordUpdate, rec.ID, "ENCRYPT_FAILED", err.Error())
		return nil, err
	}

	var lastUsed sql.NullTime
	if rec.LastUsedAt != nil {
		lastUsed = sql.NullTime{Time: *rec.LastUsedAt, Valid: true}
	}

	_, err = v.db.Exec(`
		UPDATE records SET payload = ?, category = ?, favorite = ?, tags = ?, updated_at = ?, last_used_at = ?
		WHERE id = ?`,
		blob, rec.Category, boolToInt(rec.Favorite), marshalTags(rec.Tags),
		rec.UpdatedAt, lastUsed, rec.ID)
	if err != nil {
		_ = v.audit.LogError(audit.OpRecordUpdate, rec.ID, "DB_ERROR", err.Error())
		return nil, fmt.Errorf("vault: failed to update record: %w", err)
	}

	_ = v.audit.LogSuccess(audit.OpRecordUpdate, rec.ID)
	return rec.Clone(), nil
}

// Delete removes a record by id.
func (v *Vault) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return ErrVaultLocked
	}

	result, err := v.db.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		_ = v.audit.LogError(audit.OpRecordDelete, id, "DB_ERROR", err.Error())
		return fmt.Errorf("vault: failed to delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("vault: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		_ = v.audit.LogError(audit.OpRecordDelete, id, "NOT_FOUND", "record not found")
		return ErrRecordNotFound
	}

	_ = v.audit.LogSuccess(audit.OpRecordDelete, id)
	return nil
}

// ListOptions filters List results. Zero value lists everything.
type ListOptions struct {
	Category      string // Restrict to one category
	Tag           string // Restrict to records carrying the tag
	FavoritesOnly bool
	Query         string // Case-insensitive match on title, username, url
}

// List returns records matching opts, sorted by title. The secret value
// is cleared on every returned record; use Get to retrieve it.
func (v *Vault) List(opts ListOptions) ([]*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dek == nil {
		return nil, ErrVaultLocked
	}

	query := `SELECT id, payload, category, favorite, tags, created_at, updated_at, last_used_at FROM records`
	var conds []string
	var args []any
	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.FavoritesOnly {
		conds = append(conds, "favorite = 1")
	}
	if opts.Tag != "" {
		// Tags are a JSON array; the LIKE narrows the scan and the
		// parsed tags are re-checked below.
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+opts.Tag+`"%`)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := v.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to query records: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(opts.Query)
	var records []*Record
	for rows.Next() {
		rec, err := v.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		if opts.Tag != "" && !rec.HasTag(opts.Tag) {
			continue
		}
		if needle != "" && !matchesQuery(rec, needle) {
			continue
		}
		rec.Password = "" // Listing never exposes secret values
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: error iterating rows: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Title) < strings.ToLower(records[j].Title)
	})

	_ = v.audit.LogSuccess(audit.OpRecordList, "")
	return records, nil
}

// Export returns every record including secret values, for export,
// backup, and sync. Callers are expected to log the surrounding
// operation themselves.
func (v *Vault) Export() ([]*Record, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dek == nil {
		return nil, ErrVaultLocked
	}

	rows, err := v.db.Query(`
		SELECT id, payload, category, favorite, tags, created_at, updated_at, last_used_at
		FROM records ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := v.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: error iterating rows: %w", err)
	}
	return records, nil
}

// TouchLastUsed stamps the record's last-used time, e.g. after its
// password was copied to the clipboard.
func (v *Vault) TouchLastUsed(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return ErrVaultLocked
	}

	result, err := v.db.Exec(`UPDATE records SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("vault: failed to update last-used time: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SetFavorite toggles the favorite flag without touching UpdatedAt;
// favoriting is bookkeeping, not an edit.
func (v *Vault) SetFavorite(id string, favorite bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dek == nil {
		return ErrVaultLocked
	}

	result, err := v.db.Exec(`UPDATE records SET favorite = ? WHERE id = ?`, boolToInt(favorite), id)
	if err != nil {
		return fmt.Errorf("vault: failed to update favorite flag: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Count returns the number of stored records.
func (v *Vault) Count() (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.dek == nil {
		return 0, ErrVaultLocked
	}
	var n int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vault: failed to count records: %w", err)
	}
	return n, nil
}

// scanRecord scans one row into a Record and decrypts the payload.
func (v *Vault) scanRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		rec      Record
		blob     []byte
		favorite int
		tags     sql.NullString
		lastUsed sql.NullTime
	)
	if err := scan(&rec.ID, &blob, &rec.Category, &favorite, &tags,
		&rec.CreatedAt, &rec.UpdatedAt, &lastUsed); err != nil {
		return nil, err
	}

	payload, err := v.unseal(blob)
	if err != nil {
		return nil, err
	}
	rec.Title = payload.Title
	rec.Username = payload.Username
	rec.Password = payload.Password
	rec.URL = payload.URL
	rec.Notes = payload.Notes
	rec.Custom = payload.Custom
	rec.Favorite = favorite != 0
	rec.Tags = unmarshalTags(tags)
	if lastUsed.Valid {
		t := lastUsed.Time
		rec.LastUsedAt = &t
	}
	return &rec, nil
}

func matchesQuery(rec *Record, needle string) bool {
	return strings.Contains(strings.ToLower(rec.Title), needle) ||
		strings.Contains(strings.ToLower(rec.Username), needle) ||
		strings.Contains(strings.ToLower(rec.URL), needle)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
