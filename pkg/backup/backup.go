package backup

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/passkeep/passkeep/pkg/crypto"
	"github.com/passkeep/passkeep/pkg/vault"
)

// HKDF info strings separating the encryption and MAC keys.
const (
	hkdfInfoEnc = "passkeep-backup-enc-v1"
	hkdfInfoMAC = "passkeep-backup-mac-v1"
)

// Options configures archive creation.
type Options struct {
	// AuditFiles maps audit log file names to contents to embed.
	AuditFiles map[string][]byte
	// Now overrides the archive timestamp, mainly for tests.
	Now func() time.Time
}

// Archive is the decrypted contents of a backup file.
type Archive struct {
	Header  *Header
	Records []vault.Record
	// Audit maps audit log file names to their raw contents.
	Audit map[string][]byte
}

// VerifyResult reports an archive's integrity without restoring it.
type VerifyResult struct {
	Valid         bool
	Version       int
	CreatedAt     time.Time
	RecordCount   int
	IncludesAudit bool
	Error         string
}

// Write encrypts records into a backup archive on w.
//
// The archive key is derived with Argon2id from the given password and
// a salt generated fresh for this archive, never the vault salt. The
// layout is magic, header length, header JSON, ciphertext, then an
// HMAC-SHA256 trailer over everything before it.
func Write(w io.Writer, records []vault.Record, password []byte, opts Options) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return fmt.Errorf("failed to generate backup salt: %w", err)
	}
	encKey, macKey, err := deriveKeys(password, salt)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	header := &Header{
		Version:       FormatVersion,
		CreatedAt:     now().UTC(),
		RecordCount:   len(records),
		IncludesAudit: len(opts.AuditFiles) > 0,
		KDF: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		ChecksumAlgo: "hmac-sha256",
	}

	body, err := json.Marshal(payload{Records: records, Audit: opts.AuditFiles})
	if err != nil {
		return fmt.Errorf("failed to marshal backup payload: %w", err)
	}
	defer crypto.SecureWipe(body)
	ciphertext, err := crypto.Seal(encKey, body)
	if err != nil {
		return fmt.Errorf("failed to encrypt backup: %w", err)
	}

	// Buffer the archive so the trailer HMAC can cover the exact bytes
	// written.
	var buf bytes.Buffer
	if err := writeHeader(&buf, header); err != nil {
		return err
	}
	buf.Write(ciphertext)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(buf.Bytes())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if _, err := w.Write(mac.Sum(nil)); err != nil {
		return fmt.Errorf("failed to write backup checksum: %w", err)
	}
	return nil
}

// Read decrypts a backup archive produced by Write.
func Read(r io.Reader, password []byte) (*Archive, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if len(raw) < sha256.Size {
		return nil, ErrInvalidMagic
	}
	body, trailer := raw[:len(raw)-sha256.Size], raw[len(raw)-sha256.Size:]

	header, _, err := readHeader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	encKey, macKey, err := deriveKeysWithParams(password, header.KDF)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), trailer) {
		return nil, ErrIntegrityFailed
	}

	// Ciphertext starts after magic, length field, and header JSON.
	offset := len(Magic) + 4 + headerJSONLen(body)
	plaintext, err := crypto.Open(encKey, body[offset:])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer crypto.SecureWipe(plaintext)

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup payload: %w", err)
	}
	return &Archive{Header: header, Records: p.Records, Audit: p.Audit}, nil
}

// Verify checks an archive's integrity and reports its metadata.
func Verify(r io.Reader, password []byte) *VerifyResult {
	archive, err := Read(r, password)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}
	}
	return &VerifyResult{
		Valid:         true,
		Version:       archive.Header.Version,
		CreatedAt:     archive.Header.CreatedAt,
		RecordCount:   archive.Header.RecordCount,
		IncludesAudit: archive.Header.IncludesAudit,
	}
}

// headerJSONLen re-reads the big-endian header length from a validated
// archive body.
func headerJSONLen(body []byte) int {
	off := len(Magic)
	return int(uint32(body[off])<<24 | uint32(body[off+1])<<16 | uint32(body[off+2])<<8 | uint32(body[off+3]))
}

// deriveKeys stretches the password with current Argon2id parameters.
func deriveKeys(password, salt []byte) (encKey, macKey []byte, err error) {
	return deriveKeysWithParams(password, KDFParams{
		Salt:        salt,
		Memory:      crypto.Argon2Memory,
		Iterations:  crypto.Argon2Time,
		Parallelism: crypto.Argon2Threads,
	})
}

// deriveKeysWithParams stretches the password with the archive's own
// recorded parameters, then splits encryption and MAC keys via HKDF.
func deriveKeysWithParams(password []byte, params KDFParams) (encKey, macKey []byte, err error) {
	if len(params.Salt) != crypto.SaltLength {
		return nil, nil, fmt.Errorf("invalid backup salt length: %d", len(params.Salt))
	}
	root := argon2.IDKey(password, params.Salt, params.Iterations, params.Memory, params.Parallelism, crypto.KeyLength)
	defer crypto.SecureWipe(root)

	encKey, err = expandKey(root, hkdfInfoEnc)
	if err != nil {
		return nil, nil, err
	}
	macKey, err = expandKey(root, hkdfInfoMAC)
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, err
	}
	return encKey, macKey, nil
}

func expandKey(root []byte, info string) ([]byte, error) {
	key := make([]byte, crypto.KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, root, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive backup key: %w", err)
	}
	return key, nil
}
