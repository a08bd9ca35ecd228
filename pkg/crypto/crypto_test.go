package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

// TestDeriveKey tests the Argon2id key derivation function
func TestDeriveKey(t *testing.T) {
	password := []byte("correct horse battery staple")
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error: %v", err)
	}

	key := DeriveKey(password, salt)
	if len(key) != KeyLength {
		t.Errorf("DeriveKey() returned key of length %d, want %d", len(key), KeyLength)
	}

	// Same password + salt must be deterministic
	if !bytes.Equal(key, DeriveKey(password, salt)) {
		t.Error("DeriveKey() with same inputs should produce identical keys")
	}

	// Different password produces different key
	if bytes.Equal(key, DeriveKey([]byte("other password"), salt)) {
		t.Error("DeriveKey() with different password should produce different key")
	}

	// Different salt produces different key
	salt2, _ := NewSalt()
	if bytes.Equal(key, DeriveKey(password, salt2)) {
		t.Error("DeriveKey() with different salt should produce different key")
	}
}

// TestHashMasterPassword verifies hash/salt generation and determinism
func TestHashMasterPassword(t *testing.T) {
	hash, salt, err := HashMasterPassword([]byte("master-pass-1"), nil)
	if err != nil {
		t.Fatalf("HashMasterPassword() error: %v", err)
	}
	if len(hash) != HashLength {
		t.Errorf("hash length = %d, want %d", len(hash), HashLength)
	}
	if len(salt) != SaltLength {
		t.Errorf("salt length = %d, want %d", len(salt), SaltLength)
	}

	// Re-hashing with the returned salt is deterministic
	hash2, salt2, err := HashMasterPassword([]byte("master-pass-1"), salt)
	if err != nil {
		t.Fatalf("HashMasterPassword() with salt error: %v", err)
	}
	if !bytes.Equal(salt, salt2) {
		t.Error("HashMasterPassword() should return the provided salt unchanged")
	}
	if !bytes.Equal(hash, hash2) {
		t.Error("HashMasterPassword() with same password and salt should be deterministic")
	}

	// Invalid salt length is rejected
	if _, _, err := HashMasterPassword([]byte("x"), []byte("short")); !errors.Is(err, ErrInvalidSaltLength) {
		t.Errorf("HashMasterPassword() with short salt = %v, want ErrInvalidSaltLength", err)
	}
}

// TestVerifyMasterPassword covers match, mismatch, and malformed inputs
func TestVerifyMasterPassword(t *testing.T) {
	password := []byte("s3cret-master")
	hash, salt, err := HashMasterPassword(password, nil)
	if err != nil {
		t.Fatalf("HashMasterPassword() error: %v", err)
	}

	if !VerifyMasterPassword(password, hash, salt) {
		t.Error("VerifyMasterPassword() should accept the correct password")
	}
	if VerifyMasterPassword([]byte("wrong"), hash, salt) {
		t.Error("VerifyMasterPassword() should reject a wrong password")
	}
	if VerifyMasterPassword(password, hash[:HashLength-1], salt) {
		t.Error("VerifyMasterPassword() should reject a truncated hash")
	}
	if VerifyMasterPassword(password, hash, salt[:4]) {
		t.Error("VerifyMasterPassword() should reject a malformed salt")
	}
}

// TestEncryptDecrypt round-trips plaintext through AES-256-GCM
func TestEncryptDecrypt(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	plaintext := []byte("hunter2")

	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if len(nonce) != NonceLength {
		t.Errorf("nonce length = %d, want %d", len(nonce), NonceLength)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should differ from plaintext")
	}

	decrypted, err := Decrypt(key, ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", decrypted, plaintext)
	}
}

// TestDecryptTamperDetection verifies tag verification on modified ciphertext
func TestDecryptTamperDetection(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	ciphertext, nonce, err := Encrypt(key, []byte("integrity matters"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Flip one bit in the ciphertext
	tampered := make([]byte, len(ciphertext))
	copy(tampered, ciphertext)
	tampered[0] ^= 0x01

	if _, err := Decrypt(key, tampered, nonce); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() on tampered data = %v, want ErrDecryptionFailed", err)
	}

	// Wrong key must also fail with the same error kind
	wrongKey := make([]byte, KeyLength)
	if _, err := rand.Read(wrongKey); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if _, err := Decrypt(wrongKey, ciphertext, nonce); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() with wrong key = %v, want ErrDecryptionFailed", err)
	}
}

// TestDecryptInputValidation covers the parameter sentinels
func TestDecryptInputValidation(t *testing.T) {
	key := make([]byte, KeyLength)
	nonce := make([]byte, NonceLength)

	if _, _, err := Encrypt(key[:16], []byte("x")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Encrypt() with short key = %v, want ErrInvalidKeyLength", err)
	}
	if _, err := Decrypt(key[:16], []byte("x"), nonce); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("Decrypt() with short key = %v, want ErrInvalidKeyLength", err)
	}
	if _, err := Decrypt(key, []byte("x"), nonce[:8]); !errors.Is(err, ErrInvalidNonceLength) {
		t.Errorf("Decrypt() with short nonce = %v, want ErrInvalidNonceLength", err)
	}
	if _, err := Decrypt(key, []byte("tiny"), nonce); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Decrypt() with short ciphertext = %v, want ErrCiphertextTooShort", err)
	}
}

// TestSealOpen round-trips the nonce-prepended blob format
func TestSealOpen(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	blob, err := Seal(key, []byte("blob payload"))
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	plaintext, err := Open(key, blob)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if string(plaintext) != "blob payload" {
		t.Errorf("Open() = %q, want %q", plaintext, "blob payload")
	}

	if _, err := Open(key, blob[:NonceLength-1]); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Open() with truncated blob = %v, want ErrCiphertextTooShort", err)
	}
}

// TestSecureWipe verifies the buffer is zeroed
func TestSecureWipe(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}
	SecureWipe(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("SecureWipe() left byte %d = %#x, want 0", i, v)
		}
	}
}
