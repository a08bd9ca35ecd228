// Package crypto provides the cryptographic primitives for passkeep.
//
// It implements AES-256-GCM authenticated encryption, Argon2id key
// derivation for the key-encryption key, and PBKDF2-SHA256 hashing for
// master password verification.
//
// # Security Properties
//
//   - AES-256-GCM authenticated encryption (confidentiality + tamper detection)
//   - Argon2id KEK derivation (64MB memory, 3 iterations, 4 threads)
//   - PBKDF2-SHA256 master password hashing (64,000 iterations)
//   - Cryptographically secure random nonce and salt generation
//   - Constant-time verifier comparison
//   - Secure memory wiping for key material
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters.
const (
	// Argon2Memory is the Argon2id memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the Argon2id iteration count.
	Argon2Time = 3

	// Argon2Threads is the Argon2id degree of parallelism.
	Argon2Threads = 4

	// HashIterations is the PBKDF2 iteration count for master password
	// hashing. Deliberately slow; tens of thousands of rounds.
	HashIterations = 64000

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// HashLength is the length of the master password verifier in bytes.
	HashLength = 32

	// SaltLength is the length of KDF salts in bytes (128 bits).
	SaltLength = 16

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 12 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 12 bytes")

	// ErrInvalidSaltLength indicates the salt is not 16 bytes.
	ErrInvalidSaltLength = errors.New("crypto: invalid salt length, must be 16 bytes")

	// ErrDecryptionFailed indicates authentication tag verification failed.
	// Returned on tampered ciphertext as well as on a wrong key; corrupt
	// plaintext is never returned.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// NewSalt returns a fresh random salt of SaltLength bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 256-bit key-encryption key from a master password
// using Argon2id with OWASP-recommended parameters. The salt must be
// SaltLength bytes of cryptographically secure random data.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, Argon2Time, Argon2Memory, Argon2Threads, KeyLength)
}

// HashMasterPassword stretches a master password into a verifier hash
// using PBKDF2-SHA256 with HashIterations rounds. When salt is nil a
// fresh random salt is generated. Returns the hash and the salt used.
//
// The verifier is independent from the Argon2id KEK so that a stored
// hash never doubles as encryption key material.
func HashMasterPassword(password, salt []byte) (hash, usedSalt []byte, err error) {
	if salt == nil {
		if salt, err = NewSalt(); err != nil {
			return nil, nil, err
		}
	}
	if len(salt) != SaltLength {
		return nil, nil, ErrInvalidSaltLength
	}
	hash = pbkdf2.Key(password, salt, HashIterations, HashLength, sha256.New)
	return hash, salt, nil
}

// VerifyMasterPassword reports whether password matches the stored
// verifier hash. The comparison is constant-time regardless of where
// the candidate diverges from the stored hash.
func VerifyMasterPassword(password, hash, salt []byte) bool {
	if len(hash) != HashLength || len(salt) != SaltLength {
		return false
	}
	candidate := pbkdf2.Key(password, salt, HashIterations, HashLength, sha256.New)
	defer SecureWipe(candidate)
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A cryptographically secure random 12-byte nonce is generated per call.
// The authentication tag is appended to the ciphertext by GCM.
func Encrypt(key, plaintext []byte) (ciphertext []byte, nonce []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce = make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM.
//
// The authentication tag is verified before any plaintext is returned.
// Tag verification failure (tampering, corruption, or a wrong key)
// yields ErrDecryptionFailed.
func Decrypt(key, ciphertext, nonce []byte) (plaintext []byte, err error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err = gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Seal encrypts plaintext and prepends the nonce to the ciphertext,
// producing a single self-contained blob for storage.
func Seal(key, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// Open decrypts a blob produced by Seal.
func Open(key, blob []byte) ([]byte, error) {
	if len(blob) < NonceLength {
		return nil, ErrCiphertextTooShort
	}
	return Decrypt(key, blob[NonceLength:], blob[:NonceLength])
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// the compiler from eliding the writes. Used to destroy key material
// such as the DEK when the vault locks.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// b is still "in use" after the loop, so the writes survive
	// dead-store elimination.
	runtime.KeepAlive(b)
}
