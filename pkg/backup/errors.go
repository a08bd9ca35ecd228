// Package backup writes and reads encrypted vault archives.
package backup

import "errors"

var (
	// ErrInvalidMagic indicates the file is not a backup archive.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates the archive format is newer than this build.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrIntegrityFailed indicates the HMAC over the archive did not verify.
	ErrIntegrityFailed = errors.New("backup integrity check failed: HMAC mismatch")

	// ErrDecryptionFailed indicates a wrong password or corrupted payload.
	ErrDecryptionFailed = errors.New("backup decryption failed: invalid password or corrupted data")

	// ErrEmptyPassword indicates no archive password was provided.
	ErrEmptyPassword = errors.New("backup password cannot be empty")
)
