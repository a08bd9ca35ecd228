package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

// Magic identifies backup archives: "PKP_BKUP".
var Magic = [8]byte{'P', 'K', 'P', '_', 'B', 'K', 'U', 'P'}

// FormatVersion is the current archive format version.
const FormatVersion = 1

// maxHeaderSize bounds the header length field read from untrusted input.
const maxHeaderSize = 1024 * 1024

// KDFParams records the Argon2id parameters used for the archive key,
// so older archives stay readable after parameter bumps.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Header is the plaintext archive metadata.
type Header struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	RecordCount   int       `json:"record_count"`
	IncludesAudit bool      `json:"includes_audit"`
	KDF           KDFParams `json:"kdf"`
	ChecksumAlgo  string    `json:"checksum_algorithm"`
}

// payload is the encrypted archive body.
type payload struct {
	Records []vault.Record `json:"records"`
	// Audit maps audit log file names to their raw contents.
	Audit map[string][]byte `json:"audit,omitempty"`
}

// writeHeader writes the magic, a big-endian length, and the header JSON.
func writeHeader(w io.Writer, header *Header) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header length: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// readHeader reads and validates the magic and header, returning the
// raw header bytes as well so the integrity check can cover them.
func readHeader(r io.Reader) (*Header, []byte, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to read magic number: %w", err)
	}
	if magic != Magic {
		return nil, nil, ErrInvalidMagic
	}

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, nil, fmt.Errorf("failed to read header length: %w", err)
	}
	if headerLen > maxHeaderSize {
		return nil, nil, fmt.Errorf("header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	if header.Version > FormatVersion {
		return nil, nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, headerJSON, nil
}
