package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/passkeep/passkeep/pkg/vault"
)

// FileRemote is a Remote backed by a single JSON file, typically on a
// mounted or synchronized drive. The file holds plaintext records;
// point it at encrypted storage or use backups for untrusted media.
type FileRemote struct {
	path string
}

// fileReplica is the on-disk shape of a FileRemote.
type fileReplica struct {
	Version  int            `json:"version"`
	SyncedAt time.Time      `json:"synced_at"`
	Records  []vault.Record `json:"records"`
}

// NewFileRemote returns a remote stored at path. The file is created on
// the first push.
func NewFileRemote(path string) *FileRemote {
	return &FileRemote{path: path}
}

func (f *FileRemote) Name() string {
	return "file:" + f.path
}

// Fetch reads the replica file. A missing file is an empty remote.
func (f *FileRemote) Fetch(ctx context.Context) ([]vault.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replica: %w", err)
	}
	var replica fileReplica
	if err := json.Unmarshal(data, &replica); err != nil {
		return nil, fmt.Errorf("failed to parse replica: %w", err)
	}
	return replica.Records, nil
}

// Push atomically replaces the replica file.
func (f *FileRemote) Push(ctx context.Context, records []vault.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileReplica{
		Version:  1,
		SyncedAt: time.Now().UTC(),
		Records:  records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode replica: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".replica-*")
	if err != nil {
		return fmt.Errorf("failed to create replica: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write replica: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set replica permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close replica: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace replica: %w", err)
	}
	return nil
}
