package syncer

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/passkeep/passkeep/pkg/vault"
)

// MemoryRemote is an in-process Remote. It backs tests and the local
// sync stub until a network transport exists.
type MemoryRemote struct {
	mu      sync.RWMutex
	records map[string]vault.Record
}

// NewMemoryRemote returns an empty in-memory remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{records: make(map[string]vault.Record)}
}

func (m *MemoryRemote) Name() string {
	return "memory"
}

// Seed loads records directly, bypassing the sync path.
func (m *MemoryRemote) Seed(records ...vault.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.ID] = *rec.Clone()
	}
}

// Fetch returns all held records sorted by title.
func (m *MemoryRemote) Fetch(ctx context.Context) ([]vault.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]vault.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

// Push replaces the remote's contents with the given record set.
func (m *MemoryRemote) Push(ctx context.Context, records []vault.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]vault.Record, len(records))
	for _, rec := range records {
		m.records[rec.ID] = *rec.Clone()
	}
	return nil
}

// Count reports how many records the remote holds.
func (m *MemoryRemote) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
