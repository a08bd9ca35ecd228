// Package audit provides append-only audit logging with an HMAC chain
// for tamper evidence. Events are written as JSONL, one file per month,
// and each event carries an HMAC over its contents plus the previous
// event's HMAC, so removal or edit of any event breaks the chain.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Operation types recorded in the audit log. Failed unlocks and
// lockouts have no operations here: the chain HMAC key derives from
// the DEK, which a rejected password never produces. The lock-state
// file is the record of those.
const (
	OpVaultInit      = "vault.init"
	OpVaultUnlock    = "vault.unlock"
	OpVaultLock      = "vault.lock"
	OpPasswordChange = "vault.password_change"

	OpRecordCreate = "record.create"
	OpRecordGet    = "record.get"
	OpRecordUpdate = "record.update"
	OpRecordDelete = "record.delete"
	OpRecordList   = "record.list"

	OpExport  = "vault.export"
	OpImport  = "vault.import"
	OpBackup  = "vault.backup"
	OpRestore = "vault.restore"
	OpSync    = "vault.sync"
)

// Result values for an event.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ErrKeyNotSet is returned when logging before the HMAC key is derived.
var ErrKeyNotSet = errors.New("audit: HMAC key not set")

// Event is a single audit log record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"` // UUIDv4
	Timestamp string `json:"ts"` // RFC 3339, nanosecond precision

	Operation  string `json:"op"`
	RecordHMAC string `json:"rec,omitempty"` // HMAC of the affected record id

	Result string     `json:"result"`
	Error  *ErrorInfo `json:"error,omitempty"`

	Chain Chain `json:"chain"`
}

// ErrorInfo carries failure details for error events.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHMAC string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// chainGenesis is the PrevHMAC of the first event in a log.
const chainGenesis = "genesis"

// Logger appends events to the audit log.
type Logger struct {
	path     string
	hmacKey  []byte
	mu       sync.Mutex
	sequence int64
	prevHMAC string
	keySet   bool
}

// NewLogger creates a logger that writes under the given directory.
// SetKey must be called before any event can be logged.
func NewLogger(path string) *Logger {
	return &Logger{
		path:     path,
		prevHMAC: chainGenesis,
	}
}

// SetKey derives the audit HMAC key from vault key material via
// HKDF-SHA256 and loads the persisted chain position.
func (l *Logger) SetKey(masterKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := hkdf.New(sha256.New, masterKey, nil, []byte("passkeep-audit-v1"))
	l.hmacKey = make([]byte, 32)
	if _, err := r.Read(l.hmacKey); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.keySet = true

	if err := l.loadChainState(); err != nil {
		// First run: start a fresh chain.
		l.sequence = 0
		l.prevHMAC = chainGenesis
	}
	return nil
}

// Log appends an event. recordID, when non-empty, is stored as an HMAC
// so the log never reveals which record was touched.
func (l *Logger) Log(op, result, recordID string, errInfo *ErrorInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.keySet {
		return ErrKeyNotSet
	}
	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}

	event := Event{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		Result:    result,
		Error:     errInfo,
	}
	if recordID != "" {
		event.RecordHMAC = l.hmacHex([]byte(recordID))
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHMAC = l.prevHMAC
	event.Chain.HMAC = l.hmacHex(eventDigest(&event))
	l.prevHMAC = event.Chain.HMAC

	if err := l.writeEvent(&event); err != nil {
		return err
	}
	return l.saveChainState()
}

// LogSuccess records a successful operation.
func (l *Logger) LogSuccess(op, recordID string) error {
	return l.Log(op, ResultSuccess, recordID, nil)
}

// LogError records a failed operation.
func (l *Logger) LogError(op, recordID, code, message string) error {
	return l.Log(op, ResultError, recordID, &ErrorInfo{Code: code, Message: message})
}

// Path returns the audit log directory.
func (l *Logger) Path() string {
	return l.path
}

func (l *Logger) hmacHex(data []byte) string {
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// eventDigest serializes the HMAC-covered fields. The event's own HMAC
// is excluded; everything else is covered.
func eventDigest(e *Event) []byte {
	errData := ""
	if e.Error != nil {
		errData = e.Error.Code + "|" + e.Error.Message
	}
	return []byte(fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%d|%s",
		e.Version, e.ID, e.Timestamp, e.Operation, e.RecordHMAC,
		e.Result, errData, e.Chain.Sequence, e.Chain.PrevHMAC))
}

// writeEvent appends the event to the current month's log file.
func (l *Logger) writeEvent(event *Event) error {
	name := time.Now().UTC().Format("2006-01") + ".jsonl"
	f, err := os.OpenFile(filepath.Join(l.path, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

// chainState holds the persisted chain position.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHMAC string `json:"prev"`
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, "audit.meta"))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHMAC = state.PrevHMAC
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHMAC: l.prevHMAC})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, "audit.meta"), data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// VerifyResult reports the outcome of a chain verification.
type VerifyResult struct {
	Valid       bool     `json:"valid"`
	EventCount  int      `json:"event_count"`
	FirstBroken int64    `json:"first_broken,omitempty"` // Sequence of first bad event
	Errors      []string `json:"errors,omitempty"`
}

// Verify walks every log file in sequence order and recomputes the
// HMAC chain. Any edited, reordered, or removed event is reported.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.keySet {
		return nil, ErrKeyNotSet
	}

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true, EventCount: len(events)}
	prev := chainGenesis
	var wantSeq int64 = 1

	for _, e := range events {
		if e.Chain.Sequence != wantSeq {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("sequence gap: expected %d, got %d", wantSeq, e.Chain.Sequence))
			if result.FirstBroken == 0 {
				result.FirstBroken = e.Chain.Sequence
			}
		}
		if e.Chain.PrevHMAC != prev {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("broken chain at sequence %d: prev HMAC mismatch", e.Chain.Sequence))
			if result.FirstBroken == 0 {
				result.FirstBroken = e.Chain.Sequence
			}
		}
		if l.hmacHex(eventDigest(&e)) != e.Chain.HMAC {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("tampered event at sequence %d: HMAC mismatch", e.Chain.Sequence))
			if result.FirstBroken == 0 {
				result.FirstBroken = e.Chain.Sequence
			}
		}
		prev = e.Chain.HMAC
		wantSeq = e.Chain.Sequence + 1
	}

	return result, nil
}

// ListEvents returns up to limit events at or after since, newest last.
// limit <= 0 means no limit; a zero since means all events.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, e := range events {
			ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
			filtered = append(filtered, e)
		}
		events = filtered
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// readAll loads every event from every monthly log file, oldest first.
func (l *Logger) readAll() ([]Event, error) {
	entries, err := os.ReadDir(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: failed to read log directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names) // YYYY-MM.jsonl sorts chronologically

	var events []Event
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(l.path, name))
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", name, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var e Event
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return nil, fmt.Errorf("audit: malformed event in %s: %w", name, err)
			}
			events = append(events, e)
		}
	}
	return events, nil
}
