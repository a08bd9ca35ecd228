package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// State is the authentication state of a vault session.
type State int

const (
	// StateSetupRequired means no vault exists yet; the only valid
	// transition is Setup, which creates the vault and unlocks it.
	StateSetupRequired State = iota

	// StateLocked means the vault exists and key material is not in
	// memory. Unlock with the correct master password moves to
	// StateUnlocked.
	StateLocked

	// StateUnlocked means the DEK is in memory and records are
	// accessible. Moves to StateLocked on explicit lock or idle
	// timeout.
	StateUnlocked

	// StateLockedOut means too many consecutive failures; unlocking is
	// refused until the cooldown elapses, then the state returns to
	// StateLocked.
	StateLockedOut
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateSetupRequired:
		return "setup-required"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	case StateLockedOut:
		return "locked-out"
	default:
		return "unknown"
	}
}

// LockoutPolicy configures failed-attempt handling and idle locking.
type LockoutPolicy struct {
	// MaxAttempts is the number of consecutive failures before the
	// first lockout.
	MaxAttempts int

	// Cooldown is the base lockout duration. Repeat offenders escalate:
	// 2x MaxAttempts failures multiply it by 10, 4x by 60.
	Cooldown time.Duration

	// IdleTimeout locks an unlocked session after this long, measured
	// from the moment of unlock. Zero disables it.
	IdleTimeout time.Duration
}

// DefaultLockoutPolicy returns the stock policy: five attempts, 30s base
// cooldown (30s/5m/30m escalation), five minute idle lock.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: 5,
		Cooldown:    30 * time.Second,
		IdleTimeout: 5 * time.Minute,
	}
}

// LockState is the persisted failed-attempt record. Surviving process
// restarts is the point: retry-by-rerun must not reset the counter.
type LockState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	CooldownUntil  time.Time `json:"cooldown_until"`
	LockoutCount   int       `json:"lockout_count"`
}

// loadLockState reads the lock state file, tolerating absence and
// corruption (both reset the state).
func (v *Vault) loadLockState() (*LockState, error) {
	data, err := os.ReadFile(filepath.Join(v.path, LockFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &LockState{}, nil
		}
		return nil, fmt.Errorf("vault: failed to read lock state: %w", err)
	}
	var state LockState
	if err := json.Unmarshal(data, &state); err != nil {
		return &LockState{}, nil
	}
	return &state, nil
}

func (v *Vault) saveLockState(state *LockState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal lock state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(v.path, LockFileName), data, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write lock state: %w", err)
	}
	return nil
}

// clearLockState removes the lock state file after a successful unlock.
func (v *Vault) clearLockState() error {
	err := os.Remove(filepath.Join(v.path, LockFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to clear lock state: %w", err)
	}
	return nil
}

// remainingCooldown returns how long the current lockout still lasts,
// or zero when unlocking is allowed.
func (v *Vault) remainingCooldown() time.Duration {
	state, err := v.loadLockState()
	if err != nil {
		return 0
	}
	now := time.Now()
	if !state.CooldownUntil.IsZero() && now.Before(state.CooldownUntil) {
		return state.CooldownUntil.Sub(now)
	}
	return 0
}

// RemainingCooldown is the exported view of the current lockout.
func (v *Vault) RemainingCooldown() time.Duration {
	return v.remainingCooldown()
}

// FailedAttempts returns the persisted consecutive-failure count.
func (v *Vault) FailedAttempts() int {
	state, err := v.loadLockState()
	if err != nil {
		return 0
	}
	return state.FailedAttempts
}

// recordFailedAttempt bumps the failure counter and starts a cooldown
// once the policy threshold is crossed. Returns the cooldown that was
// activated, if any.
func (v *Vault) recordFailedAttempt() (time.Duration, error) {
	state, err := v.loadLockState()
	if err != nil {
		return 0, err
	}

	state.FailedAttempts++
	state.LastAttempt = time.Now()

	var cooldown time.Duration
	n := v.policy.MaxAttempts
	switch {
	case state.FailedAttempts >= 4*n:
		cooldown = 60 * v.policy.Cooldown
	case state.FailedAttempts >= 2*n:
		cooldown = 10 * v.policy.Cooldown
	case state.FailedAttempts >= n:
		cooldown = v.policy.Cooldown
	}
	if cooldown > 0 {
		state.CooldownUntil = time.Now().Add(cooldown)
		state.LockoutCount++
	}

	if err := v.saveLockState(state); err != nil {
		return cooldown, err
	}
	return cooldown, nil
}

// Session layers the authentication state machine over a Vault. It
// tracks the unlock time for idle locking; the vault itself only knows
// about key material and the persisted lockout state.
type Session struct {
	vault  *Vault
	policy LockoutPolicy

	mu         sync.Mutex
	unlockedAt time.Time
}

// NewSession wraps a vault with the given policy.
func NewSession(v *Vault, policy LockoutPolicy) *Session {
	v.SetLockoutPolicy(policy)
	return &Session{vault: v, policy: policy}
}

// Vault returns the underlying vault.
func (s *Session) Vault() *Vault {
	return s.vault
}

// State computes the current authentication state. The idle timeout is
// measured from the last unlock; once it expires the vault is locked as
// a side effect, so callers observing StateLocked can trust that the
// DEK is already gone.
func (s *Session) State() State {
	if !s.vault.Exists() {
		return StateSetupRequired
	}
	if s.vault.RemainingCooldown() > 0 {
		return StateLockedOut
	}

	s.mu.Lock()
	idleExpired := s.policy.IdleTimeout > 0 &&
		!s.unlockedAt.IsZero() &&
		time.Since(s.unlockedAt) >= s.policy.IdleTimeout
	s.mu.Unlock()

	if idleExpired && !s.vault.IsLocked() {
		s.vault.Lock()
	}
	if s.vault.IsLocked() {
		return StateLocked
	}
	return StateUnlocked
}

// Setup creates the vault with the first master password and moves the
// session straight to StateUnlocked.
func (s *Session) Setup(masterPassword string) error {
	if s.State() != StateSetupRequired {
		return ErrVaultAlreadyExists
	}
	if err := s.vault.Init(masterPassword); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Unlock attempts the Locked -> Unlocked transition. During a lockout it
// refuses without consuming an attempt.
func (s *Session) Unlock(masterPassword string) error {
	switch s.State() {
	case StateSetupRequired:
		return ErrVaultNotFound
	case StateLockedOut:
		return fmt.Errorf("%w: locked out for %v",
			ErrLockedOut, s.vault.RemainingCooldown().Round(time.Second))
	case StateUnlocked:
		return ErrVaultAlreadyUnlocked
	}

	if err := s.vault.Unlock(masterPassword); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Lock performs the explicit Unlocked -> Locked transition. Locking an
// already locked session is a no-op.
func (s *Session) Lock() {
	s.vault.Lock()
	s.mu.Lock()
	s.unlockedAt = time.Time{}
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.unlockedAt = time.Now()
	s.mu.Unlock()
}

// IdleRemaining returns how long until the idle lock fires, or zero
// when the session is locked or idle locking is disabled.
func (s *Session) IdleRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy.IdleTimeout == 0 || s.unlockedAt.IsZero() {
		return 0
	}
	remaining := s.policy.IdleTimeout - time.Since(s.unlockedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ErrNotUnlocked is returned by Require when records are inaccessible.
var ErrNotUnlocked = errors.New("vault: session is not unlocked")

// Require returns the vault if and only if the session is unlocked.
func (s *Session) Require() (*Vault, error) {
	if s.State() != StateUnlocked {
		return nil, ErrNotUnlocked
	}
	return s.vault, nil
}
