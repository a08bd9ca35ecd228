package vault

import (
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps lockout windows short enough to test against.
func fastPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts: 3,
		Cooldown:    150 * time.Millisecond,
		IdleTimeout: 200 * time.Millisecond,
	}
}

func TestSessionSetupTransition(t *testing.T) {
	s := NewSession(New(t.TempDir()+"/vault"), fastPolicy())
	t.Cleanup(s.Lock)

	if got := s.State(); got != StateSetupRequired {
		t.Fatalf("State() = %v, want setup-required", got)
	}
	if err := s.Unlock(testPassword); !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("Unlock() before setup = %v, want ErrVaultNotFound", err)
	}

	// SetupRequired -> Unlocked on first master password creation
	if err := s.Setup(testPassword); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if got := s.State(); got != StateUnlocked {
		t.Errorf("State() after Setup = %v, want unlocked", got)
	}

	if err := s.Setup(testPassword); !errors.Is(err, ErrVaultAlreadyExists) {
		t.Errorf("second Setup() = %v, want ErrVaultAlreadyExists", err)
	}
}

func TestSessionLockUnlockCycle(t *testing.T) {
	s := NewSession(New(t.TempDir()+"/vault"), fastPolicy())
	t.Cleanup(s.Lock)
	if err := s.Setup(testPassword); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	// Unlocked -> Locked on explicit lock
	s.Lock()
	if got := s.State(); got != StateLocked {
		t.Fatalf("State() after Lock = %v, want locked", got)
	}

	// Locked -> Unlocked on successful password check
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if got := s.State(); got != StateUnlocked {
		t.Errorf("State() after Unlock = %v, want unlocked", got)
	}
	if err := s.Unlock(testPassword); !errors.Is(err, ErrVaultAlreadyUnlocked) {
		t.Errorf("Unlock() while unlocked = %v, want ErrVaultAlreadyUnlocked", err)
	}
}

func TestSessionLockoutAfterFailures(t *testing.T) {
	s := NewSession(New(t.TempDir()+"/vault"), fastPolicy())
	t.Cleanup(s.Lock)
	if err := s.Setup(testPassword); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	s.Lock()

	// MaxAttempts consecutive failures trigger the lockout
	for i := 0; i < 3; i++ {
		err := s.Unlock("definitely wrong")
		if i < 2 && !errors.Is(err, ErrInvalidPassword) {
			t.Fatalf("attempt %d: Unlock() = %v, want ErrInvalidPassword", i+1, err)
		}
		if i == 2 && !errors.Is(err, ErrLockedOut) {
			t.Fatalf("attempt %d: Unlock() = %v, want ErrLockedOut", i+1, err)
		}
	}
	if got := s.State(); got != StateLockedOut {
		t.Fatalf("State() after failures = %v, want locked-out", got)
	}

	// Even the correct password is refused during the cooldown
	if err := s.Unlock(testPassword); !errors.Is(err, ErrLockedOut) {
		t.Errorf("Unlock() during lockout = %v, want ErrLockedOut", err)
	}

	// LockedOut -> Locked once the cooldown elapses
	time.Sleep(200 * time.Millisecond)
	if got := s.State(); got != StateLocked {
		t.Fatalf("State() after cooldown = %v, want locked", got)
	}
	if err := s.Unlock(testPassword); err != nil {
		t.Fatalf("Unlock() after cooldown error: %v", err)
	}

	// Successful unlock resets the failure counter
	if got := s.Vault().FailedAttempts(); got != 0 {
		t.Errorf("FailedAttempts() after success = %d, want 0", got)
	}
}

func TestLockoutSurvivesRestart(t *testing.T) {
	dir := t.TempDir() + "/vault"
	s := NewSession(New(dir), fastPolicy())
	if err := s.Setup(testPassword); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	s.Lock()
	for i := 0; i < 3; i++ {
		_ = s.Unlock("definitely wrong")
	}

	// A fresh session over the same directory sees the lockout
	s2 := NewSession(New(dir), fastPolicy())
	if got := s2.State(); got != StateLockedOut {
		t.Errorf("State() in new session = %v, want locked-out", got)
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	s := NewSession(New(t.TempDir()+"/vault"), fastPolicy())
	t.Cleanup(s.Lock)
	if err := s.Setup(testPassword); err != nil {
		t.Fatalf("Setup() error: %v", err)
	}

	if s.IdleRemaining() <= 0 {
		t.Error("IdleRemaining() should be positive right after unlock")
	}

	// Unlocked -> Locked after the idle timeout from last unlock
	time.Sleep(250 * time.Millisecond)
	if got := s.State(); got != StateLocked {
		t.Fatalf("State() after idle timeout = %v, want locked", got)
	}
	if !s.Vault().IsLocked() {
		t.Error("idle timeout must wipe the DEK, not just report locked")
	}
	if _, err := s.Require(); !errors.Is(err, ErrNotUnlocked) {
		t.Errorf("Require() after idle lock = %v, want ErrNotUnlocked", err)
	}
}

func TestEscalatingCooldown(t *testing.T) {
	v := New(t.TempDir() + "/vault")
	v.SetLockoutPolicy(LockoutPolicy{MaxAttempts: 2, Cooldown: time.Second})
	if err := v.Init(testPassword); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	v.Lock()

	// First threshold: base cooldown
	var cooldown time.Duration
	for i := 0; i < 2; i++ {
		cooldown, _ = v.recordFailedAttempt()
	}
	if cooldown != time.Second {
		t.Errorf("cooldown at threshold = %v, want 1s", cooldown)
	}

	// Second threshold (2x attempts): 10x cooldown
	for i := 0; i < 2; i++ {
		cooldown, _ = v.recordFailedAttempt()
	}
	if cooldown != 10*time.Second {
		t.Errorf("cooldown at 2x threshold = %v, want 10s", cooldown)
	}

	// Third threshold (4x attempts): 60x cooldown
	for i := 0; i < 4; i++ {
		cooldown, _ = v.recordFailedAttempt()
	}
	if cooldown != 60*time.Second {
		t.Errorf("cooldown at 4x threshold = %v, want 60s", cooldown)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateSetupRequired: "setup-required",
		StateLocked:        "locked",
		StateUnlocked:      "unlocked",
		StateLockedOut:     "locked-out",
		State(99):          "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
