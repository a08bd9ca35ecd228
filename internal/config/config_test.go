package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), perm); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Lockout.MaxAttempts != Default().Lockout.MaxAttempts {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
version: 1
lockout:
  max_attempts: 3
  cooldown_seconds: 60
  idle_timeout_seconds: 120
generator:
  length: 32
  digits: true
  symbols: false
  upper: true
clipboard_clear_seconds: 15
`, 0600)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	policy := cfg.LockoutPolicy()
	if policy.MaxAttempts != 3 || policy.Cooldown != time.Minute || policy.IdleTimeout != 2*time.Minute {
		t.Errorf("policy = %+v", policy)
	}
	if cfg.Generator.Length != 32 || cfg.Generator.Symbols {
		t.Errorf("generator = %+v", cfg.Generator)
	}
	if cfg.ClipboardClearSeconds != 15 {
		t.Errorf("clipboard = %d, want 15", cfg.ClipboardClearSeconds)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version: 1\nlockout:\n  max_attempts: 10\n  cooldown_seconds: 30\n", 0600)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lockout.MaxAttempts != 10 {
		t.Errorf("max_attempts = %d, want 10", cfg.Lockout.MaxAttempts)
	}
	if cfg.Generator.Length != Default().Generator.Length {
		t.Errorf("generator.length = %d, want default", cfg.Generator.Length)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version: 1\n", 0644)

	if _, err := Load(dir); !errors.Is(err, ErrInsecure) {
		t.Fatalf("err = %v, want ErrInsecure", err)
	}
}

func TestLoadRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.yaml")
	if err := os.WriteFile(target, []byte("version: 1\n"), 0600); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(dir, FileName)); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := Load(dir); !errors.Is(err, ErrSymlink) {
		t.Fatalf("err = %v, want ErrSymlink", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad version":     "version: 9\n",
		"zero attempts":   "version: 1\nlockout:\n  max_attempts: 0\n  cooldown_seconds: 30\n",
		"tiny generator":  "version: 1\ngenerator:\n  length: 4\n",
		"broken yaml":     "version: [\n",
		"negative cooldn": "version: 1\nlockout:\n  max_attempts: 5\n  cooldown_seconds: -1\n",
	}
	for name, content := range cases {
		dir := t.TempDir()
		writeConfig(t, dir, content, 0600)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
