// Package config loads the optional passkeep configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/passkeep/passkeep/pkg/vault"
)

// FileName is the config file name inside the vault directory.
const FileName = "config.yaml"

var (
	// ErrNotFound is returned when no config file exists.
	ErrNotFound = errors.New("config file not found")

	// ErrInsecure is returned when the config file has group or world access.
	ErrInsecure = errors.New("config file has insecure permissions")

	// ErrSymlink is returned when the config file is a symlink.
	ErrSymlink = errors.New("config file is a symlink")

	// ErrNotOwnedByUser is returned when the config file belongs to another user.
	ErrNotOwnedByUser = errors.New("config file not owned by current user")
)

// Config is the on-disk configuration. Zero values fall back to the
// built-in defaults.
type Config struct {
	Version int `yaml:"version"`

	// Lockout tunes failed-unlock handling.
	Lockout LockoutConfig `yaml:"lockout"`

	// Generator sets the default password generation shape.
	Generator GeneratorConfig `yaml:"generator"`

	// ClipboardClearSeconds is how long copied secrets stay on the
	// clipboard before being cleared. Zero disables clearing.
	ClipboardClearSeconds int `yaml:"clipboard_clear_seconds"`
}

// LockoutConfig mirrors vault.LockoutPolicy in file-friendly units.
type LockoutConfig struct {
	MaxAttempts        int `yaml:"max_attempts"`
	CooldownSeconds    int `yaml:"cooldown_seconds"`
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

// GeneratorConfig holds default password generation settings.
type GeneratorConfig struct {
	Length  int  `yaml:"length"`
	Digits  bool `yaml:"digits"`
	Symbols bool `yaml:"symbols"`
	Upper   bool `yaml:"upper"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Lockout: LockoutConfig{
			MaxAttempts:        vault.DefaultLockoutPolicy().MaxAttempts,
			CooldownSeconds:    int(vault.DefaultLockoutPolicy().Cooldown / time.Second),
			IdleTimeoutSeconds: int(vault.DefaultLockoutPolicy().IdleTimeout / time.Second),
		},
		Generator: GeneratorConfig{
			Length:  20,
			Digits:  true,
			Symbols: true,
			Upper:   true,
		},
		ClipboardClearSeconds: 30,
	}
}

// Load reads the config file from the vault directory. A missing file
// yields ErrNotFound; callers normally fall back to Default then.
//
// The file is opened with O_NOFOLLOW and checked through the open
// descriptor, so a swap between stat and read cannot bypass the
// permission and ownership checks.
func Load(vaultPath string) (*Config, error) {
	path := filepath.Join(vaultPath, FileName)

	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %o", ErrInsecure, perm)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if stat.Uid != uint32(os.Getuid()) {
			return nil, ErrNotOwnedByUser
		}
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads the config file, substituting defaults when the
// file does not exist. Any other failure is still an error, so an
// unreadable or tampered file never silently degrades to defaults.
func LoadOrDefault(vaultPath string) (*Config, error) {
	cfg, err := Load(vaultPath)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) validate() error {
	if c.Lockout.MaxAttempts < 1 {
		return fmt.Errorf("lockout.max_attempts must be at least 1, got %d", c.Lockout.MaxAttempts)
	}
	if c.Lockout.CooldownSeconds < 1 {
		return fmt.Errorf("lockout.cooldown_seconds must be at least 1, got %d", c.Lockout.CooldownSeconds)
	}
	if c.Lockout.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("lockout.idle_timeout_seconds must not be negative, got %d", c.Lockout.IdleTimeoutSeconds)
	}
	if c.Generator.Length < 8 || c.Generator.Length > 128 {
		return fmt.Errorf("generator.length must be between 8 and 128, got %d", c.Generator.Length)
	}
	if c.ClipboardClearSeconds < 0 {
		return fmt.Errorf("clipboard_clear_seconds must not be negative, got %d", c.ClipboardClearSeconds)
	}
	return nil
}

// LockoutPolicy converts the file units into the vault policy.
func (c *Config) LockoutPolicy() vault.LockoutPolicy {
	return vault.LockoutPolicy{
		MaxAttempts: c.Lockout.MaxAttempts,
		Cooldown:    time.Duration(c.Lockout.CooldownSeconds) * time.Second,
		IdleTimeout: time.Duration(c.Lockout.IdleTimeoutSeconds) * time.Second,
	}
}
