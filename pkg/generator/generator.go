// Package generator produces cryptographically random passwords.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// MinLength and MaxLength bound generated password lengths.
	MinLength = 8
	MaxLength = 128

	// DefaultLength is used when no length is configured.
	DefaultLength = 20
)

var (
	// ErrLengthOutOfRange is returned for lengths outside MinLength..MaxLength.
	ErrLengthOutOfRange = fmt.Errorf("password length must be between %d and %d", MinLength, MaxLength)

	// ErrEmptyCharset is returned when every character class is excluded.
	ErrEmptyCharset = errors.New("no characters available: all classes excluded")
)

// Options selects the character classes to draw from. The zero value
// produces lowercase-only passwords of DefaultLength.
type Options struct {
	Length  int
	Upper   bool
	Digits  bool
	Symbols bool
	// Exclude removes specific characters, e.g. ambiguous "0O1lI".
	Exclude string
}

// DefaultOptions enables all character classes at the default length.
func DefaultOptions() Options {
	return Options{Length: DefaultLength, Upper: true, Digits: true, Symbols: true}
}

// Generate produces one random password. Every selected character
// class is guaranteed to appear at least once.
func Generate(opts Options) (string, error) {
	if opts.Length == 0 {
		opts.Length = DefaultLength
	}
	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", ErrLengthOutOfRange
	}

	classes := [][]rune{exclude(charsetLowercase, opts.Exclude)}
	if opts.Upper {
		classes = append(classes, exclude(charsetUppercase, opts.Exclude))
	}
	if opts.Digits {
		classes = append(classes, exclude(charsetDigits, opts.Exclude))
	}
	if opts.Symbols {
		classes = append(classes, exclude(charsetSymbols, opts.Exclude))
	}

	var pool []rune
	var present [][]rune
	for _, class := range classes {
		if len(class) == 0 {
			continue
		}
		present = append(present, class)
		pool = append(pool, class...)
	}
	if len(pool) == 0 {
		return "", ErrEmptyCharset
	}
	if len(present) > opts.Length {
		present = present[:opts.Length]
	}

	out := make([]rune, opts.Length)
	// Seed one character from each class, then fill from the full pool.
	for i, class := range present {
		r, err := pick(class)
		if err != nil {
			return "", err
		}
		out[i] = r
	}
	for i := len(present); i < opts.Length; i++ {
		r, err := pick(pool)
		if err != nil {
			return "", err
		}
		out[i] = r
	}
	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func exclude(charset, excluded string) []rune {
	var out []rune
	for _, r := range charset {
		if !strings.ContainsRune(excluded, r) {
			out = append(out, r)
		}
	}
	return out
}

func pick(pool []rune) (rune, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return pool[n.Int64()], nil
}

// shuffle is a Fisher-Yates pass so the seeded class characters do not
// sit at predictable positions.
func shuffle(runes []rune) error {
	for i := len(runes) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("failed to read random source: %w", err)
		}
		j := n.Int64()
		runes[i], runes[j] = runes[j], runes[i]
	}
	return nil
}
