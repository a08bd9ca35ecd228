package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// ErrPasswordMismatch is returned when a confirmation prompt differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ReadPassword prompts for a password without echoing. The caller owns
// the returned bytes and should wipe them when done.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirmed prompts twice and requires both entries to match.
func ReadPasswordConfirmed(prompt, confirmPrompt string) ([]byte, error) {
	first, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	second, err := ReadPassword(confirmPrompt)
	if err != nil {
		wipe(first)
		return nil, err
	}
	defer wipe(second)
	if string(first) != string(second) {
		wipe(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// Confirm asks a yes/no question on stderr and reads the answer from
// stdin. Only "y" and "yes" count as agreement.
func Confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
