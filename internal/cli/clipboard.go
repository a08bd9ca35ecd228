package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
)

// Overridable for tests; the real clipboard is unavailable headless.
var (
	clipboardWrite = clipboard.WriteAll
	clipboardRead  = clipboard.ReadAll
	sleep          = time.Sleep
)

// CopyToClipboard places value on the clipboard. A positive clearAfter
// blocks until the window elapses, then clears the clipboard, but only
// if it still holds value so newer user copies survive.
func CopyToClipboard(value string, clearAfter time.Duration) error {
	if err := clipboardWrite(value); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	if clearAfter <= 0 {
		return nil
	}

	fmt.Fprintf(os.Stderr, "Clipboard clears in %s\n", clearAfter)
	sleep(clearAfter)
	return ClearClipboard(value)
}

// ClearClipboard wipes the clipboard when it still holds value.
func ClearClipboard(value string) error {
	current, err := clipboardRead()
	if err != nil || current != value {
		return nil
	}
	return clipboardWrite("")
}
