package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/payflow/internal/secret"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Prompt functions are variables so tests can replace them.
//
//nolint:gochecknoglobals // swapped by withMockPrompts
var (
	promptPasswordFn = promptPassword
	promptLineFn     = promptLine
	promptConfirmFn  = promptConfirm
)

//nolint:gochecknoglobals // one reader so buffered input is not lost between prompts
var stdinReader = bufio.NewReader(os.Stdin)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	outln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	return password, nil
}

// promptLine prompts for one line of visible input.
func promptLine(prompt string) (string, error) {
	out(os.Stderr, "%s", prompt)

	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptConfirm asks a yes/no question; anything but y or yes is no.
func promptConfirm(prompt string) bool {
	answer, err := promptLineFn(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// readPassword prompts for a password and moves it into locked memory.
func readPassword(prompt string) (*secret.Bytes, error) {
	raw, err := promptPasswordFn(prompt)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		secret.Zero(raw)
		return nil, payerr.WithSuggestion(payerr.ErrInvalidInput, "password is required")
	}
	defer secret.Zero(raw)
	return secret.FromSlice(raw), nil
}
