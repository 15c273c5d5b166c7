package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// ErrInvalidIdentity indicates the stored identity could not be parsed.
var ErrInvalidIdentity = errors.New("invalid age identity")

// NewIdentity generates an X25519 identity and returns its encoded form.
func NewIdentity() (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return id.String(), nil
}

func parseIdentity(encoded string) (*age.X25519Identity, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	return id, nil
}

// Seal encrypts plaintext to the recipient of the encoded identity.
func Seal(plaintext []byte, identity string) ([]byte, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, id.Recipient())
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts ciphertext sealed to the encoded identity.
func Open(ciphertext []byte, identity string) ([]byte, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), id)
	if err != nil {
		return nil, fmt.Errorf("initializing decryption: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted data: %w", err)
	}
	return plaintext, nil
}
