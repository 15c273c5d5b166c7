package auth

import (
	"errors"
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/mrz1836/payflow/internal/fileutil"
	"github.com/mrz1836/payflow/internal/secret"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

const (
	// keyringIdentityUser is the keyring entry holding the age identity.
	keyringIdentityUser = "identity"

	filePermissions = 0o600
)

//nolint:gochecknoglobals // codec configuration
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keeps the login record encrypted with an age X25519 identity.
// The identity lives in the OS keyring when one is usable and in a 0600
// file otherwise.
type Store struct {
	tokenPath    string
	identityPath string
	keyring      Keyring
	mu           sync.Mutex
}

// NewStore creates a store. kr may be nil to keep the identity on disk only.
func NewStore(tokenPath, identityPath string, kr Keyring) *Store {
	return &Store{
		tokenPath:    tokenPath,
		identityPath: identityPath,
		keyring:      kr,
	}
}

// Save encrypts and writes rec, creating the identity on first use.
func (s *Store) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, err := s.identity(true)
	if err != nil {
		return err
	}

	plaintext, err := jsonAPI.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling login record: %w", err)
	}
	defer secret.Zero(plaintext)

	sealed, err := secret.Seal(plaintext, identity)
	if err != nil {
		return fmt.Errorf("encrypting login record: %w", err)
	}

	if err := fileutil.WriteAtomic(s.tokenPath, sealed, filePermissions); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Load reads the stored record. It returns ErrNotAuthenticated when nothing is
// stored and ErrTokenCorrupted when the file cannot be decrypted.
func (s *Store) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.tokenPath) //nolint:gosec // G304: path from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, payerr.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	identity, err := s.identity(false)
	if err != nil {
		return nil, payerr.Wrap(payerr.ErrTokenCorrupted, "loading identity")
	}

	plaintext, err := secret.Open(sealed, identity)
	if err != nil {
		return nil, payerr.ErrTokenCorrupted
	}
	defer secret.Zero(plaintext)

	var rec Record
	if err := jsonAPI.Unmarshal(plaintext, &rec); err != nil || rec.Token == "" {
		return nil, payerr.ErrTokenCorrupted
	}
	return &rec, nil
}

// Delete removes the stored record. The identity is kept for the next login.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// identity returns the encoded age identity, generating one when create is set.
func (s *Store) identity(create bool) (string, error) {
	if s.keyring != nil {
		if id, err := s.keyring.Get(KeyringService, keyringIdentityUser); err == nil && id != "" {
			return id, nil
		}
	}

	data, err := os.ReadFile(s.identityPath) //nolint:gosec // G304: path from config
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading identity file: %w", err)
	}
	if !create {
		return "", secret.ErrInvalidIdentity
	}

	id, err := secret.NewIdentity()
	if err != nil {
		return "", err
	}
	if s.keyring != nil && s.keyring.Set(KeyringService, keyringIdentityUser, id) == nil {
		return id, nil
	}

	if err := fileutil.WriteAtomic(s.identityPath, []byte(id), filePermissions); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	return id, nil
}
