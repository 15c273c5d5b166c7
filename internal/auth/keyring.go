package auth

import (
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name for payflow secrets.
const KeyringService = "payflow"

// Keyring stores small secrets.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// OSKeyring implements Keyring using the OS keychain.
type OSKeyring struct{}

// NewOSKeyring creates an OS keyring wrapper.
func NewOSKeyring() *OSKeyring {
	return &OSKeyring{}
}

// Set stores a secret in the OS keyring.
func (k *OSKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

// Get retrieves a secret from the OS keyring.
func (k *OSKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

// Delete removes a secret from the OS keyring.
func (k *OSKeyring) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// ProbeKeyring reports whether k can round-trip a value.
func ProbeKeyring(k Keyring) bool {
	const (
		probeService = "payflow-probe"
		probeUser    = "probe"
		probeValue   = "test"
	)

	if err := k.Set(probeService, probeUser, probeValue); err != nil {
		return false
	}

	val, err := k.Get(probeService, probeUser)
	if err != nil || val != probeValue {
		_ = k.Delete(probeService, probeUser)
		return false
	}

	return k.Delete(probeService, probeUser) == nil
}
