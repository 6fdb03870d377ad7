// Package credential keeps account passwords in the system keyring, so that
// they do not have to be written into the configuration file.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/imapbox/imapbox/pkgs/config"
)

const serviceName = "imapbox"

// Store reads and writes passwords keyed by user@host.
type Store struct {
	ring keyring.Keyring
}

// Open returns a store backed by the first available system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/imapbox/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("imapbox-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Key is the keyring entry name for an account.
func Key(username, host string) string {
	return username + "@" + host
}

// Get returns the stored password, or "" when there is none.
func (s *Store) Get(username, host string) (string, error) {
	key := Key(username, host)
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores the password of username at host.
func (s *Store) Set(username, host, password string) error {
	key := Key(username, host)
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(password),
		Label:       "imapbox " + key,
		Description: "IMAP password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the stored password. Removing a missing entry is not an
// error.
func (s *Store) Delete(username, host string) error {
	key := Key(username, host)
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Password looks up acc in the store. It has the signature of
// config.PasswordFunc.
func (s *Store) Password(acc config.Account) (string, error) {
	if acc.Username == "" || acc.Host == "" {
		return "", nil
	}
	return s.Get(acc.Username, acc.Host)
}
