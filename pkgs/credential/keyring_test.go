package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imapbox/imapbox/pkgs/config"
)

func TestStore(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	pw, err := s.Get("me", "imap.example.com")
	require.NoError(t, err)
	assert.Empty(t, pw)

	require.NoError(t, s.Set("me", "imap.example.com", "secret"))
	pw, err = s.Get("me", "imap.example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	require.NoError(t, s.Delete("me", "imap.example.com"))
	require.NoError(t, s.Delete("me", "imap.example.com"))
	pw, err = s.Get("me", "imap.example.com")
	require.NoError(t, err)
	assert.Empty(t, pw)
}

func TestStorePasswordSource(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: Key("bob", "mail.example.org"), Data: []byte("hunter2")},
	}))

	o := &config.Options{Accounts: []config.Account{
		{Name: "bob", Host: "mail.example.org", Username: "bob"},
		{Name: "alice", Host: "mail.example.org", Username: "alice"},
	}}
	require.NoError(t, o.ResolvePasswords(s.Password))

	assert.Equal(t, "hunter2", o.Accounts[0].Password)
	assert.Empty(t, o.Accounts[1].Password)
}
