package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imapbox/imapbox/pkgs/email"
)

const sampleConfig = `
[imapbox]
days = 14
local_folder = /srv/mail
wkhtmltopdf = /usr/local/bin/wkhtmltopdf
specific_folders = true
test_only = folders
server = 0 3 * * *
pseudo_folders = [Gmail], [Gmail].Spam
max_retries = 3
timeout = 10s
log_format = json

[work]
host = imap.example.com
username = me@example.com
password = s3cr#t;pw
ssl = true
remote_folder = INBOX, INBOX.Sent
exclude_folder = Trash,Junk

[private]
dsn = imap://bob:pw@mail.example.org:1143/__ALL__?starttls=true
port = 143
`

func TestParse(t *testing.T) {
	o, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 14, o.Days)
	assert.Equal(t, "/srv/mail", o.LocalFolder)
	assert.Equal(t, "/usr/local/bin/wkhtmltopdf", o.Wkhtmltopdf)
	assert.True(t, o.SpecificFolders)
	assert.Equal(t, TestFolders, o.TestOnly)
	assert.Equal(t, "0 3 * * *", o.Server)
	assert.Equal(t, []string{"[Gmail]", "[Gmail].Spam"}, o.PseudoFolders)
	assert.Equal(t, 3, o.MaxRetries)
	assert.Equal(t, 10*time.Second, o.DialTimeout)
	assert.Equal(t, "json", o.LogFormat)

	require.Len(t, o.Accounts, 2)
	work := o.Accounts[0]
	assert.Equal(t, Account{
		Name:           "work",
		Host:           "imap.example.com",
		Port:           DefaultPort,
		Username:       "me@example.com",
		Password:       "s3cr#t;pw",
		SSL:            true,
		RemoteFolders:  []string{"INBOX", "INBOX.Sent"},
		ExcludeFolders: []string{"Trash", "Junk"},
	}, work)

	private := o.Accounts[1]
	assert.Equal(t, "private", private.Name)
	assert.Equal(t, "mail.example.org", private.Host)
	assert.Equal(t, 143, private.Port, "section keys override the dsn")
	assert.Equal(t, "bob", private.Username)
	assert.True(t, private.StartTLS)
	assert.False(t, private.SSL)
	assert.True(t, private.All())
}

func TestParseDefaults(t *testing.T) {
	o, err := Parse([]byte("[acc]\nhost = h\nusername = u\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, o.Days)
	assert.Equal(t, email.DefaultPseudoFolders, o.PseudoFolders)
	assert.Equal(t, email.DefaultMaxRetries, o.MaxRetries)
	assert.Equal(t, TestOff, o.TestOnly)
	require.Len(t, o.Accounts, 1)
	assert.Equal(t, []string{DefaultRemoteFolder}, o.Accounts[0].RemoteFolders)
	assert.Equal(t, DefaultPort, o.Accounts[0].Port)
}

func TestParseErrors(t *testing.T) {
	for _, data := range []string{
		"[imapbox]\ndays = soon\n",
		"[imapbox]\nspecific_folders = maybe\n",
		"[imapbox]\nmax_retries = 0\n",
		"[acc]\nport = imap\n",
		"[acc]\nssl = perhaps\n",
		"[acc]\nfolder = INBOX\n",
		"[acc]\ndsn = http://example.com/\n",
	} {
		_, err := Parse([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.cfg")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	o, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, o.Accounts, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Error(t, err)
}

func TestParseTestMode(t *testing.T) {
	cases := map[string]TestMode{
		"folders": TestFolders,
		"Folders": TestFolders,
		"true":    TestLogin,
		"yes":     TestLogin,
		"1":       TestLogin,
		"false":   TestOff,
		"":        TestOff,
	}
	for in, want := range cases {
		got, err := ParseTestMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTestMode("list")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	o, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.NoError(t, o.Apply(Overrides{
		LocalFolder: "/tmp/archive",
		Days:        3,
		TestOnly:    TestLogin,
		Account:     "private",
	}))
	assert.Equal(t, "/tmp/archive", o.LocalFolder)
	assert.Equal(t, 3, o.Days)
	assert.Equal(t, TestLogin, o.TestOnly)
	assert.Equal(t, "/usr/local/bin/wkhtmltopdf", o.Wkhtmltopdf)
	require.Len(t, o.Accounts, 1)
	assert.Equal(t, "private", o.Accounts[0].Name)

	err = o.Apply(Overrides{Account: "nope"})
	assert.EqualError(t, err, "account not found: nope")
}

func TestApplyDSNsReplaceAccounts(t *testing.T) {
	o, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.NoError(t, o.Apply(Overrides{DSNs: []string{"imaps://a:b@one.example.com/"}}))
	require.Len(t, o.Accounts, 1)
	assert.Equal(t, "a@one.example.com", o.Accounts[0].Name)

	err = o.Apply(Overrides{DSNs: []string{"pop3://a:secret@x/"}})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestResolvePasswords(t *testing.T) {
	o := &Options{Accounts: []Account{
		{Name: "has", Password: "given"},
		{Name: "keyring", Username: "k"},
		{Name: "prompt", Username: "p"},
	}}

	var asked []string
	keyring := func(a Account) (string, error) {
		asked = append(asked, "keyring:"+a.Name)
		if a.Username == "k" {
			return "from-keyring", nil
		}
		return "", errors.New("not found")
	}
	prompt := func(a Account) (string, error) {
		asked = append(asked, "prompt:"+a.Name)
		return "typed", nil
	}

	err := o.ResolvePasswords(keyring, prompt)
	assert.ErrorContains(t, err, "account prompt: not found")
	assert.Equal(t, "given", o.Accounts[0].Password)
	assert.Equal(t, "from-keyring", o.Accounts[1].Password)
	assert.Equal(t, "typed", o.Accounts[2].Password)
	assert.Equal(t, []string{"keyring:keyring", "keyring:prompt", "prompt:prompt"}, asked)
}

func TestValidate(t *testing.T) {
	good := Account{Name: "good", Host: "h", Port: 993, Username: "u", Password: "p"}
	o := &Options{Accounts: []Account{
		good,
		{Name: "nohost", Port: 993, Username: "u", Password: "p"},
		{Name: "nopass", Host: "h", Port: 993, Username: "u"},
		{Name: "both", Host: "h", Port: 993, Username: "u", Password: "p", SSL: true, StartTLS: true},
	}}

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account nohost: host is required")
	assert.Contains(t, err.Error(), "account nopass: password is required")
	assert.Contains(t, err.Error(), "account both: ssl and starttls are mutually exclusive")
	assert.Equal(t, []Account{good}, o.Accounts)

	o = &Options{}
	assert.ErrorIs(t, o.Validate(), ErrNoAccounts)
}

func TestSessionConfig(t *testing.T) {
	acc := Account{Host: "h", Port: 143, Username: "u", Password: "p", StartTLS: true, Auth: "PLAIN"}
	cfg := acc.SessionConfig(&Options{MaxRetries: 2, DialTimeout: time.Second})

	assert.Equal(t, "h", cfg.Host)
	assert.Equal(t, 143, cfg.Port)
	assert.True(t, cfg.StartTLS)
	assert.Equal(t, "plain", cfg.Auth)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.DialTimeout)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, "mail"), expandHome("~/mail"))
	assert.Equal(t, "/abs/~/x", expandHome("/abs/~/x"))
	assert.Equal(t, "rel", expandHome("rel"))
}
