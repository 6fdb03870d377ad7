package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ParseDSN builds an account from a connection string:
//
//	imap[s]://user:password@host[:port][/folder[,folder...]][?option=value&...]
//
// The path defaults to INBOX and may be AllFolders. The query may set any
// account option; remote_folder adds to the folders of the path instead of
// replacing them. imaps implies ssl=true unless the query says otherwise.
//
// When name is empty the account is named user@host, unless the query sets
// name.
func ParseDSN(dsn, name string) (Account, error) {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return Account{}, err
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "imap" && scheme != "imaps" {
		return Account{}, fmt.Errorf("scheme must be \"imap\" or \"imaps\", got %q", u.Scheme)
	}

	acc := Account{
		Name:          name,
		Host:          u.Hostname(),
		Port:          DefaultPort,
		SSL:           scheme == "imaps",
		RemoteFolders: []string{DefaultRemoteFolder},
	}
	if p := u.Port(); p != "" {
		if acc.Port, err = strconv.Atoi(p); err != nil {
			return Account{}, fmt.Errorf("port: %w", err)
		}
	}
	if u.User != nil {
		acc.Username = u.User.Username()
		acc.Password, _ = u.User.Password()
	}
	if acc.Name == "" {
		acc.Name = acc.Username
		if acc.Host != "" {
			acc.Name += "@" + acc.Host
		}
	}

	if path := strings.Trim(u.Path, "/"); path != "" {
		acc.RemoteFolders = splitList(path)
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Account{}, fmt.Errorf("query: %w", err)
	}
	for key, values := range query {
		value := values[len(values)-1]
		if key == "remote_folder" {
			acc.RemoteFolders = append(acc.RemoteFolders, splitList(strings.Join(values, ","))...)
			continue
		}
		if err := acc.set(key, value); err != nil {
			return Account{}, err
		}
	}
	return acc, nil
}

// DSN renders the account as a connection string accepted by ParseDSN.
func (a Account) DSN() string {
	scheme := "imap"
	if a.SSL {
		scheme = "imaps"
	}
	port := a.Port
	if port == 0 {
		port = DefaultPort
	}

	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(a.Username, a.Password),
		Host:   net.JoinHostPort(a.Host, strconv.Itoa(port)),
		Path:   "/" + strings.Join(a.RemoteFolders, ","),
	}
	// Without a password the DSN relies on the keyring or a prompt.
	if a.Password == "" {
		u.User = url.User(a.Username)
	}

	q := url.Values{}
	if a.StartTLS {
		q.Set("starttls", "true")
	}
	if a.Auth != "" {
		q.Set("auth", a.Auth)
	}
	if len(a.ExcludeFolders) > 0 {
		q.Set("exclude_folder", strings.Join(a.ExcludeFolders, ","))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redactDSN hides the password of a DSN for error messages.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "<unparsable>"
	}
	return u.Redacted()
}
