package email

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/utf7"
)

// RawMessage is one message exactly as the server returned it.
type RawMessage struct {
	// SeqNum is only meaningful for the session that fetched it.
	SeqNum uint32
	Body   []byte
}

// Folder represents a mailbox returned by LIST.
type Folder struct {
	// Name is the decoded, human readable mailbox name.
	Name string
	// Remote is the modified UTF-7 form sent on the wire.
	Remote string
	// Delim is the hierarchy delimiter, empty when the server reports NIL.
	Delim    string
	NoSelect bool
}

// LocalName returns the directory name used for this folder in the archive.
func (f Folder) LocalName() string {
	return utf7.LocalName(f.Name, f.Delim)
}

// Config holds everything needed to open a session to one account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	StartTLS bool
	// Auth forces an authentication mechanism. Only "plain" is recognised;
	// empty means LOGIN unless the server disables it.
	Auth string

	InsecureSkipVerify bool
	DialTimeout        time.Duration

	// MaxRetries bounds connection attempts and per-message fetch retries.
	MaxRetries int
	// Backoff returns the wait before the given attempt (1-based). Nil means
	// DefaultBackoff.
	Backoff func(attempt int) time.Duration

	// Dial opens the underlying connection. Nil means DialIMAP.
	Dial Dialer

	Logger *zerolog.Logger
}

const (
	DefaultPort       = 993
	DefaultMaxRetries = 5
	DefaultBatchSize  = 5000
)

// DefaultBackoff waits 1<<attempt seconds, capped at 30 seconds.
func DefaultBackoff(attempt int) time.Duration {
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > 30*time.Second || wait <= 0 {
		wait = 30 * time.Second
	}
	return wait
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func (c Config) backoff(attempt int) time.Duration {
	if c.Backoff == nil {
		return DefaultBackoff(attempt)
	}
	return c.Backoff(attempt)
}
