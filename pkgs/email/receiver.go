package email

import (
	"context"

	"github.com/emersion/go-imap/v2"
)

// Conn is one IMAP connection as seen by a Session. The real implementation
// wraps imapclient; tests script failures with a fake.
type Conn interface {
	// Login authenticates the connection.
	Login(username, password string) error

	// Select opens mailbox read-only and returns the message count.
	Select(mailbox string) (uint32, error)

	// Search returns the sequence numbers matching criteria, in server order.
	Search(criteria *imap.SearchCriteria) ([]uint32, error)

	// FetchRaw returns the full RFC 5322 bytes of one message without
	// setting \Seen.
	FetchRaw(seqNum uint32) ([]byte, error)

	// List returns every mailbox visible to the user.
	List() ([]Folder, error)

	// Logout ends the session politely.
	Logout() error

	// Close releases the network connection.
	Close() error
}

// Dialer opens an unauthenticated Conn for cfg.
type Dialer func(ctx context.Context, cfg Config) (Conn, error)
