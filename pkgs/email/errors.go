package email

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/emersion/go-imap/v2"
)

var (
	// ErrFatal wraps connection failures that must not be retried.
	ErrFatal = errors.New("fatal connection error")
	// ErrRetriesExhausted is returned once the retry budget is spent. It is
	// fatal to the run that hit it.
	ErrRetriesExhausted = errors.New("maximum retries reached")
	// ErrSelectFailed means neither the given folder name nor its slash
	// variant could be selected. The session stays authenticated.
	ErrSelectFailed = errors.New("could not select remote folder")
	// ErrSearch aborts enumeration of a folder.
	ErrSearch = errors.New("search failed")
	// ErrNotConnected is returned by operations that need a live session.
	ErrNotConnected = errors.New("not connected")
	// ErrNoFolder is returned by fetches while no folder is selected.
	ErrNoFolder = errors.New("no folder selected")
)

// AuthError reports a rejected login.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Kind is the failure class of an error seen on the wire.
type Kind int

const (
	// KindOther covers everything not listed below: per-item failures while
	// fetching, fatal failures while connecting.
	KindOther Kind = iota
	// KindRetryable is a transient transport failure such as a reset
	// connection or a timeout.
	KindRetryable
	// KindAbort means the server dropped the command or the connection.
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindAbort:
		return "abort"
	default:
		return "other"
	}
}

// Classify maps err to its failure Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindRetryable
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) && imapErr.Type == imap.StatusResponseTypeBye {
		return KindAbort
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return KindAbort
	}

	// imapclient does not always keep the underlying error in the chain.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection reset by peer"),
		strings.Contains(msg, "broken pipe"):
		return KindRetryable
	case strings.Contains(msg, "use of closed network connection"):
		return KindAbort
	}
	return KindOther
}

// IsFatal reports whether err must stop processing of the current account.
func IsFatal(err error) bool {
	var authErr *AuthError
	return errors.Is(err, ErrFatal) ||
		errors.Is(err, ErrRetriesExhausted) ||
		errors.As(err, &authErr)
}
