package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/rs/zerolog"

	"github.com/imapbox/imapbox/pkgs/logger"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateAuthenticated // logged in, no folder selected
	StateSelected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is one connection to an account, owned by a single run. It is not
// safe for concurrent use.
type Session struct {
	cfg  Config
	dial Dialer
	log  *zerolog.Logger

	conn  Conn
	state State

	// folder is the name the caller asked for, selected is what the server
	// accepted.
	folder   string
	selected string
	count    uint32
}

// NewSession returns a disconnected session for cfg.
func NewSession(cfg Config) *Session {
	s := &Session{
		cfg:  cfg,
		dial: cfg.Dial,
		log:  cfg.Logger,
	}
	if s.dial == nil {
		s.dial = DialIMAP
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Open connects and authenticates a new session.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := NewSession(cfg)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Folder returns the mailbox name the server accepted, empty when none is
// selected.
func (s *Session) Folder() string { return s.selected }

// NumMessages is the message count reported by the last successful SELECT.
func (s *Session) NumMessages() uint32 { return s.count }

// MaxRetries is the retry budget shared by connecting and fetching.
func (s *Session) MaxRetries() int { return s.cfg.maxRetries() }

// Connect dials and authenticates, retrying transient failures.
func (s *Session) Connect(ctx context.Context) error {
	return s.establish(ctx, "")
}

// Reconnect drops the current connection and runs the whole connect and
// select sequence again for the last requested folder.
func (s *Session) Reconnect(ctx context.Context) error {
	s.drop()
	return s.establish(ctx, s.folder)
}

// establish is the connect+select protocol. Only retryable failures consume
// the retry budget; everything else fails at once.
func (s *Session) establish(ctx context.Context, folder string) error {
	maxRetries := s.cfg.maxRetries()
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.cfg.backoff(attempt)
			s.log.Warn().Err(lastErr).
				Int("attempt", attempt+1).
				Int("max_retries", maxRetries).
				Dur("wait", wait).
				Msg("Connection error, reconnecting")
			if err := sleepCtx(ctx, wait); err != nil {
				s.state = StateFailed
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			s.state = StateFailed
			return err
		}

		err := s.connectOnce(ctx)
		if err == nil && folder != "" {
			err = s.selectFolder(folder)
			if err != nil && Classify(err) == KindOther {
				// ErrSelectFailed: logged in, just nothing selected.
				return err
			}
		}
		if err == nil {
			return nil
		}

		s.drop()
		lastErr = err
		if Classify(err) != KindRetryable {
			s.state = StateFailed
			s.log.Error().Err(err).Str("host", s.cfg.Host).Msg("IMAP connection failed. Will NOT retry.")
			return fmt.Errorf("%w: %w", ErrFatal, err)
		}
	}

	s.state = StateFailed
	s.log.Error().Err(lastErr).Int("max_retries", maxRetries).Msg("Maximum retries reached")
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxRetries, lastErr)
}

func (s *Session) connectOnce(ctx context.Context) error {
	s.state = StateAuthenticating
	s.log.Debug().Str("host", s.cfg.Host).Int("port", s.cfg.Port).Msg("Connecting to IMAP server")

	conn, err := s.dial(ctx, s.cfg)
	if err != nil {
		return err
	}
	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		conn.Close()
		if Classify(err) == KindRetryable {
			return err
		}
		return &AuthError{Username: s.cfg.Username, Err: err}
	}

	s.conn = conn
	s.state = StateAuthenticated
	s.log.Debug().Str("user", s.cfg.Username).Msg("Logged in")
	return nil
}

// Select opens folder read-only. If the server rejects the name, the same
// name with every "." replaced by "/" is tried once.
func (s *Session) Select(ctx context.Context, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.conn == nil || (s.state != StateAuthenticated && s.state != StateSelected) {
		return ErrNotConnected
	}

	err := s.selectFolder(folder)
	if err != nil && Classify(err) != KindOther {
		s.state = StateFailed
	}
	return err
}

func (s *Session) selectFolder(folder string) error {
	s.folder = folder
	s.selected = ""
	s.count = 0

	n, err := s.conn.Select(folder)
	if err == nil {
		s.markSelected(folder, n)
		return nil
	}
	if Classify(err) != KindOther {
		return err
	}

	alt := strings.ReplaceAll(folder, ".", "/")
	if alt != folder {
		s.log.Debug().Err(err).Str("folder", folder).Str("fallback", alt).Msg("Select rejected, trying slash separator")
		n, err = s.conn.Select(alt)
		if err == nil {
			s.markSelected(alt, n)
			return nil
		}
		if Classify(err) != KindOther {
			return err
		}
	}

	s.state = StateAuthenticated
	s.log.Error().Err(err).Str("folder", folder).Msg("Could not select remote folder")
	return fmt.Errorf("%w %q: %w", ErrSelectFailed, folder, err)
}

func (s *Session) markSelected(name string, n uint32) {
	s.selected = name
	s.count = n
	s.state = StateSelected
}

// Search runs one SEARCH against the selected folder.
func (s *Session) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	if s.state != StateSelected {
		return nil, ErrNoFolder
	}
	return s.conn.Search(criteria)
}

// FetchRaw downloads one message. Errors are returned unwrapped enough for
// Classify to see the cause.
func (s *Session) FetchRaw(ctx context.Context, seqNum uint32) (*RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.state != StateSelected {
		return nil, ErrNoFolder
	}
	body, err := s.conn.FetchRaw(seqNum)
	if err != nil {
		return nil, fmt.Errorf("fetching message %d: %w", seqNum, err)
	}
	return &RawMessage{SeqNum: seqNum, Body: body}, nil
}

// Close logs out and releases the connection.
func (s *Session) Close(ctx context.Context) error {
	if s.conn == nil {
		s.state = StateDisconnected
		return nil
	}

	var err error
	if ctx.Err() == nil {
		err = s.conn.Logout()
	}
	s.drop()
	s.state = StateDisconnected
	return err
}

func (s *Session) drop() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.selected = ""
	s.count = 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
