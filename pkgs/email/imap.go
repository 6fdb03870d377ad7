package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/imapbox/imapbox/pkgs/utf7"
)

const defaultDialTimeout = 30 * time.Second

// imapConn is the Conn backed by a go-imap client.
type imapConn struct {
	client *imapclient.Client
	auth   string
}

// DialIMAP connects to cfg.Host:cfg.Port over implicit TLS, STARTTLS or
// plain TCP. The returned Conn is not yet authenticated.
func DialIMAP(ctx context.Context, cfg Config) (Conn, error) {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	netDialer := &net.Dialer{Timeout: timeout}
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	opts := &imapclient.Options{TLSConfig: tlsConfig}

	var client *imapclient.Client
	switch {
	case cfg.SSL:
		dialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
		}
		client = imapclient.New(conn, opts)
	case cfg.StartTLS:
		conn, err := netDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
		}
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("STARTTLS with %s failed: %w", addr, err)
		}
	default:
		conn, err := netDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)
		}
		client = imapclient.New(conn, opts)
	}

	return &imapConn{client: client, auth: strings.ToLower(cfg.Auth)}, nil
}

// Login uses LOGIN unless the account asks for SASL PLAIN or the server
// disables LOGIN while offering AUTH=PLAIN.
func (c *imapConn) Login(username, password string) error {
	usePlain := c.auth == "plain"
	if !usePlain {
		caps, err := c.client.Capability().Wait()
		if err != nil {
			return err
		}
		usePlain = caps.Has(imap.CapLoginDisabled) && caps.Has(imap.Cap("AUTH=PLAIN"))
	}

	if usePlain {
		return c.client.Authenticate(sasl.NewPlainClient("", username, password))
	}
	return c.client.Login(username, password).Wait()
}

func (c *imapConn) Select(mailbox string) (uint32, error) {
	data, err := c.client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, err
	}
	return data.NumMessages, nil
}

func (c *imapConn) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	data, err := c.client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllSeqNums(), nil
}

func (c *imapConn) FetchRaw(seqNum uint32) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{
		Peek: true, // don't mark as read
	}
	fetchOptions := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	msgs, err := c.client.Fetch(imap.SeqSetNum(seqNum), fetchOptions).Collect()
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found", seqNum)
	}

	raw := msgs[0].FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body", seqNum)
	}
	return raw, nil
}

func (c *imapConn) List() ([]Folder, error) {
	mailboxes, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, err
	}

	folders := make([]Folder, 0, len(mailboxes))
	for _, mb := range mailboxes {
		f := Folder{
			Name:   mb.Mailbox,
			Remote: utf7.Encode(mb.Mailbox),
		}
		if mb.Delim != 0 {
			f.Delim = string(mb.Delim)
		}
		for _, attr := range mb.Attrs {
			if attr == imap.MailboxAttrNoSelect {
				f.NoSelect = true
			}
		}
		folders = append(folders, f)
	}
	return folders, nil
}

func (c *imapConn) Logout() error {
	return c.client.Logout().Wait()
}

func (c *imapConn) Close() error {
	return c.client.Close()
}
