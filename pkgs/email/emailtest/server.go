// Package emailtest runs an in-memory IMAP server for tests.
package emailtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
)

const (
	User = "testuser"
	Pass = "testpass"
)

// Server is a running in-memory IMAP server with one user.
type Server struct {
	Addr string
	Host string
	Port int
	TLS  bool

	Mem  *imapmemserver.Server
	user *imapmemserver.User
}

// NewServer starts a plain-text server. INBOX always exists; mailboxes
// lists additional folders to create, using "/" as the delimiter. The server
// is closed by t.Cleanup.
func NewServer(t testing.TB, mailboxes ...string) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return serve(t, ln, false, mailboxes)
}

// NewTLSServer is like NewServer but speaks implicit TLS with a self-signed
// certificate. Clients must skip verification.
func NewTLSServer(t testing.TB, mailboxes ...string) *Server {
	t.Helper()

	ln, err := tls.Listen("tcp", "127.0.0.1:0", newTLSConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	return serve(t, ln, true, mailboxes)
}

func serve(t testing.TB, ln net.Listener, useTLS bool, mailboxes []string) *Server {
	memSrv := imapmemserver.New()
	user := imapmemserver.NewUser(User, Pass)
	for _, name := range append([]string{"INBOX"}, mailboxes...) {
		if err := user.Create(name, nil); err != nil {
			t.Fatalf("create mailbox %q: %v", name, err)
		}
	}
	memSrv.AddUser(user)

	srv := imapserver.New(&imapserver.Options{
		NewSession: func(_ *imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memSrv.NewSession(), nil, nil
		},
		InsecureAuth: true,
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
		},
	})

	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	addr := ln.Addr().String()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	return &Server{
		Addr: addr,
		Host: host,
		Port: port,
		TLS:  useTLS,
		Mem:  memSrv,
		user: user,
	}
}

// Append stores a raw RFC 5322 message in mailbox through a separate client
// connection.
func (s *Server) Append(t testing.TB, mailbox, rawMsg string) {
	t.Helper()

	var conn net.Conn
	var err error
	if s.TLS {
		conn, err = tls.Dial("tcp", s.Addr, &tls.Config{InsecureSkipVerify: true})
	} else {
		conn, err = net.Dial("tcp", s.Addr)
	}
	if err != nil {
		t.Fatal(err)
	}
	c := imapclient.New(conn, nil)
	defer c.Close()

	if err := c.Login(User, Pass).Wait(); err != nil {
		t.Fatal(err)
	}

	appendCmd := c.Append(mailbox, int64(len(rawMsg)), nil)
	if _, err := appendCmd.Write([]byte(rawMsg)); err != nil {
		t.Fatal(err)
	}
	if err := appendCmd.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		t.Fatal(err)
	}
}

func newTLSConfig(t testing.TB) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{certDER},
			PrivateKey:  key,
		}},
	}
}
