// Package smtptest runs scriptable SMTP servers on loopback ports for
// exercising verification sessions end to end.
package smtptest

import (
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
)

// Script controls how the server answers the envelope commands.
type Script struct {
	// Rcpt maps lowercased recipient addresses to the error returned for
	// them. A nil value accepts the recipient.
	Rcpt map[string]*smtp.SMTPError
	// Default is returned for recipients not listed in Rcpt. Nil accepts
	// everything, which makes the server behave like a catch-all domain.
	Default *smtp.SMTPError
	// RejectMailFrom, when set, is returned for every MAIL FROM.
	RejectMailFrom *smtp.SMTPError
}

// Server is a running test SMTP server.
type Server struct {
	Addr string
	Host string
	Port int

	srv *smtp.Server

	mu    sync.Mutex
	rcpts []string
}

// Recipients returns every RCPT TO address the server has seen.
func (s *Server) Recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rcpts...)
}

func (s *Server) recordRcpt(to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rcpts = append(s.rcpts, to)
}

// Start runs a cleartext server without STARTTLS.
func Start(t *testing.T, script *Script) *Server {
	t.Helper()
	return start(t, script, nil, false)
}

// StartTLS runs a cleartext server that advertises STARTTLS with a
// self-signed certificate.
func StartTLS(t *testing.T, script *Script) *Server {
	t.Helper()
	return start(t, script, selfSignedConfig(t), false)
}

// StartImplicitTLS runs a server that speaks TLS from the first byte.
func StartImplicitTLS(t *testing.T, script *Script) *Server {
	t.Helper()
	return start(t, script, selfSignedConfig(t), true)
}

func start(t *testing.T, script *Script, tlsConfig *tls.Config, implicit bool) *Server {
	t.Helper()
	if script == nil {
		script = &Script{}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ts := &Server{Addr: ln.Addr().String()}
	host, portStr, err := net.SplitHostPort(ts.Addr)
	if err != nil {
		t.Fatalf("split addr %q: %v", ts.Addr, err)
	}
	ts.Host = host
	ts.Port, _ = strconv.Atoi(portStr)

	srv := smtp.NewServer(&backend{script: script, server: ts})
	srv.Domain = "smtptest.local"
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.AllowInsecureAuth = true
	if tlsConfig != nil {
		srv.TLSConfig = tlsConfig
	}
	ts.srv = srv

	if implicit {
		ln = tls.NewListener(ln, tlsConfig)
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	return ts
}

type backend struct {
	script *Script
	server *Server
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{script: b.script, server: b.server}, nil
}

type session struct {
	script *Script
	server *Server
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.script.RejectMailFrom != nil {
		return s.script.RejectMailFrom
	}
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.server.recordRcpt(to)
	if err, ok := s.script.Rcpt[strings.ToLower(to)]; ok {
		if err == nil {
			return nil
		}
		return err
	}
	if s.script.Default != nil {
		return s.script.Default
	}
	return nil
}

func (s *session) Data(r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	return &smtp.SMTPError{Code: 554, Message: "message data not accepted"}
}

func (s *session) Reset() {}

func (s *session) Logout() error { return nil }
