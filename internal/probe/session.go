// Package probe drives SMTP verification sessions against candidate mail
// hosts. A session stops after RCPT TO; no message data is ever sent.
package probe

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/infodancer/everify/internal/logging"
	"github.com/infodancer/everify/internal/metrics"
)

// DefaultPorts are the submission ports probed when none are configured.
var DefaultPorts = []int{25, 587, 465}

// Outcome is the result of one SMTP session against one host:port.
type Outcome struct {
	Status     Status
	Tag        string
	Code       int
	Reply      string
	Host       string
	Port       int
	TLS        bool
	Transcript *Transcript
	Timestamp  time.Time
	// ErrText carries the transport error when the session never reached
	// a parseable RCPT reply. Empty on clean sessions.
	ErrText string
}

// Runner executes SMTP verification sessions.
type Runner struct {
	// Timeout bounds the TCP connect and each individual read and write.
	Timeout  time.Duration
	HeloName string
	MailFrom string
	// TLSConfig is cloned per session with ServerName set to the target
	// host. Nil means a default config.
	TLSConfig *tls.Config
	// ImplicitTLSPorts lists ports where TLS wraps the connection from
	// the first byte. Nil means 465 and 2465.
	ImplicitTLSPorts []int

	Logger    *slog.Logger
	Collector metrics.Collector
}

// NewRunner creates a Runner with the standard implicit TLS ports.
func NewRunner(timeout time.Duration, heloName, mailFrom string, logger *slog.Logger, collector metrics.Collector) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Runner{
		Timeout:          timeout,
		HeloName:         heloName,
		MailFrom:         mailFrom,
		ImplicitTLSPorts: []int{465, 2465},
		Logger:           logger,
		Collector:        collector,
	}
}

// Run executes one session: connect, EHLO, opportunistic STARTTLS, MAIL
// FROM, RCPT TO. The returned Outcome always carries the transcript of
// whatever was exchanged, even on failure. Cancelling the context closes
// the connection and aborts the session.
func (r *Runner) Run(ctx context.Context, host string, port int, rcptTo string) Outcome {
	logger := logging.WithSession(r.Logger, host, port)
	out := Outcome{
		Host:       host,
		Port:       port,
		Code:       -1,
		Timestamp:  time.Now(),
		Transcript: &Transcript{},
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		out.Status = StatusUnknownFailure
		out.Tag = TagDNSResolutionFailed
		if err != nil {
			out.ErrText = err.Error()
		} else {
			out.ErrText = "no addresses for " + host
		}
		logger.Debug("mail host resolution failed", "error", out.ErrText)
		r.Collector.SessionCompleted(port, string(out.Status))
		return out
	}
	addr := net.JoinHostPort(addrs[0], strconv.Itoa(port))

	implicit := r.isImplicitTLS(port)
	dialer := &net.Dialer{Timeout: r.Timeout}
	var conn net.Conn
	if implicit {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: r.tlsConfig(host)}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		out.Status, out.Tag = connectFailure(ctx, err)
		out.ErrText = err.Error()
		logger.Debug("connect failed", "addr", addr, "error", err)
		r.Collector.SessionCompleted(port, string(out.Status))
		return out
	}
	defer conn.Close()

	// Cancellation closes the raw connection, which unblocks any read in
	// progress (including reads through a TLS layer on top of it).
	rawConn := conn
	stop := context.AfterFunc(ctx, func() { rawConn.Close() })
	defer stop()

	if implicit {
		out.TLS = true
		out.Transcript.Server("Implicit TLS connection established")
		r.Collector.TLSEstablished(port)
	}

	br := bufio.NewReader(conn)

	greeting, err := r.read(conn, br, out.Transcript)
	if err != nil {
		return r.abort(ctx, logger, out, "greeting", err)
	}
	logger.Debug("greeting received", "code", greeting.Code)

	ehlo, err := r.command(conn, br, out.Transcript, "EHLO "+r.HeloName)
	if err != nil {
		return r.abort(ctx, logger, out, "EHLO", err)
	}

	if !implicit && advertisesStartTLS(ehlo.Text) {
		st, err := r.command(conn, br, out.Transcript, "STARTTLS")
		if err != nil {
			return r.abort(ctx, logger, out, "STARTTLS", err)
		}
		if st.Code == 220 {
			tlsConn := tls.Client(conn, r.tlsConfig(host))
			_ = tlsConn.SetDeadline(time.Now().Add(r.Timeout))
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				out.Transcript.Server("TLS handshake failed: " + err.Error())
				out.Status = StatusTemporaryFailure
				out.Tag = TagTLSHandshakeFailed
				out.ErrText = err.Error()
				logger.Debug("TLS handshake failed", "error", err)
				r.Collector.SessionCompleted(port, string(out.Status))
				return out
			}
			_ = tlsConn.SetDeadline(time.Time{})
			out.Transcript.Server("TLS handshake successful")
			out.TLS = true
			r.Collector.TLSEstablished(port)

			// The SMTP state resets after the handshake; EHLO again on
			// the encrypted channel.
			conn = tlsConn
			br = bufio.NewReader(conn)
			if _, err := r.command(conn, br, out.Transcript, "EHLO "+r.HeloName); err != nil {
				return r.abort(ctx, logger, out, "EHLO after STARTTLS", err)
			}
		}
	}

	if _, err := r.command(conn, br, out.Transcript, "MAIL FROM:<"+r.MailFrom+">"); err != nil {
		return r.abort(ctx, logger, out, "MAIL FROM", err)
	}

	rcpt, err := r.command(conn, br, out.Transcript, "RCPT TO:<"+rcptTo+">")
	if err != nil {
		return r.abort(ctx, logger, out, "RCPT TO", err)
	}

	out.Code = rcpt.Code
	out.Reply = rcpt.Text
	out.Status, out.Tag = Classify(rcpt.Code, rcpt.Enhanced, rcpt.Text)
	logger.Debug("session completed",
		"code", out.Code, "status", out.Status, "tag", out.Tag, "tls", out.TLS)
	r.Collector.SessionCompleted(port, string(out.Status))
	return out
}

// command sends one SMTP command and reads the reply, recording both.
func (r *Runner) command(conn net.Conn, br *bufio.Reader, tr *Transcript, cmd string) (Reply, error) {
	_ = conn.SetWriteDeadline(time.Now().Add(r.Timeout))
	if _, err := conn.Write([]byte(cmd + "\r\n")); err != nil {
		return Reply{}, err
	}
	tr.Client(cmd)
	return r.read(conn, br, tr)
}

func (r *Runner) read(conn net.Conn, br *bufio.Reader, tr *Transcript) (Reply, error) {
	_ = conn.SetReadDeadline(time.Now().Add(r.Timeout))
	reply, err := readReply(br)
	if err != nil {
		return Reply{}, err
	}
	tr.Server(reply.Text)
	return reply, nil
}

// abort finalizes an outcome for a session that died mid-dialog.
func (r *Runner) abort(ctx context.Context, logger *slog.Logger, out Outcome, phase string, err error) Outcome {
	out.Status, out.Tag = connectFailure(ctx, err)
	out.ErrText = phase + ": " + err.Error()
	logger.Debug("session aborted", "phase", phase, "error", err)
	r.Collector.SessionCompleted(out.Port, string(out.Status))
	return out
}

// connectFailure classifies a transport-level error that prevented an
// RCPT reply.
func connectFailure(ctx context.Context, err error) (Status, string) {
	if ctx.Err() != nil {
		return StatusUnknownFailure, TagCanceled
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return StatusTemporaryFailure, TagTimeout
	}
	return StatusUnknownFailure, TagConnectFailed
}

func (r *Runner) isImplicitTLS(port int) bool {
	ports := r.ImplicitTLSPorts
	if ports == nil {
		ports = []int{465, 2465}
	}
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

func (r *Runner) tlsConfig(host string) *tls.Config {
	cfg := r.TLSConfig
	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// advertisesStartTLS reports whether an EHLO reply offers STARTTLS.
func advertisesStartTLS(ehlo string) bool {
	for _, line := range strings.Split(ehlo, "\n") {
		if len(line) > 4 && strings.EqualFold(strings.TrimSpace(line[4:]), "STARTTLS") {
			return true
		}
	}
	return false
}
