package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/infodancer/everify/internal/smtptest"
)

func rejectAll(code int, message string) *smtptest.Script {
	return &smtptest.Script{
		Default: &smtp.SMTPError{Code: code, Message: message},
	}
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestRaceFirstValidWins(t *testing.T) {
	reject := smtptest.Start(t, rejectAll(550, "no such user"))
	accept := smtptest.Start(t, &smtptest.Script{})
	r := testRunner(t)

	out := r.Race(context.Background(), "127.0.0.1", "user@example.com",
		[]int{reject.Port, accept.Port})
	if out.Status != StatusValid {
		t.Fatalf("Status = %v, want Valid (err %q)", out.Status, out.ErrText)
	}
	if out.Port != accept.Port {
		t.Errorf("winning port = %d, want %d", out.Port, accept.Port)
	}
}

func TestRaceFallsBackToFirstReply(t *testing.T) {
	reject := smtptest.Start(t, rejectAll(550, "no such user"))
	r := testRunner(t)

	out := r.Race(context.Background(), "127.0.0.1", "user@example.com",
		[]int{reject.Port, closedPort(t)})
	if out.Status != StatusUserNotFound {
		t.Fatalf("Status = %v, want UserNotFound", out.Status)
	}
	if out.Code != 550 {
		t.Errorf("Code = %d, want 550", out.Code)
	}
}

func TestRaceAllPortsFailed(t *testing.T) {
	r := testRunner(t)
	r.Timeout = 500 * time.Millisecond

	out := r.Race(context.Background(), "127.0.0.1", "user@example.com",
		[]int{closedPort(t), closedPort(t)})
	if out.Status != StatusUnknownFailure || out.Tag != TagAllPortsFailed {
		t.Fatalf("got (%v, %q), want (UnknownFailure, AllPortsFailed)", out.Status, out.Tag)
	}
	if out.Code != -1 {
		t.Errorf("Code = %d, want -1", out.Code)
	}
	if out.ErrText == "" {
		t.Error("ErrText empty, want the accumulated connect errors")
	}
}

func TestRaceDefaultsPorts(t *testing.T) {
	r := testRunner(t)
	r.Timeout = 200 * time.Millisecond

	// No listener on the standard ports of localhost; the race must still
	// terminate with a failure outcome instead of hanging.
	done := make(chan Outcome, 1)
	go func() {
		done <- r.Race(context.Background(), "127.0.0.1", "user@example.com", nil)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("race did not terminate")
	}
}
