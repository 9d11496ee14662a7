package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/everify/internal/domainlist"
	"github.com/infodancer/everify/internal/mx"
	"github.com/infodancer/everify/internal/probe"
)

type fakeResolver struct {
	candidates []mx.Candidate
	err        error
}

func (f *fakeResolver) ResolveMX(_ context.Context, _ string) ([]mx.Candidate, error) {
	return f.candidates, f.err
}

type fakeProber struct {
	catchAll    bool
	catchAllErr error
	outcomes    []probe.Outcome
	raceCalls   int
}

func (f *fakeProber) Race(_ context.Context, host, _ string, _ []int) probe.Outcome {
	out := f.outcomes[min(f.raceCalls, len(f.outcomes)-1)]
	f.raceCalls++
	if out.Host == "" {
		out.Host = host
	}
	if out.Transcript == nil {
		out.Transcript = &probe.Transcript{}
	}
	return out
}

func (f *fakeProber) IsCatchAll(_ context.Context, _, _ string, _ []int) (bool, error) {
	return f.catchAll, f.catchAllErr
}

func testVerifier(resolver Resolver, prober Prober) *Verifier {
	v := New(resolver, prober,
		domainlist.NewClassifier(
			domainlist.NewSet([]string{"trusted.com"}),
			domainlist.NewSet([]string{"mailinator.com"}),
			domainlist.NewSet([]string{"spam.example"}),
		),
		nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	v.RetryBackoff = time.Millisecond
	return v
}

func mxFor(host string) *fakeResolver {
	return &fakeResolver{candidates: []mx.Candidate{{Host: host, Pref: 10}}}
}

func outcomeFor(code int, enhanced, text string) probe.Outcome {
	status, tag := probe.Classify(code, enhanced, text)
	return probe.Outcome{
		Status:     status,
		Tag:        tag,
		Code:       code,
		Reply:      text,
		Transcript: &probe.Transcript{},
		Timestamp:  time.Now(),
	}
}

func TestCategorizeInvalidSyntax(t *testing.T) {
	v := testVerifier(&fakeResolver{}, &fakeProber{})
	for _, email := range []string{" ", "no-at-sign", "user@", "@example.com", "user@nodot"} {
		verdict := v.Categorize(context.Background(), email)
		if verdict.Category != CategoryInvalid {
			t.Errorf("Categorize(%q).Category = %q, want Invalid", email, verdict.Category)
		}
		if verdict.Transcript != "" {
			t.Errorf("Categorize(%q) produced a transcript", email)
		}
	}
}

func TestCategorizeDomainLists(t *testing.T) {
	v := testVerifier(&fakeResolver{}, &fakeProber{})
	tests := []struct {
		email string
		want  string
	}{
		{"user@trusted.com", CategoryWhitelisted},
		{"user@TRUSTED.com", CategoryWhitelisted},
		{"user@mailinator.com", CategoryDisposable},
		{"user@spam.example", CategoryBlacklisted},
	}
	for _, tt := range tests {
		if got := v.Categorize(context.Background(), tt.email); got.Category != tt.want {
			t.Errorf("Categorize(%q).Category = %q, want %q", tt.email, got.Category, tt.want)
		}
	}
}

func TestCategorizeNoMailHosts(t *testing.T) {
	v := testVerifier(&fakeResolver{}, &fakeProber{})
	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryInvalid {
		t.Errorf("Category = %q, want Invalid for a domain without MX or A", verdict.Category)
	}
}

func TestCategorizeResolveError(t *testing.T) {
	v := testVerifier(&fakeResolver{err: errors.New("SERVFAIL")}, &fakeProber{})
	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryUnknown {
		t.Errorf("Category = %q, want Unknown", verdict.Category)
	}
	if len(verdict.Errors) != 1 || !strings.Contains(verdict.Errors[0], "SERVFAIL") {
		t.Errorf("Errors = %v, want the resolver error", verdict.Errors)
	}
}

func TestCategorizeCatchAll(t *testing.T) {
	prober := &fakeProber{catchAll: true}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryCatchAll {
		t.Fatalf("Category = %q, want Catch-All", verdict.Category)
	}
	if !verdict.CatchAll {
		t.Error("CatchAll = false")
	}
	if verdict.MailHost != "mx.example.com" {
		t.Errorf("MailHost = %q", verdict.MailHost)
	}
	if prober.raceCalls != 0 {
		t.Errorf("address was probed despite catch-all domain (%d race calls)", prober.raceCalls)
	}
}

func TestCategorizeCatchAllProbeError(t *testing.T) {
	v := testVerifier(mxFor("mx.example.com"), &fakeProber{catchAllErr: errors.New("connect timeout")})
	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryUnknown {
		t.Errorf("Category = %q, want Unknown", verdict.Category)
	}
	if len(verdict.Errors) == 0 {
		t.Error("Errors empty, want the probe error")
	}
}

func TestCategorizeValid(t *testing.T) {
	prober := &fakeProber{outcomes: []probe.Outcome{outcomeFor(250, "2.1.5", "250 2.1.5 Ok")}}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryValid {
		t.Fatalf("Category = %q, want Valid", verdict.Category)
	}
	if verdict.SMTPCode != 250 || verdict.Status != string(probe.StatusValid) {
		t.Errorf("SMTPCode = %d, Status = %q", verdict.SMTPCode, verdict.Status)
	}
	if !verdict.PortOpened || !verdict.ConnectionSuccessful {
		t.Error("portOpened/connectionSuccessful not set on a clean session")
	}
	if verdict.DiagnosticTag != probe.TagAccepted {
		t.Errorf("DiagnosticTag = %q, want Accepted", verdict.DiagnosticTag)
	}
}

func TestCategorizeUserNotFound(t *testing.T) {
	prober := &fakeProber{outcomes: []probe.Outcome{outcomeFor(550, "5.1.1", "550 5.1.1 User unknown")}}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "missing@example.com")
	if verdict.Category != CategoryUserNotFound {
		t.Fatalf("Category = %q, want UserNotFound", verdict.Category)
	}
	if !verdict.PortOpened || !verdict.ConnectionSuccessful {
		t.Error("a parsed rejection still means the connection worked")
	}
}

func TestCategorizeBlacklistedReply(t *testing.T) {
	prober := &fakeProber{outcomes: []probe.Outcome{
		outcomeFor(550, "", "550 rejected, listed at Spamhaus"),
	}}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryBlacklisted {
		t.Errorf("Category = %q, want Blacklisted", verdict.Category)
	}
}

func TestCategorizeBlacklistedErrText(t *testing.T) {
	out := outcomeFor(554, "", "554 transaction failed")
	out.ErrText = "server said: 550 5.7.1 blocked"
	v := testVerifier(mxFor("mx.example.com"), &fakeProber{outcomes: []probe.Outcome{out}})

	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryBlacklisted {
		t.Errorf("Category = %q, want Blacklisted", verdict.Category)
	}
}

func TestCategorizeRetriesTemporaryFailure(t *testing.T) {
	prober := &fakeProber{outcomes: []probe.Outcome{
		outcomeFor(450, "", "450 greylisted, try again"),
		outcomeFor(250, "", "250 Ok"),
	}}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "user@example.com")
	if prober.raceCalls != 2 {
		t.Fatalf("race calls = %d, want 2 (one retry)", prober.raceCalls)
	}
	if verdict.Category != CategoryValid {
		t.Errorf("Category = %q, want Valid after retry", verdict.Category)
	}
}

func TestCategorizeRetriesOnlyOnce(t *testing.T) {
	prober := &fakeProber{outcomes: []probe.Outcome{
		outcomeFor(450, "", "450 mailbox busy"),
	}}
	v := testVerifier(mxFor("mx.example.com"), prober)

	verdict := v.Categorize(context.Background(), "user@example.com")
	if prober.raceCalls != 2 {
		t.Fatalf("race calls = %d, want 2", prober.raceCalls)
	}
	if verdict.Category != CategoryMailboxBusy {
		t.Errorf("Category = %q, want MailboxBusy", verdict.Category)
	}
}

func TestCategorizeAllPortsFailed(t *testing.T) {
	out := probe.Outcome{
		Status:     probe.StatusUnknownFailure,
		Tag:        probe.TagAllPortsFailed,
		Code:       -1,
		Transcript: &probe.Transcript{},
		ErrText:    "dial tcp: i/o timeout",
	}
	v := testVerifier(mxFor("mx.example.com"), &fakeProber{outcomes: []probe.Outcome{out}})

	verdict := v.Categorize(context.Background(), "user@example.com")
	if verdict.Category != CategoryUnknown {
		t.Fatalf("Category = %q, want Unknown", verdict.Category)
	}
	if verdict.PortOpened || verdict.ConnectionSuccessful {
		t.Error("no port opened, flags must stay false")
	}
	if len(verdict.Errors) == 0 || !strings.Contains(verdict.Errors[0], "timeout") {
		t.Errorf("Errors = %v, want the transport error", verdict.Errors)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		email  string
		domain string
		ok     bool
	}{
		{"user@Example.COM", "example.com", true},
		{"a@b@c.com", "c.com", true},
		{"user@xn--bcher-kva.example", "xn--bcher-kva.example", true},
		{"user@bücher.example", "xn--bcher-kva.example", true},
		{"user@", "", false},
		{"nodomain", "", false},
	}
	for _, tt := range tests {
		domain, ok := extractDomain(tt.email)
		if ok != tt.ok || domain != tt.domain {
			t.Errorf("extractDomain(%q) = (%q, %v), want (%q, %v)",
				tt.email, domain, ok, tt.domain, tt.ok)
		}
	}
}

func TestCategoryForTagDefaults(t *testing.T) {
	if got := categoryForTag(probe.TagServiceUnavailable, probe.StatusTemporaryFailure); got != CategoryUnknown {
		t.Errorf("temporary default = %q, want Unknown", got)
	}
	if got := categoryForTag(probe.TagRejected, probe.StatusUnknownFailure); got != CategoryInvalid {
		t.Errorf("permanent default = %q, want Invalid", got)
	}
}

func TestVerdictJSONFieldNames(t *testing.T) {
	v := ErrorVerdict("user@example.com", errors.New("boom"))
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{
		"email", "category", "diagnosticTag", "smtpCode", "status", "transcript",
		"mailHost", "portOpened", "connectionSuccessful", "errors", "catchAll", "timestamp",
	} {
		if _, ok := m[field]; !ok {
			t.Errorf("missing JSON field %q", field)
		}
	}
	if m["category"] != CategoryError {
		t.Errorf("category = %v, want Error", m["category"])
	}
	if _, err := time.Parse(TimestampLayout, m["timestamp"].(string)); err != nil {
		t.Errorf("timestamp %v does not match layout: %v", m["timestamp"], err)
	}
}
