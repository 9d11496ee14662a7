// Package verifier orchestrates the full verification pipeline for a
// single address: syntax, domain lists, MX resolution, catch-all
// detection, and the SMTP probe race.
package verifier

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/idna"

	"github.com/infodancer/everify/internal/domainlist"
	"github.com/infodancer/everify/internal/logging"
	"github.com/infodancer/everify/internal/metrics"
	"github.com/infodancer/everify/internal/mx"
	"github.com/infodancer/everify/internal/probe"
)

var emailRe = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)

// Resolver yields the candidate mail hosts for a domain.
type Resolver interface {
	ResolveMX(ctx context.Context, domain string) ([]mx.Candidate, error)
}

// Prober runs SMTP sessions against a mail host.
type Prober interface {
	Race(ctx context.Context, host, rcptTo string, ports []int) probe.Outcome
	IsCatchAll(ctx context.Context, host, domain string, ports []int) (bool, error)
}

// Verifier categorizes addresses. All fields must be set before use.
type Verifier struct {
	Resolver Resolver
	Prober   Prober
	Lists    *domainlist.Classifier
	// Ports probed per host. Empty means the standard set.
	Ports []int
	// RetryBackoff is the pause before the single retry on a temporary
	// failure. Zero means one second.
	RetryBackoff time.Duration

	Logger    *slog.Logger
	Collector metrics.Collector
}

// New creates a Verifier.
func New(resolver Resolver, prober Prober, lists *domainlist.Classifier, ports []int, logger *slog.Logger, collector metrics.Collector) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Verifier{
		Resolver:  resolver,
		Prober:    prober,
		Lists:     lists,
		Ports:     ports,
		Logger:    logger,
		Collector: collector,
	}
}

// Categorize verifies one address. It always returns a Verdict; failures
// along the way surface as categories and entries in Verdict.Errors.
func (v *Verifier) Categorize(ctx context.Context, email string) Verdict {
	logger := logging.WithProbe(v.Logger, email)
	v.Collector.ProbeStarted()
	verdict := v.categorize(ctx, logger, email)
	v.Collector.ProbeCompleted(verdict.Category)
	logger.Info("address categorized",
		"category", verdict.Category, "tag", verdict.DiagnosticTag, "code", verdict.SMTPCode)
	return verdict
}

func (v *Verifier) categorize(ctx context.Context, logger *slog.Logger, email string) Verdict {
	verdict := newVerdict(email)

	if !emailRe.MatchString(email) {
		verdict.Category = CategoryInvalid
		return verdict
	}

	domain, ok := extractDomain(email)
	if !ok {
		verdict.Category = CategoryInvalid
		return verdict
	}

	switch {
	case v.Lists.IsWhitelisted(domain):
		verdict.Category = CategoryWhitelisted
		return verdict
	case v.Lists.IsDisposable(domain):
		verdict.Category = CategoryDisposable
		return verdict
	case v.Lists.IsBlacklisted(domain):
		verdict.Category = CategoryBlacklisted
		return verdict
	}

	candidates, err := v.Resolver.ResolveMX(ctx, domain)
	if err != nil {
		v.Collector.MXLookupCompleted("error")
		verdict.Category = CategoryUnknown
		verdict.Errors = append(verdict.Errors, err.Error())
		logger.Debug("MX resolution failed", "domain", domain, "error", err)
		return verdict
	}
	if len(candidates) == 0 {
		v.Collector.MXLookupCompleted("empty")
		verdict.Category = CategoryInvalid
		return verdict
	}
	v.Collector.MXLookupCompleted("ok")
	host := candidates[0].Host
	verdict.MailHost = host

	catchAll, err := v.Prober.IsCatchAll(ctx, host, domain, v.Ports)
	if err != nil {
		verdict.Category = CategoryUnknown
		verdict.Errors = append(verdict.Errors, err.Error())
		logger.Debug("catch-all probe failed", "host", host, "error", err)
		return verdict
	}
	if catchAll {
		verdict.Category = CategoryCatchAll
		verdict.CatchAll = true
		verdict.PortOpened = true
		verdict.ConnectionSuccessful = true
		return verdict
	}

	out := v.Prober.Race(ctx, host, email, v.Ports)
	if out.Status == probe.StatusTemporaryFailure {
		// One retry; greylisting servers often accept the second attempt.
		select {
		case <-time.After(v.retryBackoff()):
		case <-ctx.Done():
		}
		if ctx.Err() == nil {
			out = v.Prober.Race(ctx, host, email, v.Ports)
		}
	}

	if out.ErrText != "" {
		verdict.Errors = append(verdict.Errors, out.ErrText)
	}
	verdict.Status = string(out.Status)
	verdict.DiagnosticTag = out.Tag
	verdict.SMTPCode = out.Code
	if out.Transcript != nil {
		verdict.Transcript = out.Transcript.String()
	}
	if out.Host != "" {
		verdict.MailHost = out.Host
	}

	if out.Code < 0 {
		// No port produced an RCPT reply.
		verdict.Category = CategoryUnknown
		return verdict
	}

	verdict.PortOpened = true
	verdict.ConnectionSuccessful = out.Status != probe.StatusUnknownFailure

	if blacklistedErrText(out.ErrText) {
		verdict.Category = CategoryBlacklisted
		return verdict
	}

	verdict.Category = categoryForTag(out.Tag, out.Status)
	return verdict
}

func (v *Verifier) retryBackoff() time.Duration {
	if v.RetryBackoff > 0 {
		return v.RetryBackoff
	}
	return time.Second
}

// extractDomain returns the lowercased ASCII domain of the address.
func extractDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	domain := strings.ToLower(email[at+1:])
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		// Keep the raw lowercased form; the DNS lookup will fail cleanly
		// if it is truly unusable.
		return domain, true
	}
	return ascii, true
}

// blacklistedErrText reports whether a session error indicates an IP or
// sender reputation block.
func blacklistedErrText(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(text, "550 5.7.1") ||
		strings.Contains(lower, "blocked") ||
		strings.Contains(lower, "spamhaus")
}

// categoryForTag maps a diagnostic tag to the outward category.
func categoryForTag(tag string, status probe.Status) string {
	switch tag {
	case probe.TagAccepted:
		return CategoryValid
	case probe.TagForwarded:
		return CategoryForwarded
	case probe.TagCannotVerify:
		return CategoryCannotVerify
	case probe.TagMailboxBusy:
		return CategoryMailboxBusy
	case probe.TagLocalError:
		return CategoryLocalError
	case probe.TagInsufficientStorage:
		return CategoryInsufficientStorage
	case probe.TagUserNotFound, probe.TagUserNotLocal, probe.TagMailboxNameInvalid:
		return CategoryUserNotFound
	case probe.TagRelayDenied:
		return CategoryRelayDenied
	case probe.TagAccessDenied:
		return CategoryAccessDenied
	case probe.TagGreylisted:
		return CategoryGreylisted
	case probe.TagBlocked, probe.TagBlockedBySpamhaus, probe.TagBlockedByBlacklist:
		return CategoryBlacklisted
	default:
		if status == probe.StatusTemporaryFailure {
			return CategoryUnknown
		}
		return CategoryInvalid
	}
}
