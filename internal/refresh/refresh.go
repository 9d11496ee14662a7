// Package refresh periodically verifies new registry addresses and
// re-probes cached verdicts that have outlived their TTL.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/infodancer/everify/internal/verifier"
)

// Fetcher serves cache-through verdicts and the expiry sweep.
type Fetcher interface {
	Fetch(ctx context.Context, email string) (verifier.Verdict, error)
	RefreshExpired(ctx context.Context) (int, error)
}

// Registry is the primary address store the refresher drains.
type Registry interface {
	Unprocessed(ctx context.Context) ([]string, error)
	MarkProcessed(ctx context.Context, email string) error
}

// Refresher drives the periodic verification pass.
type Refresher struct {
	Cache    Fetcher
	Registry Registry
	Interval time.Duration
	Logger   *slog.Logger
}

// New creates a Refresher.
func New(cache Fetcher, registry Registry, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{Cache: cache, Registry: registry, Interval: interval, Logger: logger}
}

// Run executes passes at the configured interval until the context is
// cancelled. The first pass starts after one interval.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Pass(ctx)
		}
	}
}

// Pass verifies every unprocessed address, then re-probes expired rows.
func (r *Refresher) Pass(ctx context.Context) {
	emails, err := r.Registry.Unprocessed(ctx)
	if err != nil {
		r.Logger.Error("listing unprocessed addresses failed", "error", err)
		return
	}

	for _, email := range emails {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.Cache.Fetch(ctx, email); err != nil {
			r.Logger.Warn("verifying registered address failed", "email", email, "error", err)
			continue
		}
		if err := r.Registry.MarkProcessed(ctx, email); err != nil {
			r.Logger.Warn("marking address processed failed", "email", email, "error", err)
		}
	}

	refreshed, err := r.Cache.RefreshExpired(ctx)
	if err != nil {
		r.Logger.Error("refreshing expired verdicts failed", "error", err)
		return
	}
	if len(emails) > 0 || refreshed > 0 {
		r.Logger.Info("refresh pass completed",
			"processed", len(emails), "refreshed", refreshed)
	}
}
