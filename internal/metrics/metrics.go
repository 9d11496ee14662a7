// Package metrics provides interfaces and implementations for collecting
// verifier metrics. This package defines the Collector interface for
// recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording verifier metrics.
type Collector interface {
	// Probe metrics (outward category as label)
	ProbeStarted()
	ProbeCompleted(category string)

	// Cache metrics
	CacheHit()
	CacheMiss()

	// SMTP session metrics (port first, then outcome)
	// result is the session status, e.g. "Valid" or "TemporaryFailure".
	SessionCompleted(port int, result string)
	TLSEstablished(port int)

	// DNS metrics
	// result should be "ok", "empty" or "error".
	MXLookupCompleted(result string)

	// Refresh driver metrics
	RefreshCompleted(refreshed int)

	// HTTP batch metrics
	BatchProcessed(size int)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
