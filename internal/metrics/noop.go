package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// ProbeStarted is a no-op.
func (n *NoopCollector) ProbeStarted() {}

// ProbeCompleted is a no-op.
func (n *NoopCollector) ProbeCompleted(category string) {}

// CacheHit is a no-op.
func (n *NoopCollector) CacheHit() {}

// CacheMiss is a no-op.
func (n *NoopCollector) CacheMiss() {}

// SessionCompleted is a no-op.
func (n *NoopCollector) SessionCompleted(port int, result string) {}

// TLSEstablished is a no-op.
func (n *NoopCollector) TLSEstablished(port int) {}

// MXLookupCompleted is a no-op.
func (n *NoopCollector) MXLookupCompleted(result string) {}

// RefreshCompleted is a no-op.
func (n *NoopCollector) RefreshCompleted(refreshed int) {}

// BatchProcessed is a no-op.
func (n *NoopCollector) BatchProcessed(size int) {}
