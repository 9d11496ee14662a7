package probe

import (
	"context"
	"strings"
	"time"
)

// Race probes the host on every port concurrently. The first session to
// report Valid wins and cancels the rest. If no port reports Valid, the
// first completed session that produced a parseable RCPT reply wins.
// When every port fails before RCPT, the outcome is UnknownFailure with
// the accumulated transport errors.
func (r *Runner) Race(ctx context.Context, host, rcptTo string, ports []int) Outcome {
	if len(ports) == 0 {
		ports = DefaultPorts
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Outcome, len(ports))
	for _, port := range ports {
		go func(port int) {
			results <- r.Run(ctx, host, port, rcptTo)
		}(port)
	}

	var fallback *Outcome
	var errTexts []string
	for range ports {
		out := <-results
		if out.Status == StatusValid {
			cancel()
			return out
		}
		if out.ErrText != "" {
			errTexts = append(errTexts, out.ErrText)
		}
		// Losers cancelled after a winner completed do not count; an
		// outcome without an RCPT code never beats one with a reply.
		if fallback == nil && out.Code >= 0 && out.Tag != TagCanceled {
			o := out
			fallback = &o
		}
	}

	if fallback != nil {
		return *fallback
	}
	return Outcome{
		Status:     StatusUnknownFailure,
		Tag:        TagAllPortsFailed,
		Code:       -1,
		Host:       host,
		Port:       -1,
		Timestamp:  time.Now(),
		Transcript: &Transcript{},
		ErrText:    strings.Join(errTexts, "; "),
	}
}
