package probe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// IsCatchAll probes the host with a recipient that cannot exist. A Valid
// reply means the domain accepts any recipient, so mailbox probes for it
// prove nothing. The error is non-nil when no port produced an RCPT
// reply at all.
func (r *Runner) IsCatchAll(ctx context.Context, host, domain string, ports []int) (bool, error) {
	rcptTo := fmt.Sprintf("nonexistent-%s@%s", randomToken(), domain)
	out := r.Race(ctx, host, rcptTo, ports)
	if out.Code < 0 {
		if out.ErrText != "" {
			return false, errors.New(out.ErrText)
		}
		return false, errors.New("no SMTP server reachable for catch-all check")
	}
	return out.Status == StatusValid, nil
}

func randomToken() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
