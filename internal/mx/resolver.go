// Package mx resolves the mail hosts responsible for a domain.
package mx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Candidate is a single mail host candidate for a domain.
type Candidate struct {
	// Host is the mail host with any trailing dot stripped, lowercased.
	Host string
	// Pref is the MX preference; lower is tried first. Candidates
	// synthesized from A records carry preference 0.
	Pref int
}

// Resolver performs MX lookups with an A-record fallback.
type Resolver struct {
	// Server is the DNS server address ("host:port"). Empty means the
	// first server from /etc/resolv.conf.
	Server string

	client *dns.Client
}

// New creates a Resolver. The timeout bounds each DNS exchange.
func New(server string, timeout time.Duration) *Resolver {
	return &Resolver{
		Server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// ResolveMX returns the candidate mail hosts for the domain, sorted by
// ascending preference. An empty slice with a nil error means the domain
// has neither MX nor A records. A non-nil error means the lookup itself
// failed (server failure, nonexistent domain, timeout).
func (r *Resolver) ResolveMX(ctx context.Context, domain string) ([]Candidate, error) {
	server, err := r.serverAddr()
	if err != nil {
		return nil, err
	}

	answers, err := r.exchange(ctx, server, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(answers))
	for _, rr := range answers {
		m, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Host: cleanHost(m.Mx),
			Pref: int(m.Preference),
		})
	}

	if len(candidates) == 0 {
		// No MX records; fall back to A records with preference 0.
		answers, err = r.exchange(ctx, server, domain, dns.TypeA)
		if err != nil {
			return nil, err
		}
		for _, rr := range answers {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}
			candidates = append(candidates, Candidate{Host: a.A.String(), Pref: 0})
		}
		return candidates, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Pref < candidates[j].Pref
	})
	return candidates, nil
}

func (r *Resolver) exchange(ctx context.Context, server, domain string, qtype uint16) ([]dns.RR, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange for %s: %w", domain, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns lookup for %s failed: %s", domain, dns.RcodeToString[resp.Rcode])
	}
	return resp.Answer, nil
}

// serverAddr returns the configured DNS server, falling back to the first
// entry in /etc/resolv.conf.
func (r *Resolver) serverAddr() (string, error) {
	if r.Server != "" {
		return r.Server, nil
	}
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("loading resolv.conf: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return "", fmt.Errorf("no DNS servers configured")
	}
	return cfg.Servers[0] + ":" + cfg.Port, nil
}

func cleanHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
