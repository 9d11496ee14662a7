// Package domainlist provides membership tests against the whitelist,
// disposable and blacklist domain sets.
package domainlist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Set is an immutable set of lowercased ASCII domains.
type Set struct {
	domains map[string]struct{}
}

// NewSet builds a Set from the given domains. Entries are trimmed and
// lowercased; empty entries are dropped.
func NewSet(domains []string) *Set {
	m := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		m[d] = struct{}{}
	}
	return &Set{domains: m}
}

// Contains reports whether the domain is in the set.
func (s *Set) Contains(domain string) bool {
	if s == nil {
		return false
	}
	_, ok := s.domains[domain]
	return ok
}

// Len returns the number of domains in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.domains)
}

// LoadFile reads a domain list file with one domain per line. Blank lines
// and lines starting with '#' are ignored.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening domain list: %w", err)
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading domain list: %w", err)
	}
	return domains, nil
}

// Classifier bundles the three domain sets. The whitelist wins on conflict;
// callers are expected to check in whitelist, disposable, blacklist order.
type Classifier struct {
	whitelist  *Set
	disposable *Set
	blacklist  *Set
}

// NewClassifier creates a Classifier over the given sets. Nil sets are
// treated as empty.
func NewClassifier(whitelist, disposable, blacklist *Set) *Classifier {
	return &Classifier{
		whitelist:  whitelist,
		disposable: disposable,
		blacklist:  blacklist,
	}
}

// IsWhitelisted reports whether the domain is whitelisted.
func (c *Classifier) IsWhitelisted(domain string) bool {
	return c.whitelist.Contains(domain)
}

// IsDisposable reports whether the domain belongs to a disposable provider.
func (c *Classifier) IsDisposable(domain string) bool {
	return c.disposable.Contains(domain)
}

// IsBlacklisted reports whether the domain is blacklisted.
func (c *Classifier) IsBlacklisted(domain string) bool {
	return c.blacklist.Contains(domain)
}
