package protocol

import (
	"strings"
)

// OriginPolicy is an explicit allow-list of host origins. An empty origin
// (same-origin requests and non-browser clients) is always allowed; no
// wildcard is honored.
type OriginPolicy struct {
	allowed map[string]bool
}

// NewOriginPolicy builds a policy from origins such as "https://host.example".
// Entries are normalized to lower case without a trailing slash.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		if o == "" || o == "*" {
			continue
		}
		p.allowed[o] = true
	}
	return p
}

// Allowed reports whether messages from origin are trusted.
func (p *OriginPolicy) Allowed(origin string) bool {
	origin = normalizeOrigin(origin)
	if origin == "" {
		return true
	}
	if p == nil {
		return false
	}
	return p.allowed[origin]
}

// Origins returns the configured allow-list.
func (p *OriginPolicy) Origins() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.allowed))
	for o := range p.allowed {
		out = append(out, o)
	}
	return out
}

func normalizeOrigin(o string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
}
