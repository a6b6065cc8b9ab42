package server

import (
	"net/url"
	"strings"
)

type builtinOrigin struct {
	scheme  string
	host    string
	portAny bool
}

// Local tooling always reaches the daemon from loopback.
var builtinOrigins = []builtinOrigin{
	{scheme: "http", host: "localhost", portAny: true},
	{scheme: "http", host: "127.0.0.1", portAny: true},
	{scheme: "http", host: "::1", portAny: true},
}

func isBuiltinOrigin(u *url.URL) bool {
	if u == nil {
		return false
	}
	hostname := u.Hostname()
	port := u.Port()
	for _, b := range builtinOrigins {
		if u.Scheme != b.scheme {
			continue
		}
		if hostname != b.host {
			continue
		}
		if !b.portAny && port != "" {
			continue
		}
		return true
	}
	return false
}

// sanitizeOrigins trims, lowercases and dedupes configured origins.
func sanitizeOrigins(origins []string) []string {
	seen := make(map[string]struct{}, len(origins))
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "" {
			continue
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	return out
}

// originChecker reports whether a browser origin may call the API.
type originChecker struct {
	allowed map[string]struct{}
}

func newOriginChecker(extra []string) originChecker {
	allowed := make(map[string]struct{})
	for _, origin := range sanitizeOrigins(extra) {
		allowed[origin] = struct{}{}
	}
	return originChecker{allowed: allowed}
}

func (c originChecker) Allowed(origin string) bool {
	origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
	if origin == "" {
		return false
	}
	if _, ok := c.allowed["*"]; ok {
		return true
	}
	if _, ok := c.allowed[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return isBuiltinOrigin(u)
}
