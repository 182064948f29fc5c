// Package origin normalizes browser Origin headers and matches them against
// the configured allowlist. Browsers attach Origin to WebSocket upgrades, so
// this is the only cross-site control the relay has; it is evaluated before
// any upgrade or API handler runs.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates an Origin header value and returns its canonical
// scheme://host[:port] form. Default ports are stripped, scheme and host are
// lowercased. The literal "null" origin (sandboxed documents, file://) is
// passed through as-is.
func Normalize(header string) (string, bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", false
	}
	if trimmed == "null" {
		return "null", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", false
	}

	port := u.Port()
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
			port = ""
		}
	}

	if port == "" {
		return scheme + "://" + hostname, true
	}
	return scheme + "://" + hostname + ":" + port, true
}

// Allowed reports whether a normalized origin may talk to this server.
//
// Rules, in order: a requesting origin whose host equals the server's own
// Host header is always allowed (same-host deployments need no config); a
// "*" allowlist entry allows everything; otherwise the normalized origin must
// match an allowlist entry exactly.
func Allowed(normalized, requestHost string, allowlist []string) bool {
	if host := hostOf(normalized); host != "" && strings.EqualFold(host, requestHost) {
		return true
	}
	for _, entry := range allowlist {
		if entry == "*" || entry == normalized {
			return true
		}
	}
	return false
}

func hostOf(normalized string) string {
	_, rest, ok := strings.Cut(normalized, "://")
	if !ok {
		return ""
	}
	return rest
}
