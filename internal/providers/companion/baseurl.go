package companion

import (
	"net/url"
	"strings"
)

// ResolveBaseURL picks the API base address for a given page origin. Pages
// served from a loopback host talk to the configured base (the backend on
// localhost); anything else reuses the page's own origin, which covers
// container and reverse-proxy deployments where "localhost" would be wrong.
func ResolveBaseURL(configured string, origin string) string {
	configured = strings.TrimRight(strings.TrimSpace(configured), "/")
	if configured == "" {
		configured = DefaultBaseURL
	}

	origin = strings.TrimSpace(origin)
	if origin == "" {
		return configured
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return configured
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "127.0.0.1" {
		return configured
	}
	return strings.TrimRight(origin, "/")
}
