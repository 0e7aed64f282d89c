package urlutil

import (
	"net/url"
	"strings"
)

// internalSchemes are browser-owned pages: new tab, settings, extension pages
// and the placeholders a tab shows while a navigation is still pending.
var internalSchemes = map[string]bool{
	"about":            true,
	"chrome":           true,
	"chrome-extension": true,
	"chrome-search":    true,
	"chrome-untrusted": true,
	"moz-extension":    true,
	"edge":             true,
	"brave":            true,
	"opera":            true,
	"vivaldi":          true,
	"view-source":      true,
	"devtools":         true,
	"resource":         true,
}

// IsInternal reports whether rawURL is empty or uses a browser-internal scheme.
func IsInternal(rawURL string) bool {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return true
	}
	i := strings.Index(s, ":")
	if i <= 0 {
		return false
	}
	return internalSchemes[strings.ToLower(s[:i])]
}

// IsNavigable reports whether rawURL is a real page a tab can settle on.
func IsNavigable(rawURL string) bool {
	return !IsInternal(rawURL)
}

// Hostname returns the lowercased hostname of rawURL, or "" if it cannot be parsed.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Parse parses an absolute URL with a host. Relative or hostless URLs fail.
func Parse(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// NormalizeForGuard lowercases the host and strips a single trailing slash
// from the path. Scheme, port, query and fragment are kept verbatim.
// Unparseable input is returned unchanged.
func NormalizeForGuard(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		if u.RawPath != "" {
			u.RawPath = strings.TrimSuffix(u.RawPath, "/")
		}
	}
	return u.String()
}
