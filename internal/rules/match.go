package rules

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/lotas/tabgruppen/internal/types"
	"github.com/lotas/tabgruppen/internal/urlutil"
)

const wildcardPrefix = "*."

// globCache holds compiled hostname globs keyed by filter; a nil entry marks an invalid filter.
var globCache sync.Map

// MatchDomain reports whether the hostname of rawURL matches domainFilter.
//
// A filter of the form "*.example.com" matches example.com and any subdomain
// of it. Other filters containing glob metacharacters are matched as
// dot-separated globs ("docs.*.example.com", "{a,b}.example.com"). Anything
// else must equal the hostname. Unparseable URLs never match.
func MatchDomain(rawURL, domainFilter string) bool {
	host := urlutil.Hostname(rawURL)
	if host == "" {
		return false
	}
	filter := strings.ToLower(strings.TrimSpace(domainFilter))
	if filter == "" {
		return false
	}

	if strings.HasPrefix(filter, wildcardPrefix) {
		suffix := filter[len(wildcardPrefix):]
		if !hasGlobMeta(suffix) {
			return host == suffix || strings.HasSuffix(host, "."+suffix)
		}
	}
	if hasGlobMeta(filter) {
		g := compileGlob(filter)
		return g != nil && g.Match(host)
	}
	return host == filter
}

// FirstMatch returns the first enabled rule whose filter matches rawURL.
// Rules are evaluated in stored order; later rules are never consulted once one matches.
func FirstMatch(domainRules []types.DomainRule, rawURL string) (*types.DomainRule, bool) {
	for i := range domainRules {
		r := &domainRules[i]
		if !r.Enabled {
			continue
		}
		if MatchDomain(rawURL, r.DomainFilter) {
			return r, true
		}
	}
	return nil, false
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func compileGlob(filter string) glob.Glob {
	if v, ok := globCache.Load(filter); ok {
		g, _ := v.(glob.Glob)
		return g
	}
	g, err := glob.Compile(filter, '.')
	if err != nil {
		globCache.Store(filter, nil)
		return nil
	}
	globCache.Store(filter, g)
	return g
}
