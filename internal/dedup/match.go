package dedup

import (
	"strings"

	"github.com/lotas/tabgruppen/internal/types"
	"github.com/lotas/tabgruppen/internal/urlutil"
)

// Matches reports whether a and b show the same page under mode.
// Unparseable URLs never match.
func Matches(mode types.MatchMode, a, b string) bool {
	ua, ok := urlutil.Parse(a)
	if !ok {
		return false
	}
	ub, ok := urlutil.Parse(b)
	if !ok {
		return false
	}

	switch mode.Normalize() {
	case types.MatchHostnamePath:
		return strings.EqualFold(ua.Hostname(), ub.Hostname()) && ua.EscapedPath() == ub.EscapedPath()
	case types.MatchHostname:
		return strings.EqualFold(ua.Hostname(), ub.Hostname())
	case types.MatchIncludes:
		return strings.Contains(a, b) || strings.Contains(b, a)
	default:
		return a == b
	}
}
