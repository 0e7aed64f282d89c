package rules

import (
	"regexp"
	"strings"
	"sync"

	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultGroupName is used when a rule has no usable label.
const DefaultGroupName = "SmartGroup"

// regexCache holds compiled user patterns; a nil entry marks an invalid pattern.
var regexCache sync.Map

// ResolveGroupName computes the group name for a tab opened from a page with
// the given title and URL.
//
// The rule label (or DefaultGroupName) is the starting candidate. For title
// and url sources the first capture group of the rule's pattern replaces it
// when the pattern compiles, matches and captures something non-blank. For
// the manual source the result is only the placeholder offered to the user.
func ResolveGroupName(rule *types.DomainRule, openerTitle, openerURL string) string {
	name := DefaultGroupName
	if rule == nil {
		return name
	}
	if label := strings.TrimSpace(rule.Label); label != "" {
		name = label
	}

	switch rule.GroupNameSource.Normalize() {
	case types.NameFromTitle:
		if rule.TitleParsingRegEx != "" && openerTitle != "" {
			if extracted, ok := extract(rule.TitleParsingRegEx, openerTitle); ok {
				name = extracted
			}
		}
	case types.NameFromURL:
		if rule.URLParsingRegEx != "" && openerURL != "" {
			if extracted, ok := extract(rule.URLParsingRegEx, openerURL); ok {
				name = extracted
			}
		}
	}
	return name
}

// extract returns the trimmed first capture group of pattern applied to s.
func extract(pattern, s string) (string, bool) {
	re := compileRegex(pattern)
	if re == nil {
		return "", false
	}
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return "", false
	}
	return v, true
}

func compileRegex(pattern string) *regexp.Regexp {
	if v, ok := regexCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		regexCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil
	}
	regexCache.Store(pattern, re)
	return re
}
