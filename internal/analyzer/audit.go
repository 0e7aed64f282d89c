// Package analyzer reports what the grouping and deduplication rules would
// do to a saved browser session.
package analyzer

import (
	"sort"

	"github.com/lotas/tabgruppen/internal/dedup"
	"github.com/lotas/tabgruppen/internal/rules"
	"github.com/lotas/tabgruppen/internal/types"
	"github.com/lotas/tabgruppen/internal/urlutil"
)

// Duplicate is a tab that would be closed in favor of Survivor.
type Duplicate struct {
	Tab      *types.Tab
	Survivor *types.Tab
	Mode     types.MatchMode
	RuleID   string
}

// TabAudit describes how the rules apply to one tab, were it an opener.
type TabAudit struct {
	Tab       *types.Tab
	RuleID    string
	RuleLabel string
	Grouping  bool
	GroupName string
	Dedup     bool
}

// RuleHit counts the tabs a rule matched first.
type RuleHit struct {
	RuleID string
	Label  string
	Tabs   int
}

// Report is the result of Audit.
type Report struct {
	Profile      string
	TotalWindows int
	TotalTabs    int
	TotalGroups  int
	Tabs         []TabAudit
	Duplicates   []Duplicate
	RuleHits     []RuleHit
	Unmatched    int
}

// Audit runs the rule matcher, name resolver and duplicate matcher over a
// session without touching the browser. Within a window the first tab
// showing a page survives and later matches are listed as duplicates.
func Audit(sd *types.SessionData, cfg types.Settings) *Report {
	r := &Report{
		Profile:      sd.Profile.Name,
		TotalWindows: len(sd.Windows),
		TotalTabs:    len(sd.AllTabs),
		TotalGroups:  len(sd.Groups),
	}
	hits := make(map[string]*RuleHit)

	for _, win := range sd.Windows {
		var kept []*types.Tab
		for _, tab := range win.Tabs {
			ta := TabAudit{Tab: tab}
			dedupOn := cfg.GlobalDeduplicationEnabled
			mode := types.MatchExact

			rule, ok := rules.FirstMatch(cfg.DomainRules, tab.URL)
			if ok {
				ta.RuleID = rule.ID
				ta.RuleLabel = rule.Label
				ta.Grouping = cfg.GlobalGroupingEnabled && rule.GroupingEnabled
				if ta.Grouping {
					ta.GroupName = rules.ResolveGroupName(rule, tab.Title, tab.URL)
				}
				dedupOn = rule.DeduplicationEnabled
				mode = rule.DeduplicationMatchMode.Normalize()

				h, seen := hits[rule.ID]
				if !seen {
					h = &RuleHit{RuleID: rule.ID, Label: rule.Label}
					hits[rule.ID] = h
				}
				h.Tabs++
			} else {
				r.Unmatched++
			}
			ta.Dedup = dedupOn
			r.Tabs = append(r.Tabs, ta)

			if urlutil.IsInternal(tab.URL) {
				continue
			}
			if dedupOn {
				if survivor := firstMatch(kept, mode, tab.URL); survivor != nil {
					r.Duplicates = append(r.Duplicates, Duplicate{Tab: tab, Survivor: survivor, Mode: mode, RuleID: ta.RuleID})
					continue
				}
			}
			kept = append(kept, tab)
		}
	}

	for _, h := range hits {
		r.RuleHits = append(r.RuleHits, *h)
	}
	sort.Slice(r.RuleHits, func(i, j int) bool {
		if r.RuleHits[i].Tabs != r.RuleHits[j].Tabs {
			return r.RuleHits[i].Tabs > r.RuleHits[j].Tabs
		}
		return r.RuleHits[i].RuleID < r.RuleHits[j].RuleID
	})
	return r
}

func firstMatch(tabs []*types.Tab, mode types.MatchMode, url string) *types.Tab {
	for _, t := range tabs {
		if dedup.Matches(mode, url, t.URL) {
			return t
		}
	}
	return nil
}
