package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/tabgruppen/internal/analyzer"
)

type jsonExport struct {
	Profile    string          `json:"profile"`
	ExportedAt time.Time       `json:"exported_at"`
	Totals     jsonTotals      `json:"totals"`
	Rules      []jsonRuleHit   `json:"rules"`
	Tabs       []jsonTab       `json:"tabs"`
	Duplicates []jsonDuplicate `json:"duplicates"`
}

type jsonTotals struct {
	Windows    int `json:"windows"`
	Tabs       int `json:"tabs"`
	Groups     int `json:"groups"`
	Duplicates int `json:"duplicates"`
	Unmatched  int `json:"unmatched"`
}

type jsonRuleHit struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Tabs  int    `json:"tabs"`
}

type jsonTab struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Window    int    `json:"window"`
	Rule      string `json:"rule,omitempty"`
	Grouping  bool   `json:"grouping"`
	GroupName string `json:"group_name,omitempty"`
	Dedup     bool   `json:"dedup"`
}

type jsonDuplicate struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Window      int    `json:"window"`
	SurvivorURL string `json:"survivor_url"`
	Mode        string `json:"mode"`
	Rule        string `json:"rule,omitempty"`
}

// JSON formats an audit report as a JSON document.
func JSON(r *analyzer.Report) (string, error) {
	out := jsonExport{
		Profile:    r.Profile,
		ExportedAt: time.Now(),
		Totals: jsonTotals{
			Windows:    r.TotalWindows,
			Tabs:       r.TotalTabs,
			Groups:     r.TotalGroups,
			Duplicates: len(r.Duplicates),
			Unmatched:  r.Unmatched,
		},
		Rules:      make([]jsonRuleHit, 0, len(r.RuleHits)),
		Tabs:       make([]jsonTab, 0, len(r.Tabs)),
		Duplicates: make([]jsonDuplicate, 0, len(r.Duplicates)),
	}

	for _, h := range r.RuleHits {
		out.Rules = append(out.Rules, jsonRuleHit{ID: h.RuleID, Label: h.Label, Tabs: h.Tabs})
	}
	for _, ta := range r.Tabs {
		out.Tabs = append(out.Tabs, jsonTab{
			Title:     ta.Tab.Title,
			URL:       ta.Tab.URL,
			Domain:    extractDomain(ta.Tab.URL),
			Window:    ta.Tab.WindowID,
			Rule:      ta.RuleID,
			Grouping:  ta.Grouping,
			GroupName: ta.GroupName,
			Dedup:     ta.Dedup,
		})
	}
	for _, d := range r.Duplicates {
		out.Duplicates = append(out.Duplicates, jsonDuplicate{
			Title:       d.Tab.Title,
			URL:         d.Tab.URL,
			Window:      d.Tab.WindowID,
			SurvivorURL: d.Survivor.URL,
			Mode:        string(d.Mode),
			Rule:        d.RuleID,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
