package export

import (
	"time"

	"github.com/lotas/tabgruppen/internal/analyzer"
	"github.com/lotas/tabgruppen/internal/types"
)

func sampleReport() *analyzer.Report {
	now := time.Now()
	docs := &types.Tab{ID: 1, WindowID: 1, Title: "Go docs", URL: "https://go.dev/doc", LastAccessed: now}
	ref := &types.Tab{ID: 2, WindowID: 1, Title: "", URL: "https://go.dev/ref/mem", LastAccessed: now}
	dup := &types.Tab{ID: 3, WindowID: 1, Title: "Go docs again", URL: "https://go.dev/doc", LastAccessed: now.Add(-3 * 24 * time.Hour)}
	other := &types.Tab{ID: 4, WindowID: 2, Title: "Example", URL: "https://example.com"}

	return &analyzer.Report{
		Profile:      "default",
		TotalWindows: 2,
		TotalTabs:    4,
		TotalGroups:  1,
		Tabs: []analyzer.TabAudit{
			{Tab: docs, RuleID: "go", RuleLabel: "Go", Grouping: true, GroupName: "Go", Dedup: true},
			{Tab: ref, RuleID: "go", RuleLabel: "Go", Grouping: true, GroupName: "Go", Dedup: true},
			{Tab: dup, RuleID: "go", RuleLabel: "Go", Grouping: true, GroupName: "Go", Dedup: true},
			{Tab: other},
		},
		Duplicates: []analyzer.Duplicate{
			{Tab: dup, Survivor: docs, Mode: types.MatchExact, RuleID: "go"},
		},
		RuleHits:  []analyzer.RuleHit{{RuleID: "go", Label: "Go", Tabs: 3}},
		Unmatched: 1,
	}
}
