package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/tabgruppen/internal/analyzer"
)

// Markdown formats an audit report as a markdown document.
func Markdown(r *analyzer.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tab audit: %s\n", r.Profile)
	fmt.Fprintf(&b, "> Exported %s\n\n", time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s in %d windows, %d existing groups, %d unmatched.\n",
		plural(r.TotalTabs, "tab"), r.TotalWindows, r.TotalGroups, r.Unmatched)

	if len(r.RuleHits) > 0 {
		b.WriteString("\n## Rules\n\n")
		for _, h := range r.RuleHits {
			label := h.Label
			if label == "" {
				label = h.RuleID
			}
			fmt.Fprintf(&b, "- %s: %s\n", label, plural(h.Tabs, "tab"))
		}
	}

	groups := groupNames(r)
	if groups.len() > 0 {
		b.WriteString("\n## Groups\n")
		for _, name := range groups.order {
			tabs := groups.tabs[name]
			fmt.Fprintf(&b, "\n### %s (%s)\n\n", name, plural(len(tabs), "tab"))
			for _, ta := range tabs {
				fmt.Fprintf(&b, "- %s\n", link(ta.Tab.Title, ta.Tab.URL))
			}
		}
	}

	if len(r.Duplicates) > 0 {
		fmt.Fprintf(&b, "\n## Duplicates (%d)\n\n", len(r.Duplicates))
		for _, d := range r.Duplicates {
			line := fmt.Sprintf("- %s, same page as %s (%s)", link(d.Tab.Title, d.Tab.URL), d.Survivor.URL, d.Mode)
			if !d.Tab.LastAccessed.IsZero() {
				line += ", used " + relativeTime(d.Tab.LastAccessed)
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

type nameIndex struct {
	order []string
	tabs  map[string][]analyzer.TabAudit
}

func (n nameIndex) len() int { return len(n.order) }

// groupNames buckets grouping tabs by the group name they would open.
func groupNames(r *analyzer.Report) nameIndex {
	idx := nameIndex{tabs: make(map[string][]analyzer.TabAudit)}
	for _, ta := range r.Tabs {
		if !ta.Grouping || ta.GroupName == "" {
			continue
		}
		if _, ok := idx.tabs[ta.GroupName]; !ok {
			idx.order = append(idx.order, ta.GroupName)
		}
		idx.tabs[ta.GroupName] = append(idx.tabs[ta.GroupName], ta)
	}
	return idx
}

func link(title, url string) string {
	if title == "" {
		title = url
	}
	return fmt.Sprintf("[%s](%s)", title, url)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
