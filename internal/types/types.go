package types

import (
	"time"

	"github.com/lotas/tabgruppen/internal/urlutil"
)

// NoGroup is the group id the browser reports for ungrouped tabs.
const NoGroup = -1

// Tab status values reported by the browser.
const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
)

// Tab represents a single browser tab.
type Tab struct {
	ID           int
	WindowID     int
	OpenerTabID  int // 0 if the browser did not report an opener
	GroupID      int // NoGroup if ungrouped
	Index        int
	URL          string
	PendingURL   string
	Title        string
	Status       string
	Active       bool
	Pinned       bool
	LastAccessed time.Time
	Favicon      string
}

// Grouped reports whether the tab currently belongs to a tab group.
func (t *Tab) Grouped() bool {
	return t.GroupID != NoGroup && t.GroupID != 0
}

// EffectiveURL returns the page the tab is heading to. A freshly created tab
// often still shows about:blank or another placeholder while its PendingURL
// already names the real target, so the pending URL wins in that case.
func (t *Tab) EffectiveURL() string {
	if t.PendingURL != "" && (t.URL == "" || urlutil.IsInternal(t.URL)) {
		return t.PendingURL
	}
	return t.URL
}

// TabGroup represents a browser tab group.
type TabGroup struct {
	ID        int
	WindowID  int
	Title     string
	Color     string
	Collapsed bool
	Tabs      []*Tab
}

// TabUpdate is a tab-updated event as forwarded by the extension.
// URL is only set when the update changed the URL.
type TabUpdate struct {
	TabID  int
	URL    string
	Status string
	Tab    *Tab // full tab record after the update; may be nil
}

// CurrentURL returns the URL carried by the event, falling back to the tab record.
func (u TabUpdate) CurrentURL() string {
	if u.URL != "" {
		return u.URL
	}
	if u.Tab != nil {
		return u.Tab.URL
	}
	return ""
}

// CurrentStatus returns the status carried by the event, falling back to the tab record.
func (u TabUpdate) CurrentStatus() string {
	if u.Status != "" {
		return u.Status
	}
	if u.Tab != nil {
		return u.Tab.Status
	}
	return ""
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds the tabs read from an offline session file.
type SessionData struct {
	Windows  []*Window
	Groups   []*TabGroup
	AllTabs  []*Tab
	Profile  Profile
	ParsedAt time.Time
}

// Window is one browser window of a session.
type Window struct {
	Index int
	Tabs  []*Tab
}
