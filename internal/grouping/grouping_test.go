package grouping

import (
	"context"
	"errors"
	"testing"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/browser/browsertest"
	"github.com/lotas/tabgruppen/internal/correlate"
	"github.com/lotas/tabgruppen/internal/events"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/stats"
	"github.com/lotas/tabgruppen/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	orch    *Orchestrator
	browser *browsertest.Browser
	bus     *events.Bus
	openers *correlate.Map
	rec     *stats.Memory
}

func githubRule() types.DomainRule {
	r := settings.DefaultRule()
	r.ID = "gh"
	r.Label = "GitHub"
	r.DomainFilter = "github.com"
	return r
}

func newHarness(t *testing.T, cfg types.Settings) *harness {
	t.Helper()
	h := &harness{
		browser: browsertest.New(),
		bus:     events.NewBus(),
		openers: correlate.New(),
		rec:     stats.NewMemory(),
	}
	h.orch = New(h.browser, h.bus, h.openers, settings.Static(cfg), h.rec)
	return h
}

func defaultSettings(rules ...types.DomainRule) types.Settings {
	cfg := settings.Defaults()
	cfg.DomainRules = rules
	return cfg
}

// open simulates a middle-click in opener followed by the browser creating
// the new tab, which is still loading.
func (h *harness) open(t *testing.T, openerID, newID int, url string) *Session {
	t.Helper()
	h.openers.Register(url, openerID)
	tab := h.browser.AddTab(types.Tab{ID: newID, WindowID: 1, OpenerTabID: openerID, URL: url, Status: types.StatusLoading})
	s := h.orch.HandleTabCreated(context.Background(), tab)
	require.NotNil(t, s)
	h.orch.Wait()
	return s
}

func (h *harness) settle(tabID int, url string) {
	h.bus.PublishUpdate(types.TabUpdate{TabID: tabID, URL: url, Status: types.StatusComplete})
	h.orch.Wait()
}

func TestCreateGroup(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/golang/go", Title: "golang/go"})

	s := h.open(t, 1, 2, "https://github.com/golang/go/issues")
	assert.Equal(t, AwaitingStableURL, s.State())

	h.settle(2, "https://github.com/golang/go/issues")

	assert.Equal(t, Done, s.State())
	g, ok := h.browser.Group(s.GroupID())
	require.True(t, ok)
	assert.Equal(t, "GitHub", g.Title)
	require.Len(t, g.Tabs, 2)
	assert.Equal(t, 1, g.Tabs[0].ID)
	assert.Equal(t, 2, g.Tabs[1].ID)
	assert.Equal(t, []int{1, 2}, s.GroupedTabIDs())
	assert.True(t, s.CreatedGroup())
	assert.Equal(t, 1, h.rec.Count(types.CounterGroupsCreated))

	notes := h.browser.Notifications()
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Undo)
	assert.Equal(t, browser.UndoUngroup, notes[0].Undo.Type)
	assert.Equal(t, []int{1, 2}, notes[0].Undo.TabIDs)

	assert.Equal(t, 0, h.orch.ActiveSessions())
	assert.Equal(t, 0, h.bus.Len())
	assert.Equal(t, 0, h.orch.locks.Len())
}

func TestJoinExistingGroup(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddGroup(types.TabGroup{ID: 7, WindowID: 1, Title: "Mine", Color: "red"})
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, GroupID: 7, URL: "https://github.com/a/b"})

	s := h.open(t, 1, 2, "https://github.com/a/c")
	h.settle(2, "https://github.com/a/c")

	tab, ok := h.browser.Tab(2)
	require.True(t, ok)
	assert.Equal(t, 7, tab.GroupID)
	g, _ := h.browser.Group(7)
	assert.Equal(t, "Mine", g.Title, "joining does not rename")
	assert.Equal(t, "red", g.Color, "joining does not recolor")
	assert.Equal(t, 1, h.browser.GroupCount())
	assert.Equal(t, 0, h.rec.Count(types.CounterGroupsCreated))
	assert.Equal(t, []int{2}, s.GroupedTabIDs())
	assert.False(t, s.CreatedGroup())
	assert.Empty(t, h.browser.Notifications())
}

func TestTransientURLsAreIgnored(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	s := h.open(t, 1, 2, "https://github.com/y")

	h.settle(2, "about:blank")
	h.bus.PublishUpdate(types.TabUpdate{TabID: 2, URL: "https://github.com/y", Status: types.StatusLoading})
	h.orch.Wait()
	assert.Equal(t, AwaitingStableURL, s.State())
	assert.False(t, s.HasProcessedTab())
	assert.Equal(t, 0, h.browser.GroupCount())

	h.settle(2, "https://github.com/y")
	assert.Equal(t, Done, s.State())
	assert.Equal(t, 1, h.browser.GroupCount())

	h.settle(2, "https://github.com/z")
	assert.Equal(t, 1, h.rec.Count(types.CounterGroupsCreated), "later updates are not processed again")
}

func TestStableURLBeforeOpenerLookup(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	h.openers.Register("https://github.com/y", 1)

	tab := h.browser.AddTab(types.Tab{ID: 2, WindowID: 1, OpenerTabID: 1, URL: "https://github.com/y", Status: types.StatusComplete})
	s := h.orch.HandleTabCreated(context.Background(), tab)
	require.NotNil(t, s)
	assert.True(t, s.HasProcessedTab())
	assert.Equal(t, 0, h.bus.Len(), "latched session holds no subscriptions")

	h.orch.Wait()
	assert.Equal(t, Done, s.State())
	assert.Equal(t, 1, h.browser.GroupCount())
}

func TestRemovalAbortsSession(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	s := h.open(t, 1, 2, "https://github.com/y")
	require.Equal(t, 2, h.bus.Len())

	h.browser.CloseTab(2)
	h.bus.PublishRemoval(2)

	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, "tab closed", s.AbortReason())
	assert.Equal(t, 0, h.bus.Len())
	assert.Equal(t, 0, h.orch.ActiveSessions())

	h.settle(2, "https://github.com/y")
	assert.Equal(t, 0, h.browser.GroupCount())
	assert.NotContains(t, h.browser.Calls(), "groupTabs")
}

func TestUncorrelatedTabIsIgnored(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})

	tab := h.browser.AddTab(types.Tab{ID: 2, WindowID: 1, OpenerTabID: 1, URL: "https://github.com/y"})
	assert.Nil(t, h.orch.HandleTabCreated(context.Background(), tab))

	noOpener := h.browser.AddTab(types.Tab{ID: 3, WindowID: 1, URL: "https://github.com/z"})
	assert.Nil(t, h.orch.HandleTabCreated(context.Background(), noOpener))

	assert.Equal(t, 0, h.bus.Len())
	assert.Equal(t, 0, h.orch.ActiveSessions())
}

func TestPendingURLPicksOpenerEntry(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	h.openers.Register("https://github.com/a", 1)
	h.openers.Register("https://github.com/b", 1)

	tab := h.browser.AddTab(types.Tab{
		ID: 2, WindowID: 1, OpenerTabID: 1,
		URL: "about:blank", PendingURL: "https://github.com/b", Status: types.StatusLoading,
	})
	require.NotNil(t, h.orch.HandleTabCreated(context.Background(), tab))
	h.orch.Wait()

	require.Equal(t, 1, h.openers.Len())
	// The /a entry must still be there for its own tab.
	_, ok := h.openers.Consume("https://github.com/a", 1)
	assert.True(t, ok)
	assert.Equal(t, 0, h.openers.Len())
}

func TestMissingOpenerAborts(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	s := h.open(t, 1, 2, "https://github.com/y")

	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, 0, h.bus.Len())
	assert.Equal(t, 0, h.orch.ActiveSessions())
}

func TestNoGroupingWithoutRule(t *testing.T) {
	t.Run("no matching rule", func(t *testing.T) {
		h := newHarness(t, defaultSettings(githubRule()))
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://example.com/"})
		s := h.open(t, 1, 2, "https://example.com/a")
		h.settle(2, "https://example.com/a")
		assert.Equal(t, Aborted, s.State())
		assert.Equal(t, 0, h.browser.GroupCount())
	})

	t.Run("globally disabled", func(t *testing.T) {
		cfg := defaultSettings(githubRule())
		cfg.GlobalGroupingEnabled = false
		h := newHarness(t, cfg)
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
		s := h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")
		assert.Equal(t, Aborted, s.State())
		assert.Equal(t, 0, h.browser.GroupCount())
	})

	t.Run("first matching rule has grouping off", func(t *testing.T) {
		off := githubRule()
		off.GroupingEnabled = false
		on := githubRule()
		on.ID = "gh2"
		h := newHarness(t, defaultSettings(off, on))
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
		s := h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")
		assert.Equal(t, Aborted, s.State())
		assert.Equal(t, 0, h.browser.GroupCount())
	})
}

func TestColorAndCollapseFromRule(t *testing.T) {
	rule := githubRule()
	rule.GroupID = "work"
	rule.CollapseNew = true
	cfg := defaultSettings(rule)
	cfg.LogicalGroups = []types.LogicalGroup{{ID: "work", Name: "Work", Color: "purple"}}
	h := newHarness(t, cfg)
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})

	s := h.open(t, 1, 2, "https://github.com/y")
	h.settle(2, "https://github.com/y")

	g, ok := h.browser.Group(s.GroupID())
	require.True(t, ok)
	assert.Equal(t, "purple", g.Color)
	assert.True(t, g.Collapsed)
}

func TestManualNaming(t *testing.T) {
	manual := githubRule()
	manual.GroupNameSource = types.NameFromManual

	t.Run("rename", func(t *testing.T) {
		h := newHarness(t, defaultSettings(manual))
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
		h.browser.ReplyToAsk(browser.StringPtr("  Reviews "), nil)

		s := h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")

		assert.Equal(t, []string{"GitHub"}, h.browser.Asked())
		g, _ := h.browser.Group(s.GroupID())
		assert.Equal(t, "Reviews", g.Title)
		assert.Equal(t, "Reviews", s.GroupName())
		assert.Equal(t, Done, s.State())
	})

	t.Run("cancel ungroups", func(t *testing.T) {
		h := newHarness(t, defaultSettings(manual))
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
		h.browser.ReplyToAsk(nil, nil)

		h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")

		assert.Equal(t, 0, h.browser.GroupCount())
		assert.Equal(t, 1, h.rec.Count(types.CounterGroupsCreated), "counter is not rolled back")
		kinds := []string{}
		for _, a := range h.rec.Actions() {
			kinds = append(kinds, a.Kind)
		}
		assert.Equal(t, []string{stats.KindGroupCreated, stats.KindGroupUngroup}, kinds)
	})

	t.Run("cancel after join only ungroups the new tab", func(t *testing.T) {
		h := newHarness(t, defaultSettings(manual))
		h.browser.AddGroup(types.TabGroup{ID: 7, WindowID: 1, Title: "Mine"})
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, GroupID: 7, URL: "https://github.com/x"})
		h.browser.ReplyToAsk(nil, nil)

		h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")

		opener, _ := h.browser.Tab(1)
		child, _ := h.browser.Tab(2)
		assert.Equal(t, 7, opener.GroupID)
		assert.Equal(t, types.NoGroup, child.GroupID)
	})

	t.Run("prompt failure keeps group", func(t *testing.T) {
		h := newHarness(t, defaultSettings(manual))
		h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
		h.browser.ReplyToAsk(nil, errors.New("prompt blocked"))

		s := h.open(t, 1, 2, "https://github.com/y")
		h.settle(2, "https://github.com/y")

		g, ok := h.browser.Group(s.GroupID())
		require.True(t, ok)
		assert.Equal(t, "GitHub", g.Title)
		assert.Len(t, g.Tabs, 2)
		assert.Equal(t, Done, s.State())
	})
}

func TestSiblingsShareOneGroup(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})

	a := h.open(t, 1, 2, "https://github.com/a")
	b := h.open(t, 1, 3, "https://github.com/b")

	h.bus.PublishUpdate(types.TabUpdate{TabID: 2, URL: "https://github.com/a", Status: types.StatusComplete})
	h.bus.PublishUpdate(types.TabUpdate{TabID: 3, URL: "https://github.com/b", Status: types.StatusComplete})
	h.orch.Wait()

	assert.Equal(t, 1, h.browser.GroupCount())
	assert.Equal(t, 1, h.rec.Count(types.CounterGroupsCreated))
	assert.Equal(t, a.GroupID(), b.GroupID())
	g, _ := h.browser.Group(a.GroupID())
	assert.Len(t, g.Tabs, 3)
	assert.Equal(t, 0, h.orch.ActiveSessions())
	assert.Equal(t, 0, h.bus.Len())
}

func TestGroupFailureStopsSession(t *testing.T) {
	h := newHarness(t, defaultSettings(githubRule()))
	h.browser.AddTab(types.Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	h.browser.FailOn("groupTabs", &browser.APIError{Action: "groupTabs", Message: "Cannot group tab in closed window."})

	s := h.open(t, 1, 2, "https://github.com/y")
	h.settle(2, "https://github.com/y")

	assert.Equal(t, Aborted, s.State())
	assert.Equal(t, 0, h.rec.Count(types.CounterGroupsCreated))
	assert.NotContains(t, h.browser.Calls(), "updateGroup")
	assert.Equal(t, 0, h.orch.ActiveSessions())
}

func TestSessionHandleTabUpdate(t *testing.T) {
	s := newSession(context.Background(), 1, 2)
	assert.False(t, s.HandleTabUpdate(types.TabUpdate{TabID: 3, URL: "https://a/", Status: types.StatusComplete}))
	assert.False(t, s.HasProcessedTab())

	assert.False(t, s.openerResolved())
	assert.Equal(t, AwaitingStableURL, s.State())

	assert.False(t, s.HandleTabUpdate(types.TabUpdate{TabID: 2, URL: "about:newtab", Status: types.StatusComplete}))
	assert.False(t, s.HandleTabUpdate(types.TabUpdate{TabID: 2, URL: "https://a/", Status: types.StatusLoading}))
	assert.True(t, s.HandleTabUpdate(types.TabUpdate{TabID: 2, Tab: &types.Tab{ID: 2, URL: "https://a/", Status: types.StatusComplete}}))
	assert.Equal(t, Deciding, s.State())
	assert.Equal(t, "https://a/", s.StableURL())
	assert.False(t, s.HandleTabUpdate(types.TabUpdate{TabID: 2, URL: "https://b/", Status: types.StatusComplete}))
	assert.Equal(t, "https://a/", s.StableURL())
}
