// Package browsertest provides an in-memory browser for engine tests.
package browsertest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

// Browser is a thread-safe in-memory implementation of browser.API.
type Browser struct {
	mu          sync.Mutex
	tabs        map[int]*types.Tab
	groups      map[int]*types.TabGroup
	nextGroupID int
	nextTabID   int

	calls         []string
	notifications []browser.Notification
	focused       []int
	reloaded      []int

	askName  *string
	askSet   bool
	askErr   error
	asked    []string
	failures map[string]error
}

// New returns an empty browser.
func New() *Browser {
	return &Browser{
		tabs:        make(map[int]*types.Tab),
		groups:      make(map[int]*types.TabGroup),
		nextGroupID: 100,
		nextTabID:   1000,
		failures:    make(map[string]error),
	}
}

// AddTab inserts a tab. Zero GroupID is stored as types.NoGroup.
func (b *Browser) AddTab(tab types.Tab) *types.Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tab.GroupID == 0 {
		tab.GroupID = types.NoGroup
	}
	if tab.Status == "" {
		tab.Status = types.StatusComplete
	}
	t := tab
	b.tabs[t.ID] = &t
	return b.copyTab(&t)
}

// AddGroup inserts an existing tab group.
func (b *Browser) AddGroup(g types.TabGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := g
	c.Tabs = nil
	b.groups[c.ID] = &c
}

// CloseTab removes a tab without recording a call, as if the user closed it.
func (b *Browser) CloseTab(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tabs, id)
}

// SetTab replaces fields of an existing tab via fn.
func (b *Browser) SetTab(id int, fn func(*types.Tab)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tabs[id]; ok {
		fn(t)
	}
}

// ReplyToAsk sets the answer AskGroupName returns. Until it is called the
// prompt is confirmed with its default name.
func (b *Browser) ReplyToAsk(name *string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.askName = name
	b.askSet = true
	b.askErr = err
}

// FailOn makes the named action return err.
func (b *Browser) FailOn(action string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[action] = err
}

// Tab returns a copy of the tab, if it exists.
func (b *Browser) Tab(id int) (*types.Tab, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[id]
	if !ok {
		return nil, false
	}
	return b.copyTab(t), true
}

// Group returns a copy of the group with its member tab ids in Tabs.
func (b *Browser) Group(id int) (*types.TabGroup, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[id]
	if !ok {
		return nil, false
	}
	c := *g
	c.Tabs = nil
	for _, t := range b.sortedTabs() {
		if t.GroupID == id {
			c.Tabs = append(c.Tabs, b.copyTab(t))
		}
	}
	return &c, true
}

// GroupCount returns the number of groups that still have member tabs.
func (b *Browser) GroupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	used := make(map[int]bool)
	for _, t := range b.tabs {
		if t.GroupID != types.NoGroup {
			used[t.GroupID] = true
		}
	}
	return len(used)
}

// TabCount returns the number of open tabs.
func (b *Browser) TabCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tabs)
}

// Calls returns the actions performed so far, in order.
func (b *Browser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Notifications returns the notifications raised so far.
func (b *Browser) Notifications() []browser.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]browser.Notification(nil), b.notifications...)
}

// Asked returns the default names passed to AskGroupName.
func (b *Browser) Asked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.asked...)
}

// Reloaded returns the ids of reloaded tabs.
func (b *Browser) Reloaded() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.reloaded...)
}

// FocusedWindows returns the ids of focused windows.
func (b *Browser) FocusedWindows() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.focused...)
}

func (b *Browser) record(action string) error {
	b.calls = append(b.calls, action)
	if err, ok := b.failures[action]; ok {
		return err
	}
	return nil
}

func noTab(action string, id int) error {
	return &browser.APIError{Action: action, Message: fmt.Sprintf("No tab with id: %d.", id)}
}

func (b *Browser) copyTab(t *types.Tab) *types.Tab {
	c := *t
	return &c
}

func (b *Browser) sortedTabs() []*types.Tab {
	out := make([]*types.Tab, 0, len(b.tabs))
	for _, t := range b.tabs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetTab implements browser.API.
func (b *Browser) GetTab(_ context.Context, tabID int) (*types.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("getTab"); err != nil {
		return nil, err
	}
	t, ok := b.tabs[tabID]
	if !ok {
		return nil, noTab("getTab", tabID)
	}
	return b.copyTab(t), nil
}

// QueryTabs implements browser.API.
func (b *Browser) QueryTabs(_ context.Context, windowID int) ([]*types.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("queryTabs"); err != nil {
		return nil, err
	}
	var out []*types.Tab
	for _, t := range b.sortedTabs() {
		if t.WindowID == windowID {
			out = append(out, b.copyTab(t))
		}
	}
	return out, nil
}

// GroupTabs implements browser.API.
func (b *Browser) GroupTabs(_ context.Context, tabIDs []int, groupID int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("groupTabs"); err != nil {
		return 0, err
	}
	for _, id := range tabIDs {
		if _, ok := b.tabs[id]; !ok {
			return 0, noTab("groupTabs", id)
		}
	}
	if groupID == types.NoGroup {
		b.nextGroupID++
		groupID = b.nextGroupID
		b.groups[groupID] = &types.TabGroup{ID: groupID, WindowID: b.tabs[tabIDs[0]].WindowID}
	} else if _, ok := b.groups[groupID]; !ok {
		return 0, &browser.APIError{Action: "groupTabs", Message: fmt.Sprintf("No group with id: %d.", groupID)}
	}
	for _, id := range tabIDs {
		b.tabs[id].GroupID = groupID
	}
	return groupID, nil
}

// UngroupTabs implements browser.API.
func (b *Browser) UngroupTabs(_ context.Context, tabIDs []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("ungroupTabs"); err != nil {
		return err
	}
	for _, id := range tabIDs {
		t, ok := b.tabs[id]
		if !ok {
			return noTab("ungroupTabs", id)
		}
		t.GroupID = types.NoGroup
	}
	return nil
}

// UpdateGroup implements browser.API.
func (b *Browser) UpdateGroup(_ context.Context, groupID int, upd browser.GroupUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("updateGroup"); err != nil {
		return err
	}
	g, ok := b.groups[groupID]
	if !ok {
		return &browser.APIError{Action: "updateGroup", Message: fmt.Sprintf("No group with id: %d.", groupID)}
	}
	if upd.Title != nil {
		g.Title = *upd.Title
	}
	if upd.Color != nil {
		g.Color = *upd.Color
	}
	if upd.Collapsed != nil {
		g.Collapsed = *upd.Collapsed
	}
	return nil
}

// ActivateTab implements browser.API.
func (b *Browser) ActivateTab(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("activateTab"); err != nil {
		return err
	}
	t, ok := b.tabs[tabID]
	if !ok {
		return noTab("activateTab", tabID)
	}
	for _, other := range b.tabs {
		if other.WindowID == t.WindowID {
			other.Active = false
		}
	}
	t.Active = true
	return nil
}

// FocusWindow implements browser.API.
func (b *Browser) FocusWindow(_ context.Context, windowID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("focusWindow"); err != nil {
		return err
	}
	b.focused = append(b.focused, windowID)
	return nil
}

// ReloadTab implements browser.API.
func (b *Browser) ReloadTab(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("reloadTab"); err != nil {
		return err
	}
	if _, ok := b.tabs[tabID]; !ok {
		return noTab("reloadTab", tabID)
	}
	b.reloaded = append(b.reloaded, tabID)
	return nil
}

// RemoveTab implements browser.API.
func (b *Browser) RemoveTab(_ context.Context, tabID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("removeTab"); err != nil {
		return err
	}
	if _, ok := b.tabs[tabID]; !ok {
		return noTab("removeTab", tabID)
	}
	delete(b.tabs, tabID)
	return nil
}

// CreateTab implements browser.API.
func (b *Browser) CreateTab(_ context.Context, url string, windowID int) (*types.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("createTab"); err != nil {
		return nil, err
	}
	b.nextTabID++
	t := &types.Tab{
		ID:       b.nextTabID,
		WindowID: windowID,
		GroupID:  types.NoGroup,
		URL:      url,
		Status:   types.StatusLoading,
		Active:   true,
	}
	b.tabs[t.ID] = t
	return b.copyTab(t), nil
}

// AskGroupName implements browser.API.
func (b *Browser) AskGroupName(_ context.Context, tabID int, defaultName string) (*string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("askGroupName"); err != nil {
		return nil, err
	}
	b.asked = append(b.asked, defaultName)
	if b.askErr != nil {
		return nil, b.askErr
	}
	if _, ok := b.tabs[tabID]; !ok {
		return nil, noTab("askGroupName", tabID)
	}
	if !b.askSet {
		name := defaultName
		return &name, nil
	}
	if b.askName == nil {
		return nil, nil
	}
	name := *b.askName
	return &name, nil
}

// Notify implements browser.API.
func (b *Browser) Notify(_ context.Context, n browser.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("notify"); err != nil {
		return err
	}
	b.notifications = append(b.notifications, n)
	return nil
}

var _ browser.API = (*Browser)(nil)
