// Package browser describes the tab, window and tab-group operations the
// engine performs in the browser, and how their failures are classified.
package browser

import (
	"context"

	"github.com/lotas/tabgruppen/internal/types"
)

// API is the subset of the browser's tabs/windows/tabGroups API the engine uses.
// Every call may fail because the referenced object no longer exists; see IsGone.
type API interface {
	GetTab(ctx context.Context, tabID int) (*types.Tab, error)
	// QueryTabs returns every tab of the window.
	QueryTabs(ctx context.Context, windowID int) ([]*types.Tab, error)
	// GroupTabs adds tabs to groupID, or to a new group when groupID is
	// types.NoGroup. It returns the id of the group the tabs ended up in.
	GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error)
	UngroupTabs(ctx context.Context, tabIDs []int) error
	UpdateGroup(ctx context.Context, groupID int, upd GroupUpdate) error
	ActivateTab(ctx context.Context, tabID int) error
	FocusWindow(ctx context.Context, windowID int) error
	ReloadTab(ctx context.Context, tabID int) error
	RemoveTab(ctx context.Context, tabID int) error
	CreateTab(ctx context.Context, url string, windowID int) (*types.Tab, error)
	// AskGroupName prompts the user in the tab's page. A nil name means the
	// user cancelled the prompt.
	AskGroupName(ctx context.Context, tabID int, defaultName string) (*string, error)
	Notify(ctx context.Context, n Notification) error
}

// GroupUpdate changes tab group properties. Nil fields are left alone.
type GroupUpdate struct {
	Title     *string `json:"title,omitempty"`
	Color     *string `json:"color,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
}

// Undo action types.
const (
	UndoUngroup   = "ungroup"
	UndoReopenTab = "reopen_tab"
)

// UndoAction describes how to revert a grouping or deduplication.
type UndoAction struct {
	Type     string `json:"type"`
	TabIDs   []int  `json:"tabIds,omitempty"`
	URL      string `json:"url,omitempty"`
	WindowID int    `json:"windowId,omitempty"`
}

// Notification is a user-visible message with an optional undo action.
type Notification struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Undo    *UndoAction `json:"undo,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
