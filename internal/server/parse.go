package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

type wireTab struct {
	ID           int     `json:"id"`
	WindowID     int     `json:"windowId"`
	OpenerTabID  int     `json:"openerTabId"`
	GroupID      *int    `json:"groupId"`
	Index        int     `json:"index"`
	URL          string  `json:"url"`
	PendingURL   string  `json:"pendingUrl"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Active       bool    `json:"active"`
	Pinned       bool    `json:"pinned"`
	LastAccessed float64 `json:"lastAccessed"`
	FavIconURL   string  `json:"favIconUrl"`
}

type wireChange struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

func (wt wireTab) tab() *types.Tab {
	groupID := types.NoGroup
	if wt.GroupID != nil && *wt.GroupID > 0 {
		groupID = *wt.GroupID
	}
	t := &types.Tab{
		ID:          wt.ID,
		WindowID:    wt.WindowID,
		OpenerTabID: wt.OpenerTabID,
		GroupID:     groupID,
		Index:       wt.Index,
		URL:         wt.URL,
		PendingURL:  wt.PendingURL,
		Title:       wt.Title,
		Status:      wt.Status,
		Active:      wt.Active,
		Pinned:      wt.Pinned,
		Favicon:     wt.FavIconURL,
	}
	if wt.LastAccessed > 0 {
		t.LastAccessed = time.UnixMilli(int64(wt.LastAccessed))
	}
	return t
}

// ParseTab converts a raw JSON tab into a Tab.
func ParseTab(raw json.RawMessage) (*types.Tab, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse tab: empty")
	}
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, fmt.Errorf("parse tab: %w", err)
	}
	return wt.tab(), nil
}

// ParseTabs converts a raw JSON array of tabs.
func ParseTabs(raw json.RawMessage) ([]*types.Tab, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]*types.Tab, 0, len(wts))
	for _, wt := range wts {
		tabs = append(tabs, wt.tab())
	}
	return tabs, nil
}

// ParseUpdate converts a tab.updated event. The tab snapshot is optional.
func ParseUpdate(msg IncomingMsg) (types.TabUpdate, error) {
	u := types.TabUpdate{TabID: msg.TabID}
	if len(msg.ChangeInfo) > 0 {
		var c wireChange
		if err := json.Unmarshal(msg.ChangeInfo, &c); err != nil {
			return u, fmt.Errorf("parse changeInfo: %w", err)
		}
		u.URL = c.URL
		u.Status = c.Status
	}
	if len(msg.Tab) > 0 {
		tab, err := ParseTab(msg.Tab)
		if err != nil {
			return u, err
		}
		u.Tab = tab
		if u.TabID == 0 {
			u.TabID = tab.ID
		}
	}
	if u.TabID == 0 {
		return u, fmt.Errorf("parse update: missing tab id")
	}
	return u, nil
}

// ParseUndo converts the payload of an undo event.
func ParseUndo(msg IncomingMsg) (browser.UndoAction, error) {
	var a browser.UndoAction
	if len(msg.Undo) == 0 {
		return a, fmt.Errorf("parse undo: empty")
	}
	if err := json.Unmarshal(msg.Undo, &a); err != nil {
		return a, fmt.Errorf("parse undo: %w", err)
	}
	switch a.Type {
	case browser.UndoUngroup, browser.UndoReopenTab:
		return a, nil
	default:
		return a, fmt.Errorf("parse undo: unknown type %q", a.Type)
	}
}
