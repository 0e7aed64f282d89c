package server

import (
	"encoding/json"
	"testing"

	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/types"
)

func TestParseTab(t *testing.T) {
	raw := json.RawMessage(`{"id": 7, "windowId": 2, "openerTabId": 3, "groupId": -1, "index": 4,
		"url": "https://example.com/", "title": "Example", "status": "complete",
		"active": true, "lastAccessed": 1700000000000.5}`)

	tab, err := ParseTab(raw)
	if err != nil {
		t.Fatal(err)
	}
	if tab.ID != 7 || tab.WindowID != 2 || tab.OpenerTabID != 3 || tab.Index != 4 {
		t.Errorf("ids = %+v", tab)
	}
	if tab.GroupID != types.NoGroup {
		t.Errorf("GroupID = %d, want NoGroup", tab.GroupID)
	}
	if tab.Status != types.StatusComplete || !tab.Active {
		t.Errorf("status = %q active = %v", tab.Status, tab.Active)
	}
	if tab.LastAccessed.IsZero() {
		t.Error("LastAccessed is zero")
	}
}

func TestParseTabMissingGroup(t *testing.T) {
	tab, err := ParseTab(json.RawMessage(`{"id": 1, "url": "https://a/"}`))
	if err != nil {
		t.Fatal(err)
	}
	if tab.GroupID != types.NoGroup {
		t.Errorf("GroupID = %d, want NoGroup", tab.GroupID)
	}
	if _, err := ParseTab(nil); err == nil {
		t.Error("expected error for empty tab")
	}
}

func TestParseTabs(t *testing.T) {
	tabs, err := ParseTabs(json.RawMessage(`[{"id": 1, "groupId": 5}, {"id": 2}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(tabs) != 2 {
		t.Fatalf("got %d tabs, want 2", len(tabs))
	}
	if tabs[0].GroupID != 5 || !tabs[0].Grouped() {
		t.Errorf("tab 1 GroupID = %d", tabs[0].GroupID)
	}
	if tabs[1].Grouped() {
		t.Error("tab 2 should be ungrouped")
	}
}

func TestParseUpdate(t *testing.T) {
	raw := `{"type": "tab.updated", "tabId": 9, "changeInfo": {"status": "complete"},
		"tab": {"id": 9, "url": "https://example.com/x", "status": "complete"}}`
	var msg IncomingMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	u, err := ParseUpdate(msg)
	if err != nil {
		t.Fatal(err)
	}
	if u.TabID != 9 || u.URL != "" || u.Status != types.StatusComplete {
		t.Errorf("update = %+v", u)
	}
	if u.CurrentURL() != "https://example.com/x" {
		t.Errorf("CurrentURL = %q", u.CurrentURL())
	}

	if _, err := ParseUpdate(IncomingMsg{Type: TypeTabUpdated}); err == nil {
		t.Error("expected error without tab id")
	}
}

func TestParseUndo(t *testing.T) {
	msg := IncomingMsg{Type: TypeUndo, Undo: json.RawMessage(`{"type": "reopen_tab", "url": "https://a/", "windowId": 3}`)}
	a, err := ParseUndo(msg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Type != browser.UndoReopenTab || a.URL != "https://a/" || a.WindowID != 3 {
		t.Errorf("undo = %+v", a)
	}

	msg.Undo = json.RawMessage(`{"type": "explode"}`)
	if _, err := ParseUndo(msg); err == nil {
		t.Error("expected error for unknown undo type")
	}
}
