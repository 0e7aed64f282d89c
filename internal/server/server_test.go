package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabgruppen/internal/browser"
	"nhooyr.io/websocket"
)

// dial connects a fake extension and waits until the server registered it.
func dial(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	for !srv.Connected() {
		select {
		case <-ctx.Done():
			t.Fatal("server never registered the connection")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return conn, ctx
}

// answer reads one command and replies with fn's result under the same id.
func answer(t *testing.T, ctx context.Context, conn *websocket.Conn, fn func(OutgoingMsg) map[string]any) <-chan OutgoingMsg {
	got := make(chan OutgoingMsg, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd OutgoingMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		got <- cmd
		resp := fn(cmd)
		if resp == nil {
			return
		}
		resp["id"] = cmd.ID
		out, _ := json.Marshal(resp)
		conn.Write(ctx, websocket.MessageText, out)
	}()
	return got
}

func TestServerForwardsEvents(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	data, _ := json.Marshal(map[string]any{"type": TypeTabRemoved, "tabId": 12})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-srv.Messages():
		if msg.Type != TypeTabRemoved || msg.TabID != 12 {
			t.Errorf("got %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestGroupTabsRoundTrip(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	cmds := answer(t, ctx, conn, func(OutgoingMsg) map[string]any {
		return map[string]any{"ok": true, "groupId": 55}
	})

	groupID, err := srv.GroupTabs(ctx, []int{1, 2}, -1)
	if err != nil {
		t.Fatal(err)
	}
	if groupID != 55 {
		t.Errorf("groupID = %d, want 55", groupID)
	}
	cmd := <-cmds
	if cmd.Action != "groupTabs" || cmd.GroupID != 0 || len(cmd.TabIDs) != 2 {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.ID == "" {
		t.Error("command has no id")
	}
}

func TestGetTabRoundTrip(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	answer(t, ctx, conn, func(cmd OutgoingMsg) map[string]any {
		return map[string]any{"ok": true, "tab": map[string]any{"id": cmd.TabID, "url": "https://a/", "groupId": 3}}
	})

	tab, err := srv.GetTab(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if tab.ID != 4 || tab.GroupID != 3 {
		t.Errorf("tab = %+v", tab)
	}
}

func TestErrorReply(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	answer(t, ctx, conn, func(OutgoingMsg) map[string]any {
		return map[string]any{"ok": false, "error": "No tab with id: 4."}
	})

	err := srv.RemoveTab(ctx, 4)
	var apiErr *browser.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Action != "removeTab" {
		t.Errorf("action = %q", apiErr.Action)
	}
	if !browser.IsGone(err) {
		t.Error("expected gone classification")
	}
}

func TestAskGroupNameCancel(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	cmds := answer(t, ctx, conn, func(OutgoingMsg) map[string]any {
		return map[string]any{"ok": true, "name": nil}
	})

	name, err := srv.AskGroupName(ctx, 8, "Docs")
	if err != nil {
		t.Fatal(err)
	}
	if name != nil {
		t.Errorf("name = %q, want nil", *name)
	}
	if cmd := <-cmds; cmd.Name != "Docs" || cmd.TabID != 8 {
		t.Errorf("command = %+v", cmd)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := New(0)
	srv.SetTimeouts(50*time.Millisecond, 50*time.Millisecond)
	conn, ctx := dial(t, srv)

	answer(t, ctx, conn, func(OutgoingMsg) map[string]any { return nil })

	err := srv.ReloadTab(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if !browser.IsCanceled(err) {
		t.Error("expected canceled classification")
	}
}

func TestNotConnected(t *testing.T) {
	srv := New(0)
	err := srv.ActivateTab(context.Background(), 1)
	if !errors.Is(err, browser.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectFailsPending(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	answer(t, ctx, conn, func(OutgoingMsg) map[string]any {
		conn.Close(websocket.StatusNormalClosure, "bye")
		return nil
	})

	err := srv.FocusWindow(ctx, 1)
	if !errors.Is(err, browser.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestHealthAndStats(t *testing.T) {
	srv := New(0)
	srv.SetStatsFunc(func() (map[string]int, error) {
		return map[string]int{"tabGroupsCreatedCount": 3}, nil
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]any
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health["ok"] != true || health["connected"] != false {
		t.Errorf("health = %v", health)
	}

	resp, err = http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var counters map[string]int
	json.NewDecoder(resp.Body).Decode(&counters)
	resp.Body.Close()
	if counters["tabGroupsCreatedCount"] != 3 {
		t.Errorf("counters = %v", counters)
	}
}
