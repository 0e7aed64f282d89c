// Package background wires the engine components together and routes
// extension events to them.
package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/correlate"
	"github.com/lotas/tabgruppen/internal/dedup"
	"github.com/lotas/tabgruppen/internal/events"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/stats"
	"github.com/lotas/tabgruppen/internal/types"
)

// SweepInterval is how often expired debounce entries are dropped.
const SweepInterval = time.Minute

// Context owns the engine state shared by all event handlers.
type Context struct {
	Browser   browser.API
	Settings  settings.Source
	Recorder  stats.Recorder
	Bus       *events.Bus
	Openers   *correlate.Map
	Guard     *dedup.Guard
	Processed *dedup.ProcessedCache
	Grouping  *grouping.Orchestrator
	Dedup     *dedup.Engine

	now func() time.Time
	wg  sync.WaitGroup
}

// New builds a Context with fresh engine state.
func New(api browser.API, src settings.Source, rec stats.Recorder) *Context {
	c := &Context{
		Browser:   api,
		Settings:  src,
		Recorder:  rec,
		Bus:       events.NewBus(),
		Openers:   correlate.New(),
		Guard:     dedup.NewGuard(),
		Processed: dedup.NewProcessedCache(),
		now:       time.Now,
	}
	c.Grouping = grouping.New(api, c.Bus, c.Openers, src, rec)
	c.Dedup = dedup.NewEngine(api, src, rec, c.Guard, c.Processed)
	return c
}

// Run consumes events until ctx is done or msgs is closed.
func (c *Context) Run(ctx context.Context, msgs <-chan server.IncomingMsg) error {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Wait()
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.Wait()
				return nil
			}
			c.Dispatch(ctx, msg)
		case <-ticker.C:
			if n := c.Processed.Sweep(); n > 0 {
				applog.Debug("dedup.sweep", "removed", n)
			}
		}
	}
}

// Dispatch routes one event. Work that calls into the browser runs on its
// own goroutine; subscription bookkeeping happens before Dispatch returns,
// so events for one tab are observed in the order they arrive.
func (c *Context) Dispatch(ctx context.Context, msg server.IncomingMsg) {
	defer func() {
		if r := recover(); r != nil {
			applog.Error("dispatch.panic", fmt.Errorf("%v", r), "type", msg.Type, "stack", string(debug.Stack()))
		}
	}()

	switch msg.Type {
	case server.TypeLinkMiddleClick:
		if msg.URL == "" || msg.TabID == 0 {
			applog.Warn("link.middleClick.invalid", "tab", msg.TabID)
			return
		}
		c.Openers.Register(msg.URL, msg.TabID)
		applog.Debug("link.middleClick", "tab", msg.TabID, "url", msg.URL)

	case server.TypeTabCreated:
		tab, err := server.ParseTab(msg.Tab)
		if err != nil {
			applog.Error("tab.created.parse", err)
			return
		}
		c.Grouping.HandleTabCreated(ctx, tab)

	case server.TypeTabUpdated:
		u, err := server.ParseUpdate(msg)
		if err != nil {
			applog.Error("tab.updated.parse", err)
			return
		}
		c.Bus.PublishUpdate(u)
		if u.URL != "" || u.Status == types.StatusComplete {
			c.goDedup(ctx, u)
		}

	case server.TypeTabRemoved:
		c.Bus.PublishRemoval(msg.TabID)
		c.Processed.Forget(msg.TabID)

	case server.TypeUndo:
		a, err := server.ParseUndo(msg)
		if err != nil {
			applog.Error("undo.parse", err)
			return
		}
		c.goSafe("undo", func() error { return c.Undo(ctx, a) })

	case server.TypeExtensionStarted:
		applog.Info("extension.hello", "version", msg.Version)

	default:
		applog.Debug("event.unknown", "type", msg.Type)
	}
}

func (c *Context) goDedup(ctx context.Context, u types.TabUpdate) {
	c.goSafe("dedup", func() error {
		url := u.CurrentURL()
		windowID := 0
		if u.Tab != nil {
			windowID = u.Tab.WindowID
		} else {
			tab, err := c.Browser.GetTab(ctx, u.TabID)
			if err != nil {
				return fmt.Errorf("get tab %d: %w", u.TabID, err)
			}
			windowID = tab.WindowID
			if url == "" {
				url = tab.URL
			}
		}
		out, err := c.Dedup.Process(ctx, dedup.Event{TabID: u.TabID, URL: url, WindowID: windowID})
		if out == dedup.Deduplicated {
			applog.Info("tab.deduplicated", "tab", u.TabID, "url", url)
		}
		return err
	})
}

// Undo reverts a grouping or deduplication the user asked to undo from a
// notification.
func (c *Context) Undo(ctx context.Context, a browser.UndoAction) error {
	switch a.Type {
	case browser.UndoUngroup:
		if len(a.TabIDs) == 0 {
			return nil
		}
		if err := c.Browser.UngroupTabs(ctx, a.TabIDs); err != nil {
			return fmt.Errorf("undo ungroup: %w", err)
		}
		c.record(stats.KindUndoUngroup, fmt.Sprint(a.TabIDs))
	case browser.UndoReopenTab:
		if a.URL == "" {
			return nil
		}
		// The reopened tab would otherwise be closed again as a duplicate.
		c.Guard.Mark(a.URL)
		if _, err := c.Browser.CreateTab(ctx, a.URL, a.WindowID); err != nil {
			return fmt.Errorf("undo reopen: %w", err)
		}
		c.record(stats.KindUndoReopen, a.URL)
	default:
		return fmt.Errorf("undo: unknown type %q", a.Type)
	}
	applog.Info("undo", "type", a.Type)
	return nil
}

// Wait blocks until all handler goroutines have returned.
func (c *Context) Wait() {
	c.wg.Wait()
	c.Grouping.Wait()
}

func (c *Context) goSafe(name string, fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				applog.Error(name+".panic", fmt.Errorf("%v", r), "stack", string(debug.Stack()))
			}
		}()
		browser.Report(name, fn())
	}()
}

func (c *Context) record(kind, detail string) {
	if err := c.Recorder.RecordAction(stats.Action{Kind: kind, Detail: detail, At: c.now()}); err != nil {
		applog.Error("history", err)
	}
}
