package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/keylock"
	"github.com/lotas/tabgruppen/internal/rules"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/stats"
	"github.com/lotas/tabgruppen/internal/types"
	"github.com/lotas/tabgruppen/internal/urlutil"
)

// Outcome tells what Process did with an event.
type Outcome int

const (
	SkippedInternal Outcome = iota
	SkippedDebounced
	SkippedDisabled
	SkippedGuard
	NoMatch
	Deduplicated
)

var outcomeNames = []string{"skipped-internal", "skipped-debounced", "skipped-disabled", "skipped-guard", "no-match", "deduplicated"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Event is a tab whose URL changed or finished loading.
type Event struct {
	TabID    int
	URL      string
	WindowID int
}

// Engine closes tabs that navigate to a page already open in another tab of
// the same window, bringing the existing tab to the front instead.
type Engine struct {
	browser   browser.API
	settings  settings.Source
	recorder  stats.Recorder
	guard     *Guard
	processed *ProcessedCache
	windows   *keylock.Map
	now       func() time.Time
}

// NewEngine wires an Engine. The guard and cache are shared with the rest of
// the background process.
func NewEngine(api browser.API, src settings.Source, rec stats.Recorder, guard *Guard, processed *ProcessedCache) *Engine {
	return &Engine{
		browser:   api,
		settings:  src,
		recorder:  rec,
		guard:     guard,
		processed: processed,
		windows:   keylock.New(),
		now:       time.Now,
	}
}

// Process handles one URL-settle event. Failures of the best-effort steps
// (activate, focus, reload) are logged; the returned error is only set when
// the sibling lookup or the removal of the duplicate fails.
func (e *Engine) Process(ctx context.Context, ev Event) (Outcome, error) {
	if urlutil.IsInternal(ev.URL) {
		return SkippedInternal, nil
	}
	if e.processed.Seen(ev.TabID, ev.URL) {
		return SkippedDebounced, nil
	}

	cfg := e.settings.Current()
	rule, hasRule := rules.FirstMatch(cfg.DomainRules, ev.URL)
	enabled := cfg.GlobalDeduplicationEnabled
	if hasRule {
		enabled = rule.DeduplicationEnabled
	}
	if !enabled {
		return SkippedDisabled, nil
	}
	if e.guard.ShouldSkip(ev.URL) {
		applog.Debug("dedup.skip.guard", "tab", ev.TabID, "url", ev.URL)
		return SkippedGuard, nil
	}

	mode := types.MatchExact
	if hasRule {
		mode = rule.DeduplicationMatchMode.Normalize()
	}

	// The window stays locked from the sibling lookup to the removal, so two
	// tabs settling on one page cannot each close the other.
	unlock := e.windows.Lock(ev.WindowID)
	defer unlock()

	siblings, err := e.browser.QueryTabs(ctx, ev.WindowID)
	if err != nil {
		return NoMatch, fmt.Errorf("query window %d: %w", ev.WindowID, err)
	}
	if stale(siblings, ev) {
		applog.Debug("dedup.skip.stale", "tab", ev.TabID, "url", ev.URL)
		return NoMatch, nil
	}
	survivor := findMatch(siblings, ev, mode)
	if survivor == nil {
		return NoMatch, nil
	}

	applog.Info("dedup.match", "tab", ev.TabID, "survivor", survivor.ID, "mode", string(mode), "url", ev.URL)
	if err := e.recorder.Increment(types.CounterTabsDeduplicated); err != nil {
		applog.Error("dedup.stats", err)
	}

	if err := e.browser.ActivateTab(ctx, survivor.ID); err != nil {
		browser.Report("dedup.activate", err, "tab", survivor.ID)
	}
	if err := e.browser.FocusWindow(ctx, survivor.WindowID); err != nil {
		browser.Report("dedup.focus", err, "tab", survivor.ID)
	}
	if err := e.browser.ReloadTab(ctx, survivor.ID); err != nil {
		browser.Report("dedup.reload", err, "tab", survivor.ID)
	}
	if err := e.browser.RemoveTab(ctx, ev.TabID); err != nil {
		return Deduplicated, fmt.Errorf("remove duplicate tab %d: %w", ev.TabID, err)
	}

	if err := e.recorder.RecordAction(stats.Action{
		Kind:   stats.KindDeduplicated,
		Detail: ev.URL,
		At:     e.now(),
	}); err != nil {
		applog.Error("dedup.history", err)
	}
	if cfg.ShowNotifications {
		n := browser.Notification{
			Title:   "Duplicate tab closed",
			Message: ev.URL,
			Undo:    &browser.UndoAction{Type: browser.UndoReopenTab, URL: ev.URL, WindowID: ev.WindowID},
		}
		if err := e.browser.Notify(ctx, n); err != nil {
			browser.Report("dedup.notify", err, "tab", ev.TabID)
		}
	}
	return Deduplicated, nil
}

// stale reports whether the event's tab is gone from the window or has
// already moved on to another URL.
func stale(tabs []*types.Tab, ev Event) bool {
	for _, t := range tabs {
		if t.ID == ev.TabID {
			return t.URL != "" && t.URL != ev.URL
		}
	}
	return true
}

// findMatch returns the first other tab of the window showing the same page.
func findMatch(tabs []*types.Tab, ev Event, mode types.MatchMode) *types.Tab {
	for _, t := range tabs {
		if t.ID == ev.TabID || t.WindowID != ev.WindowID {
			continue
		}
		if urlutil.IsInternal(t.URL) {
			continue
		}
		if Matches(mode, ev.URL, t.URL) {
			return t
		}
	}
	return nil
}
