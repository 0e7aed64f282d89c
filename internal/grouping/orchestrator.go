// Package grouping puts tabs opened by middle-click into a tab group
// together with the tab they were opened from.
package grouping

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/browser"
	"github.com/lotas/tabgruppen/internal/correlate"
	"github.com/lotas/tabgruppen/internal/events"
	"github.com/lotas/tabgruppen/internal/keylock"
	"github.com/lotas/tabgruppen/internal/rules"
	"github.com/lotas/tabgruppen/internal/settings"
	"github.com/lotas/tabgruppen/internal/stats"
	"github.com/lotas/tabgruppen/internal/types"
)

// Orchestrator runs one Session per correlated new tab.
type Orchestrator struct {
	browser  browser.API
	bus      *events.Bus
	openers  *correlate.Map
	settings settings.Source
	recorder stats.Recorder
	locks    *keylock.Map // per opener, so siblings cannot both create a group
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int]*Session
	wg       sync.WaitGroup
}

// New wires an Orchestrator.
func New(api browser.API, bus *events.Bus, openers *correlate.Map, src settings.Source, rec stats.Recorder) *Orchestrator {
	return &Orchestrator{
		browser:  api,
		bus:      bus,
		openers:  openers,
		settings: src,
		recorder: rec,
		locks:    keylock.New(),
		now:      time.Now,
		sessions: make(map[int]*Session),
	}
}

// HandleTabCreated starts a session for tab if it was opened from a
// registered middle-click. It subscribes to the tab's events before
// returning, so it must be called in event order; the opener lookup and all
// later browser calls run on background goroutines. It returns nil when the
// tab is not correlated.
func (o *Orchestrator) HandleTabCreated(ctx context.Context, tab *types.Tab) *Session {
	if tab == nil || tab.OpenerTabID == 0 {
		return nil
	}
	openerID, ok := o.openers.Consume(tab.EffectiveURL(), tab.OpenerTabID)
	if !ok {
		applog.Debug("grouping.uncorrelated", "tab", tab.ID, "opener", tab.OpenerTabID)
		return nil
	}

	s := newSession(ctx, openerID, tab.ID)
	o.track(s)
	applog.Debug("grouping.session.start", "tab", tab.ID, "opener", openerID)

	s.addDisposer(o.bus.SubscribeUpdates(tab.ID, func(u types.TabUpdate) {
		if s.HandleTabUpdate(u) {
			o.spawn(s, func() error { return o.decide(s) })
		}
	}))
	s.addDisposer(o.bus.SubscribeRemoval(tab.ID, func() {
		if s.abort("tab closed") {
			applog.Debug("grouping.session.closed", "tab", tab.ID)
		}
		o.forget(s)
	}))

	// A tab restored from cache can already be complete when it is created.
	s.HandleTabUpdate(types.TabUpdate{TabID: tab.ID, Tab: tab})

	o.spawn(s, func() error { return o.resolveOpener(s) })
	return s
}

// ActiveSessions returns the number of sessions that have not finished.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// Wait blocks until every background step started so far has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) track(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[s.newTabID] = s
}

func (o *Orchestrator) forget(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions[s.newTabID] == s {
		delete(o.sessions, s.newTabID)
	}
}

func (o *Orchestrator) spawn(s *Session, fn func() error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				applog.Error("grouping.panic", fmt.Errorf("%v", r), "tab", s.newTabID, "stack", string(debug.Stack()))
				s.abort("panic")
				o.forget(s)
			}
		}()
		if err := fn(); err != nil {
			s.abort(err.Error())
			o.forget(s)
			browser.Report("grouping.failed", err, "tab", s.newTabID, "opener", s.openerID)
		}
	}()
}

// resolveOpener checks that the opener still exists. If the new tab already
// settled on its URL meanwhile, deciding starts right away.
func (o *Orchestrator) resolveOpener(s *Session) error {
	if _, err := o.browser.GetTab(s.ctx, s.openerID); err != nil {
		return fmt.Errorf("get opener %d: %w", s.openerID, err)
	}
	if s.openerResolved() {
		return o.decide(s)
	}
	return nil
}

func (o *Orchestrator) decide(s *Session) error {
	if s.State() != Deciding {
		return nil
	}
	ctx := s.ctx
	cfg := o.settings.Current()
	if !cfg.GlobalGroupingEnabled {
		o.stop(s, "grouping disabled")
		return nil
	}

	unlock := o.locks.Lock(s.openerID)
	opener, err := o.browser.GetTab(ctx, s.openerID)
	if err != nil {
		unlock()
		return fmt.Errorf("get opener %d: %w", s.openerID, err)
	}
	rule, ok := rules.FirstMatch(cfg.DomainRules, opener.URL)
	if !ok || !rule.GroupingEnabled {
		unlock()
		o.stop(s, "no grouping rule")
		return nil
	}

	name := rules.ResolveGroupName(rule, opener.Title, opener.URL)
	color := ""
	if lg, ok := cfg.LogicalGroupByID(rule.GroupID); ok && types.ValidColor(lg.Color) {
		color = lg.Color
	}
	s.setDecision(name, color)

	if opener.Grouped() {
		err = o.join(s, opener, rule)
	} else {
		err = o.create(s, opener, rule, cfg.ShowNotifications)
	}
	unlock()
	if err != nil {
		return err
	}

	if rule.GroupNameSource.Normalize() == types.NameFromManual {
		o.askName(s)
	}
	s.finish()
	o.forget(s)
	return nil
}

func (o *Orchestrator) create(s *Session, opener *types.Tab, rule *types.DomainRule, notify bool) error {
	if !s.advance(Deciding, CreatingGroup) {
		return nil
	}
	ctx := s.ctx
	tabIDs := []int{opener.ID, s.newTabID}
	groupID, err := o.browser.GroupTabs(ctx, tabIDs, types.NoGroup)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	s.setGrouped(groupID, tabIDs, true)

	name := s.GroupName()
	upd := browser.GroupUpdate{Title: browser.StringPtr(name), Collapsed: browser.BoolPtr(rule.CollapseNew)}
	if color := s.GroupColor(); color != "" {
		upd.Color = browser.StringPtr(color)
	}
	if err := o.browser.UpdateGroup(ctx, groupID, upd); err != nil {
		return fmt.Errorf("update group %d: %w", groupID, err)
	}

	if err := o.recorder.Increment(types.CounterGroupsCreated); err != nil {
		applog.Error("grouping.stats", err)
	}
	o.record(stats.KindGroupCreated, name)
	applog.Info("group.created", "group", groupID, "name", name, "opener", opener.ID, "tab", s.newTabID, "url", s.StableURL())

	if notify {
		n := browser.Notification{
			Title:   "Tabs grouped",
			Message: name,
			Undo:    &browser.UndoAction{Type: browser.UndoUngroup, TabIDs: tabIDs},
		}
		browser.Report("grouping.notify", o.browser.Notify(ctx, n), "group", groupID)
	}
	return nil
}

func (o *Orchestrator) join(s *Session, opener *types.Tab, rule *types.DomainRule) error {
	if !s.advance(Deciding, JoiningGroup) {
		return nil
	}
	ctx := s.ctx
	groupID, err := o.browser.GroupTabs(ctx, []int{s.newTabID}, opener.GroupID)
	if err != nil {
		return fmt.Errorf("join group %d: %w", opener.GroupID, err)
	}
	s.setGrouped(groupID, []int{s.newTabID}, false)

	upd := browser.GroupUpdate{Collapsed: browser.BoolPtr(rule.CollapseExisting)}
	if err := o.browser.UpdateGroup(ctx, groupID, upd); err != nil {
		return fmt.Errorf("update group %d: %w", groupID, err)
	}
	o.record(stats.KindGroupJoined, s.GroupName())
	applog.Info("group.joined", "group", groupID, "opener", opener.ID, "tab", s.newTabID, "url", s.StableURL())
	return nil
}

// askName lets the user rename the group. Cancelling undoes the grouping
// of this session; a failed prompt keeps the group as it is.
func (o *Orchestrator) askName(s *Session) {
	from := CreatingGroup
	if s.State() == JoiningGroup {
		from = JoiningGroup
	}
	if !s.advance(from, ManualNaming) {
		return
	}
	ctx := s.ctx
	current := s.GroupName()
	groupID := s.GroupID()

	answer, err := o.browser.AskGroupName(ctx, s.newTabID, current)
	if err != nil {
		browser.Report("grouping.ask", err, "tab", s.newTabID)
		return
	}
	if answer == nil {
		ids := s.GroupedTabIDs()
		if err := o.browser.UngroupTabs(ctx, ids); err != nil {
			browser.Report("grouping.ungroup", err, "group", groupID)
			return
		}
		o.record(stats.KindGroupUngroup, current)
		applog.Info("group.cancelled", "group", groupID, "tabs", len(ids))
		return
	}
	name := strings.TrimSpace(*answer)
	if name == "" || name == current {
		return
	}
	if err := o.browser.UpdateGroup(ctx, groupID, browser.GroupUpdate{Title: browser.StringPtr(name)}); err != nil {
		browser.Report("grouping.rename", err, "group", groupID)
		return
	}
	s.setName(name)
	o.record(stats.KindGroupRenamed, name)
	applog.Info("group.renamed", "group", groupID, "name", name)
}

func (o *Orchestrator) stop(s *Session, reason string) {
	s.abort(reason)
	o.forget(s)
	applog.Debug("grouping.skip", "tab", s.newTabID, "reason", reason)
}

func (o *Orchestrator) record(kind, detail string) {
	if err := o.recorder.RecordAction(stats.Action{Kind: kind, Detail: detail, At: o.now()}); err != nil {
		applog.Error("grouping.history", err)
	}
}
