package grouping

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotas/tabgruppen/internal/types"
	"github.com/lotas/tabgruppen/internal/urlutil"
)

// State is the phase a grouping session is in.
type State int

const (
	AwaitingCorrelation State = iota
	AwaitingStableURL
	Deciding
	CreatingGroup
	JoiningGroup
	ManualNaming
	Done
	Aborted
)

var stateNames = []string{
	"awaiting-correlation",
	"awaiting-stable-url",
	"deciding",
	"creating-group",
	"joining-group",
	"manual-naming",
	"done",
	"aborted",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session follows one newly opened tab from creation until it has been
// grouped with its opener, or until the attempt is given up.
//
// The opener is looked up while the session already listens for updates,
// so a navigation that settles before the lookup returns is not lost: the
// session only moves to Deciding once both the opener and a stable URL are known.
type Session struct {
	ctx      context.Context
	openerID int
	newTabID int

	mu              sync.Mutex
	state           State
	hasProcessedTab bool
	stableURL       string
	groupName       string
	groupColor      string
	groupID         int
	createdGroup    bool
	groupedTabIDs   []int
	abortReason     string
	disposers       []func()
}

func newSession(ctx context.Context, openerID, newTabID int) *Session {
	return &Session{
		ctx:      ctx,
		openerID: openerID,
		newTabID: newTabID,
		state:    AwaitingCorrelation,
		groupID:  types.NoGroup,
	}
}

// NewTabID returns the id of the tab being grouped.
func (s *Session) NewTabID() int { return s.newTabID }

// OpenerID returns the id of the tab the new tab was opened from.
func (s *Session) OpenerID() int { return s.openerID }

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasProcessedTab reports whether a stable URL has been accepted.
func (s *Session) HasProcessedTab() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasProcessedTab
}

// GroupName returns the name the group was given, or the placeholder.
func (s *Session) GroupName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupName
}

// GroupColor returns the color picked for a new group, or "".
func (s *Session) GroupColor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupColor
}

// StableURL returns the URL the new tab settled on, or "".
func (s *Session) StableURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stableURL
}

// CreatedGroup reports whether the session created a new group rather than
// joining the opener's.
func (s *Session) CreatedGroup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdGroup
}

// GroupID returns the group the tabs were put in, or types.NoGroup.
func (s *Session) GroupID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// GroupedTabIDs returns the tabs this session added to a group.
func (s *Session) GroupedTabIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.groupedTabIDs...)
}

// AbortReason returns why the session was aborted, if it was.
func (s *Session) AbortReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortReason
}

// HandleTabUpdate feeds an update event of the new tab into the session. It
// returns true exactly once: when the event settles the tab on a real URL and
// the opener is already known, meaning the caller should start deciding.
// Events for other tabs, unfinished loads and browser placeholder pages are ignored.
func (s *Session) HandleTabUpdate(u types.TabUpdate) bool {
	if u.TabID != s.newTabID {
		return false
	}
	if u.CurrentStatus() != types.StatusComplete {
		return false
	}
	url := u.CurrentURL()
	if !urlutil.IsNavigable(url) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasProcessedTab || (s.state != AwaitingCorrelation && s.state != AwaitingStableURL) {
		return false
	}
	s.hasProcessedTab = true
	s.stableURL = url
	s.disposeLocked()
	if s.state == AwaitingStableURL {
		s.state = Deciding
		return true
	}
	return false
}

// openerResolved marks the opener as found. It returns true when a stable
// URL was already seen and the session moved to Deciding.
func (s *Session) openerResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AwaitingCorrelation {
		return false
	}
	if s.hasProcessedTab {
		s.state = Deciding
		return true
	}
	s.state = AwaitingStableURL
	return false
}

// abort moves the session to Aborted unless it already finished.
// It returns false if the session was already done or aborted.
func (s *Session) abort(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Done || s.state == Aborted {
		return false
	}
	s.state = Aborted
	s.abortReason = reason
	s.disposeLocked()
	return true
}

// advance moves from one working state to the next. It fails if the
// session was aborted in the meantime, e.g. because the tab was closed.
func (s *Session) advance(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setDecision(name, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupName = name
	s.groupColor = color
}

func (s *Session) setGrouped(groupID int, tabIDs []int, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupID = groupID
	s.groupedTabIDs = append([]int(nil), tabIDs...)
	s.createdGroup = created
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupName = name
}

func (s *Session) addDisposer(d func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Done || s.state == Aborted || s.hasProcessedTab {
		d()
		return
	}
	s.disposers = append(s.disposers, d)
}

func (s *Session) disposeLocked() {
	for _, d := range s.disposers {
		d()
	}
	s.disposers = nil
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Aborted {
		s.state = Done
	}
	s.disposeLocked()
}
