// Package stats records counters and the history of grouping and
// deduplication actions.
package stats

import (
	"sync"
	"time"
)

// Action kinds.
const (
	KindGroupCreated = "group.created"
	KindGroupJoined  = "group.joined"
	KindGroupRenamed = "group.renamed"
	KindGroupUngroup = "group.ungrouped"
	KindDeduplicated = "tab.deduplicated"
	KindUndoReopen   = "undo.reopen"
	KindUndoUngroup  = "undo.ungroup"
)

// Action is one thing the engine did to the user's tabs.
type Action struct {
	Kind   string
	Detail string
	At     time.Time
}

// Recorder persists counters and actions.
type Recorder interface {
	Increment(name string) error
	RecordAction(a Action) error
}

// Memory is an in-memory Recorder.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int
	actions  []Action
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int)}
}

// Increment implements Recorder.
func (m *Memory) Increment(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return nil
}

// RecordAction implements Recorder.
func (m *Memory) RecordAction(a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

// Count returns the value of a counter.
func (m *Memory) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Actions returns the recorded actions, oldest first.
func (m *Memory) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Action(nil), m.actions...)
}

// Event is sent on a Feed for every counter change or action.
type Event struct {
	Counter string // set for increments
	Action  *Action
}

// Feed is a Recorder that forwards everything to a channel, dropping events
// when the reader falls behind.
type Feed struct {
	ch chan Event
}

// NewFeed creates a Feed with the given buffer size.
func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan Event, size)}
}

// Events returns the channel events are delivered on.
func (f *Feed) Events() <-chan Event {
	return f.ch
}

// Increment implements Recorder.
func (f *Feed) Increment(name string) error {
	select {
	case f.ch <- Event{Counter: name}:
	default:
	}
	return nil
}

// RecordAction implements Recorder.
func (f *Feed) RecordAction(a Action) error {
	select {
	case f.ch <- Event{Action: &a}:
	default:
	}
	return nil
}

type multi []Recorder

// Multi fans out to several recorders. The first error is returned after
// every recorder has been called.
func Multi(recorders ...Recorder) Recorder {
	var out multi
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Increment(name string) error {
	var first error
	for _, r := range m {
		if err := r.Increment(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multi) RecordAction(a Action) error {
	var first error
	for _, r := range m {
		if err := r.RecordAction(a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
