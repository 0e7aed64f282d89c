// Package events routes per-tab browser events to the handlers that
// subscribed for that tab.
package events

import (
	"sync"

	"github.com/lotas/tabgruppen/internal/types"
)

type updateSub struct {
	id int
	fn func(types.TabUpdate)
}

type removalSub struct {
	id int
	fn func()
}

// Bus delivers tab updates and removals to per-tab subscribers. Handlers run
// synchronously on the publishing goroutine, so updates for one tab reach a
// subscriber in the order they were published.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	updates  map[int][]updateSub
	removals map[int][]removalSub
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		updates:  make(map[int][]updateSub),
		removals: make(map[int][]removalSub),
	}
}

// SubscribeUpdates calls fn for every update of tabID until the returned
// dispose func is called. Dispose is idempotent and safe to call from fn.
func (b *Bus) SubscribeUpdates(tabID int, fn func(types.TabUpdate)) (dispose func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.updates[tabID] = append(b.updates[tabID], updateSub{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.updates[tabID]
			for i, s := range subs {
				if s.id == id {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.updates, tabID)
			} else {
				b.updates[tabID] = subs
			}
		})
	}
}

// SubscribeRemoval calls fn once tabID is closed, unless disposed first.
func (b *Bus) SubscribeRemoval(tabID int, fn func()) (dispose func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.removals[tabID] = append(b.removals[tabID], removalSub{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.removals[tabID]
			for i, s := range subs {
				if s.id == id {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(b.removals, tabID)
			} else {
				b.removals[tabID] = subs
			}
		})
	}
}

// PublishUpdate delivers u to the subscribers of u.TabID.
func (b *Bus) PublishUpdate(u types.TabUpdate) {
	b.mu.Lock()
	subs := append([]updateSub(nil), b.updates[u.TabID]...)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(u)
	}
}

// PublishRemoval notifies the removal subscribers of tabID and drops every
// subscription for it.
func (b *Bus) PublishRemoval(tabID int) {
	b.mu.Lock()
	subs := b.removals[tabID]
	delete(b.removals, tabID)
	delete(b.updates, tabID)
	b.mu.Unlock()
	for _, s := range subs {
		s.fn()
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.updates {
		n += len(subs)
	}
	for _, subs := range b.removals {
		n += len(subs)
	}
	return n
}
