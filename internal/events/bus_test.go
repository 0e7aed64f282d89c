package events

import (
	"testing"

	"github.com/lotas/tabgruppen/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestUpdatesAreScopedAndOrdered(t *testing.T) {
	b := NewBus()
	var got []string
	dispose := b.SubscribeUpdates(1, func(u types.TabUpdate) { got = append(got, u.URL) })
	defer dispose()

	b.PublishUpdate(types.TabUpdate{TabID: 2, URL: "https://other/"})
	b.PublishUpdate(types.TabUpdate{TabID: 1, URL: "https://a/"})
	b.PublishUpdate(types.TabUpdate{TabID: 1, URL: "https://b/"})

	assert.Equal(t, []string{"https://a/", "https://b/"}, got)
}

func TestDisposeFromHandler(t *testing.T) {
	b := NewBus()
	calls := 0
	var dispose func()
	dispose = b.SubscribeUpdates(1, func(types.TabUpdate) {
		calls++
		dispose()
	})

	b.PublishUpdate(types.TabUpdate{TabID: 1})
	b.PublishUpdate(types.TabUpdate{TabID: 1})
	dispose()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Len())
}

func TestRemovalClearsSubscriptions(t *testing.T) {
	b := NewBus()
	removed := 0
	b.SubscribeUpdates(5, func(types.TabUpdate) {})
	b.SubscribeRemoval(5, func() { removed++ })
	other := b.SubscribeRemoval(6, func() { removed += 10 })
	assert.Equal(t, 3, b.Len())

	b.PublishRemoval(5)
	b.PublishRemoval(5)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, b.Len())

	other()
	assert.Equal(t, 0, b.Len())
}
