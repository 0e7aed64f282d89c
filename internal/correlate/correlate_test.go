package correlate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeExactMatch(t *testing.T) {
	m := New()
	m.Register("https://example.com/a", 7)
	m.Register("https://example.com/b", 7)

	opener, ok := m.Consume("https://example.com/b", 7)
	require.True(t, ok)
	assert.Equal(t, 7, opener)
	assert.Equal(t, 1, m.Len())

	// The remaining entry is still claimable by exact URL.
	opener, ok = m.Consume("https://example.com/a", 7)
	require.True(t, ok)
	assert.Equal(t, 7, opener)
	assert.Equal(t, 0, m.Len())
}

func TestConsumeFallbackByOpener(t *testing.T) {
	m := New()
	m.Register("https://short.link/x", 3)
	m.Register("https://other.org/", 9)

	opener, ok := m.Consume("https://expanded.example.com/x", 3)
	require.True(t, ok)
	assert.Equal(t, 3, opener)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Consume("https://expanded.example.com/x", 3)
	assert.False(t, ok, "entry must be consumed only once")
}

func TestConsumeNoMatch(t *testing.T) {
	m := New()
	m.Register("https://example.com/a", 1)
	_, ok := m.Consume("https://example.com/a", 2)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestRegisterLastWriteWins(t *testing.T) {
	m := New()
	m.Register("https://example.com/a", 1)
	m.Register("https://example.com/a", 2)
	assert.Equal(t, 1, m.Len())

	_, ok := m.Consume("https://example.com/a", 1)
	assert.False(t, ok)
	opener, ok := m.Consume("https://example.com/a", 2)
	require.True(t, ok)
	assert.Equal(t, 2, opener)
}

func TestConcurrentRegisterConsume(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.Register("https://example.com/", id)
			m.Consume("https://example.com/", id)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 1)
}
