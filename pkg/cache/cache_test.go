package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.cur = f.cur.Add(d)
	f.mu.Unlock()
}

func TestCache_GetAfterSet(t *testing.T) {
	c := New[string]()
	c.Set("quote:AAPL", "payload", time.Minute)

	got, ok := c.Get("quote:AAPL")
	require.True(t, ok)
	assert.Equal(t, "payload", got)
}

func TestCache_MissingKey(t *testing.T) {
	c := New[int]()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCache_ExpiryTreatedAsAbsent(t *testing.T) {
	clock := newFakeClock()
	c := New[string]()
	c.now = clock.now

	c.Set("quote:MSFT", "v1", 30*time.Second)

	clock.advance(29 * time.Second)
	_, ok := c.Get("quote:MSFT")
	assert.True(t, ok, "entry within TTL must be returned")

	clock.advance(time.Second)
	_, ok = c.Get("quote:MSFT")
	assert.False(t, ok, "entry at TTL boundary must be absent")

	// lazy eviction removed the entry
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetOverwrites(t *testing.T) {
	clock := newFakeClock()
	c := New[string]()
	c.now = clock.now

	c.Set("k", "old", time.Second)
	clock.advance(10 * time.Second)
	c.Set("k", "new", time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_Sweep(t *testing.T) {
	clock := newFakeClock()
	c := New[int]()
	c.now = clock.now

	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Hour)
	clock.advance(time.Minute)

	c.Sweep()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestCache_SweepNotRequiredForCorrectness(t *testing.T) {
	clock := newFakeClock()
	c := New[int]()
	c.now = clock.now

	c.Set("a", 1, time.Second)
	clock.advance(time.Hour)

	// no sweep: Get must still treat the entry as absent
	_, ok := c.Get("a")
	assert.False(t, ok)
}
