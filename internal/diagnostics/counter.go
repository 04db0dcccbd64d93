package diagnostics

import (
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ItemCounter counts occurrences per label. Increments are lock-free and
// may run concurrently with reads; readers see a weakly consistent view,
// which is fine for statistical sampling. On a quiesced counter,
// Total() == sum of Get over all keys.
type ItemCounter struct {
	counts cmap.ConcurrentMap[string, *atomic.Int64]
}

// NewItemCounter creates an empty counter.
func NewItemCounter() *ItemCounter {
	return &ItemCounter{counts: cmap.New[*atomic.Int64]()}
}

// Inc adds one to the count for key.
func (c *ItemCounter) Inc(key string) {
	c.Add(key, 1)
}

// Add adds delta to the count for key, creating it at zero if absent.
func (c *ItemCounter) Add(key string, delta int64) {
	if counter, ok := c.counts.Get(key); ok {
		counter.Add(delta)
		return
	}
	fresh := &atomic.Int64{}
	if !c.counts.SetIfAbsent(key, fresh) {
		// Lost the race; another goroutine created the entry.
		counter, _ := c.counts.Get(key)
		counter.Add(delta)
		return
	}
	fresh.Add(delta)
}

// Get returns the count for key, zero if absent.
func (c *ItemCounter) Get(key string) int64 {
	if counter, ok := c.counts.Get(key); ok {
		return counter.Load()
	}
	return 0
}

// Keys returns all labels seen so far.
func (c *ItemCounter) Keys() []string {
	return c.counts.Keys()
}

// Total returns the sum over all labels.
func (c *ItemCounter) Total() int64 {
	var total int64
	c.counts.IterCb(func(_ string, counter *atomic.Int64) {
		total += counter.Load()
	})
	return total
}

// Reset drops all counts.
func (c *ItemCounter) Reset() {
	c.counts.Clear()
}
