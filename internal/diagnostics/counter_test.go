package diagnostics

import (
	"sync"
	"testing"
)

func TestItemCounter_Basics(t *testing.T) {
	c := NewItemCounter()

	c.Inc("a")
	c.Inc("a")
	c.Add("b", 3)

	if got := c.Get("a"); got != 2 {
		t.Errorf("Get(a) = %d, want 2", got)
	}
	if got := c.Get("b"); got != 3 {
		t.Errorf("Get(b) = %d, want 3", got)
	}
	if got := c.Get("missing"); got != 0 {
		t.Errorf("Get(missing) = %d, want 0", got)
	}
	if got := c.Total(); got != 5 {
		t.Errorf("Total() = %d, want 5", got)
	}
	if got := len(c.Keys()); got != 2 {
		t.Errorf("len(Keys()) = %d, want 2", got)
	}
}

func TestItemCounter_Reset(t *testing.T) {
	c := NewItemCounter()
	c.Inc("a")
	c.Reset()

	if c.Total() != 0 {
		t.Errorf("Total() after reset = %d, want 0", c.Total())
	}
	if len(c.Keys()) != 0 {
		t.Errorf("Keys() after reset = %v, want empty", c.Keys())
	}
}

// Total must equal the sum over all keys on a quiesced counter regardless
// of how concurrent increments interleaved.
func TestItemCounter_ConcurrentTotalEqualsSum(t *testing.T) {
	c := NewItemCounter()
	keys := []string{"alpha", "beta", "gamma", "delta"}

	const goroutines = 8
	const perGoroutine = 5000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Inc(keys[(g+i)%len(keys)])
			}
		}(g)
	}
	wg.Wait()

	var sum int64
	for _, k := range c.Keys() {
		sum += c.Get(k)
	}
	if total := c.Total(); total != sum {
		t.Errorf("Total() = %d, sum of Get = %d", total, sum)
	}
	if want := int64(goroutines * perGoroutine); sum != want {
		t.Errorf("sum = %d, want %d", sum, want)
	}
}

// Mirrors the 5-indexed / 12-non-indexed / 17-total aggregation scenario.
func TestItemCounter_AggregationScenario(t *testing.T) {
	c := NewItemCounter()
	c.Add("A", 5)
	c.Add("B", 12)

	if c.Total() != 17 {
		t.Fatalf("Total() = %d, want 17", c.Total())
	}
	if pct := 100 * float64(c.Get("A")) / float64(c.Total()); pct < 29.3 || pct > 29.5 {
		t.Errorf("A share = %.2f%%, want ~29.4%%", pct)
	}
	if pct := 100 * float64(c.Get("B")) / float64(c.Total()); pct < 70.5 || pct > 70.7 {
		t.Errorf("B share = %.2f%%, want ~70.6%%", pct)
	}
}
