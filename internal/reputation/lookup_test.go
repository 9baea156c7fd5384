package reputation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingChecker tracks how many calls each IP receives.
type countingChecker struct {
	mu    sync.Mutex
	calls map[string]int
	score float64
	err   error
}

func newCountingChecker(score float64, err error) *countingChecker {
	return &countingChecker{calls: map[string]int{}, score: score, err: err}
}

func (c *countingChecker) Check(_ context.Context, ip string) (float64, error) {
	c.mu.Lock()
	c.calls[ip]++
	c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.score, nil
}

func (c *countingChecker) callCount(ip string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[ip]
}

func TestResolveDeduplicatesWithinBatch(t *testing.T) {
	checker := newCountingChecker(6, nil)
	lookup := NewLookup(checker, nil, LookupOptions{Workers: 4})

	scores := lookup.Resolve(context.Background(), []string{
		"203.0.113.7", "203.0.113.7", "198.51.100.1", "203.0.113.7",
	})
	assert.InDelta(t, 6.0, scores["203.0.113.7"], 1e-9)
	assert.InDelta(t, 6.0, scores["198.51.100.1"], 1e-9)
	assert.Equal(t, 1, checker.callCount("203.0.113.7"))
	assert.Equal(t, 1, checker.callCount("198.51.100.1"))
}

func TestResolveSkipsEmptyAddresses(t *testing.T) {
	checker := newCountingChecker(6, nil)
	lookup := NewLookup(checker, nil, LookupOptions{})

	scores := lookup.Resolve(context.Background(), []string{"", "", ""})
	assert.Empty(t, scores)
	assert.Empty(t, checker.calls)
}

func TestResolveFailureScoresZero(t *testing.T) {
	checker := newCountingChecker(0, errors.New("oracle down"))
	lookup := NewLookup(checker, nil, LookupOptions{Workers: 2})

	scores := lookup.Resolve(context.Background(), []string{"203.0.113.7", "198.51.100.1"})
	require.Len(t, scores, 2)
	assert.Zero(t, scores["203.0.113.7"])
	assert.Zero(t, scores["198.51.100.1"])
}

func TestResolveUsesCacheAcrossBatches(t *testing.T) {
	checker := newCountingChecker(8, nil)
	cache := NewMemoryCache(10)
	defer cache.Close()
	lookup := NewLookup(checker, cache, LookupOptions{CacheTTL: time.Minute})

	first := lookup.Resolve(context.Background(), []string{"203.0.113.7"})
	second := lookup.Resolve(context.Background(), []string{"203.0.113.7"})

	assert.InDelta(t, 8.0, first["203.0.113.7"], 1e-9)
	assert.InDelta(t, 8.0, second["203.0.113.7"], 1e-9)
	assert.Equal(t, 1, checker.callCount("203.0.113.7"))
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	checker := newCountingChecker(0, errors.New("oracle down"))
	cache := NewMemoryCache(10)
	defer cache.Close()
	lookup := NewLookup(checker, cache, LookupOptions{CacheTTL: time.Minute})

	lookup.Resolve(context.Background(), []string{"203.0.113.7"})
	lookup.Resolve(context.Background(), []string{"203.0.113.7"})

	// A failed lookup is retried on the next batch.
	assert.Equal(t, 2, checker.callCount("203.0.113.7"))
}

func TestMemoryCacheTTL(t *testing.T) {
	cache := NewMemoryCache(10)
	defer cache.Close()

	cache.Set("203.0.113.7", 7, 50*time.Millisecond)
	score, ok := cache.Get("203.0.113.7")
	require.True(t, ok)
	assert.InDelta(t, 7.0, score, 1e-9)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get("203.0.113.7")
	assert.False(t, ok)
}

func TestMemoryCacheEviction(t *testing.T) {
	cache := NewMemoryCache(2)
	defer cache.Close()

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, 2*time.Minute)
	cache.Set("c", 3, 3*time.Minute)

	// "a" held the oldest expiry and is evicted to make room.
	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}
